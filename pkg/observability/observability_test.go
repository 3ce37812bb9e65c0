package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (r *recordingCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	r.inputs = append(r.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, r.err
}

func TestMetrics_RecordCommandExecution(t *testing.T) {
	cw := &recordingCloudWatch{}
	m := NewMetrics("LibreFind/test", cw, nil)

	m.RecordCommandExecution(context.Background(), "RateAlternative", 25*time.Millisecond, errors.New("boom"))

	require.Len(t, cw.inputs, 1)
	in := cw.inputs[0]
	assert.Equal(t, "LibreFind/test", *in.Namespace)
	require.Len(t, in.MetricData, 2)
	assert.Equal(t, "CommandExecution", *in.MetricData[0].MetricName)
	assert.Equal(t, float64(25), *in.MetricData[0].Value)
	assert.Equal(t, "failure", *in.MetricData[0].Dimensions[1].Value)
}

func TestMetrics_NilClientIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordCommandExecution(context.Background(), "x", time.Second, nil)
	NewMetrics("ns", nil, nil).RecordSovereigntyScore(context.Background(), 50, "TRANSITIONING")
}

func TestCollector_MiddlewareUsesRoutePattern(t *testing.T) {
	c := NewCollector("librefind")
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/targets/{package}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, pkg := range []string{"com.a", "com.b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/targets/"+pkg, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/targets/{package}", "418")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("librefind")
	c.Classifications.WithLabelValues("FOSS").Add(3)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), `librefind_classifications_total{status="FOSS"} 3`))
}

func TestTracer_RunsWithoutSegment(t *testing.T) {
	called := false
	err := NewTracer("librefind").TraceFunction(context.Background(), "op", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
