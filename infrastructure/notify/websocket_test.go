package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"librefind/application/pipeline"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGateway struct {
	mu     sync.Mutex
	frames []Message
	failAt map[int]error
}

func (f *fakeGateway) PostToConnection(ctx context.Context, in *apigatewaymanagementapi.PostToConnectionInput, _ ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.frames)
	var msg Message
	if err := json.Unmarshal(in.Data, &msg); err != nil {
		return nil, err
	}
	f.frames = append(f.frames, msg)
	if err, ok := f.failAt[n]; ok {
		return nil, err
	}
	if aws.ToString(in.ConnectionId) != "conn-1" {
		return nil, errors.New("wrong connection")
	}
	return &apigatewaymanagementapi.PostToConnectionOutput{}, nil
}

func states(gens ...uint64) <-chan pipeline.State {
	ch := make(chan pipeline.State, len(gens))
	for _, g := range gens {
		s := pipeline.Initial()
		s.Generation = g
		ch <- s
	}
	close(ch)
	return ch
}

func TestStream_ForwardsUntilClosed(t *testing.T) {
	gw := &fakeGateway{failAt: map[int]error{1: errors.New("throttled")}}
	n := NewConnectionNotifier(gw, "conn-1", zap.NewNop())

	require.NoError(t, n.Stream(context.Background(), states(1, 2, 3)))
	require.Len(t, gw.frames, 3)
	assert.Equal(t, "inventory.state", gw.frames[2].Type)
	assert.Equal(t, uint64(3), gw.frames[2].State.Generation)
}

func TestStream_StopsWhenConnectionGone(t *testing.T) {
	gw := &fakeGateway{failAt: map[int]error{0: &apigwtypes.GoneException{}}}
	n := NewConnectionNotifier(gw, "conn-1", zap.NewNop())

	err := n.Stream(context.Background(), states(1, 2))
	assert.ErrorIs(t, err, ErrConnectionGone)
	assert.Len(t, gw.frames, 1)
}

func TestStream_ContextCancelled(t *testing.T) {
	n := NewConnectionNotifier(&fakeGateway{}, "conn-1", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Stream(ctx, make(chan pipeline.State))
	assert.ErrorIs(t, err, context.Canceled)
}
