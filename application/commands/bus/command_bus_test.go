package bus

import (
	"context"
	"errors"
	"testing"

	"librefind/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pingCommand struct{ Msg string }

func (c pingCommand) Validate() error {
	if c.Msg == "" {
		return errors.New("msg required")
	}
	return nil
}

type otherCommand struct{}

func (otherCommand) Validate() error { return nil }

func echo() CommandHandler {
	return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
		return cmd.(pingCommand).Msg, nil
	})
}

func TestCommandBus_Send(t *testing.T) {
	b := NewCommandBus(LoggingMiddleware(zap.NewNop()), MetricsMiddleware(nil))
	require.NoError(t, b.Register(pingCommand{}, echo()))

	got, err := b.Send(context.Background(), pingCommand{Msg: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}

func TestCommandBus_ValidationRunsBeforeHandler(t *testing.T) {
	b := NewCommandBus()
	called := false
	require.NoError(t, b.Register(pingCommand{}, CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
		called = true
		return nil, nil
	})))

	_, err := b.Send(context.Background(), pingCommand{})
	assert.EqualError(t, err, "msg required")
	assert.False(t, called)
}

func TestCommandBus_UnknownAndDuplicate(t *testing.T) {
	b := NewCommandBus()
	require.NoError(t, b.Register(pingCommand{}, echo()))

	_, err := b.Send(context.Background(), otherCommand{})
	assert.ErrorIs(t, err, ErrHandlerNotFound)

	assert.Error(t, b.Register(pingCommand{}, echo()))
}

func TestPipeline_FirstMiddlewareIsOutermost(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next CommandHandler) CommandHandler {
			return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
				order = append(order, name)
				return next.Handle(ctx, cmd)
			})
		}
	}

	h := NewPipeline(tag("outer"), tag("inner")).Execute(echo())
	_, err := h.Handle(context.Background(), pingCommand{Msg: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestTracingAndMetricsMiddleware_PassResultsThrough(t *testing.T) {
	b := NewCommandBus(
		TracingMiddleware(observability.NewTracer("librefind")),
		MetricsMiddleware(observability.NewMetrics("ns", nil, nil)),
	)
	require.NoError(t, b.Register(pingCommand{}, echo()))

	got, err := b.Send(context.Background(), pingCommand{Msg: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}
