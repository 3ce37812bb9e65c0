// Package notify pushes inventory state to devices connected through the
// API Gateway WebSocket API.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"librefind/application/pipeline"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"go.uber.org/zap"
)

// ErrConnectionGone means the client disconnected; further sends are futile.
var ErrConnectionGone = errors.New("websocket connection gone")

// API is the subset of the management API client the notifier needs.
type API interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// Message is the frame sent to the device.
type Message struct {
	Type  string          `json:"type"`
	State *pipeline.State `json:"state,omitempty"`
	Error string          `json:"error,omitempty"`
}

// ConnectionNotifier sends messages to one connection.
type ConnectionNotifier struct {
	client       API
	connectionID string
	logger       *zap.Logger
}

func NewConnectionNotifier(client API, connectionID string, logger *zap.Logger) *ConnectionNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionNotifier{client: client, connectionID: connectionID, logger: logger}
}

// NewClient builds a management API client for the stage's callback
// endpoint (https://{domain}/{stage}).
func NewClient(cfg aws.Config, endpoint string) *apigatewaymanagementapi.Client {
	return apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
}

// Send posts msg to the connection.
func (n *ConnectionNotifier) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	_, err = n.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(n.connectionID),
		Data:         data,
	})
	if err != nil {
		var gone *apigwtypes.GoneException
		if errors.As(err, &gone) {
			return ErrConnectionGone
		}
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Stream forwards every snapshot from states until the channel closes, the
// connection goes away or ctx ends. The final snapshot is the one that
// matters, so transient send failures are logged and skipped.
func (n *ConnectionNotifier) Stream(ctx context.Context, states <-chan pipeline.State) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-states:
			if !ok {
				return nil
			}
			err := n.Send(ctx, Message{Type: "inventory.state", State: &s})
			if errors.Is(err, ErrConnectionGone) {
				return err
			}
			if err != nil {
				n.logger.Warn("Dropped state snapshot",
					zap.String("connectionID", n.connectionID),
					zap.Uint64("generation", s.Generation),
					zap.Error(err),
				)
			}
		}
	}
}
