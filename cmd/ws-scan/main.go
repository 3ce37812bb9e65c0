// Package main implements the WebSocket scan route. A device posts its
// installed packages; the lambda runs one pipeline pass and pushes every
// state snapshot back over the same connection.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"librefind/application/pipeline"
	"librefind/application/queries"
	"librefind/infrastructure/config"
	"librefind/infrastructure/di"
	"librefind/infrastructure/inventory"
	"librefind/infrastructure/notify"
	"librefind/infrastructure/persistence/ignorelist"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

const scanTimeout = 25 * time.Second

var container *di.Container

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	container, _, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
}

// callbackEndpoint prefers the configured endpoint and falls back to the
// one the request arrived on.
func callbackEndpoint(req events.APIGatewayWebsocketProxyRequest) string {
	if ep := container.Config.AWS.WebSocketEndpoint; ep != "" {
		return ep
	}
	return fmt.Sprintf("https://%s/%s", req.RequestContext.DomainName, req.RequestContext.Stage)
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID
	logger := container.Logger.With(zap.String("connectionID", connID))
	notifier := notify.NewConnectionNotifier(
		notify.NewClient(container.AWSConfig, callbackEndpoint(req)),
		connID,
		logger,
	)

	var q queries.ClassifyInventoryQuery
	if err := json.Unmarshal([]byte(req.Body), &q); err != nil {
		_ = notifier.Send(ctx, notify.Message{Type: "inventory.error", Error: "malformed scan request"})
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest}, nil
	}
	err := q.Validate()
	if err == nil {
		err = q.CheckSize(container.DomainConfig.MaxPackagesPerScan)
	}
	if err != nil {
		_ = notifier.Send(ctx, notify.Message{Type: "inventory.error", Error: err.Error()})
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	p := pipeline.New(
		container.Classifier,
		inventory.NewStaticSource(q.Packages...),
		ignorelist.NewMemoryStore(q.Ignored...),
		pipeline.Options{
			SessionID: connID,
			Publisher: container.Publisher,
			Metrics:   container.Metrics,
			Logger:    logger,
		},
	)
	settled := pipeline.UntilSettled(ctx, p.Subscribe(ctx))

	// Queued before Run so they apply ahead of the first scan result.
	if q.Query != "" {
		_ = p.SetQuery(q.Query)
	}
	if q.Status != nil {
		_ = p.SetFilter(q.Status)
	}
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()

	err = notifier.Stream(ctx, settled)
	cancel()
	<-runErr

	switch {
	case errors.Is(err, notify.ErrConnectionGone):
		logger.Info("Client disconnected before the scan finished")
	case err != nil:
		logger.Warn("Scan stream ended early", zap.Error(err))
		return events.APIGatewayProxyResponse{StatusCode: http.StatusGatewayTimeout}, nil
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

func main() {
	lambda.Start(Handler)
}
