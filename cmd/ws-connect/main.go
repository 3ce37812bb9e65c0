// Package main implements the WebSocket $connect route. Scanning needs no
// account, so a connection without a token is accepted as anonymous; a token
// that is present but invalid is refused before the socket opens.
package main

import (
	"context"
	"log"
	"net/http"

	"librefind/infrastructure/config"
	"librefind/infrastructure/di"
	"librefind/pkg/auth"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

type connectHandler struct {
	validator *auth.JWTValidator
	logger    *zap.Logger
}

// bearerToken reads the token from the query string, which is all a browser
// WebSocket can set, falling back to the Authorization header.
func bearerToken(req events.APIGatewayWebsocketProxyRequest) string {
	if token := req.QueryStringParameters["token"]; token != "" {
		return token
	}
	if h := req.Headers["Authorization"]; h != "" {
		return h
	}
	return req.Headers["authorization"]
}

func (h *connectHandler) handle(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := h.logger.With(zap.String("connectionID", req.RequestContext.ConnectionID))

	token := bearerToken(req)
	if token == "" {
		logger.Debug("Anonymous connection")
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
	}

	claims, err := h.validator.ValidateToken(token)
	if err != nil {
		logger.Warn("Rejected connection", zap.Error(err))
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusUnauthorized,
			Body:       `{"error":"unauthorized"}`,
		}, nil
	}

	logger.Info("Connection established", zap.String("userID", claims.UserID))
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, _, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	validator, err := di.ProvideJWTValidator(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create JWT validator", zap.Error(err))
	}

	h := &connectHandler{validator: validator, logger: logger}
	lambda.Start(h.handle)
}
