// Package main serves the chat HTTP API from AWS Lambda behind API Gateway v2.
// Websocket sessions need a long-lived server and are only offered by cmd/chat.
package main

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"

	"trustmed/internal/chat"
	"trustmed/internal/config"
	"trustmed/internal/logger"
)

var (
	chiLambda *chiadapter.ChiLambdaV2
	lg        *logger.Logger
)

func init() {
	started := time.Now()

	cfg, err := config.LoadServerConfig("", "")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg = logger.NewLogger(cfg.LogLevel)

	app, err := chat.NewApp(context.Background(), cfg, lg)
	if err != nil {
		log.Fatalf("Failed to initialize chat: %v", err)
	}

	chiLambda = chiadapter.NewV2(app.Server.Router())

	lg.Info("Cold start completed", "duration", time.Since(started).String())
}

// Handler proxies one API Gateway request through the chat router.
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	lg.Debug("Lambda request",
		"method", req.RequestContext.HTTP.Method,
		"path", req.RequestContext.HTTP.Path,
		"request_id", req.RequestContext.RequestID,
	)

	return chiLambda.ProxyWithContextV2(ctx, req)
}

func main() {
	lambda.Start(Handler)
}
