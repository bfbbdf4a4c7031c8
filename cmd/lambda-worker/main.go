package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"aicv-backend/internal/bootstrap"
	"aicv-backend/internal/queue"
	"aicv-backend/internal/shared/config"
	"aicv-backend/internal/shared/metrics"
	"aicv-backend/internal/shared/telemetry"
	"aicv-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	render   queue.Handler
)

func initApp() {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}
	app, err := bootstrap.Build(context.Background(), cfg, bootstrap.RequireRemoteQueue())
	if err != nil {
		initErr = err
		return
	}
	render = queue.HandlerFunc(app.Resumes.ProcessRender)
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processBatch(ctx, render, event), nil
}

// processBatch reports failed renders back to SQS. Unrecoverable payloads are
// acknowledged so they do not cycle until the redrive limit.
func processBatch(ctx context.Context, h queue.Handler, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncRenderJobsReceived()
		err := workerproc.HandleMessage(ctx, h, record.Body)
		if err == nil {
			continue
		}
		fields := map[string]any{"sqs_message_id": record.MessageId, "error": err.Error()}
		if workerproc.Unrecoverable(err) {
			metrics.IncRenderJobsDeletedUnrecoverable()
			telemetry.Error("worker.render.dropped", fields)
			continue
		}
		telemetry.Error("worker.render.failed", fields)
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
