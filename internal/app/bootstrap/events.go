package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/clinic-scheduling/internal/config"
	"github.com/wolfman30/clinic-scheduling/internal/events"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

// LoadAWSConfig builds the SDK config, honouring static keys and a
// LocalStack-style endpoint override.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	return awsCfg, nil
}

// NewSQSClient creates an SQS client, pointing it at AWS_ENDPOINT_OVERRIDE when set.
func NewSQSClient(awsCfg aws.Config, cfg *appconfig.Config) *sqs.Client {
	endpoint := strings.TrimSpace(cfg.AWSEndpointOverride)
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// EventPipeline is the outbox writer plus the optional background deliverer.
type EventPipeline struct {
	Outbox    *events.OutboxStore
	Deliverer *events.Deliverer
}

// BuildEventPipeline wires the Postgres outbox. Delivery to SQS is enabled
// only when a queue URL is configured; otherwise events accumulate in the
// outbox for another consumer.
func BuildEventPipeline(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool, logger *logging.Logger) (*EventPipeline, error) {
	if pool == nil {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pipeline := &EventPipeline{Outbox: events.NewOutboxStore(pool)}

	queueURL := strings.TrimSpace(cfg.AppointmentEventsQueueURL)
	if queueURL == "" {
		logger.Info("appointment events queue not configured; outbox delivery disabled")
		return pipeline, nil
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	publisher := events.NewSQSPublisher(NewSQSClient(awsCfg, cfg), queueURL)
	pipeline.Deliverer = events.NewDeliverer(pipeline.Outbox, publisher, logger.Component("outbox")).
		WithInterval(cfg.OutboxPollInterval)
	return pipeline, nil
}
