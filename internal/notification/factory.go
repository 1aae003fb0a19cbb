package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/gravadigital/billetterie-api/internal/config"
	"github.com/gravadigital/billetterie-api/internal/storage/repository"
)

const (
	TypeInProcess = "inprocess"
	TypeRabbitMQ  = "rabbitmq"
)

// Setup is a running notifier together with its shutdown hook
type Setup struct {
	Notifier Notifier
	Close    func()
}

// FromConfig builds the notifier selected by NOTIFIER_TYPE. With rabbitmq the
// same process also consumes the queue.
func FromConfig(ctx context.Context, cfg *config.Config, logs repository.NotificationLogRepository) (*Setup, error) {
	dispatcher := NewDispatcher(SenderFromConfig(cfg), logs)

	switch strings.ToLower(cfg.Notifier.Type) {
	case "", TypeInProcess:
		n := NewAsyncNotifier(dispatcher, cfg.Notifier.Workers, cfg.Notifier.BufferSize)
		return &Setup{Notifier: n, Close: func() { _ = n.Close() }}, nil

	case TypeRabbitMQ:
		client, err := NewRabbitClient(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue)
		if err != nil {
			return nil, err
		}
		consumer := NewConsumer(client, dispatcher)
		consumer.Start(ctx)
		return &Setup{
			Notifier: NewQueueNotifier(client),
			Close: func() {
				consumer.Stop()
				client.Close()
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported notifier type: %s (supported: %s, %s)", cfg.Notifier.Type, TypeInProcess, TypeRabbitMQ)
	}
}
