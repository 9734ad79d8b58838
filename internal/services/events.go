package services

import (
	"context"

	"github.com/connectsphere/connectsphere/internal/logging"
)

// EventPublisher fans change notifications out to subscribed clients. The
// realtime hub implements it; tests substitute a recorder. Publish failures
// never fail the write that triggered them: durable state is already
// committed and watchers reconverge on their next snapshot.
type EventPublisher interface {
	Publish(ctx context.Context, topic, kind string, payload any) error
}

func logPublishFailure(topic string, err error) {
	logging.Warn("Failed to publish event", map[string]interface{}{"topic": topic, "error": err.Error()})
}
