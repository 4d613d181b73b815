package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/raphaelschols/ai-intel-hub/internal/feed"
)

// LogDispatcher writes intents to the log instead of a chat. Used when
// no Telegram credentials are configured so cycles still run end to end.
type LogDispatcher struct {
	log zerolog.Logger
}

func NewLogDispatcher(log zerolog.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Send(ctx context.Context, intent feed.NotificationIntent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.log.Info().
		Str("kind", string(intent.Kind)).
		Int("items", len(intent.Items)).
		Str("body", FormatIntent(intent)).
		Msg("notification (log only)")
	return nil
}
