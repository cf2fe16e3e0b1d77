package discord

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogPublisher only logs the activity. Used with --dry-run or without a bot token.
type LogPublisher struct{}

// Publish logs text at info level.
func (LogPublisher) Publish(_ context.Context, text string) error {
	log.Info().Str("activity", text).Msg("Dry run, presence not sent")
	return nil
}
