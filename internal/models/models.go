// Package models defines the data structures shared between the poller and the HTTP API.
package models

import (
	"time"

	"github.com/woozymasta/bedrock-status/internal/game"
)

// Snapshot is the outcome of the most recent poll.
type Snapshot struct {
	CheckedAt   time.Time    `json:"checked_at"`
	PublishedAt time.Time    `json:"published_at,omitzero"`
	Status      *game.Status `json:"status,omitempty"`
	Server      string       `json:"server"`
	Country     string       `json:"country,omitempty"`
	Activity    string       `json:"activity"`
	Published   string       `json:"published"`
	Result      string       `json:"result"`
	Error       string       `json:"error,omitempty"`
	Latency     Duration     `json:"latency"`
	Polls       int64        `json:"polls"`
	Online      bool         `json:"online"`
}

// Duration marshals as a Go duration string, e.g. "12ms".
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}
