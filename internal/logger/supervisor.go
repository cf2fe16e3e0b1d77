package logger

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/thejerf/suture/v4"
)

// SupervisorHook logs suture events through the global logger.
// Use it as suture.Spec.EventHook.
func SupervisorHook(e suture.Event) {
	level := zerolog.WarnLevel
	msg := "Service failed"

	switch e.Type() {
	case suture.EventTypeServicePanic:
		level = zerolog.ErrorLevel
		msg = "Service panicked"
	case suture.EventTypeBackoff:
		msg = "Supervisor backing off"
	case suture.EventTypeResume:
		level = zerolog.InfoLevel
		msg = "Supervisor resumed"
	case suture.EventTypeStopTimeout:
		msg = "Service did not stop in time"
	}

	log.WithLevel(level).Fields(e.Map()).Msg(msg)
}
