// Package notify delivers run lifecycle events to external channels
// (webhooks, Telegram) or the log.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"trendfilter/internal/model"
)

// Level represents the severity of an event.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// Event is a notification to be sent.
type Event struct {
	Level   Level             `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Run     *model.RunSummary `json:"run,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an event. Returns error if delivery fails.
	Send(ctx context.Context, ev Event) error
}

// RunCompleted builds the event for a successfully persisted run.
func RunCompleted(sum model.RunSummary) Event {
	return Event{
		Level: LevelInfo,
		Title: "filter run completed",
		Message: fmt.Sprintf("%s: %d bars, %d changes, %d reversals, final %.4f (%s)",
			sum.Symbol, sum.Bars, sum.Changes, sum.Reversals, sum.FinalFilter, sum.FinalDirection),
		Run: &sum,
	}
}

// RunFailed builds the event for a run that errored out.
func RunFailed(symbol string, err error) Event {
	return Event{
		Level:   LevelCritical,
		Title:   "filter run failed",
		Message: fmt.Sprintf("%s: %v", symbol, err),
	}
}

// Multi fans an event out to every backend. Send tries all of them and
// joins the failures.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes events to the log (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, ev Event) error {
	log.Info().Str("level", string(ev.Level)).Str("title", ev.Title).Msg(ev.Message)
	return nil
}
