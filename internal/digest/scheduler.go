// Package digest sends the reviewer a periodic summary of outstanding
// drafts, grouped by urgency, at fixed wall-clock times.
package digest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/magidandrew/tg-persona/internal/metrics"
	"github.com/magidandrew/tg-persona/internal/models"
	"github.com/magidandrew/tg-persona/internal/transport"
)

// Source supplies the current draft counts. Implemented by the review
// controller.
type Source interface {
	Summary() models.DigestSummary
}

// TimeOfDay is a firing time in the local day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimes parses "HH:MM" entries and returns them sorted.
func ParseTimes(entries []string) ([]TimeOfDay, error) {
	times := make([]TimeOfDay, 0, len(entries))
	for _, entry := range entries {
		var t TimeOfDay
		if _, err := fmt.Sscanf(entry, "%d:%d", &t.Hour, &t.Minute); err != nil {
			return nil, fmt.Errorf("digest: parse time %q: %w", entry, err)
		}
		if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
			return nil, fmt.Errorf("digest: time %q out of range", entry)
		}
		times = append(times, t)
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("digest: no firing times configured")
	}
	sort.Slice(times, func(i, j int) bool {
		if times[i].Hour != times[j].Hour {
			return times[i].Hour < times[j].Hour
		}
		return times[i].Minute < times[j].Minute
	})
	return times, nil
}

// Scheduler fires at configured wall-clock times, independent of
// conversation activity.
type Scheduler struct {
	times     []TimeOfDay
	source    Source
	transport transport.Transport
	channelID string
	logger    zerolog.Logger

	now func() time.Time // overridable in tests
}

// NewScheduler creates a scheduler that reports to the review channel.
func NewScheduler(times []TimeOfDay, source Source, t transport.Transport, channelID string, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		times:     times,
		source:    source,
		transport: t,
		channelID: channelID,
		logger:    logger.With().Str("component", "digest").Logger(),
		now:       time.Now,
	}
}

// NextFiring returns the next configured firing instant after now. When
// all of today's times have passed, it is the earliest time tomorrow.
func (s *Scheduler) NextFiring(now time.Time) time.Time {
	for _, t := range s.times {
		candidate := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, now.Location())
		if candidate.After(now) {
			return candidate
		}
	}
	first := s.times[0]
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), first.Hour, first.Minute, 0, 0, now.Location())
}

// Run fires until ctx is cancelled. Cancellation during a wait is a
// normal termination.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := s.NextFiring(s.now())
		timer := time.NewTimer(next.Sub(s.now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(ctx)
		}
	}
}

// fire computes the summary and reports it, staying silent when there
// is nothing outstanding.
func (s *Scheduler) fire(ctx context.Context) {
	sum := s.source.Summary()
	if sum.Total() == 0 {
		s.logger.Debug().Msg("no outstanding drafts, skipping digest")
		return
	}

	text := FormatSummary(sum)
	if err := s.transport.SendMessage(ctx, s.channelID, text); err != nil {
		s.logger.Error().Err(err).Msg("digest delivery failed")
		return
	}

	metrics.DigestsSent.Inc()
	s.logger.Info().
		Int("high", sum.High).
		Int("medium", sum.Medium).
		Int("low", sum.Low).
		Msg("digest sent")
}

// FormatSummary renders a digest summary for the reviewer.
func FormatSummary(sum models.DigestSummary) string {
	return fmt.Sprintf("Outstanding drafts: %d (high %d / medium %d / low %d)",
		sum.Total(), sum.High, sum.Medium, sum.Low)
}
