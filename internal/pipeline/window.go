package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/threadsight/threadsight/internal/models"
	"github.com/threadsight/threadsight/internal/runstore"
)

var (
	// ErrNoPriorRun is returned for an update-mode run against a source
	// that has never been published.
	ErrNoPriorRun = errors.New("no prior run for source")

	// ErrInvalidWindow is returned when the computed fetch window is empty
	// or inverted.
	ErrInvalidWindow = errors.New("invalid fetch window")
)

// defaultLookbackDays applies when a new-mode run does not specify one. A
// full year gives first runs enough history for stable category discovery.
const defaultLookbackDays = 365

// updateOverlap is re-fetched before the prior window's end so late votes
// and comments on boundary posts are captured in the refreshed run.
const updateOverlap = 7 * 24 * time.Hour

// priorRuns is the slice of the run store the window calculation needs.
type priorRuns interface {
	LatestMetadata(source string) (models.RunMetadata, error)
}

// ComputeWindow derives the fetch window for a job. New-mode runs cover the
// lookback period ending at now; update-mode runs start one overlap before
// the prior run's window end.
func ComputeWindow(cfg models.JobConfig, store priorRuns, now time.Time) (models.Window, error) {
	switch cfg.Mode {
	case models.RunModeNew, "":
		days := cfg.LookbackDays
		if days <= 0 {
			days = defaultLookbackDays
		}
		return models.Window{Start: now.AddDate(0, 0, -days), End: now}, nil

	case models.RunModeUpdate:
		prior, err := store.LatestMetadata(cfg.Source)
		if err != nil {
			if errors.Is(err, runstore.ErrNotFound) {
				return models.Window{}, fmt.Errorf("source %s: %w", cfg.Source, ErrNoPriorRun)
			}
			return models.Window{}, fmt.Errorf("lookup prior run: %w", err)
		}

		start := prior.Window.End.Add(-updateOverlap)
		if !start.Before(now) {
			return models.Window{}, fmt.Errorf("%w: start %s not before %s",
				ErrInvalidWindow, start.Format(time.RFC3339), now.Format(time.RFC3339))
		}
		return models.Window{Start: start, End: now}, nil

	default:
		return models.Window{}, fmt.Errorf("unknown run mode %q", cfg.Mode)
	}
}
