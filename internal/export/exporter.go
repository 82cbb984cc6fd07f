package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voicelane/callcore/pkg/logging"
)

// Exporter fans the summary out to the configured sinks. Each sink is
// best-effort and independent: a failed S3 upload does not stop the queue
// publish or the database insert.
type Exporter struct {
	queue   Queue
	archive *Archive
	repo    *Repository
	logger  *logging.Logger
	timeout time.Duration
}

// NewExporter wires the sinks. Any of queue, archive, and repo may be nil,
// which disables that sink.
func NewExporter(queue Queue, archive *Archive, repo *Repository, logger *logging.Logger) *Exporter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Exporter{
		queue:   queue,
		archive: archive,
		repo:    repo,
		logger:  logger,
		timeout: 10 * time.Second,
	}
}

// Export ships the summary. It runs after session teardown on its own
// context (never the call's, which is already cancelled) and returns the
// first error for the caller to log. Nothing here re-opens the session.
func (e *Exporter) Export(ctx context.Context, summary *Summary) error {
	if summary == nil {
		return fmt.Errorf("export: nil summary")
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if summary.IsHotLead() {
		e.logger.Info("HOT LEAD session exported",
			"session_id", summary.SessionID,
			"tier", summary.QualificationTier,
			"signal_count", len(summary.Signals),
			"total_cost_usd", summary.TotalCostUSD,
		)
	}

	var firstErr error
	record := func(step string, err error) {
		if err == nil {
			return
		}
		e.logger.Error("summary export step failed",
			"session_id", summary.SessionID, "step", step, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if e.queue != nil {
		body, err := json.Marshal(summary)
		if err != nil {
			record("marshal", err)
		} else {
			record("queue", e.queue.Send(ctx, string(body)))
		}
	}

	if e.archive.Enabled() {
		record("archive", e.archive.Put(ctx, summary))
	}

	if e.repo != nil {
		record("database", e.repo.Insert(ctx, summary))
	}

	e.logger.Info("session summary exported",
		"session_id", summary.SessionID,
		"final_phase", summary.FinalPhase,
		"tier", summary.QualificationTier,
		"duration_seconds", summary.DurationSeconds,
		"total_cost_usd", summary.TotalCostUSD,
	)
	return firstErr
}
