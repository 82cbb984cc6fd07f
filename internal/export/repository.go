package export

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores call summaries in the relational database for the
// operations dashboard.
type Repository struct {
	db DB
}

// NewRepository initializes a repo backed by pgx.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("export: database handle required")
	}
	return &Repository{db: db}
}

// Insert writes one summary row.
func (r *Repository) Insert(ctx context.Context, s *Summary) error {
	query := `
		INSERT INTO call_summaries (
			session_id, started_at, ended_at, duration_seconds, final_phase,
			termination_reason, consent_decision, qualification_tier,
			signal_count, tool_call_count, total_cost_usd
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (session_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		s.SessionID,
		s.StartedAt,
		s.EndedAt,
		s.DurationSeconds,
		s.FinalPhase,
		nullable(s.TerminationReason),
		s.Consent.Decision,
		s.QualificationTier,
		len(s.Signals),
		len(s.ToolCalls),
		s.TotalCostUSD,
	)
	if err != nil {
		return fmt.Errorf("export: insert summary failed: %w", err)
	}
	return nil
}

// CountByTier returns how many stored sessions landed in the given tier.
func (r *Repository) CountByTier(ctx context.Context, tier string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM call_summaries WHERE qualification_tier = $1`, tier,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("export: count by tier failed: %w", err)
	}
	return count, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
