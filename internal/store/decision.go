package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/learnsmart/tutor/internal/model"
)

type decisionRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

var decisionColumns = []string{
	"id", "sequence", "timestamp", "op", "strategy", "fell_back", "outcome",
	"user_id", "plan_id", "plan_version", "summary", "latency_ms",
}

func (r *decisionRepo) AppendDecision(ctx context.Context, d Decision) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	ts := d.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	query, args := builder().Insert(tableDecisions).
		Columns(decisionColumns[1:]...).
		Values(
			seqNum, ts.UTC(), d.Op, string(d.Strategy), d.FellBack, d.Outcome,
			d.UserID, d.PlanID, d.PlanVersion, d.Summary, d.LatencyMs,
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save decision: %w", err)
	}
	return nil
}

func (r *decisionRepo) QueryDecisions(ctx context.Context, q DecisionQuery) ([]Decision, error) {
	b := builder()
	sel := b.Select(decisionColumns...).From(b.Table(tableDecisions))
	if q.Op != "" {
		sel.Where(entsql.EQ("op", q.Op))
	}
	if q.UserID != "" {
		sel.Where(entsql.EQ("user_id", q.UserID))
	}
	if q.PlanID != "" {
		sel.Where(entsql.EQ("plan_id", q.PlanID))
	}
	applyQueryOpts(sel, q.QueryOpts)

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var strategy string
		err := rows.Scan(
			&d.ID, &d.Sequence, &d.Timestamp, &d.Op, &strategy, &d.FellBack, &d.Outcome,
			&d.UserID, &d.PlanID, &d.PlanVersion, &d.Summary, &d.LatencyMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Strategy = model.Strategy(strategy)
		out = append(out, d)
	}
	return out, rows.Err()
}
