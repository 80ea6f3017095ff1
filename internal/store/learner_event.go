package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/learnsmart/tutor/internal/model"
)

type learnerEventRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

var learnerEventColumns = []string{
	"sequence", "timestamp", "event_id", "user_id", "type", "skill_id",
	"mastery_before", "mastery_after", "entity_id", "occurred_at",
}

func (r *learnerEventRepo) AppendEvents(ctx context.Context, events ...model.Event) error {
	for _, e := range events {
		seqNum, err := r.seq.Next(ctx)
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		query, args := builder().Insert(tableLearnerEvents).
			Columns(learnerEventColumns...).
			Values(
				seqNum, e.OccurredAt.UTC(), e.ID, e.UserID, string(e.Type), string(e.SkillID),
				e.MasteryBefore, e.MasteryAfter, e.EntityID, e.OccurredAt.UTC(),
			).
			Query()
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save learner event %s: %w", e.ID, err)
		}
	}
	return nil
}

func (r *learnerEventRepo) RecentEvents(ctx context.Context, userID string, limit int) ([]model.Event, error) {
	b := builder()
	sel := b.Select(learnerEventColumns[2:]...).
		From(b.Table(tableLearnerEvents)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("sequence"))
	if limit > 0 {
		sel.Limit(limit)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query learner events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		var typ, skill string
		err := rows.Scan(&e.ID, &e.UserID, &typ, &skill,
			&e.MasteryBefore, &e.MasteryAfter, &e.EntityID, &e.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("scan learner event: %w", err)
		}
		e.Type = model.EventType(typ)
		e.SkillID = model.SkillID(skill)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}
