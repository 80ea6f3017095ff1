package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/learnsmart/tutor/internal/model"
)

// ErrVersionConflict is returned by PlanRepo.Save when the stored plan is not
// the version the caller revised.
type ErrVersionConflict struct {
	PlanID   string
	Expected int
	Stored   int
}

func (e *ErrVersionConflict) Error() string {
	if e.Expected == 0 {
		return fmt.Sprintf("plan %s already stored at version %d", e.PlanID, e.Stored)
	}
	if e.Stored == 0 {
		return fmt.Sprintf("plan %s: expected stored version %d, found none", e.PlanID, e.Expected)
	}
	return fmt.Sprintf("plan %s: expected stored version %d, found %d", e.PlanID, e.Expected, e.Stored)
}

type planRepo struct {
	db *sql.DB
}

func (r *planRepo) Save(ctx context.Context, plan model.LearningPlan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	now := time.Now().UTC()

	if plan.Version <= 1 {
		query, args := builder().Insert(tablePlanSnapshots).
			Columns("plan_id", "user_id", "version", "data", "updated_at").
			Values(plan.PlanID, plan.UserID, plan.Version, data, now).
			Query()
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			if stored, getErr := r.version(ctx, plan.PlanID); getErr == nil && stored > 0 {
				return &ErrVersionConflict{PlanID: plan.PlanID, Expected: 0, Stored: stored}
			}
			return fmt.Errorf("insert plan: %w", err)
		}
		return nil
	}

	expected := plan.Version - 1
	query, args := builder().Update(tablePlanSnapshots).
		Set("version", plan.Version).
		Set("data", data).
		Set("updated_at", now).
		Where(entsql.And(
			entsql.EQ("plan_id", plan.PlanID),
			entsql.EQ("version", expected),
		)).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if n == 0 {
		stored, err := r.version(ctx, plan.PlanID)
		if err != nil {
			return err
		}
		return &ErrVersionConflict{PlanID: plan.PlanID, Expected: expected, Stored: stored}
	}
	return nil
}

func (r *planRepo) Get(ctx context.Context, planID string) (*model.LearningPlan, error) {
	b := builder()
	query, args := b.Select("data").
		From(b.Table(tablePlanSnapshots)).
		Where(entsql.EQ("plan_id", planID)).
		Query()

	var data []byte
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query plan: %w", err)
	}

	var plan model.LearningPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	return &plan, nil
}

// version returns the stored version of planID, or 0 if absent.
func (r *planRepo) version(ctx context.Context, planID string) (int, error) {
	b := builder()
	query, args := b.Select("version").
		From(b.Table(tablePlanSnapshots)).
		Where(entsql.EQ("plan_id", planID)).
		Query()

	var v int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("query plan version: %w", err)
	}
	return v, nil
}
