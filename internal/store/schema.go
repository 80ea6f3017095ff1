package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table names.
const (
	tableLLMEvents     = "llm_request_events"
	tableDecisions     = "decision_events"
	tableLearnerEvents = "learner_events"
	tablePlanSnapshots = "plan_snapshots"
)

// eventColumns returns the id/sequence/timestamp prefix every event table
// starts with.
func eventColumns() []*schema.Column {
	return []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
	}
}

func eventTable(name string, cols ...*schema.Column) *schema.Table {
	all := append(eventColumns(), cols...)
	return &schema.Table{
		Name:       name,
		Columns:    all,
		PrimaryKey: []*schema.Column{all[0]},
		Indexes: []*schema.Index{
			{Name: name + "_timestamp", Columns: []*schema.Column{all[2]}},
		},
	}
}

func column(name string, typ field.Type) *schema.Column {
	return &schema.Column{Name: name, Type: typ}
}

func defaulted(name string, typ field.Type, def any) *schema.Column {
	return &schema.Column{Name: name, Type: typ, Default: def}
}

var (
	llmEventsTable = eventTable(tableLLMEvents,
		column("provider", field.TypeString),
		column("model", field.TypeString),
		column("purpose", field.TypeString),
		defaulted("input_tokens", field.TypeInt, 0),
		defaulted("output_tokens", field.TypeInt, 0),
		defaulted("latency_ms", field.TypeInt64, 0),
		column("success", field.TypeBool),
		defaulted("error_message", field.TypeString, ""),
		defaulted("request_body", field.TypeString, ""),
		defaulted("response_body", field.TypeString, ""),
	)

	decisionsTable = eventTable(tableDecisions,
		column("op", field.TypeString),
		column("strategy", field.TypeString),
		defaulted("fell_back", field.TypeBool, false),
		column("outcome", field.TypeString),
		defaulted("user_id", field.TypeString, ""),
		defaulted("plan_id", field.TypeString, ""),
		defaulted("plan_version", field.TypeInt, 0),
		defaulted("summary", field.TypeString, ""),
		defaulted("latency_ms", field.TypeInt64, 0),
	)

	learnerEventsTable = eventTable(tableLearnerEvents,
		column("event_id", field.TypeString),
		column("user_id", field.TypeString),
		column("type", field.TypeString),
		defaulted("skill_id", field.TypeString, ""),
		defaulted("mastery_before", field.TypeFloat64, 0),
		defaulted("mastery_after", field.TypeFloat64, 0),
		defaulted("entity_id", field.TypeString, ""),
		column("occurred_at", field.TypeTime),
	)

	planSnapshotColumns = []*schema.Column{
		{Name: "plan_id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "version", Type: field.TypeInt},
		{Name: "data", Type: field.TypeBytes},
		{Name: "updated_at", Type: field.TypeTime},
	}
	planSnapshotsTable = &schema.Table{
		Name:       tablePlanSnapshots,
		Columns:    planSnapshotColumns,
		PrimaryKey: []*schema.Column{planSnapshotColumns[0]},
		Indexes: []*schema.Index{
			{Name: "plan_snapshots_user_id", Columns: []*schema.Column{planSnapshotColumns[1]}},
		},
	}

	tables = []*schema.Table{llmEventsTable, decisionsTable, learnerEventsTable, planSnapshotsTable}
)

func init() {
	decisionsTable.Indexes = append(decisionsTable.Indexes,
		&schema.Index{Name: "decision_events_plan_id", Columns: []*schema.Column{decisionsTable.Columns[8]}},
	)
	learnerEventsTable.Indexes = append(learnerEventsTable.Indexes,
		&schema.Index{Name: "learner_events_user_id", Columns: []*schema.Column{learnerEventsTable.Columns[4]}},
	)
}

// migrate creates missing tables, columns and indexes.
func migrate(ctx context.Context, drv *entsql.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}
