package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the engine's table set. Applied by integration tests and by the
// bootstrap path of cmd/server; production deployments run it as a
// migration.
const Schema = `
CREATE TABLE IF NOT EXISTS persons (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	kind TEXT NOT NULL,
	pgy_level INT,
	specialty_tags TEXT[] NOT NULL DEFAULT '{}',
	has_procedure_credential BOOLEAN NOT NULL DEFAULT FALSE,
	admin_type TEXT NOT NULL DEFAULT '',
	certifications JSONB NOT NULL DEFAULT '[]',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS activities (
	id UUID PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL,
	counts_toward_clinical_hours BOOLEAN NOT NULL DEFAULT FALSE,
	counts_toward_capacity BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rotation_templates (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	abbreviation TEXT NOT NULL UNIQUE,
	display_abbreviation TEXT NOT NULL DEFAULT '',
	class TEXT NOT NULL,
	requires_procedure_credential BOOLEAN NOT NULL DEFAULT FALSE,
	max_concurrent INT,
	secondary_template_id UUID,
	includes_weekend_work BOOLEAN NOT NULL DEFAULT FALSE,
	weekly_patterns JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS half_day_assignments (
	id UUID PRIMARY KEY,
	person_id UUID NOT NULL,
	date DATE NOT NULL,
	half_day TEXT NOT NULL,
	activity_id UUID NOT NULL,
	activity_code TEXT NOT NULL,
	activity_category TEXT NOT NULL,
	rotation_template_id UUID,
	source TEXT NOT NULL,
	is_override BOOLEAN NOT NULL DEFAULT FALSE,
	counts_toward_capacity BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT half_day_assignments_slot_key UNIQUE (person_id, date, half_day)
);

CREATE TABLE IF NOT EXISTS absences (
	id UUID PRIMARY KEY,
	person_id UUID NOT NULL,
	start_date DATE NOT NULL,
	end_date DATE NOT NULL,
	absence_type TEXT NOT NULL,
	approved BOOLEAN NOT NULL DEFAULT FALSE,
	should_block_assignment BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS institutional_events (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	start_date DATE NOT NULL,
	end_date DATE NOT NULL,
	scope TEXT NOT NULL,
	half_day TEXT,
	applies_to_inpatient BOOLEAN NOT NULL DEFAULT FALSE,
	activity_code TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS inpatient_preloads (
	id UUID PRIMARY KEY,
	person_id UUID NOT NULL,
	start_date DATE NOT NULL,
	end_date DATE NOT NULL,
	rotation_type TEXT NOT NULL,
	includes_post_call BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS call_assignments (
	id UUID PRIMARY KEY,
	person_id UUID NOT NULL,
	date DATE NOT NULL
);

CREATE TABLE IF NOT EXISTS resident_call_preloads (
	id UUID PRIMARY KEY,
	person_id UUID NOT NULL,
	date DATE NOT NULL
);

CREATE TABLE IF NOT EXISTS block_assignments (
	id UUID PRIMARY KEY,
	person_id UUID NOT NULL,
	block_number INT NOT NULL,
	academic_year INT NOT NULL,
	primary_template_id UUID NOT NULL,
	secondary_template_id UUID
);

CREATE TABLE IF NOT EXISTS schedule_drafts (
	id UUID PRIMARY KEY,
	start_date DATE NOT NULL,
	end_date DATE NOT NULL,
	block_number INT,
	status TEXT NOT NULL,
	source_type TEXT NOT NULL,
	created_by_id UUID NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	added_count INT NOT NULL DEFAULT 0,
	modified_count INT NOT NULL DEFAULT 0,
	deleted_count INT NOT NULL DEFAULT 0,
	flags_total INT NOT NULL DEFAULT 0,
	flags_acknowledged INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	published_at TIMESTAMPTZ,
	published_by_id UUID,
	rollback_available BOOLEAN NOT NULL DEFAULT FALSE,
	rollback_expires_at TIMESTAMPTZ,
	rolled_back_at TIMESTAMPTZ,
	rolled_back_by_id UUID
);

CREATE TABLE IF NOT EXISTS draft_assignments (
	id UUID PRIMARY KEY,
	draft_id UUID NOT NULL REFERENCES schedule_drafts(id),
	person_id UUID NOT NULL,
	date DATE NOT NULL,
	time_of_day TEXT NOT NULL,
	activity_code TEXT NOT NULL,
	rotation_template_id UUID,
	change_type TEXT NOT NULL,
	existing_assignment_id UUID,
	created_assignment_id UUID,
	seq BIGSERIAL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT draft_assignments_slot_key UNIQUE (draft_id, person_id, date, time_of_day)
);

CREATE TABLE IF NOT EXISTS draft_flags (
	id UUID PRIMARY KEY,
	draft_id UUID NOT NULL REFERENCES schedule_drafts(id),
	flag_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	person_id UUID,
	date DATE,
	acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
	acknowledged_at TIMESTAMPTZ,
	acknowledged_by_id UUID,
	resolution_note TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS conflict_alerts (
	id UUID PRIMARY KEY,
	person_id UUID NOT NULL,
	fmit_week_start DATE NOT NULL,
	conflict_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	status TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	leave_id UUID,
	swap_id UUID,
	resolved_at TIMESTAMPTZ,
	resolved_by_id UUID,
	resolution_notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS swap_records (
	id UUID PRIMARY KEY,
	source_person_id UUID NOT NULL,
	source_week_start DATE NOT NULL,
	target_person_id UUID NOT NULL,
	target_week_start DATE,
	swap_type TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id UUID PRIMARY KEY,
	actor_id UUID NOT NULL,
	action TEXT NOT NULL,
	resource TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_half_day_assignments_date ON half_day_assignments(date);
CREATE INDEX IF NOT EXISTS idx_half_day_assignments_person_date ON half_day_assignments(person_id, date);
CREATE INDEX IF NOT EXISTS idx_draft_assignments_draft ON draft_assignments(draft_id, seq);
CREATE INDEX IF NOT EXISTS idx_conflict_alerts_week ON conflict_alerts(fmit_week_start) WHERE status IN ('NEW', 'ACKNOWLEDGED');
`

// ApplySchema creates all engine tables if they do not exist.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
