// Package schema defines the database schema.
package schema

// TableDefinitions contains the SQL statements to create the database tables.
var TableDefinitions = []string{
	`CREATE TABLE IF NOT EXISTS contacts (
		id UUID PRIMARY KEY,
		sheet_title VARCHAR(255) NOT NULL,
		row_number INTEGER NOT NULL,
		name VARCHAR(255),
		website VARCHAR(255),
		phone VARCHAR(50),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (sheet_title, row_number)
	)`,
	`CREATE TABLE IF NOT EXISTS recipients (
		id UUID PRIMARY KEY,
		email_address VARCHAR(255) UNIQUE NOT NULL,
		salutation VARCHAR(255),
		has_replied BOOLEAN NOT NULL DEFAULT FALSE,
		initial_contact_date TIMESTAMP,
		contact_id UUID NOT NULL,
		plan_id UUID,
		thread_id VARCHAR(255),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS templates (
		id UUID PRIMARY KEY,
		type VARCHAR(30) NOT NULL,
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		draft_id VARCHAR(255),
		placeholders_json JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS follow_up_plans (
		id UUID PRIMARY KEY,
		plan_type VARCHAR(20) NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS follow_up_steps (
		id UUID PRIMARY KEY,
		plan_id UUID NOT NULL,
		step_number INTEGER NOT NULL,
		wait_days INTEGER NOT NULL,
		template_id UUID,
		UNIQUE (plan_id, step_number)
	)`,
	`CREATE TABLE IF NOT EXISTS emails (
		id UUID PRIMARY KEY,
		recipient_id UUID NOT NULL,
		initial_email_id UUID,
		followup_number INTEGER NOT NULL,
		status VARCHAR(20) NOT NULL,
		failure_reason TEXT,
		scheduled_date TIMESTAMP NOT NULL,
		sent_date TIMESTAMP,
		sender VARCHAR(255) NOT NULL,
		recipient_address VARCHAR(255) NOT NULL,
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		type VARCHAR(30) NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	// Internal emails may carry each followup number only once per recipient;
	// externally ingested history is exempt.
	`CREATE UNIQUE INDEX IF NOT EXISTS emails_recipient_followup_unique
		ON emails (recipient_id, followup_number)
		WHERE type IN ('INITIAL', 'FOLLOW_UP')`,
	`CREATE INDEX IF NOT EXISTS emails_pending_scheduled_idx
		ON emails (scheduled_date)
		WHERE status = 'PENDING'`,
}
