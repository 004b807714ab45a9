package db

import (
	"database/sql"
)

// MigrateUp creates the schema backing repository.Store: Briefing,
// Source, Item, Report/ReportItem, and the credit-gate tables (spec.md
// §3). Statements use CREATE TABLE/INDEX IF NOT EXISTS so MigrateUp is
// safe to run on every process start, matching the teacher's
// no-migration-runner approach.
func MigrateUp(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS briefings (
    id                      TEXT PRIMARY KEY,
    user_id                 TEXT NOT NULL,
    title                   TEXT NOT NULL,
    briefing_criteria       TEXT NOT NULL DEFAULT '',
    frequency               VARCHAR(10) NOT NULL,
    day_of_week             SMALLINT,
    local_time              VARCHAR(5) NOT NULL,
    timezone                TEXT NOT NULL,
    status                  VARCHAR(12) NOT NULL DEFAULT 'ACTIVE',
    last_executed_at        TIMESTAMPTZ,
    email_delivery_enabled  BOOLEAN NOT NULL DEFAULT FALSE,
    position                INT NOT NULL DEFAULT 0,
    queued_at               TIMESTAMPTZ,
    processing_started_at   TIMESTAMPTZ,
    error_message           TEXT NOT NULL DEFAULT '',
    updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE TABLE IF NOT EXISTS sources (
    id                          TEXT PRIMARY KEY,
    briefing_id                 TEXT NOT NULL REFERENCES briefings(id) ON DELETE CASCADE,
    type                        VARCHAR(10) NOT NULL,
    url                         TEXT NOT NULL,
    name                        TEXT NOT NULL,
    extraction_prompt           TEXT,
    refresh_interval_minutes    INT NOT NULL DEFAULT 60,
    status                      VARCHAR(10) NOT NULL DEFAULT 'ACTIVE',
    fetch_status                VARCHAR(10) NOT NULL DEFAULT 'IDLE',
    last_fetched_at             TIMESTAMPTZ,
    etag                        TEXT,
    last_modified               TEXT,
    error_message               TEXT NOT NULL DEFAULT '',
    queued_at                   TIMESTAMPTZ,
    fetch_started_at            TIMESTAMPTZ,
    updated_at                  TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE TABLE IF NOT EXISTS items (
    id              TEXT PRIMARY KEY,
    source_id       TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    guid            TEXT NOT NULL,
    title           TEXT NOT NULL,
    link            TEXT,
    author          TEXT,
    published_at    TIMESTAMPTZ,
    raw_content     TEXT,
    clean_content   TEXT,
    web_content     TEXT,
    summary         TEXT,
    tags            JSONB,
    score           INT,
    score_reasoning TEXT,
    status          VARCHAR(12) NOT NULL DEFAULT 'NEW',
    error_message   TEXT NOT NULL DEFAULT '',
    read_at         TIMESTAMPTZ,
    saved           BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (source_id, guid)
)`,
		`CREATE TABLE IF NOT EXISTS reports (
    id              TEXT PRIMARY KEY,
    briefing_id     TEXT NOT NULL REFERENCES briefings(id) ON DELETE CASCADE,
    generated_at    TIMESTAMPTZ NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS report_items (
    report_id   TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
    item_id     TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    score       INT NOT NULL,
    position    INT NOT NULL,
    PRIMARY KEY (report_id, item_id)
)`,
		`CREATE TABLE IF NOT EXISTS user_credits (
    user_id     TEXT PRIMARY KEY,
    balance     INT NOT NULL DEFAULT 0,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE TABLE IF NOT EXISTS credit_ledger (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL REFERENCES user_credits(user_id),
    amount      INT NOT NULL,
    used_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		// at most one report per briefing per UTC calendar day; the briefing's own timezone is not considered
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reports_briefing_date ON reports (briefing_id, ((generated_at AT TIME ZONE 'UTC')::date))`,
		`CREATE INDEX IF NOT EXISTS idx_sources_briefing_id ON sources(briefing_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sources_fetch_status ON sources(status, fetch_status)`,
		`CREATE INDEX IF NOT EXISTS idx_items_source_id ON items(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_items_status ON items(status)`,
		`CREATE INDEX IF NOT EXISTS idx_items_published_at ON items(published_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_briefings_status ON briefings(status)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// MigrateDown drops every table MigrateUp creates, in dependency order.
// Use with caution: this deletes all data.
func MigrateDown(db *sql.DB) error {
	statements := []string{
		`DROP TABLE IF EXISTS credit_ledger CASCADE`,
		`DROP TABLE IF EXISTS user_credits CASCADE`,
		`DROP TABLE IF EXISTS report_items CASCADE`,
		`DROP TABLE IF EXISTS reports CASCADE`,
		`DROP TABLE IF EXISTS items CASCADE`,
		`DROP TABLE IF EXISTS sources CASCADE`,
		`DROP TABLE IF EXISTS briefings CASCADE`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
