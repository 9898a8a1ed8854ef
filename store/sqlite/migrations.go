package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the carbon store (SQLite).
var Migrations = migrate.NewGroup("carbon")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_carbon_custodians",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS carbon_custodians (
    account      TEXT PRIMARY KEY,
    alias        TEXT NOT NULL DEFAULT '',
    block_number INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS carbon_custodians`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_carbon_pending_mints",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS carbon_pending_mints (
    registry_id  TEXT PRIMARY KEY,
    id           TEXT NOT NULL,
    edition_id   INTEGER NOT NULL,
    amount       INTEGER NOT NULL CHECK (amount >= 0),
    year         INTEGER NOT NULL,
    minter       TEXT NOT NULL,
    beneficiary  TEXT NOT NULL,
    block_number INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_carbon_pending_mints_edition ON carbon_pending_mints (edition_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS carbon_pending_mints`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_carbon_editions",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS carbon_editions (
    id           INTEGER PRIMARY KEY,
    minter       TEXT NOT NULL,
    supply       INTEGER NOT NULL CHECK (supply >= 0),
    retired      INTEGER NOT NULL DEFAULT 0 CHECK (retired >= 0),
    year         INTEGER NOT NULL,
    registry_id  TEXT NOT NULL DEFAULT '',
    block_number INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_carbon_editions_year ON carbon_editions (year);

CREATE TABLE IF NOT EXISTS carbon_year_editions (
    year       INTEGER NOT NULL,
    position   INTEGER NOT NULL,
    edition_id INTEGER NOT NULL,
    PRIMARY KEY (year, position)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS carbon_year_editions;
DROP TABLE IF EXISTS carbon_editions;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_carbon_balances",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS carbon_balances (
    account    TEXT NOT NULL,
    edition_id INTEGER NOT NULL,
    amount     INTEGER NOT NULL CHECK (amount > 0),
    PRIMARY KEY (account, edition_id)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS carbon_balances`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_carbon_reports",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS carbon_reports (
    id           INTEGER PRIMARY KEY,
    beneficiary  TEXT NOT NULL,
    edition_id   INTEGER NOT NULL,
    amount       INTEGER NOT NULL,
    registry_id  TEXT NOT NULL DEFAULT '',
    block_number INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_carbon_reports_beneficiary ON carbon_reports (beneficiary, id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS carbon_reports`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_carbon_sequences",
			Version: "20240101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS carbon_sequences (
    name  TEXT PRIMARY KEY,
    value INTEGER NOT NULL DEFAULT 0
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS carbon_sequences`)
				return err
			},
		},
	)
}
