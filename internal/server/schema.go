package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements creates every table the API reads and writes. Statements
// are idempotent so startup and the seed script can both run them.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
	   id TEXT PRIMARY KEY,
	   email TEXT NOT NULL UNIQUE,
	   name TEXT,
	   is_vip BOOLEAN NOT NULL DEFAULT FALSE,
	   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	 )`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
	   id TEXT PRIMARY KEY,
	   user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	   stripe_customer_id TEXT,
	   stripe_subscription_id TEXT,
	   stripe_session_id TEXT,
	   status TEXT NOT NULL DEFAULT 'inactive',
	   current_period_end TIMESTAMPTZ,
	   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	   updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	 )`,
	`CREATE TABLE IF NOT EXISTS pets (
	   id TEXT PRIMARY KEY,
	   name TEXT NOT NULL,
	   species TEXT NOT NULL,
	   breed TEXT,
	   date_of_birth TIMESTAMPTZ,
	   gender TEXT,
	   color TEXT,
	   microchip_id TEXT,
	   photo_url TEXT,
	   notes TEXT,
	   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	   updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	 )`,
	`CREATE TABLE IF NOT EXISTS vaccinations (
	   id TEXT PRIMARY KEY,
	   pet_id TEXT NOT NULL REFERENCES pets(id) ON DELETE CASCADE,
	   vaccine_name TEXT NOT NULL,
	   date_administered TIMESTAMPTZ NOT NULL,
	   next_due_date TIMESTAMPTZ,
	   administered_by TEXT,
	   batch_number TEXT,
	   notes TEXT,
	   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	 )`,
	`CREATE TABLE IF NOT EXISTS appointments (
	   id TEXT PRIMARY KEY,
	   pet_id TEXT NOT NULL REFERENCES pets(id) ON DELETE CASCADE,
	   title TEXT NOT NULL,
	   appointment_type TEXT NOT NULL,
	   date TIMESTAMPTZ NOT NULL,
	   time TEXT,
	   vet_name TEXT,
	   clinic_name TEXT,
	   notes TEXT,
	   status TEXT NOT NULL DEFAULT 'scheduled',
	   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	 )`,
	`CREATE TABLE IF NOT EXISTS weight_records (
	   id TEXT PRIMARY KEY,
	   pet_id TEXT NOT NULL REFERENCES pets(id) ON DELETE CASCADE,
	   weight DOUBLE PRECISION NOT NULL,
	   unit TEXT NOT NULL DEFAULT 'kg',
	   recorded_at TIMESTAMPTZ NOT NULL,
	   notes TEXT,
	   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	 )`,
	`CREATE TABLE IF NOT EXISTS medications (
	   id TEXT PRIMARY KEY,
	   pet_id TEXT NOT NULL REFERENCES pets(id) ON DELETE CASCADE,
	   name TEXT NOT NULL,
	   dosage TEXT NOT NULL,
	   frequency TEXT NOT NULL,
	   start_date TIMESTAMPTZ NOT NULL,
	   end_date TIMESTAMPTZ,
	   prescribed_by TEXT,
	   purpose TEXT,
	   active BOOLEAN NOT NULL DEFAULT TRUE,
	   notes TEXT,
	   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	 )`,
	`CREATE TABLE IF NOT EXISTS health_conditions (
	   id TEXT PRIMARY KEY,
	   pet_id TEXT NOT NULL REFERENCES pets(id) ON DELETE CASCADE,
	   condition_name TEXT NOT NULL,
	   diagnosed_date TIMESTAMPTZ,
	   diagnosed_by TEXT,
	   severity TEXT,
	   status TEXT NOT NULL DEFAULT 'active',
	   treatment TEXT,
	   notes TEXT,
	   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	 )`,
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("database pool is nil")
	}
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// ValidateRuntimeSchema checks for columns that older deployments tend to be
// missing, so a misapplied migration fails loudly at startup instead of at
// the first request that touches it.
func ValidateRuntimeSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("database pool is nil")
	}

	requiredColumns := []struct {
		table  string
		column string
	}{
		{table: "users", column: "is_vip"},
		{table: "subscriptions", column: "current_period_end"},
		{table: "subscriptions", column: "stripe_session_id"},
		{table: "medications", column: "active"},
		{table: "health_conditions", column: "status"},
	}

	for _, item := range requiredColumns {
		ok, err := columnExists(ctx, pool, item.table, item.column)
		if err != nil {
			return fmt.Errorf(
				"failed checking schema for %s.%s: %w",
				item.table,
				item.column,
				err,
			)
		}
		if !ok {
			return fmt.Errorf(
				"required column %s.%s is missing; rerun schema setup",
				item.table,
				item.column,
			)
		}
	}

	return nil
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, tableName, columnName string) (bool, error) {
	table := strings.TrimSpace(tableName)
	column := strings.TrimSpace(columnName)
	if table == "" || column == "" {
		return false, fmt.Errorf("table/column must not be empty")
	}
	var exists bool
	err := pool.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM information_schema.columns
		   WHERE table_schema = current_schema()
		     AND lower(table_name) = lower($1)
		     AND lower(column_name) = lower($2)
		 )`,
		table,
		column,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
