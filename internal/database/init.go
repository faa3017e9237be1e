package database

import (
	"database/sql"
	"fmt"

	"github.com/phleudt/mailscheduler/internal/database/schema"
)

// InitializeDatabase creates all necessary tables if they don't exist.
func InitializeDatabase(db *sql.DB) error {
	for _, query := range schema.TableDefinitions {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// ConnectionString builds a lib/pq DSN from the individual settings.
func ConnectionString(host string, port int, user, password, dbname, sslmode string) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode,
	)
}
