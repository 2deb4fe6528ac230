package postgres

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open registers the pgx stdlib driver and opens a pooled database/sql
// connection to dsn. The connection is not validated until first use.
func Open(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}
