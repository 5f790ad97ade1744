// persistence/sqlite.go
package persistence

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite" // SQLite 驱动
)

// SQLite 本地文件账本
type SQLite struct {
	sqlLedger
}

// NewSQLite opens (or creates) the ledger at path. ":memory:" keeps it in process.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection also keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLite{sqlLedger{db: db, ph: questionMark}}
	if err := s.initTables(ctx, "INTEGER PRIMARY KEY AUTOINCREMENT"); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
