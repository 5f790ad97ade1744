// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/wfunc/runeserver/config"
	"github.com/wfunc/runeserver/models"
)

// Ledger is the append-only leaderboard store.
type Ledger interface {
	Append(ctx context.Context, entries ...models.LedgerEntry) error
	// Load returns every entry for player in insertion order; an empty player
	// returns all entries.
	Load(ctx context.Context, player string) ([]models.LedgerEntry, error)
	// Top returns the n best players by total runes, ties by name.
	Top(ctx context.Context, n int) ([]models.Score, error)
	Close() error
}

// 错误定义
var (
	ErrUnknownDriver = fmt.Errorf("unknown leaderboard driver")
)

// Open builds the ledger selected by cfg. The "none" driver returns a nil ledger.
func Open(cfg config.LeaderboardConfig) (Ledger, error) {
	pg := cfg.Postgres
	var (
		ledger Ledger
		err    error
	)
	switch cfg.Driver {
	case "sqlite":
		var s *SQLite
		s, err = NewSQLite(cfg.SQLitePath)
		ledger = s
	case "postgres":
		var p *PostgreSQL
		p, err = NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		ledger = p
	case "gorm":
		var g *GormPostgreSQL
		g, err = NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		ledger = g
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", cfg.Driver, err)
	}
	return ledger, nil
}

var (
	_ Ledger = (*SQLite)(nil)
	_ Ledger = (*PostgreSQL)(nil)
	_ Ledger = (*GormPostgreSQL)(nil)
)
