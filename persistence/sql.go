// persistence/sql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wfunc/runeserver/models"
)

// placeholder renders the n-th (1-based) bind parameter for a driver.
type placeholder func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }

// sqlLedger is the database/sql ledger shared by the sqlite and lib/pq backends.
type sqlLedger struct {
	db *sql.DB
	ph placeholder
}

func (l *sqlLedger) initTables(ctx context.Context, idColumn string) error {
	_, err := l.db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS ledger (
            id `+idColumn+`,
            player VARCHAR(64) NOT NULL,
            runes BIGINT NOT NULL,
            lobby VARCHAR(255) NOT NULL DEFAULT '',
            created_at BIGINT NOT NULL
        )
    `)
	if err != nil {
		return fmt.Errorf("create ledger table: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_ledger_player ON ledger (player)`)
	if err != nil {
		return fmt.Errorf("create ledger index: %w", err)
	}
	return nil
}

// Append 写入一局结束时的分数，所有条目在同一事务中提交
func (l *sqlLedger) Append(ctx context.Context, entries ...models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	query := fmt.Sprintf(`INSERT INTO ledger (player, runes, lobby, created_at) VALUES (%s, %s, %s, %s)`,
		l.ph(1), l.ph(2), l.ph(3), l.ph(4))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		at := e.CreatedAt
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, e.Player, e.Runes, e.Lobby, at.UnixMilli()); err != nil {
			return fmt.Errorf("append %s: %w", e.Player, err)
		}
	}
	return tx.Commit()
}

// Load 读取账本
func (l *sqlLedger) Load(ctx context.Context, player string) ([]models.LedgerEntry, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, player, runes, lobby, created_at FROM ledger`)
	var args []any
	if player != "" {
		b.WriteString(` WHERE player = ` + l.ph(1))
		args = append(args, player)
	}
	b.WriteString(` ORDER BY id`)

	rows, err := l.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var millis int64
		if err := rows.Scan(&e.ID, &e.Player, &e.Runes, &e.Lobby, &millis); err != nil {
			return nil, err
		}
		e.CreatedAt = time.UnixMilli(millis)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Top 排行榜
func (l *sqlLedger) Top(ctx context.Context, n int) ([]models.Score, error) {
	if n <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
        SELECT player, SUM(runes) AS total, COUNT(*) AS games, MAX(runes) AS best
        FROM ledger
        GROUP BY player
        ORDER BY total DESC, player ASC
        LIMIT %s`, l.ph(1))
	rows, err := l.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Score
	for rows.Next() {
		var s models.Score
		if err := rows.Scan(&s.Player, &s.Total, &s.Games, &s.Best); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close 关闭数据库连接
func (l *sqlLedger) Close() error {
	return l.db.Close()
}
