// models/models.go
package models

import (
	"time"
)

// LedgerEntry is one appended score: the runes a player held when a game ended.
type LedgerEntry struct {
	ID        int64     `json:"id"`
	Player    string    `json:"player"`
	Runes     int64     `json:"runes"`
	Lobby     string    `json:"lobby"`
	CreatedAt time.Time `json:"created_at"`
}

// Score aggregates a player's ledger entries.
type Score struct {
	Player string `json:"player"`
	Total  int64  `json:"total"`
	Games  int    `json:"games"`
	Best   int64  `json:"best"`
}
