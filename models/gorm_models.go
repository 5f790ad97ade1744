package models

import (
	"time"
)

// GormLedgerEntry is the gorm mapping of LedgerEntry.
type GormLedgerEntry struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Player    string    `gorm:"index;size:64;not null"`
	Runes     int64     `gorm:"not null"`
	Lobby     string    `gorm:"size:255;not null;default:''"`
	CreatedAt time.Time `gorm:"index"`
}

func (GormLedgerEntry) TableName() string {
	return "ledger"
}

func (e GormLedgerEntry) Entry() LedgerEntry {
	return LedgerEntry{ID: e.ID, Player: e.Player, Runes: e.Runes, Lobby: e.Lobby, CreatedAt: e.CreatedAt}
}

// GormScore receives the aggregate query.
type GormScore struct {
	Player string
	Total  int64
	Games  int
	Best   int64
}
