// services/leaderboard.go
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wfunc/runeserver/game"
	"github.com/wfunc/runeserver/logger"
	"github.com/wfunc/runeserver/models"
	"github.com/wfunc/runeserver/persistence"
)

// ErrNoLedger is returned when the leaderboard runs without a store.
var ErrNoLedger = errors.New("leaderboard disabled")

type LeaderboardService struct {
	ledger  persistence.Ledger
	now     func() time.Time
	pending sync.WaitGroup
}

// NewLeaderboardService wraps ledger. A nil ledger makes recording a no-op and reads fail
// with ErrNoLedger.
func NewLeaderboardService(ledger persistence.Ledger) *LeaderboardService {
	return &LeaderboardService{ledger: ledger, now: time.Now}
}

// RecordGame 记录一局游戏的最终排名，每个玩家一条
func (s *LeaderboardService) RecordGame(ctx context.Context, lobby string, ranking []game.Standing) error {
	if s.ledger == nil || len(ranking) == 0 {
		return nil
	}
	at := s.now()
	entries := make([]models.LedgerEntry, 0, len(ranking))
	for _, st := range ranking {
		entries = append(entries, models.LedgerEntry{
			Player:    st.Name,
			Runes:     int64(st.Runes),
			Lobby:     lobby,
			CreatedAt: at,
		})
	}
	if err := s.ledger.Append(ctx, entries...); err != nil {
		return err
	}
	logger.Log.Infof("Recorded %d scores for lobby %s", len(entries), lobby)
	return nil
}

// RecordGameAsync records in the background with a bounded timeout so callers holding
// lobby locks never wait on the database.
func (s *LeaderboardService) RecordGameAsync(lobby string, ranking []game.Standing, timeout time.Duration) {
	if s.ledger == nil {
		return
	}
	standings := append([]game.Standing(nil), ranking...)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.RecordGame(ctx, lobby, standings); err != nil {
			logger.Log.Errorf("Failed to record scores for lobby %s: %v", lobby, err)
		}
	}()
}

// Wait blocks until every write started by RecordGameAsync has finished. Call it
// before closing the ledger.
func (s *LeaderboardService) Wait() {
	s.pending.Wait()
}

// Top 获取排行榜前 n 名
func (s *LeaderboardService) Top(ctx context.Context, n int) ([]models.Score, error) {
	if s.ledger == nil {
		return nil, ErrNoLedger
	}
	return s.ledger.Top(ctx, n)
}

// History returns a player's recorded games, oldest first.
func (s *LeaderboardService) History(ctx context.Context, player string) ([]models.LedgerEntry, error) {
	if s.ledger == nil {
		return nil, ErrNoLedger
	}
	if player == "" {
		return nil, errors.New("player required")
	}
	return s.ledger.Load(ctx, player)
}
