package server

import (
	"time"

	"github.com/wfunc/runeserver/logger"
	"github.com/wfunc/runeserver/session"
)

// Sweep closes sessions silent for longer than the timeout, then evicts sessions whose
// grace period has run out. A session timed out in this pass is evicted in the same
// pass when the grace period is zero. Overlapping sweeps are skipped.
func (s *GameServer) Sweep(now time.Time) {
	if !s.sweepMutex.TryLock() {
		return
	}
	defer s.sweepMutex.Unlock()

	timeout := s.cfg.Session.Timeout
	grace := s.cfg.Session.GracePeriod

	for _, sess := range s.sessionManager.All() {
		switch sess.Status() {
		case session.StatusConnecting, session.StatusActive:
			if silent := now.Sub(sess.LastSeen()); silent > timeout {
				logger.Log.Infof("Session %s (%s) timed out after %s", sess.ID, sess.Player(), silent)
				if sess.Player() == "" {
					s.evict(sess, "timeout")
					continue
				}
				sess.Disconnect(now)
			}
		}
		if d, ok := sess.DisconnectedFor(now); ok && graceExpired(d, grace) {
			s.evict(sess, "grace period expired")
		}
	}
	s.monitor.SetActiveLobbies(s.lobbyManager.Count())
}

// graceExpired reports whether a session disconnected for d has outlived grace. With no
// grace period a disconnected session is expired at once.
func graceExpired(d, grace time.Duration) bool {
	return grace == 0 || d > grace
}
