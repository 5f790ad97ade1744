// session/session.go
package session

import (
	"errors"
	"strconv"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/time/rate"

	"github.com/wfunc/runeserver/errs"
	"github.com/wfunc/runeserver/network"
)

// Status is a session's place in its lifecycle.
type Status int

const (
	StatusConnecting Status = iota
	StatusActive
	StatusDisconnected
	StatusRemoved
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "CONNECTING"
	case StatusActive:
		return "ACTIVE"
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusRemoved:
		return "REMOVED"
	}
	return "UNKNOWN"
}

// ErrNotConnected is returned by Send while the session has no live connection.
var ErrNotConnected = errors.New("session not connected")

// MaxNameLength bounds player names.
const MaxNameLength = 20

// Session is one client, possibly spanning several connections through RCON.
type Session struct {
	ID             string
	Token          string
	CreatedAt      time.Time
	conn           network.Connection
	player         string
	lobby          string
	status         Status
	lastSeen       time.Time
	disconnectedAt time.Time
	limiter        *rate.Limiter
	mutex          sync.RWMutex
}

// NewSession wraps conn. A nil limiter means unlimited.
func NewSession(conn network.Connection, limiter *rate.Limiter) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		Token:     uuid.NewString(),
		CreatedAt: now,
		conn:      conn,
		status:    StatusConnecting,
		lastSeen:  now,
		limiter:   limiter,
	}
}

func (s *Session) GetID() string {
	return s.ID
}

// Send writes cmd to the current connection.
func (s *Session) Send(cmd network.Command) error {
	s.mutex.RLock()
	conn := s.conn
	s.mutex.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.Send(cmd)
}

// Conn returns the live connection, or nil while disconnected.
func (s *Session) Conn() network.Connection {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.conn
}

// Touch records traffic from the client.
func (s *Session) Touch(now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastSeen = now
}

func (s *Session) LastSeen() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastSeen
}

func (s *Session) Status() Status {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.status
}

func (s *Session) Player() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.player
}

func (s *Session) SetPlayer(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.player = name
	if s.status == StatusConnecting && name != "" {
		s.status = StatusActive
	}
}

func (s *Session) Lobby() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lobby
}

func (s *Session) SetLobby(id string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lobby = id
}

// Allow reports whether one more command fits the session's rate.
func (s *Session) Allow() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

// Disconnect closes the connection and starts the grace period. It reports false when
// the session was already disconnected or removed.
func (s *Session) Disconnect(now time.Time) bool {
	s.mutex.Lock()
	if s.status == StatusDisconnected || s.status == StatusRemoved {
		s.mutex.Unlock()
		return false
	}
	conn := s.conn
	s.conn = nil
	s.status = StatusDisconnected
	s.disconnectedAt = now
	s.mutex.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	return true
}

// Drop is Disconnect limited to conn: it does nothing once the session has moved to
// another connection.
func (s *Session) Drop(conn network.Connection, now time.Time) bool {
	s.mutex.Lock()
	if s.conn != conn || s.status == StatusDisconnected || s.status == StatusRemoved {
		s.mutex.Unlock()
		return false
	}
	s.conn = nil
	s.status = StatusDisconnected
	s.disconnectedAt = now
	s.mutex.Unlock()

	_ = conn.Close()
	return true
}

// DisconnectedFor returns how long the session has been in its grace period.
func (s *Session) DisconnectedFor(now time.Time) (time.Duration, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.status != StatusDisconnected {
		return 0, false
	}
	return now.Sub(s.disconnectedAt), true
}

// Resume attaches a new connection to a disconnected session.
func (s *Session) Resume(conn network.Connection, now time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.status != StatusDisconnected {
		return errs.WithDetail(errs.ErrUnknownSession, "session is not awaiting a reconnect")
	}
	s.conn = conn
	s.status = StatusActive
	if s.player == "" {
		s.status = StatusConnecting
	}
	s.lastSeen = now
	s.disconnectedAt = time.Time{}
	return nil
}

// Close ends the session for good.
func (s *Session) Close() error {
	s.mutex.Lock()
	conn := s.conn
	s.conn = nil
	s.status = StatusRemoved
	s.mutex.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// fold maps a name to its case-insensitive key. A Caser is stateful, so each call
// builds its own.
func fold(name string) string {
	return cases.Fold().String(name)
}

// Manager tracks sessions by id and resume token and owns the player name registry.
type Manager struct {
	sessions map[string]*Session
	tokens   map[string]*Session
	names    map[string]*Session // folded name -> owner
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		tokens:   make(map[string]*Session),
		names:    make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
	m.tokens[session.Token] = session
}

// Remove forgets the session and frees its player name. It reports false when the
// session was not registered.
func (m *Manager) Remove(sessionID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	delete(m.sessions, sessionID)
	delete(m.tokens, s.Token)
	if name := s.Player(); name != "" && m.names[fold(name)] == s {
		delete(m.names, fold(name))
	}
	return true
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) GetByToken(token string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.tokens[token]
	return session, exists
}

// GetByPlayer finds the session that owns a player name, ignoring case.
func (m *Manager) GetByPlayer(name string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.names[fold(name)]
	return session, exists
}

// All returns a snapshot of every session.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// Names returns every registered player name.
func (m *Manager) Names() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	out := make([]string, 0, len(m.names))
	for _, s := range m.names {
		out = append(out, s.Player())
	}
	return out
}

// ValidName reports whether name may be registered: 1 to MaxNameLength letters,
// digits, '_' or '-'.
func ValidName(name string) bool {
	if name == "" || len([]rune(name)) > MaxNameLength {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return false
		}
	}
	return true
}

// ClaimName registers requested for the session, releasing any name it held. A name
// taken by another session, ignoring case, gets the smallest numeric suffix that is
// free: bob, bob1, bob2, ...
func (m *Manager) ClaimName(session *Session, requested string) (string, error) {
	if !ValidName(requested) {
		return "", errs.WithDetail(errs.ErrInvalidName, requested)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	assigned := requested
	for i := 1; ; i++ {
		owner, taken := m.names[fold(assigned)]
		if !taken || owner == session {
			break
		}
		assigned = requested + strconv.Itoa(i)
	}

	if old := session.Player(); old != "" {
		if m.names[fold(old)] == session {
			delete(m.names, fold(old))
		}
	}
	m.names[fold(assigned)] = session
	session.SetPlayer(assigned)
	return assigned, nil
}
