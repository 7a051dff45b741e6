package gateway

import (
	"encoding/json"
	"net"
	"sync"
	"time"
)

// SessionState is the handshake state of one TCP session.
type SessionState int

const (
	StatePending SessionState = iota
	StateAuthenticated
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one legacy TCP connection. The remote address is its
// identity. State transitions happen only on the goroutine serving the
// connection; writes are serialized by writeMu because the broadcast
// loop and the handshake both write.
type Session struct {
	conn      net.Conn
	remote    string
	createdAt time.Time
	outbound  bool

	mu    sync.Mutex
	state SessionState

	writeMu sync.Mutex
}

func newSession(conn net.Conn, outbound bool) *Session {
	return &Session{
		conn:      conn,
		remote:    conn.RemoteAddr().String(),
		createdAt: time.Now(),
		outbound:  outbound,
		state:     StatePending,
	}
}

// Remote returns the session identity (remote host:port).
func (s *Session) Remote() string {
	return s.remote
}

// State returns the current handshake state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) send(env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.conn.Write(payload)
	return err
}

func (s *Session) close() {
	s.setState(StateClosed)
	_ = s.conn.Close()
}
