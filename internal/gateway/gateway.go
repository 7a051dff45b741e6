package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/whatsappx/wsplbridge/internal/config"
)

// Gateway accepts legacy TCP connections, runs the handshake state
// machine per session, and fans translated notification envelopes out
// to every authenticated session in order.
type Gateway struct {
	logger *slog.Logger
	cfg    config.GatewayConfig

	// dial is swappable for tests; defaults to net.Dial.
	dial func(addr string) (net.Conn, error)

	mu            sync.Mutex
	pending       map[string]*Session
	authenticated map[string]*Session
	closed        bool

	ln     net.Listener
	queue  chan Envelope
	done   chan struct{}
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a Gateway. Start must be called before Broadcast has any
// effect.
func New(log *slog.Logger, cfg config.GatewayConfig) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		logger:        log.With(slog.String("component", "gateway")),
		cfg:           cfg,
		dial:          func(addr string) (net.Conn, error) { return net.Dial("tcp", addr) },
		pending:       map[string]*Session{},
		authenticated: map[string]*Session{},
		queue:         make(chan Envelope, 256),
		done:          make(chan struct{}),
	}
}

// Start binds the listener and launches the accept and broadcast loops.
func (g *Gateway) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.cfg.Addr)
	if err != nil {
		return err
	}
	g.ln = ln
	ctx, g.cancel = context.WithCancel(ctx)
	g.logger.Info("notification gateway listening", slog.String("addr", ln.Addr().String()))

	g.wg.Add(2)
	go g.acceptLoop(ctx)
	go g.broadcastLoop(ctx)
	return nil
}

// Addr returns the bound listen address, or empty before Start.
func (g *Gateway) Addr() string {
	if g.ln == nil {
		return ""
	}
	return g.ln.Addr().String()
}

// Shutdown closes the listener and every session and waits for the
// gateway loops to exit.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.cancel != nil {
		g.cancel()
	}
	if g.ln != nil {
		_ = g.ln.Close()
	}
	g.mu.Lock()
	g.closed = true
	sessions := make([]*Session, 0, len(g.pending)+len(g.authenticated))
	for _, s := range g.pending {
		sessions = append(sessions, s)
	}
	for _, s := range g.authenticated {
		sessions = append(sessions, s)
	}
	g.pending = map[string]*Session{}
	g.authenticated = map[string]*Session{}
	g.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}

	waited := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Broadcast enqueues an envelope for delivery to every authenticated
// session. Delivery is fire-and-forget and preserves enqueue order.
func (g *Gateway) Broadcast(env Envelope) {
	select {
	case g.queue <- env:
	case <-g.done:
	}
}

// Snapshot reports the current session identities per membership set.
// It exists for introspection and tests; callers get copies.
func (g *Gateway) Snapshot() (pending, authenticated []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for remote := range g.pending {
		pending = append(pending, remote)
	}
	for remote := range g.authenticated {
		authenticated = append(authenticated, remote)
	}
	return pending, authenticated
}

// Dial establishes an outbound session to a legacy peer that listens
// instead of connecting. The session runs the same handshake protocol,
// with the gateway still in the server role.
func (g *Gateway) Dial(addr string) error {
	conn, err := g.dial(addr)
	if err != nil {
		return err
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.serve(newSession(conn, true))
	}()
	return nil
}

func (g *Gateway) acceptLoop(ctx context.Context) {
	defer g.wg.Done()
	for {
		conn, err := g.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			g.logger.Warn("accept failed", slog.Any("error", err))
			continue
		}
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.serve(newSession(conn, false))
		}()
	}
}

func (g *Gateway) broadcastLoop(ctx context.Context) {
	defer g.wg.Done()
	defer close(g.done)
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-g.queue:
			g.deliver(env)
		}
	}
}

func (g *Gateway) deliver(env Envelope) {
	g.mu.Lock()
	targets := make([]*Session, 0, len(g.authenticated))
	for _, s := range g.authenticated {
		targets = append(targets, s)
	}
	g.mu.Unlock()

	for _, s := range targets {
		if err := s.send(env); err != nil {
			g.logger.Warn("notify failed, dropping session",
				slog.String("remote", s.Remote()), slog.Any("error", err))
			g.drop(s, err)
		}
	}
}

// serve runs one session from handshake to close.
func (g *Gateway) serve(s *Session) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		s.close()
		return
	}
	g.pending[s.Remote()] = s
	g.mu.Unlock()
	g.logger.Info("session connected", slog.String("remote", s.Remote()))

	if err := s.send(Envelope{Sender: SenderGateway, Token: g.cfg.GatewayToken}); err != nil {
		g.drop(s, err)
		return
	}

	dec := json.NewDecoder(s.conn)
	for {
		var frame Envelope
		if err := dec.Decode(&frame); err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				// Graceful end: no redial.
				g.drop(s, nil)
			case isTransportError(err):
				g.drop(s, err)
			default:
				// Malformed input is a protocol violation, fatal to
				// the session and never retried.
				g.logger.Warn("invalid frame", slog.String("remote", s.Remote()), slog.Any("error", err))
				g.drop(s, nil)
			}
			return
		}
		if s.State() != StatePending {
			// Authenticated sessions send nothing the protocol defines;
			// extra frames are ignored.
			continue
		}
		if frame.Sender == SenderClient && frame.Token == g.cfg.ClientToken {
			g.promote(s)
			if err := s.send(Envelope{Sender: SenderGateway, Response: ResponseOK}); err != nil {
				g.drop(s, err)
				return
			}
			continue
		}
		_ = s.send(Envelope{Sender: SenderGateway, Response: ResponseReject})
		g.logger.Warn("handshake rejected", slog.String("remote", s.Remote()))
		g.drop(s, nil)
		return
	}
}

// promote moves a session from pending to authenticated. Exactly-once:
// serve only calls it while the session is still pending.
func (g *Gateway) promote(s *Session) {
	g.mu.Lock()
	delete(g.pending, s.Remote())
	g.authenticated[s.Remote()] = s
	g.mu.Unlock()
	s.setState(StateAuthenticated)
	g.logger.Info("session authenticated", slog.String("remote", s.Remote()))
}

// drop removes the session from whichever set holds it and closes it.
// A transport error (err != nil) on an outbound session schedules a
// redial; graceful ends and protocol violations do not.
func (g *Gateway) drop(s *Session, err error) {
	g.mu.Lock()
	delete(g.pending, s.Remote())
	delete(g.authenticated, s.Remote())
	closed := g.closed
	g.mu.Unlock()
	s.close()
	g.logger.Info("session closed", slog.String("remote", s.Remote()))

	if err != nil && s.outbound && !closed {
		g.scheduleRedial(s.Remote())
	}
}

// isTransportError tells socket failures apart from malformed input.
func isTransportError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) || errors.Is(err, io.ErrUnexpectedEOF)
}

// scheduleRedial re-establishes an outbound session after the fixed
// delay, unless a session with the same identity reappeared meanwhile.
// Identity is the remote host:port.
func (g *Gateway) scheduleRedial(remote string) {
	g.logger.Info("scheduling redial", slog.String("remote", remote),
		slog.Duration("delay", g.cfg.RedialDelay()))
	time.AfterFunc(g.cfg.RedialDelay(), func() {
		g.mu.Lock()
		_, inPending := g.pending[remote]
		_, inAuth := g.authenticated[remote]
		closed := g.closed
		g.mu.Unlock()
		if closed || inPending || inAuth {
			return
		}
		if err := g.Dial(remote); err != nil {
			g.logger.Warn("redial failed", slog.String("remote", remote), slog.Any("error", err))
			g.scheduleRedial(remote)
		}
	})
}
