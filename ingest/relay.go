// Package ingest accepts peer WebSocket connections, decodes and validates
// incoming events, and forwards accepted events downstream.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"nostrelay/core"
	"nostrelay/metrics"
	"nostrelay/util/goroutine"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// shutdownTimeout bounds graceful HTTP server shutdown.
	shutdownTimeout = 5 * time.Second
)

// RelayListener accepts WebSocket connections from untrusted peers. Each text
// message is decoded as an envelope, validated, and either forwarded on the
// event channel or rejected.
type RelayListener struct {
	host           string
	port           int
	maxMessageSize int64
	limiter        *rate.Limiter
	validator      *core.Validator
	eventCh        chan<- *core.Event
	logger         *zap.SugaredLogger
	server         *http.Server
	upgrader       websocket.Upgrader
	stopCh         chan struct{}
	wg             sync.WaitGroup
	conns          map[*websocket.Conn]struct{}
	connsMu        sync.Mutex
}

// notice is the answer sent back for protocol-level problems. Invalid events
// are dropped without an answer so peers get no oracle on which check failed.
type notice struct {
	Cmd     string `json:"cmd"`
	Message string `json:"message"`
}

// NewRelayListener creates a relay listener. rateLimit is the sustained
// messages-per-second budget across all peers, with an equal burst.
func NewRelayListener(host string, port int, maxMessageSize int64, rateLimit int, validator *core.Validator, eventCh chan<- *core.Event, logger *zap.SugaredLogger) *RelayListener {
	return &RelayListener{
		host:           host,
		port:           port,
		maxMessageSize: maxMessageSize,
		limiter:        rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
		validator:      validator,
		eventCh:        eventCh,
		logger:         logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Relay peers are arbitrary clients, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		stopCh: make(chan struct{}),
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// Start starts the WebSocket server.
func (l *RelayListener) Start() error {
	r := mux.NewRouter()
	r.HandleFunc("/", l.handleUpgrade)

	addr := fmt.Sprintf("%s:%d", l.host, l.port)
	l.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}

	l.logger.Infof("Relay listener started on %s", addr)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer goroutine.Recover("relay-ws-server", l.logger)
		if err := l.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.logger.Errorf("Relay server error: %v", err)
		}
	}()
	return nil
}

func (l *RelayListener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Debugf("WebSocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	connID := uuid.New().String()
	metrics.PeerConnections.Inc()
	l.logger.Debugw("Peer connected", "conn", connID, "remote", r.RemoteAddr)

	// WebSocket connections are hijacked, so server.Shutdown neither tracks
	// nor closes them; the listener does both itself.
	l.wg.Add(1)
	l.trackConn(conn)

	defer func() {
		l.untrackConn(conn)
		metrics.PeerConnections.Dec()
		conn.Close()
		l.logger.Debugw("Peer disconnected", "conn", connID)
		l.wg.Done()
	}()
	defer goroutine.Recover("relay-read-loop", l.logger)

	l.readLoop(connID, conn)
}

func (l *RelayListener) trackConn(conn *websocket.Conn) {
	l.connsMu.Lock()
	l.conns[conn] = struct{}{}
	l.connsMu.Unlock()
}

func (l *RelayListener) untrackConn(conn *websocket.Conn) {
	l.connsMu.Lock()
	delete(l.conns, conn)
	l.connsMu.Unlock()
}

// closeConns closes every open peer connection, unblocking their read loops.
func (l *RelayListener) closeConns() {
	l.connsMu.Lock()
	defer l.connsMu.Unlock()
	for conn := range l.conns {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = conn.Close()
	}
}

func (l *RelayListener) readLoop(connID string, conn *websocket.Conn) {
	conn.SetReadLimit(l.maxMessageSize)
	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.logger.Debugw("Peer read error", "conn", connID, "error", err)
			}
			return
		}
		if !l.limiter.Allow() {
			metrics.EventsRejected.WithLabelValues("rate_limited").Inc()
			l.writeNotice(conn, "rate limit exceeded")
			continue
		}
		l.process(connID, conn, raw)
	}
}

// process runs one message through decode and validation. Decode and
// unknown-command failures are answered with a NOTICE; invalid events are
// dropped silently.
func (l *RelayListener) process(connID string, conn *websocket.Conn, raw []byte) {
	envelope, err := core.DecodeEnvelope(raw)
	if err != nil {
		metrics.EventsRejected.WithLabelValues(core.RejectReason(err)).Inc()
		switch {
		case errors.Is(err, core.ErrUnknownCommand):
			l.logger.Debugw("Unknown command from peer", "conn", connID, "error", err)
			l.writeNotice(conn, "unknown command")
		default:
			l.logger.Debugw("Undecodable message from peer", "conn", connID, "error", err)
			l.writeNotice(conn, "could not decode message")
		}
		return
	}

	event := &envelope.Event
	start := time.Now()
	err = l.validator.Validate(event)
	metrics.ValidationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EventsRejected.WithLabelValues(core.RejectReason(err)).Inc()
		l.logger.Debugw("Event rejected",
			"conn", connID,
			"event", event.IDPrefix(),
			"reason", core.RejectReason(err))
		return
	}

	metrics.EventsAccepted.Inc()
	select {
	case l.eventCh <- event:
	default:
		l.logger.Warnw("Event channel full, dropping validated event",
			"conn", connID,
			"event", event.IDPrefix())
	}
}

func (l *RelayListener) writeNotice(conn *websocket.Conn, message string) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(notice{Cmd: "NOTICE", Message: message}); err != nil {
		l.logger.Debugf("Failed to write notice: %v", err)
	}
}

// Stop refuses new connections, closes open peer connections and waits for
// every serving goroutine to exit.
func (l *RelayListener) Stop() {
	close(l.stopCh)
	if l.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := l.server.Shutdown(ctx); err != nil {
			l.logger.Errorw("Failed to shutdown relay server gracefully", "error", err)
		}
	}
	l.closeConns()
	l.wg.Wait()
}
