package replication

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wtengine/wtengine/internal/engine"
	"github.com/wtengine/wtengine/internal/snapshot"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1 << 20
	// peerEnvelopeBuffer bounds the per-peer envelope backlog between the
	// commit loop and that peer's write pump.
	peerEnvelopeBuffer = 256
)

// upgrader allows any origin; wtreed is meant to run behind a trusted
// replication link, not as a public endpoint (mirrors the teacher's
// localUpgrader, the only one of its two upgraders applicable here since
// there is no multi-tenant SaaS mode in this engine).
var upgrader = websocket.Upgrader{
	CheckOrigin:       func(_ *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub serves subscribe-to-updates(start_scan_id) over websocket: each
// accepted connection becomes a peer that first receives every Envelope
// since the peer's requested start_scan_id, then every subsequently
// committed Envelope as it is produced (spec §4.F).
type Hub struct {
	eng *engine.Engine
	log *slog.Logger

	mu    sync.RWMutex
	peers map[string]*peer
}

// NewHub returns a Hub serving eng's Update Log and envelope stream.
func NewHub(eng *engine.Engine, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{eng: eng, log: log, peers: make(map[string]*peer)}
}

type peer struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
	log     *slog.Logger
}

func (p *peer) writeEnvelope(env snapshot.Envelope) error {
	data, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *peer) ping() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.PingMessage, nil)
}

// ServeHTTP upgrades the request to a websocket connection and begins
// replication from the client-supplied ?start_scan_id= query parameter
// (default 0, the empty snapshot).
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startScanID, _ := strconv.ParseUint(r.URL.Query().Get("start_scan_id"), 10, 64)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("replication: upgrade failed", "err", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.log.Error("replication: set read deadline", "err", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	p := &peer{id: uuid.NewString(), conn: conn, log: h.log.With("peer", nil)}
	p.log = h.log.With("peer", p.id)

	h.mu.Lock()
	h.peers[p.id] = p
	h.mu.Unlock()
	p.log.Info("replication: peer connected", "start_scan_id", startScanID)

	subID, envs := h.eng.SubscribeEnvelopes(peerEnvelopeBuffer)

	done := make(chan struct{})
	go h.readPump(p, done)
	go h.writePump(p, envs, subID, startScanID, done)
}

// readPump only exists to detect disconnects (spec transport carries no
// client->server traffic once subscribed), mirroring clientReadPump.
func (h *Hub) readPump(p *peer, done chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn("replication: recovered panic in read pump", "panic", r)
		}
		close(done)
	}()
	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump ships the catch-up backlog, then every new Envelope as it is
// published, then keepalive pings, until done fires (mirrors
// clientWritePump's ticker-driven ping loop).
func (h *Hub) writePump(p *peer, envs <-chan snapshot.Envelope, subID int, startScanID uint64, done chan struct{}) {
	defer func() {
		h.eng.UnsubscribeEnvelopes(subID)
		h.mu.Lock()
		delete(h.peers, p.id)
		h.mu.Unlock()
		_ = p.conn.Close()
		p.log.Info("replication: peer disconnected")
	}()

	lastSent := startScanID
	for _, env := range h.eng.Log().Since(startScanID) {
		if err := p.writeEnvelope(env); err != nil {
			p.log.Error("replication: catch-up write failed", "err", err)
			return
		}
		lastSent = env.ScanID
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case env, ok := <-envs:
			if !ok {
				return
			}
			if env.ScanID <= lastSent {
				continue // already covered by the catch-up replay
			}
			lastSent = env.ScanID
			if err := p.writeEnvelope(env); err != nil {
				p.log.Error("replication: write failed", "err", err)
				return
			}
		case <-ticker.C:
			if err := p.ping(); err != nil {
				p.log.Error("replication: ping failed", "err", err)
				return
			}
		}
	}
}
