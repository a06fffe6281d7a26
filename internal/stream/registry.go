// internal/stream/registry.go
package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1 << 20

	defaultSendBuffer = 256
)

// Peer is one connected websocket
type Peer struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Conn        *websocket.Conn `json:"-"`
	Send        chan []byte     `json:"-"`
	UserAgent   string          `json:"user_agent"`
	RemoteAddr  string          `json:"remote_addr"`
	ConnectedAt time.Time       `json:"connected_at"`
}

// Registry tracks connected peers and fans frames out to them. A peer whose
// send buffer is full is dropped rather than allowed to stall the others.
type Registry struct {
	peers      map[string]*Peer
	mutex      sync.RWMutex
	sendBuffer int
	logger     *zap.Logger
}

// Stats summarises the registry
type Stats struct {
	TotalConnections int            `json:"total_connections"`
	ByKind           map[string]int `json:"by_kind"`
	Peers            []*Peer        `json:"peers"`
}

// NewRegistry creates an empty registry. sendBuffer <= 0 selects the default.
func NewRegistry(sendBuffer int, logger *zap.Logger) *Registry {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Registry{
		peers:      make(map[string]*Peer),
		sendBuffer: sendBuffer,
		logger:     logger,
	}
}

// Register adds a connection under kind
func (r *Registry) Register(conn *websocket.Conn, kind, userAgent, remoteAddr string) *Peer {
	peer := &Peer{
		ID:          uuid.New().String(),
		Kind:        kind,
		Conn:        conn,
		Send:        make(chan []byte, r.sendBuffer),
		UserAgent:   userAgent,
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
	}

	r.mutex.Lock()
	r.peers[peer.ID] = peer
	r.mutex.Unlock()
	return peer
}

// Unregister removes a peer and closes its send channel. Safe to call more
// than once.
func (r *Registry) Unregister(peer *Peer) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.peers[peer.ID]; ok {
		delete(r.peers, peer.ID)
		close(peer.Send)
	}
}

// Broadcast queues frame for every peer of kind and returns how many
// accepted it.
func (r *Registry) Broadcast(kind string, frame []byte) int {
	var slow []*Peer
	delivered := 0

	r.mutex.RLock()
	for _, peer := range r.peers {
		if peer.Kind != kind {
			continue
		}
		select {
		case peer.Send <- frame:
			delivered++
		default:
			slow = append(slow, peer)
		}
	}
	r.mutex.RUnlock()

	for _, peer := range slow {
		r.logger.Warn("Peer send buffer full, dropping connection",
			zap.String("peer_id", peer.ID),
			zap.String("kind", peer.Kind),
		)
		r.Unregister(peer)
	}
	return delivered
}

// Count returns the number of peers of kind
func (r *Registry) Count(kind string) int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	n := 0
	for _, peer := range r.peers {
		if peer.Kind == kind {
			n++
		}
	}
	return n
}

// Stats returns connection statistics
func (r *Registry) Stats() *Stats {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := &Stats{
		TotalConnections: len(r.peers),
		ByKind:           make(map[string]int),
		Peers:            make([]*Peer, 0, len(r.peers)),
	}
	for _, peer := range r.peers {
		stats.ByKind[peer.Kind]++
		stats.Peers = append(stats.Peers, peer)
	}
	return stats
}

// CloseAll unregisters every peer; their write pumps then send a close frame
func (r *Registry) CloseAll() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for id, peer := range r.peers {
		delete(r.peers, id)
		close(peer.Send)
	}
}

// Serve runs the pumps of peer until the connection ends. onMessage receives
// every text frame read from the peer.
func (r *Registry) Serve(peer *Peer, onMessage func([]byte)) {
	go r.writePump(peer)
	r.readPump(peer, onMessage)
}

func (r *Registry) readPump(peer *Peer, onMessage func([]byte)) {
	defer func() {
		r.Unregister(peer)
		peer.Conn.Close()
	}()

	peer.Conn.SetReadLimit(maxMessageSize)
	peer.Conn.SetReadDeadline(time.Now().Add(pongWait))
	peer.Conn.SetPongHandler(func(string) error {
		peer.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := peer.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				r.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("peer_id", peer.ID),
				)
			}
			return
		}
		if onMessage != nil {
			onMessage(frame)
		}
	}
}

func (r *Registry) writePump(peer *Peer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		peer.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-peer.Send:
			peer.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				peer.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := peer.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				r.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("peer_id", peer.ID),
				)
				return
			}

		case <-ticker.C:
			peer.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := peer.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
