package core

// P2P gossip transport: WebSocket-framed {type, payload} JSON messages,
// per-type handler dispatch, symmetric inbound/outbound connections, and
// broadcast-to-all-peers on locally accepted transactions/blocks.
//
// Grounded on _examples/original_source/network/p2p.py's aiohttp Node
// (start/connect_to_peers/handle_connection/broadcast/on), reimplemented
// against github.com/gorilla/websocket, used the same way by
// Klingon-tech-klingdex, tos-network-gtos, and certenIO-certen-validator's
// go.mod in the retrieved pack — the closest Go analog to aiohttp's
// websocket server/client pair.

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Message type names, per spec §4.11.
const (
	MsgTransaction   = "transaction"
	MsgBlock         = "block"
	MsgRequestBlock  = "request_block"
	MsgBlockResponse = "block_response"
)

// WireMessage is the {type, payload} envelope every frame carries.
type WireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler processes the payload of one inbound message from peer.
type Handler func(peerAddr string, payload json.RawMessage)

// peerConn wraps one live connection with a write mutex, since
// gorilla/websocket forbids concurrent writers on the same connection.
type peerConn struct {
	addr string
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (p *peerConn) send(msg WireMessage) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.conn.WriteJSON(msg)
}

// Node is the P2P endpoint: it listens for inbound connections, dials
// outbound peers, and dispatches every received frame to the handler
// registered for its type.
type Node struct {
	mu       sync.Mutex
	log      *logrus.Entry
	upgrader websocket.Upgrader
	handlers map[string]Handler
	peers    map[string]*peerConn
	server   *http.Server
	listen   string
}

// NewNode constructs a P2P node that will listen on listenAddr (host:port)
// once Start is called.
func NewNode(listenAddr string, log *logrus.Logger) *Node {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Node{
		log:      log.WithField("component", "p2p"),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		handlers: make(map[string]Handler),
		peers:    make(map[string]*peerConn),
		listen:   listenAddr,
	}
}

// On registers the handler invoked for every inbound message of type msgType.
func (n *Node) On(msgType string, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[msgType] = h
}

// Start begins listening for inbound WebSocket connections on /ws and
// dials every address in peers.
func (n *Node) Start(peers []string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", n.handleInbound)
	n.server = &http.Server{Addr: n.listen, Handler: mux}

	go func() {
		if err := n.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			n.log.WithError(err).Warn("p2p listener stopped")
		}
	}()

	for _, addr := range peers {
		if err := n.Connect(addr); err != nil {
			n.log.WithFields(logrus.Fields{"peer": addr}).WithError(err).Warn("failed to connect to peer")
		}
	}
	return nil
}

func (n *Node) handleInbound(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	addr := r.RemoteAddr
	pc := &peerConn{addr: addr, conn: conn}
	n.mu.Lock()
	n.peers[addr] = pc
	n.mu.Unlock()
	go n.readLoop(pc)
}

// Connect dials addr as an outbound peer, registering it symmetrically
// with inbound connections.
func (n *Node) Connect(addr string) error {
	url := fmt.Sprintf("ws://%s/ws", addr)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	pc := &peerConn{addr: addr, conn: conn}
	n.mu.Lock()
	n.peers[addr] = pc
	n.mu.Unlock()
	go n.readLoop(pc)
	return nil
}

func (n *Node) readLoop(pc *peerConn) {
	defer func() {
		n.mu.Lock()
		delete(n.peers, pc.addr)
		n.mu.Unlock()
		pc.conn.Close()
	}()
	for {
		var msg WireMessage
		if err := pc.conn.ReadJSON(&msg); err != nil {
			n.log.WithFields(logrus.Fields{"peer": pc.addr}).WithError(err).Debug("peer connection closed")
			return
		}
		n.mu.Lock()
		h := n.handlers[msg.Type]
		n.mu.Unlock()
		if h == nil {
			continue
		}
		h(pc.addr, msg.Payload)
	}
}

// PeerCount returns the number of live connections, used by the miner to
// decide whether to wait out the settle interval before proposing.
func (n *Node) PeerCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.peers)
}

// Broadcast sends a {type, payload} message to every live peer. Send
// failures are logged and do not abort the caller.
func (n *Node) Broadcast(msgType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		n.log.WithError(err).Warn("failed to marshal broadcast payload")
		return
	}
	msg := WireMessage{Type: msgType, Payload: raw}

	n.mu.Lock()
	targets := make([]*peerConn, 0, len(n.peers))
	for _, pc := range n.peers {
		targets = append(targets, pc)
	}
	n.mu.Unlock()

	for _, pc := range targets {
		if err := pc.send(msg); err != nil {
			n.log.WithFields(logrus.Fields{"peer": pc.addr}).WithError(err).Warn("broadcast send failed")
		}
	}
}

// SendTo sends a {type, payload} message to exactly one peer, used for
// request_block/block_response point-to-point exchanges.
func (n *Node) SendTo(peerAddr, msgType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	n.mu.Lock()
	pc, ok := n.peers[peerAddr]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("no connection to %s", peerAddr)
	}
	return pc.send(WireMessage{Type: msgType, Payload: raw})
}

// Close shuts down the listener and every outbound/inbound connection.
// In-flight sends may be dropped.
func (n *Node) Close() error {
	n.mu.Lock()
	peers := make([]*peerConn, 0, len(n.peers))
	for _, pc := range n.peers {
		peers = append(peers, pc)
	}
	n.peers = make(map[string]*peerConn)
	n.mu.Unlock()

	for _, pc := range peers {
		pc.conn.Close()
	}
	if n.server != nil {
		return n.server.Close()
	}
	return nil
}

// SettleDelay pauses for the configured pre-proposal quiet interval when
// the node has at least one live peer.
func SettleDelay(ms int, peerCount int) {
	if peerCount > 0 && ms > 0 {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}
}
