package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"topchat/pkg/protocol"
)

// Archive records chat traffic and connection events for operators. A nil
// archive disables recording entirely.
type Archive interface {
	SaveMessage(ctx context.Context, msg protocol.ChatMessage) error
	SaveEvent(ctx context.Context, clientID int, event, detail string) error
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The stream carries no secrets beyond host metrics; any origin
		// may subscribe.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler upgrades requests on the snapshot endpoint and runs one
// reader/writer pair per client.
type Handler struct {
	state        *State
	broadcaster  *Broadcaster
	archive      Archive
	limiter      *RateLimiter
	writeTimeout time.Duration
}

// NewHandler wires the stream endpoint to session state and the
// broadcaster. archive may be nil.
func NewHandler(state *State, broadcaster *Broadcaster, archive Archive, writeTimeout time.Duration) *Handler {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Handler{
		state:        state,
		broadcaster:  broadcaster,
		archive:      archive,
		limiter:      NewRateLimiter(100, time.Minute),
		writeTimeout: writeTimeout,
	}
}

// HandleStream serves one client connection: register, stream snapshots
// out, accept envelopes in, clean up on any exit path.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	id, name := h.state.Register()
	sub := h.broadcaster.Subscribe(id)
	log.Printf("Client connected: id=%d name=%s", id, name)
	h.recordEvent(id, "connect", name)

	done := make(chan struct{})
	go h.writeClient(conn, id, sub, done)

	h.readClient(conn, id)

	// Reader exit means the socket is gone. Tear down the writer before
	// releasing the id so no personalized snapshot outlives the session.
	h.broadcaster.Unsubscribe(id)
	<-done
	h.state.Unregister(id)
	h.limiter.Forget(id)
	_ = conn.Close()
	h.recordEvent(id, "disconnect", "")
	log.Printf("Client disconnected: id=%d", id)
}

// readClient consumes envelopes until the connection dies. Envelopes whose
// sender id does not match the session are logged and skipped, never
// applied.
func (h *Handler) readClient(conn *websocket.Conn, id int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("Client %d sent unparseable message: %v", id, err)
			continue
		}
		if env.ID != id {
			log.Printf("Client %d sent mismatched sender id %d, skipping", id, env.ID)
			continue
		}
		if err := env.Validate(); err != nil {
			log.Printf("Client %d sent invalid envelope: %v", id, err)
			continue
		}

		prev, changed, err := h.state.Rename(id, env.Name)
		if err != nil {
			return // session already torn down
		}
		if changed {
			log.Printf("Client %d renamed: %s => %s", id, prev, env.Name)
			h.recordEvent(id, "rename", env.Name)
		}

		if env.Message != nil {
			if !h.limiter.Allow(id) {
				log.Printf("Client %d exceeded message rate limit, dropping", id)
				continue
			}
			msg := protocol.ChatMessage{
				SenderID:    id,
				RecipientID: env.ToID,
				SenderName:  env.Name,
				Body:        *env.Message,
			}
			h.state.QueueMessage(msg)
			h.recordMessage(msg)
			log.Printf("Message queued: from=%d to=%d", id, env.ToID)
		}
	}
}

// writeClient personalizes each broadcast snapshot for one session and
// pushes it out. Directed chat messages are visible only to their sender
// and recipient; everyone else gets the snapshot without the message.
func (h *Handler) writeClient(conn *websocket.Conn, id int, sub <-chan protocol.Snapshot, done chan<- struct{}) {
	defer close(done)

	for snap := range sub {
		name, ok := h.state.Name(id)
		if !ok {
			return // user gone, writer is done
		}

		snap.WSID = id
		snap.WSUsername = name
		snap.Users = h.state.Users()

		if msg := snap.Message; msg != nil && msg.RecipientID != protocol.BroadcastID {
			if id != msg.SenderID && id != msg.RecipientID {
				snap.Message = nil
			}
		}

		data, err := json.Marshal(snap)
		if err != nil {
			log.Printf("Failed to encode snapshot for client %d: %v", id, err)
			continue
		}
		if err := conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (h *Handler) recordEvent(id int, event, detail string) {
	if h.archive == nil {
		return
	}
	if err := h.archive.SaveEvent(context.Background(), id, event, detail); err != nil {
		log.Printf("Failed to archive %s event for client %d: %v", event, id, err)
	}
}

func (h *Handler) recordMessage(msg protocol.ChatMessage) {
	if h.archive == nil {
		return
	}
	if err := h.archive.SaveMessage(context.Background(), msg); err != nil {
		log.Printf("Failed to archive message from client %d: %v", msg.SenderID, err)
	}
}
