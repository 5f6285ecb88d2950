package protocol

import (
	"encoding/json"
	"fmt"
)

// BroadcastID is the recipient id addressing every connected session.
const BroadcastID = 0

// CoreLoad is one per-core utilization sample. On the wire it is a
// two-element array [core_index, percent] rather than an object, so it
// carries custom JSON codecs.
type CoreLoad struct {
	Core    int
	Percent float64
}

func (c CoreLoad) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{float64(c.Core), c.Percent})
}

func (c *CoreLoad) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("cpu_data entry: %w", err)
	}
	if len(pair) != 2 {
		return ErrMalformedPair
	}
	c.Core = int(pair[0])
	c.Percent = pair[1]
	return nil
}

// User is one (user_id, display_name) entry from the server's roster,
// wire-encoded as a two-element array [id, name].
type User struct {
	ID   int
	Name string
}

func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{u.ID, u.Name})
}

func (u *User) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("users entry: %w", err)
	}
	if len(pair) != 2 {
		return ErrMalformedPair
	}
	if err := json.Unmarshal(pair[0], &u.ID); err != nil {
		return fmt.Errorf("users entry id: %w", err)
	}
	if err := json.Unmarshal(pair[1], &u.Name); err != nil {
		return fmt.Errorf("users entry name: %w", err)
	}
	return nil
}

// MemData reports host memory in bytes.
type MemData struct {
	Total uint64 `json:"total"`
	Used  uint64 `json:"used"`
}

// ChatMessage is one chat entry carried inside a snapshot. Immutable once
// created. RecipientID 0 means broadcast.
type ChatMessage struct {
	SenderID    int    `json:"sender_id"`
	RecipientID int    `json:"recipient_id"`
	SenderName  string `json:"sender_name"`
	Body        string `json:"body"`
}

// Snapshot is one server-pushed state update. WSID is stable for the
// lifetime of a connection; WSCount may change between snapshots. Message
// and Users are optional.
type Snapshot struct {
	Hostname   string       `json:"hostname"`
	Datetime   string       `json:"datetime"`
	CPUData    []CoreLoad   `json:"cpu_data"`
	MemData    MemData      `json:"mem_data"`
	WSCount    int          `json:"ws_count"`
	WSID       int          `json:"ws_id"`
	WSUsername string       `json:"ws_username"`
	Message    *ChatMessage `json:"message"`
	Users      []User       `json:"users,omitempty"`
}

// Envelope is the client-to-server message, sent on identity change
// (Message nil) and on chat send (Message set). ToID 0 or absent means
// broadcast.
type Envelope struct {
	ID      int     `json:"id"`
	ToID    int     `json:"to_id,omitempty"`
	Name    string  `json:"name"`
	Message *string `json:"message"`
}

// IdentityEnvelope builds the outbound message announcing a name change.
func IdentityEnvelope(id int, name string) Envelope {
	return Envelope{ID: id, Name: name, Message: nil}
}

// ChatEnvelope builds the outbound message carrying one chat body.
func ChatEnvelope(id, toID int, name, body string) Envelope {
	return Envelope{ID: id, ToID: toID, Name: name, Message: &body}
}
