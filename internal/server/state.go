package server

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"

	"topchat/pkg/protocol"
)

// State holds the server's dynamic session data: the id counter, the roster
// of connected clients, and the queue of chat messages waiting to ride a
// snapshot. Ids are never reused, so a stale client's traffic can never be
// attributed to a newer session.
type State struct {
	mu           sync.Mutex
	nextClientID int
	users        map[int]string
	queue        []protocol.ChatMessage
}

// NewState creates empty session state. The first registered client gets
// id 1.
func NewState() *State {
	return &State{users: make(map[int]string)}
}

// Register assigns the next client id with its placeholder name.
func (s *State) Register() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextClientID++
	id := s.nextClientID
	name := fmt.Sprintf("Unknown-%d", id)
	s.users[id] = name
	return id, name
}

// Unregister removes a client from the roster.
func (s *State) Unregister(id int) {
	s.mu.Lock()
	delete(s.users, id)
	s.mu.Unlock()
}

// Name looks up a client's current display name. The second return is false
// once the client is gone, which tells its writer to stop.
func (s *State) Name(id int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.users[id]
	return name, ok
}

// Rename updates a client's display name, reporting the previous name and
// whether anything changed.
func (s *State) Rename(id int, name string) (prev string, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.users[id]
	if !ok {
		return "", false, ErrUnknownClient
	}
	s.users[id] = name
	return prev, prev != name, nil
}

// UserCount reports how many clients are connected.
func (s *State) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// Users returns the roster ordered by id, the form every snapshot carries.
func (s *State) Users() []protocol.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := lo.MapToSlice(s.users, func(id int, name string) protocol.User {
		return protocol.User{ID: id, Name: name}
	})
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// QueueMessage appends a chat message to the delivery queue.
func (s *State) QueueMessage(msg protocol.ChatMessage) {
	s.mu.Lock()
	s.queue = append(s.queue, msg)
	s.mu.Unlock()
}

// PopMessage takes the oldest queued message, nil when the queue is empty.
// The generator attaches exactly one per snapshot tick.
func (s *State) PopMessage() *protocol.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return nil
	}
	msg := s.queue[0]
	s.queue = s.queue[1:]
	return &msg
}

// QueueLen reports how many messages wait for delivery.
func (s *State) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
