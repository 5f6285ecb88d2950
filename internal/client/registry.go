package client

import (
	"fmt"
	"log"
	"sync"

	"github.com/samber/lo"
)

// Panel is what the registry tracks per instance: anything that can be shut
// down when its id is removed. Instance satisfies it; tests substitute
// fakes.
type Panel interface {
	Close() error
}

// PanelFactory opens the panel for a newly assigned instance id, including
// its snapshot channel.
type PanelFactory func(id int) (Panel, error)

// Registry tracks the ordered set of active panel instances for a
// multi-panel layout. Ids come from a process-wide monotonic counter and
// are never reused, so a removed instance's late events can never be
// mistaken for a new instance's.
type Registry struct {
	factory PanelFactory

	mu     sync.Mutex
	nextID int
	order  []int
	panels map[int]Panel
	closed bool
}

// NewRegistry creates an empty registry. Callers typically add one instance
// immediately to mirror the single panel shown at startup.
func NewRegistry(factory PanelFactory) *Registry {
	return &Registry{
		factory: factory,
		nextID:  1,
		panels:  make(map[int]Panel),
	}
}

// AddInstance assigns the next id, opens its panel, and appends it to the
// display order.
func (r *Registry) AddInstance() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrRegistryClosed
	}

	id := r.nextID
	r.nextID++

	panel, err := r.factory(id)
	if err != nil {
		// The id stays consumed: failed opens must not cause reuse.
		return 0, fmt.Errorf("failed to open instance %d: %w", id, err)
	}

	r.order = append(r.order, id)
	r.panels[id] = panel
	return id, nil
}

// IDs returns the current display order.
func (r *Registry) IDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.order...)
}

// Get looks up a live panel by id.
func (r *Registry) Get(id int) (Panel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	panel, ok := r.panels[id]
	return panel, ok
}

// Len reports how many instances are active.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// RemoveByID drops the instance with the given id, closing its panel
// synchronously. No-op for unknown ids.
func (r *Registry) RemoveByID(id int) {
	r.mu.Lock()
	panel, ok := r.panels[id]
	if ok {
		delete(r.panels, id)
		r.order = lo.Reject(r.order, func(other int, _ int) bool { return other == id })
	}
	r.mu.Unlock()

	if ok {
		closePanel(id, panel)
	}
}

// RemoveFirst drops the oldest instance. No-op when empty.
func (r *Registry) RemoveFirst() {
	r.mu.Lock()
	var id int
	var panel Panel
	ok := len(r.order) > 0
	if ok {
		id = r.order[0]
		r.order = r.order[1:]
		panel = r.panels[id]
		delete(r.panels, id)
	}
	r.mu.Unlock()

	if ok {
		closePanel(id, panel)
	}
}

// RemoveLast drops the newest instance. No-op when empty.
func (r *Registry) RemoveLast() {
	r.mu.Lock()
	var id int
	var panel Panel
	ok := len(r.order) > 0
	if ok {
		id = r.order[len(r.order)-1]
		r.order = r.order[:len(r.order)-1]
		panel = r.panels[id]
		delete(r.panels, id)
	}
	r.mu.Unlock()

	if ok {
		closePanel(id, panel)
	}
}

// RemoveAll drops every instance. The id counter keeps counting: a panel
// added afterwards gets an id greater than any issued before.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	order := r.order
	panels := r.panels
	r.order = nil
	r.panels = make(map[int]Panel)
	r.mu.Unlock()

	for _, id := range order {
		closePanel(id, panels[id])
	}
}

// Close removes all instances and rejects further adds.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.RemoveAll()
}

func closePanel(id int, panel Panel) {
	if err := panel.Close(); err != nil {
		log.Printf("Instance %d close failed: %v", id, err)
	}
}
