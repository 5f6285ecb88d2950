package client

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePanel struct {
	id     int
	closed bool
}

func (p *fakePanel) Close() error {
	p.closed = true
	return nil
}

type panelTracker struct {
	mu     sync.Mutex
	opened map[int]*fakePanel
	fail   error
}

func newPanelTracker() *panelTracker {
	return &panelTracker{opened: make(map[int]*fakePanel)}
}

func (t *panelTracker) factory(id int) (Panel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail != nil {
		return nil, t.fail
	}
	p := &fakePanel{id: id}
	t.opened[id] = p
	return p, nil
}

func TestAddInstanceAssignsIncreasingIDs(t *testing.T) {
	r := NewRegistry(newPanelTracker().factory)

	first, err := r.AddInstance()
	require.NoError(t, err)
	second, err := r.AddInstance()
	require.NoError(t, err)

	assert.Less(t, first, second)
	assert.Equal(t, []int{first, second}, r.IDs())
}

func TestRemoveByIDClosesPanel(t *testing.T) {
	tracker := newPanelTracker()
	r := NewRegistry(tracker.factory)

	id, err := r.AddInstance()
	require.NoError(t, err)

	r.RemoveByID(id)
	assert.Empty(t, r.IDs())
	assert.True(t, tracker.opened[id].closed)

	_, ok := r.Get(id)
	assert.False(t, ok)
}

func TestRemoveByIDUnknownIsNoOp(t *testing.T) {
	r := NewRegistry(newPanelTracker().factory)
	id, err := r.AddInstance()
	require.NoError(t, err)

	r.RemoveByID(id + 100)
	assert.Equal(t, []int{id}, r.IDs())
}

func TestRemoveFirstAndLastKeepOrder(t *testing.T) {
	r := NewRegistry(newPanelTracker().factory)
	var ids []int
	for range 4 {
		id, err := r.AddInstance()
		require.NoError(t, err)
		ids = append(ids, id)
	}

	r.RemoveFirst()
	assert.Equal(t, ids[1:], r.IDs())

	r.RemoveLast()
	assert.Equal(t, ids[1:3], r.IDs())

	// No-ops once empty.
	r.RemoveAll()
	r.RemoveFirst()
	r.RemoveLast()
	assert.Empty(t, r.IDs())
}

func TestIDsNeverReusedAfterRemoveAll(t *testing.T) {
	r := NewRegistry(newPanelTracker().factory)

	var highest int
	for range 3 {
		id, err := r.AddInstance()
		require.NoError(t, err)
		highest = id
	}

	r.RemoveAll()
	require.Empty(t, r.IDs())

	fresh, err := r.AddInstance()
	require.NoError(t, err)
	assert.Greater(t, fresh, highest)
	assert.Equal(t, []int{fresh}, r.IDs())
}

func TestFailedOpenStillConsumesID(t *testing.T) {
	tracker := newPanelTracker()
	r := NewRegistry(tracker.factory)

	first, err := r.AddInstance()
	require.NoError(t, err)

	tracker.fail = errors.New("dial refused")
	_, err = r.AddInstance()
	require.Error(t, err)

	tracker.fail = nil
	third, err := r.AddInstance()
	require.NoError(t, err)

	assert.Equal(t, first+2, third, "failed open burns its id")
}

func TestCloseRejectsFurtherAdds(t *testing.T) {
	tracker := newPanelTracker()
	r := NewRegistry(tracker.factory)
	id, err := r.AddInstance()
	require.NoError(t, err)

	r.Close()
	assert.True(t, tracker.opened[id].closed)

	_, err = r.AddInstance()
	assert.ErrorIs(t, err, ErrRegistryClosed)
}
