package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSnapshot() Snapshot {
	return Snapshot{
		Hostname:   "devbox",
		Datetime:   "Mon  1 Sep 10:04:05",
		CPUData:    []CoreLoad{{Core: 0, Percent: 10}, {Core: 1, Percent: 90}},
		MemData:    MemData{Total: 100, Used: 60},
		WSCount:    1,
		WSID:       1,
		WSUsername: "Unknown-1",
	}
}

func TestSnapshotValidate(t *testing.T) {
	snap := validSnapshot()
	require.NoError(t, snap.Validate())

	snap = validSnapshot()
	snap.WSCount = 0
	assert.ErrorIs(t, snap.Validate(), ErrInvalidWSCount)

	snap = validSnapshot()
	snap.WSID = 0
	assert.ErrorIs(t, snap.Validate(), ErrInvalidWSID)

	snap = validSnapshot()
	snap.CPUData[1].Percent = 101
	assert.ErrorIs(t, snap.Validate(), ErrInvalidPercent)

	snap = validSnapshot()
	snap.CPUData[1].Core = 0
	assert.ErrorIs(t, snap.Validate(), ErrInvalidCoreOrder)

	snap = validSnapshot()
	snap.MemData.Used = snap.MemData.Total + 1
	assert.ErrorIs(t, snap.Validate(), ErrInvalidMemory)
}

func TestEnvelopeValidate(t *testing.T) {
	env := IdentityEnvelope(7, "Alice")
	require.NoError(t, env.Validate())

	env = IdentityEnvelope(7, "")
	assert.ErrorIs(t, env.Validate(), ErrEmptyName)

	env = IdentityEnvelope(7, strings.Repeat("x", 51))
	assert.ErrorIs(t, env.Validate(), ErrNameTooLong)

	env = IdentityEnvelope(0, "Alice")
	assert.ErrorIs(t, env.Validate(), ErrInvalidWSID)

	env = ChatEnvelope(7, BroadcastID, "Alice", "")
	assert.ErrorIs(t, env.Validate(), ErrEmptyBody)

	env = ChatEnvelope(7, BroadcastID, "Alice", strings.Repeat("x", MaxBodyBytes+1))
	assert.ErrorIs(t, env.Validate(), ErrBodyTooLarge)
}
