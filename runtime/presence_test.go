package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresence_Single_User_Online_Offline(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()

	// Given nobody is online
	req.Empty(presence.Snapshot())

	// When a user joins
	becameOnline := presence.Join("u1", "Alice")

	// Then the first connection flips them online
	req.True(becameOnline)
	req.True(presence.Online("u1"))

	// And the last leave flips them offline
	wentOffline := presence.Leave("u1")
	req.True(wentOffline)
	req.False(presence.Online("u1"))
}

func TestPresence_Multiple_Tabs_Count_Once(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()

	// When the same user joins from two connections
	req.True(presence.Join("u1", "Alice"))
	req.False(presence.Join("u1", "Alice"))

	// Then the snapshot has a single entry
	snapshot := presence.Snapshot()
	req.Len(snapshot, 1)
	req.Equal(2, snapshot[0].Connections)

	// And only the last leave reports offline
	req.False(presence.Leave("u1"))
	req.True(presence.Leave("u1"))
}

func TestPresence_Leave_While_Absent_Is_Noop(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()

	req.False(presence.Leave("ghost"))
	req.Empty(presence.Snapshot())
}

func TestPresence_Snapshot_Sorted_By_DisplayName(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()

	presence.Join("u3", "Clara")
	presence.Join("u1", "Alice")
	presence.Join("u2", "Bob")

	snapshot := presence.Snapshot()
	req.Len(snapshot, 3)
	req.Equal("Alice", snapshot[0].DisplayName)
	req.Equal("Bob", snapshot[1].DisplayName)
	req.Equal("Clara", snapshot[2].DisplayName)
}
