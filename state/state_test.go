package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	st, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Empty(t, st.Sessions)
	assert.Zero(t, st.SupervisorPID)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, Save(path, &State{
		SupervisorPID: 77,
		Workspace:     "/srv/tunnels",
		Pass:          "p-1",
		UpdatedAt:     updated,
		Sessions: []Session{
			{ID: "input_data1.txt", State: "CONNECTED", PID: 4521},
			{ID: "input_data2.txt", State: "NEW"},
		},
	}))

	st, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 77, st.SupervisorPID)
	assert.True(t, updated.Equal(st.UpdatedAt))
	require.Len(t, st.Sessions, 2)
	assert.Equal(t, 4521, st.Sessions[0].PID)
	assert.Equal(t, "NEW", st.Sessions[1].State)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("sessions: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, &State{}))

	require.NoError(t, Remove(path))
	require.NoError(t, Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPathForSitsNextToPidFile(t *testing.T) {
	assert.Equal(t, filepath.Join("run", "tk", FileName), PathFor(filepath.Join("run", "tk", "tunnelkeeper.pid")))
}
