package store

import (
	"testing"
	"time"

	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Remotes(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.AddRemote("staging", "https://staging.example.com"))
	require.NoError(t, st.AddRemote("prod", "https://prod.example.com"))

	err := st.AddRemote("prod", "https://other.example.com")
	assert.ErrorContains(t, err, "already exists")

	remotes, err := st.ListRemotes()
	require.NoError(t, err)
	require.Len(t, remotes, 2)
	assert.Equal(t, "prod", remotes[0].Name)
	assert.Equal(t, "https://prod.example.com", remotes[0].URL)
	assert.False(t, remotes[0].CreatedAt.IsZero())
	assert.Nil(t, remotes[0].LastSeen)
	assert.Equal(t, "staging", remotes[1].Name)

	missing, err := st.GetRemote("nonexistent")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_RemoveRemote(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.AddRemote("origin", "https://viz.example.com"))
	require.NoError(t, st.SetRemoteToken("origin", "vzt_secret"))
	require.NoError(t, st.RemoveRemote("origin"))

	remote, err := st.GetRemote("origin")
	require.NoError(t, err)
	assert.Nil(t, remote)

	token, err := st.GetRemoteToken("origin")
	require.NoError(t, err)
	assert.Empty(t, token, "token goes with the remote")

	assert.ErrorIs(t, st.RemoveRemote("origin"), ErrNotFound)
}

func TestStore_RecordRemoteStats(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.AddRemote("origin", "https://viz.example.com"))

	checked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.RecordRemoteStats("origin", models.RemoteStats{Queries: 4, Visualizations: 9, CheckedAt: checked}))

	remote, err := st.GetRemote("origin")
	require.NoError(t, err)
	require.NotNil(t, remote.LastSeen)
	assert.Equal(t, 4, remote.LastSeen.Queries)
	assert.Equal(t, 9, remote.LastSeen.Visualizations)
	assert.True(t, checked.Equal(remote.LastSeen.CheckedAt))

	// Moving the remote invalidates what the old server reported.
	require.NoError(t, st.UpdateRemoteURL("origin", "https://new.example.com"))
	remote, err = st.GetRemote("origin")
	require.NoError(t, err)
	assert.Equal(t, "https://new.example.com", remote.URL)
	assert.Nil(t, remote.LastSeen)

	assert.ErrorIs(t, st.RecordRemoteStats("nonexistent", models.RemoteStats{}), ErrNotFound)
	assert.ErrorIs(t, st.UpdateRemoteURL("nonexistent", "https://x.example.com"), ErrNotFound)
}

func TestStore_RecordRemoteStats_StampsTime(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.AddRemote("origin", "https://viz.example.com"))

	require.NoError(t, st.RecordRemoteStats("origin", models.RemoteStats{Queries: 1}))
	remote, err := st.GetRemote("origin")
	require.NoError(t, err)
	assert.False(t, remote.LastSeen.CheckedAt.IsZero())
}

func TestStore_RemoteToken(t *testing.T) {
	st := newTestStore(t)

	token, err := st.GetRemoteToken("origin")
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, st.SetRemoteToken("origin", "vzt_one"))
	require.NoError(t, st.SetRemoteToken("origin", "vzt_two"))
	token, err = st.GetRemoteToken("origin")
	require.NoError(t, err)
	assert.Equal(t, "vzt_two", token)

	require.NoError(t, st.DeleteRemoteToken("origin"))
	token, err = st.GetRemoteToken("origin")
	require.NoError(t, err)
	assert.Empty(t, token)
}
