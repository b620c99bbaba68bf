package core

import (
	"path/filepath"
	"testing"

	"github.com/kilupskalvis/vizedit/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "vizedit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// The persistence collaborators are satisfied by the local store.
var (
	_ Persister = (*store.Store)(nil)
	_ Analytics = (*store.Store)(nil)
)

// clearTokenEnv hides tokens from the developer's environment.
func clearTokenEnv(t *testing.T, names ...string) {
	t.Helper()
	t.Setenv(EnvRemoteToken, "")
	for _, n := range names {
		t.Setenv(RemoteTokenEnv(n), "")
	}
}

func TestAddRemote(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, AddRemote(st, "origin", "https://viz.example.com/prefix/"))
	require.NoError(t, AddRemote(st, "backup", "http://localhost:8720"))

	remote, err := GetRemote(st, "origin")
	require.NoError(t, err)
	assert.Equal(t, "https://viz.example.com/prefix", remote.URL, "trailing slash is dropped")

	err = AddRemote(st, "origin", "https://other.example.com")
	assert.ErrorContains(t, err, "already exists")

	remotes, err := ListRemotes(st)
	require.NoError(t, err)
	require.Len(t, remotes, 2)
	assert.Equal(t, "backup", remotes[0].Name)
	assert.Equal(t, "origin", remotes[1].Name)
}

func TestAddRemote_Rejects(t *testing.T) {
	tests := []struct {
		desc    string
		name    string
		url     string
		wantErr string
	}{
		{"empty name", "", "https://viz.example.com", "cannot be empty"},
		{"space in name", "has space", "https://viz.example.com", "invalid characters"},
		{"colon in name", "a:b", "https://viz.example.com", "invalid characters"},
		{"slash in name", "a/b", "https://viz.example.com", "invalid characters"},
		{"reserved name", "local", "https://viz.example.com", "reserved"},
		{"reserved name any case", "LOCAL", "https://viz.example.com", "reserved"},
		{"empty url", "origin", "", "cannot be empty"},
		{"no scheme", "origin", "viz.example.com", "must include a scheme"},
		{"ftp", "origin", "ftp://viz.example.com", "must be http or https"},
		{"no host", "origin", "https://", "must include a host"},
		{"query", "origin", "https://viz.example.com/?a=1", "query or fragment"},
		{"fragment", "origin", "https://viz.example.com/#top", "query or fragment"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			st := newTestStore(t)
			err := AddRemote(st, tt.name, tt.url)
			assert.ErrorContains(t, err, tt.wantErr)

			remotes, err := ListRemotes(st)
			require.NoError(t, err)
			assert.Empty(t, remotes)
		})
	}
}

func TestRemoveRemote(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, AddRemote(st, "origin", "https://viz.example.com"))

	require.NoError(t, RemoveRemote(st, "origin"))
	_, err := GetRemote(st, "origin")
	assert.ErrorContains(t, err, "does not exist")

	assert.ErrorIs(t, RemoveRemote(st, "origin"), store.ErrNotFound)
}

func TestSetRemoteURL(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, AddRemote(st, "origin", "https://old.example.com"))
	require.NoError(t, RecordRemoteStats(st, "origin", 2, 3))

	require.NoError(t, SetRemoteURL(st, "origin", "https://new.example.com/"))
	remote, err := GetRemote(st, "origin")
	require.NoError(t, err)
	assert.Equal(t, "https://new.example.com", remote.URL)
	assert.Nil(t, remote.LastSeen)

	assert.Error(t, SetRemoteURL(st, "origin", "not-a-url"))
	assert.ErrorIs(t, SetRemoteURL(st, "missing", "https://x.example.com"), store.ErrNotFound)
}

func TestSetRemoteToken(t *testing.T) {
	st := newTestStore(t)
	clearTokenEnv(t, "origin")

	assert.ErrorContains(t, SetRemoteToken(st, "origin", "tok"), "does not exist")

	require.NoError(t, AddRemote(st, "origin", "https://viz.example.com"))
	require.NoError(t, SetRemoteToken(st, "origin", "tok"))
	token, err := GetRemoteToken(st, "origin")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	require.NoError(t, SetRemoteToken(st, "origin", ""))
	token, err = GetRemoteToken(st, "origin")
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestRemoteTokenEnv(t *testing.T) {
	assert.Equal(t, "VIZEDIT_REMOTE_TOKEN_ORIGIN", RemoteTokenEnv("origin"))
	assert.Equal(t, "VIZEDIT_REMOTE_TOKEN_PROD_EU_1", RemoteTokenEnv("prod-eu.1"))
}

func TestResolveRemoteToken_Precedence(t *testing.T) {
	st := newTestStore(t)
	clearTokenEnv(t, "origin")
	require.NoError(t, AddRemote(st, "origin", "https://viz.example.com"))

	token, src, err := ResolveRemoteToken(st, "origin")
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Equal(t, TokenNone, src)

	require.NoError(t, SetRemoteToken(st, "origin", "stored"))
	token, src, err = ResolveRemoteToken(st, "origin")
	require.NoError(t, err)
	assert.Equal(t, "stored", token)
	assert.Equal(t, TokenStored, src)

	t.Setenv(EnvRemoteToken, "global")
	token, src, err = ResolveRemoteToken(st, "origin")
	require.NoError(t, err)
	assert.Equal(t, "global", token)
	assert.Equal(t, TokenGlobalEnv, src)

	t.Setenv(RemoteTokenEnv("origin"), "mine")
	token, src, err = ResolveRemoteToken(st, "origin")
	require.NoError(t, err)
	assert.Equal(t, "mine", token)
	assert.Equal(t, TokenRemoteEnv, src)
}

func TestRemoteEndpoint(t *testing.T) {
	st := newTestStore(t)
	clearTokenEnv(t, "origin")

	_, _, err := RemoteEndpoint(st, "origin")
	assert.ErrorContains(t, err, "does not exist")

	require.NoError(t, AddRemote(st, "origin", "http://localhost:8720"))
	_, _, err = RemoteEndpoint(st, "origin")
	assert.ErrorContains(t, err, "no token")

	require.NoError(t, SetRemoteToken(st, "origin", "tok"))
	url, token, err := RemoteEndpoint(st, "origin")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8720", url)
	assert.Equal(t, "tok", token)
}

func TestRecordRemoteStats(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, AddRemote(st, "origin", "https://viz.example.com"))

	require.NoError(t, RecordRemoteStats(st, "origin", 5, 12))
	remote, err := GetRemote(st, "origin")
	require.NoError(t, err)
	require.NotNil(t, remote.LastSeen)
	assert.Equal(t, 5, remote.LastSeen.Queries)
	assert.Equal(t, 12, remote.LastSeen.Visualizations)

	err = RecordRemoteStats(st, "missing", 1, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorContains(t, err, "record stats")
}
