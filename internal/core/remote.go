// Package core contains the business logic of vizedit: the visualization
// editor session, its save pipeline, and remote server bookkeeping.
package core

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/kilupskalvis/vizedit/internal/store"
)

// Environment variables consulted for remote tokens.
const (
	EnvRemoteToken       = "VIZEDIT_REMOTE_TOKEN"
	envRemoteTokenPrefix = "VIZEDIT_REMOTE_TOKEN_"
)

// LocalRemote is the reserved name that selects the workspace store.
const LocalRemote = "local"

// TokenSource tells where a remote's token was found.
type TokenSource string

const (
	TokenNone      TokenSource = ""
	TokenRemoteEnv TokenSource = "remote env"
	TokenGlobalEnv TokenSource = "global env"
	TokenStored    TokenSource = "stored"
)

// AddRemote validates and stores a new remote.
func AddRemote(st *store.Store, name, rawURL string) error {
	if err := validateRemoteName(name); err != nil {
		return err
	}
	u, err := parseRemoteURL(rawURL)
	if err != nil {
		return err
	}
	return st.AddRemote(name, u)
}

// RemoveRemote removes a remote and its stored token.
func RemoveRemote(st *store.Store, name string) error {
	return st.RemoveRemote(name)
}

// ListRemotes returns the configured remotes sorted by name.
func ListRemotes(st *store.Store) ([]*models.Remote, error) {
	remotes, err := st.ListRemotes()
	if err != nil {
		return nil, fmt.Errorf("list remotes: %w", err)
	}
	return remotes, nil
}

// GetRemote returns a remote by name, failing if it does not exist.
func GetRemote(st *store.Store, name string) (*models.Remote, error) {
	remote, err := st.GetRemote(name)
	if err != nil {
		return nil, fmt.Errorf("get remote: %w", err)
	}
	if remote == nil {
		return nil, fmt.Errorf("remote '%s' does not exist", name)
	}
	return remote, nil
}

// SetRemoteURL points an existing remote at a new server.
func SetRemoteURL(st *store.Store, name, rawURL string) error {
	u, err := parseRemoteURL(rawURL)
	if err != nil {
		return err
	}
	return st.UpdateRemoteURL(name, u)
}

// SetRemoteToken stores the token for a remote. An empty token deletes it.
func SetRemoteToken(st *store.Store, name, token string) error {
	if _, err := GetRemote(st, name); err != nil {
		return err
	}
	if token == "" {
		return st.DeleteRemoteToken(name)
	}
	return st.SetRemoteToken(name, token)
}

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// RemoteTokenEnv returns the per-remote token variable, e.g.
// VIZEDIT_REMOTE_TOKEN_PROD_EU for "prod-eu".
func RemoteTokenEnv(name string) string {
	return envRemoteTokenPrefix + nonAlphanumeric.ReplaceAllString(strings.ToUpper(name), "_")
}

// ResolveRemoteToken finds the token for a remote. The per-remote variable
// wins over VIZEDIT_REMOTE_TOKEN, which wins over the stored token.
func ResolveRemoteToken(st *store.Store, name string) (string, TokenSource, error) {
	if tok := os.Getenv(RemoteTokenEnv(name)); tok != "" {
		return tok, TokenRemoteEnv, nil
	}
	if tok := os.Getenv(EnvRemoteToken); tok != "" {
		return tok, TokenGlobalEnv, nil
	}
	tok, err := st.GetRemoteToken(name)
	if err != nil {
		return "", TokenNone, fmt.Errorf("get token for remote '%s': %w", name, err)
	}
	if tok == "" {
		return "", TokenNone, nil
	}
	return tok, TokenStored, nil
}

// GetRemoteToken returns the token ResolveRemoteToken finds, or "".
func GetRemoteToken(st *store.Store, name string) (string, error) {
	tok, _, err := ResolveRemoteToken(st, name)
	return tok, err
}

// RemoteEndpoint returns what a client needs to talk to a remote.
func RemoteEndpoint(st *store.Store, name string) (baseURL, token string, err error) {
	remote, err := GetRemote(st, name)
	if err != nil {
		return "", "", err
	}
	token, err = GetRemoteToken(st, name)
	if err != nil {
		return "", "", err
	}
	if token == "" {
		return "", "", fmt.Errorf("no token for remote '%s' (set one with 'vizedit remote set-token %s' or %s)", name, name, EnvRemoteToken)
	}
	return remote.URL, token, nil
}

// RecordRemoteStats remembers the counts a remote reported.
func RecordRemoteStats(st *store.Store, name string, queries, visualizations int) error {
	err := st.RecordRemoteStats(name, models.RemoteStats{Queries: queries, Visualizations: visualizations})
	if err != nil {
		return fmt.Errorf("record stats for remote '%s': %w", name, err)
	}
	return nil
}

func validateRemoteName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("remote name cannot be empty")
	case strings.ContainsAny(name, " \t\n:/\\"):
		return fmt.Errorf("remote name '%s' contains invalid characters", name)
	case strings.EqualFold(name, LocalRemote):
		return fmt.Errorf("remote name '%s' is reserved", name)
	}
	return nil
}

// parseRemoteURL validates a server base URL and drops trailing slashes.
// A path is allowed for servers mounted under a prefix.
func parseRemoteURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("remote URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid remote URL: %w", err)
	}

	switch {
	case u.Scheme == "":
		return "", fmt.Errorf("remote URL must include a scheme (e.g., https://)")
	case u.Scheme != "http" && u.Scheme != "https":
		return "", fmt.Errorf("remote URL scheme must be http or https, got '%s'", u.Scheme)
	case u.Host == "":
		return "", fmt.Errorf("remote URL must include a host")
	case u.RawQuery != "" || u.Fragment != "":
		return "", fmt.Errorf("remote URL must not carry a query or fragment")
	}
	return strings.TrimRight(rawURL, "/"), nil
}
