// Package cli implements the command-line interface for vizedit.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kilupskalvis/vizedit/internal/config"
	"github.com/kilupskalvis/vizedit/internal/core"
	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/kilupskalvis/vizedit/internal/registry"
	"github.com/kilupskalvis/vizedit/internal/remote"
	"github.com/kilupskalvis/vizedit/internal/source"
	"github.com/kilupskalvis/vizedit/internal/store"
	"github.com/kilupskalvis/vizedit/internal/weaviate"
	"github.com/spf13/cobra"
)

// remoteFlag overrides the configured remote for a single invocation.
var remoteFlag string

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config   *config.Config
	Store    *store.Store
	Backend  backend
	Registry *registry.Catalog
	Logger   *slog.Logger
	// RemoteName is empty when Backend is the local store.
	RemoteName string
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
}

// initContext loads the config, opens the store and sets up logging.
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		exitError("failed to open store: %v", err)
	}

	reg, err := newRegistry(cfg)
	if err != nil {
		st.Close()
		exitError("%v", err)
	}

	return &cmdContext{Config: cfg, Store: st, Registry: reg, Logger: logger}
}

// initBackendContext also connects the backend holding queries and
// visualizations: the local store, or the selected remote server.
func initBackendContext() *cmdContext {
	c := initContext()

	name := remoteFlag
	if name == "" {
		name = c.Config.Remote
	}
	b, err := openBackend(c.Store, name)
	if err != nil {
		c.Close()
		exitError("%v", err)
	}
	c.Backend = b
	if name != core.LocalRemote {
		c.RemoteName = name
	}
	return c
}

// openBackend returns the local store for an empty name or "local", and a
// retrying HTTP client for a configured remote otherwise.
func openBackend(st *store.Store, name string) (backend, error) {
	if name == "" || name == core.LocalRemote {
		return localBackend{st: st}, nil
	}
	baseURL, token, err := core.RemoteEndpoint(st, name)
	if err != nil {
		return nil, err
	}
	return remote.NewRetryClient(remote.NewHTTPClient(baseURL, token), remote.DefaultRetryConfig()), nil
}

func newRegistry(cfg *config.Config) (*registry.Catalog, error) {
	reg := registry.Builtin()
	if cfg.DefaultType != "" {
		if err := reg.SetDefault(cfg.DefaultType); err != nil {
			return nil, fmt.Errorf("config default_type: %w", err)
		}
	}
	return reg, nil
}

// newSourceMux registers the result accessors. Weaviate is only available
// when a URL is configured.
func newSourceMux(cfg *config.Config) (*source.Mux, error) {
	mux := source.NewMux()
	mux.Handle(models.SourceSQLite, source.SQLite{})
	mux.Handle(models.SourceJSON, source.JSON{})
	if cfg.WeaviateURL != "" {
		client, err := weaviate.NewClient(cfg.WeaviateURL)
		if err != nil {
			return nil, err
		}
		mux.Handle(models.SourceWeaviate, source.Weaviate{Client: client})
	}
	return mux, nil
}

var rootCmd = &cobra.Command{
	Use:   "vizedit",
	Short: "Edit visualizations of query results",
	Long: `vizedit manages queries and the visualizations built on their results.

Queries read rows from a sqlite database, a Weaviate class or a JSON file.
Visualizations are edited in a session that previews the result, tracks
unsaved changes and saves to the local store or a vizedit-server remote.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&remoteFlag, "remote", "",
		"Remote to use instead of the configured one ('local' for the local store)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(vizCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(serverCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
