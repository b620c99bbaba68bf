package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/kilupskalvis/vizedit/internal/config"
	"github.com/kilupskalvis/vizedit/internal/registry"
	"github.com/kilupskalvis/vizedit/internal/store"
	"github.com/kilupskalvis/vizedit/internal/weaviate"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new vizedit workspace",
	Long: `Initialize a new vizedit workspace in the current directory.
This creates a .vizedit directory holding the config and the local store.`,
	Run: runInit,
}

var (
	initWeaviateURL string
	initDefaultType string
	initLogLevel    string
)

func init() {
	initCmd.Flags().StringVar(&initWeaviateURL, "weaviate-url", "", "Weaviate server URL for weaviate query sources")
	initCmd.Flags().StringVar(&initDefaultType, "default-type", "", "Visualization type new visualizations start with")
	initCmd.Flags().StringVar(&initLogLevel, "log-level", "warn", "Log level (debug|info|warn|error)")
}

func runInit(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	if _, err := config.FindRoot(); err == nil {
		exitError("vizedit workspace already exists")
	}

	cfg := config.Config{
		WeaviateURL: initWeaviateURL,
		DefaultType: initDefaultType,
		LogLevel:    initLogLevel,
	}
	if cfg.DefaultType != "" {
		if err := registry.Builtin().SetDefault(cfg.DefaultType); err != nil {
			exitError("%v", err)
		}
	}

	if cfg.WeaviateURL != "" {
		client, err := weaviate.NewClient(cfg.WeaviateURL)
		if err != nil {
			exitError("%v", err)
		}
		fmt.Printf("Connecting to Weaviate at %s...\n", cfg.WeaviateURL)
		if err := client.Ping(ctx); err != nil {
			fmt.Printf("Warning: Weaviate is not reachable: %v\n", err)
		} else if version, err := client.GetServerVersion(ctx); err == nil {
			fmt.Printf("Weaviate version: %s\n", version.Version)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		exitError("%v", err)
	}

	created, err := config.Initialize(cwd, cfg)
	if err != nil {
		exitError("failed to initialize config: %v", err)
	}

	st, err := store.Open(created.DatabasePath())
	if err != nil {
		exitError("failed to create store: %v", err)
	}
	defer st.Close()

	fmt.Printf("Initialized empty vizedit workspace in %s/\n", config.Dir)
}
