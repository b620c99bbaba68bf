package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List visualization types",
	Long:  `List the visualization types. Deprecated types can only be kept by visualizations that already use them.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := initContext()
		defer c.Close()
		printTypes(os.Stdout, c.Registry)
	},
}

var eventsLimit int

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent visualization events",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := initBackendContext()
		defer c.Close()

		events, err := c.Backend.ListEvents(context.Background(), eventsLimit)
		if err != nil {
			exitError("failed to list events: %v", err)
		}
		printEvents(os.Stdout, events)
	},
}

func init() {
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 20, "Number of events to show")
}
