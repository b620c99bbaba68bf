package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kilupskalvis/vizedit/internal/core"
	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/kilupskalvis/vizedit/internal/ui"
	"github.com/spf13/cobra"
)

var vizCmd = &cobra.Command{
	Use:     "viz",
	Aliases: []string{"visualization"},
	Short:   "Manage the visualizations of a query",
	Long: `List, show, edit and delete the visualizations of a query.

Examples:
  vizedit viz list 1
  vizedit viz edit 1 --type CHART --set globalSeriesType=line --preview --save
  vizedit viz edit 1 3 --name "Revenue by region" --save
  vizedit viz edit 1 --interactive
  vizedit viz show 1 3 -o json`,
}

var vizListCmd = &cobra.Command{
	Use:     "list <query-id>",
	Aliases: []string{"ls"},
	Short:   "List the visualizations of a query",
	Args:    cobra.ExactArgs(1),
	Run:     runVizList,
}

var vizShowCmd = &cobra.Command{
	Use:   "show <query-id> <viz-id>",
	Short: "Print a visualization as yaml or json",
	Args:  cobra.ExactArgs(2),
	Run:   runVizShow,
}

var vizDeleteCmd = &cobra.Command{
	Use:     "delete <query-id> <viz-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a visualization",
	Args:    cobra.ExactArgs(2),
	Run:     runVizDelete,
}

var vizEditCmd = &cobra.Command{
	Use:   "edit <query-id> [viz-id]",
	Short: "Create or edit a visualization",
	Long: `Open an editing session for a new visualization of the query, or for
an existing one when viz-id is given. The type of a saved visualization
cannot change.

Flags are applied in order: --type, --name, --set, --filter. The session then
saves with --save, or is dismissed. Dismissing unsaved changes asks for
confirmation unless --yes is given.`,
	Args: cobra.RangeArgs(1, 2),
	Run:  runVizEdit,
}

var (
	vizOutput  string
	vizEdit    editFlags
	vizYes     bool
	vizNoBoxes bool
)

func init() {
	vizShowCmd.Flags().StringVarP(&vizOutput, "output", "o", "yaml", "Output format (yaml|json)")

	f := vizEditCmd.Flags()
	f.StringVar(&vizEdit.Type, "type", "", "Visualization type (new visualizations only)")
	f.StringVar(&vizEdit.Name, "name", "", "Visualization name")
	f.StringArrayVar(&vizEdit.Sets, "set", nil, "Set an option, key=value (repeatable)")
	f.StringArrayVar(&vizEdit.Filters, "filter", nil, "Preview filter, column=value[,value] (repeatable)")
	f.BoolVar(&vizEdit.Preview, "preview", false, "Render the preview")
	f.BoolVar(&vizEdit.Save, "save", false, "Save the visualization")
	f.BoolVar(&vizEdit.Discard, "discard", false, "Discard the changes")
	f.BoolVarP(&vizEdit.Interactive, "interactive", "i", false, "Edit with interactive prompts")
	f.BoolVarP(&vizYes, "yes", "y", false, "Do not ask before discarding changes")
	f.BoolVar(&vizNoBoxes, "plain", false, "Print notifications without boxes")
	vizEditCmd.MarkFlagsMutuallyExclusive("save", "discard", "interactive")

	vizCmd.AddCommand(vizListCmd)
	vizCmd.AddCommand(vizShowCmd)
	vizCmd.AddCommand(vizDeleteCmd)
	vizCmd.AddCommand(vizEditCmd)
}

// findVisualization returns the visualization of q with the given id.
func findVisualization(q *models.Query, id int64) (*models.Visualization, error) {
	v := q.Visualization(id)
	if v == nil {
		return nil, fmt.Errorf("query %d has no visualization %d", q.ID, id)
	}
	return v, nil
}

func runVizList(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	id := parseID(args[0], "query")

	c := initBackendContext()
	defer c.Close()

	q := mustGetQuery(ctx, c, id)
	printVisualizations(os.Stdout, q.Visualizations)
}

func runVizShow(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	queryID := parseID(args[0], "query")
	vizID := parseID(args[1], "visualization")

	c := initBackendContext()
	defer c.Close()

	v, err := findVisualization(mustGetQuery(ctx, c, queryID), vizID)
	if err != nil {
		exitError("%v", err)
	}
	if err := writeVisualization(os.Stdout, v, vizOutput); err != nil {
		exitError("%v", err)
	}
}

func runVizDelete(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	queryID := parseID(args[0], "query")
	vizID := parseID(args[1], "visualization")

	c := initBackendContext()
	defer c.Close()

	if _, err := findVisualization(mustGetQuery(ctx, c, queryID), vizID); err != nil {
		exitError("%v", err)
	}
	if err := c.Backend.DeleteVisualization(ctx, vizID); err != nil {
		if isNotFound(err) {
			exitError("visualization %d not found", vizID)
		}
		exitError("failed to delete visualization: %v", err)
	}
	fmt.Printf("Deleted visualization %d\n", vizID)
}

func runVizEdit(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	queryID := parseID(args[0], "query")

	c := initBackendContext()
	defer c.Close()

	q := mustGetQuery(ctx, c, queryID)
	var existing *models.Visualization
	if len(args) == 2 {
		v, err := findVisualization(q, parseID(args[1], "visualization"))
		if err != nil {
			exitError("%v", err)
		}
		existing = v
	}

	data, err := c.Backend.GetResult(ctx, queryID)
	if err != nil {
		exitError("failed to get result: %v", err)
	}
	notifier := ui.NewNotifier(!vizNoBoxes)
	if data == nil {
		notifier.Warn(fmt.Sprintf("query %d has no cached result; run 'vizedit query refresh %d' for a preview", queryID, queryID))
	}

	fl := vizEdit
	fl.NameSet = cmd.Flags().Changed("name")

	var prompter ui.Prompter = ui.NewSurvey()
	var confirmer core.Confirmer = ui.Confirmer{Prompter: prompter}
	if vizYes {
		prompter = nil
		confirmer = core.AlwaysConfirm
	}

	ed, err := core.Open(ctx, core.Deps{
		Registry:  c.Registry,
		Persister: c.Backend,
		Notifier:  notifier,
		Analytics: c.Backend,
		Confirmer: confirmer,
		Logger:    c.Logger,
	}, core.OpenRequest{Query: q, Visualization: existing, Result: data})
	if err != nil {
		exitError("%v", err)
	}

	saved, err := runEditSession(ctx, ed, c.Registry, data, fl, prompter, os.Stdout)
	if err != nil {
		// The notifier already reported the rejected save.
		var perr *core.PersistenceError
		if errors.As(err, &perr) {
			os.Exit(1)
		}
		exitError("%v", err)
	}
	if saved != nil {
		notifier.Info(fmt.Sprintf("Visualization %d of query %d (%d total)", saved.ID, q.ID, len(ed.Query().Visualizations)))
	}
}
