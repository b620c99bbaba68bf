package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/kilupskalvis/vizedit/internal/source"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var queryCmd = &cobra.Command{
	Use:     "query",
	Aliases: []string{"q"},
	Short:   "Manage queries and their cached results",
	Long: `Manage queries. A query names a result source; its latest result is
cached so visualizations can be previewed without re-running it.

Columns named '<name>::filter' or '<name>::multi-filter' become preview filters.

Examples:
  vizedit query add --name sales --sqlite shop.db --sql "SELECT region AS 'region::filter', amount FROM sales"
  vizedit query add --name docs --weaviate-class Article
  vizedit query add --name fixture --json result.json
  vizedit query refresh 1
  vizedit query refresh --all`,
	Run: runQueryList,
}

var (
	queryName          string
	queryDescription   string
	querySQLite        string
	querySQL           string
	queryWeaviateClass string
	queryJSON          string
	queryNoRun         bool
	queryRefreshAll    bool
)

var queryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a query and run it",
	Args:  cobra.NoArgs,
	Run:   runQueryAdd,
}

var queryListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List queries",
	Args:    cobra.NoArgs,
	Run:     runQueryList,
}

var queryShowCmd = &cobra.Command{
	Use:   "show <query-id>",
	Short: "Show a query and its cached result",
	Args:  cobra.ExactArgs(1),
	Run:   runQueryShow,
}

var queryRefreshCmd = &cobra.Command{
	Use:   "refresh [query-id]",
	Short: "Re-run a query and cache its result",
	Args:  cobra.MaximumNArgs(1),
	Run:   runQueryRefresh,
}

var queryDeleteCmd = &cobra.Command{
	Use:     "delete <query-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a query with its visualizations",
	Args:    cobra.ExactArgs(1),
	Run:     runQueryDelete,
}

func init() {
	f := queryAddCmd.Flags()
	f.StringVar(&queryName, "name", "", "Query name")
	f.StringVar(&queryDescription, "description", "", "Query description")
	f.StringVar(&querySQLite, "sqlite", "", "sqlite database file to run --sql against")
	f.StringVar(&querySQL, "sql", "", "SQL statement")
	f.StringVar(&queryWeaviateClass, "weaviate-class", "", "Weaviate class to read objects from")
	f.StringVar(&queryJSON, "json", "", "JSON file holding {columns, rows}")
	f.BoolVar(&queryNoRun, "no-run", false, "Do not run the query after adding it")
	_ = queryAddCmd.MarkFlagRequired("name")
	queryAddCmd.MarkFlagsMutuallyExclusive("sqlite", "weaviate-class", "json")
	queryAddCmd.MarkFlagsRequiredTogether("sqlite", "sql")

	queryRefreshCmd.Flags().BoolVar(&queryRefreshAll, "all", false, "Refresh every query")

	queryCmd.AddCommand(queryAddCmd)
	queryCmd.AddCommand(queryListCmd)
	queryCmd.AddCommand(queryShowCmd)
	queryCmd.AddCommand(queryRefreshCmd)
	queryCmd.AddCommand(queryDeleteCmd)
}

// sourceFromFlags builds a query source from exactly one of the source flags.
func sourceFromFlags(sqlite, sql, class, jsonPath string) (models.QuerySource, error) {
	switch {
	case sqlite != "":
		if sql == "" {
			return models.QuerySource{}, fmt.Errorf("--sqlite needs --sql")
		}
		return models.QuerySource{Kind: models.SourceSQLite, Database: sqlite, SQL: sql}, nil
	case class != "":
		return models.QuerySource{Kind: models.SourceWeaviate, Class: class}, nil
	case jsonPath != "":
		return models.QuerySource{Kind: models.SourceJSON, Path: jsonPath}, nil
	default:
		return models.QuerySource{}, fmt.Errorf("one of --sqlite, --weaviate-class or --json is required")
	}
}

// refreshResult runs the query's source and caches the result on the backend.
func refreshResult(ctx context.Context, b backend, fetcher source.Accessor, q *models.Query) (*models.QueryResultData, error) {
	data, err := fetcher.Fetch(ctx, q.Source)
	if err != nil {
		return nil, err
	}
	if err := b.SaveResult(ctx, q.ID, data); err != nil {
		return nil, fmt.Errorf("cache result: %w", err)
	}
	return data, nil
}

// maxRefreshWorkers bounds concurrent source fetches in refreshAll.
const maxRefreshWorkers = 4

// refreshAll refreshes queries in parallel and returns the total row count.
// The first failure cancels the remaining fetches.
func refreshAll(ctx context.Context, b backend, fetcher source.Accessor, queries []*models.Query) (int, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxRefreshWorkers)

	rows := make([]int, len(queries))
	for i, q := range queries {
		g.Go(func() error {
			data, err := refreshResult(ctx, b, fetcher, q)
			if err != nil {
				return fmt.Errorf("refresh query %d: %w", q.ID, err)
			}
			rows[i] = len(data.Rows)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range rows {
		total += n
	}
	return total, nil
}

func parseID(arg, what string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		exitError("invalid %s id %q", what, arg)
	}
	return id
}

// mustGetQuery loads a query or exits.
func mustGetQuery(ctx context.Context, c *cmdContext, id int64) *models.Query {
	q, err := c.Backend.GetQuery(ctx, id)
	if err != nil {
		exitError("failed to get query: %v", err)
	}
	if q == nil {
		exitError("query %d not found", id)
	}
	return q
}

func runQueryAdd(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	src, err := sourceFromFlags(querySQLite, querySQL, queryWeaviateClass, queryJSON)
	if err != nil {
		exitError("%v", err)
	}

	c := initBackendContext()
	defer c.Close()

	q, err := c.Backend.CreateQuery(ctx, &models.Query{
		Name:        queryName,
		Description: queryDescription,
		Source:      src,
	})
	if err != nil {
		exitError("failed to add query: %v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Added query %d '%s'\n", q.ID, q.Name)

	if queryNoRun {
		return
	}
	mux, err := newSourceMux(c.Config)
	if err != nil {
		exitError("%v", err)
	}
	data, err := refreshResult(ctx, c.Backend, mux, q)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: query was added but could not run: %v\n", err)
		return
	}
	fmt.Printf("Cached %s\n", resultSummary(data))
}

func runQueryList(cmd *cobra.Command, args []string) {
	c := initBackendContext()
	defer c.Close()

	queries, err := c.Backend.ListQueries(context.Background())
	if err != nil {
		exitError("failed to list queries: %v", err)
	}
	printQueries(os.Stdout, queries)
}

func runQueryShow(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	id := parseID(args[0], "query")

	c := initBackendContext()
	defer c.Close()

	q := mustGetQuery(ctx, c, id)
	data, err := c.Backend.GetResult(ctx, id)
	if err != nil {
		exitError("failed to get result: %v", err)
	}

	bold := color.New(color.Bold)
	bold.Printf("Query %d: %s\n", q.ID, q.Name)
	if q.Description != "" {
		fmt.Printf("  %s\n", q.Description)
	}
	fmt.Printf("Source:  %s\n", describeSource(q.Source))
	if q.Source.SQL != "" {
		fmt.Printf("SQL:     %s\n", q.Source.SQL)
	}
	fmt.Printf("Visualizations: %d\n", len(q.Visualizations))
	if data != nil {
		fmt.Printf("Retrieved: %s\n", data.RetrievedAt.Local().Format("2006-01-02 15:04:05"))
		if len(data.Filters) > 0 {
			fmt.Println("Filters:")
			printFilters(os.Stdout, data.Filters)
		}
	}
	fmt.Println()
	printResult(os.Stdout, data, maxShownRows)
}

func runQueryRefresh(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	if queryRefreshAll == (len(args) == 1) {
		exitError("give either a query id or --all")
	}

	c := initBackendContext()
	defer c.Close()

	mux, err := newSourceMux(c.Config)
	if err != nil {
		exitError("%v", err)
	}

	green := color.New(color.FgGreen)
	if queryRefreshAll {
		queries, err := c.Backend.ListQueries(ctx)
		if err != nil {
			exitError("failed to list queries: %v", err)
		}
		total, err := refreshAll(ctx, c.Backend, mux, queries)
		if err != nil {
			exitError("%v", err)
		}
		green.Printf("Refreshed %d queries: %d rows\n", len(queries), total)
		return
	}

	q := mustGetQuery(ctx, c, parseID(args[0], "query"))
	data, err := refreshResult(ctx, c.Backend, mux, q)
	if err != nil {
		exitError("%v", err)
	}
	green.Printf("Refreshed query %d: %s\n", q.ID, resultSummary(data))
}

func runQueryDelete(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	id := parseID(args[0], "query")

	c := initBackendContext()
	defer c.Close()

	if err := c.Backend.DeleteQuery(ctx, id); err != nil {
		if isNotFound(err) {
			exitError("query %d not found", id)
		}
		exitError("failed to delete query: %v", err)
	}
	fmt.Printf("Deleted query %d\n", id)
}
