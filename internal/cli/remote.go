package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/kilupskalvis/vizedit/internal/core"
	"github.com/kilupskalvis/vizedit/internal/remote"
	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Manage vizedit-server remotes",
	Long: `Manage the vizedit-server remotes that can hold your queries and
visualizations instead of the local store.

Without a subcommand, lists all configured remotes. The remote in use is
marked with '*'. With -v, shows URLs, where each token comes from and the
counts seen by the last 'remote info'.

Examples:
  vizedit remote                           List all remotes
  vizedit remote add origin https://...    Add a remote named 'origin'
  vizedit remote use origin                Save to 'origin' from now on
  vizedit remote use local                 Go back to the local store
  vizedit remote set-token origin          Set authentication token for a remote`,
	Run: runRemoteList,
}

var remoteVerbose bool

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add a new remote",
	Long:  `Add a vizedit-server with the given name and base URL.`,
	Args:  cobra.ExactArgs(2),
	Run:   runRemoteAdd,
}

var remoteRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a remote",
	Long:    `Remove a remote and its stored token.`,
	Args:    cobra.ExactArgs(1),
	Run:     runRemoteRemove,
}

var remoteSetURLCmd = &cobra.Command{
	Use:   "set-url <name> <url>",
	Short: "Change a remote's URL",
	Args:  cobra.ExactArgs(2),
	Run:   runRemoteSetURL,
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Select the remote commands use by default",
	Long:  `Select the remote commands use by default. 'local' selects the local store.`,
	Args:  cobra.ExactArgs(1),
	Run:   runRemoteUse,
}

var remoteInfoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Display remote server stats",
	Long: `Show the number of queries and visualizations held by a remote.

Examples:
  vizedit remote info origin`,
	Args: cobra.ExactArgs(1),
	Run:  runRemoteInfo,
}

var remoteSetTokenCmd = &cobra.Command{
	Use:   "set-token <name>",
	Short: "Set authentication token for a remote",
	Long: `Set or update the authentication token for a remote.
The token is read from stdin for security (not passed as an argument).

Examples:
  vizedit remote set-token origin                  # prompts for token
  echo "my-token" | vizedit remote set-token origin  # pipe token from stdin`,
	Args: cobra.ExactArgs(1),
	Run:  runRemoteSetToken,
}

func init() {
	remoteCmd.Flags().BoolVarP(&remoteVerbose, "verbose", "v", false, "Show URLs, token sources and last seen counts")

	remoteCmd.AddCommand(remoteAddCmd)
	remoteCmd.AddCommand(remoteRemoveCmd)
	remoteCmd.AddCommand(remoteSetURLCmd)
	remoteCmd.AddCommand(remoteSetTokenCmd)
	remoteCmd.AddCommand(remoteUseCmd)
	remoteCmd.AddCommand(remoteInfoCmd)
}

func runRemoteList(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	remotes, err := core.ListRemotes(c.Store)
	if err != nil {
		exitError("%v", err)
	}

	if !remoteVerbose {
		printRemoteNames(os.Stdout, remotes, c.Config.Remote)
		return
	}

	sources := make(map[string]core.TokenSource, len(remotes))
	for _, r := range remotes {
		_, src, err := core.ResolveRemoteToken(c.Store, r.Name)
		if err != nil {
			exitError("%v", err)
		}
		sources[r.Name] = src
	}
	printRemotes(os.Stdout, remotes, c.Config.Remote, sources)
}

func runRemoteAdd(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	name := args[0]
	url := args[1]

	if err := core.AddRemote(c.Store, name, url); err != nil {
		exitError("%v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Added remote '%s' (%s)\n", name, url)
}

func runRemoteRemove(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	name := args[0]

	if err := core.RemoveRemote(c.Store, name); err != nil {
		exitError("%v", err)
	}

	if c.Config.Remote == name {
		c.Config.Remote = ""
		if err := c.Config.Save(); err != nil {
			exitError("failed to save config: %v", err)
		}
		fmt.Printf("Switched back to the local store\n")
	}

	fmt.Printf("Removed remote '%s'\n", name)
}

func runRemoteSetURL(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	name := args[0]
	url := args[1]

	if err := core.SetRemoteURL(c.Store, name, url); err != nil {
		exitError("%v", err)
	}

	fmt.Printf("Updated remote '%s' URL to %s\n", name, url)
}

func runRemoteUse(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	name := args[0]
	if name == core.LocalRemote {
		name = ""
	} else if _, err := core.GetRemote(c.Store, name); err != nil {
		exitError("%v", err)
	}

	c.Config.Remote = name
	if err := c.Config.Save(); err != nil {
		exitError("failed to save config: %v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Using %s\n", args[0])
}

func runRemoteSetToken(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	name := args[0]

	// Verify the remote exists before prompting
	if _, err := core.GetRemote(c.Store, name); err != nil {
		exitError("%v", err)
	}

	fmt.Fprintf(os.Stderr, "Enter token for remote '%s': ", name)

	token, err := readToken(os.Stdin)
	if err != nil {
		exitError("failed to read token: %v", err)
	}
	if token == "" {
		exitError("token cannot be empty")
	}

	if err := core.SetRemoteToken(c.Store, name, token); err != nil {
		exitError("%v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Token stored for remote '%s'\n", name)
}

// readToken reads one line. A piped token without a trailing newline is accepted.
func readToken(r io.Reader) (string, error) {
	token, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func runRemoteInfo(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	name := args[0]

	r, err := core.GetRemote(c.Store, name)
	if err != nil {
		exitError("%v", err)
	}
	baseURL, token, err := core.RemoteEndpoint(c.Store, name)
	if err != nil {
		exitError("%v", err)
	}
	_, src, err := core.ResolveRemoteToken(c.Store, name)
	if err != nil {
		exitError("%v", err)
	}

	client := remote.NewRetryClient(remote.NewHTTPClient(baseURL, token), remote.DefaultRetryConfig())
	info, err := client.GetInfo(context.Background())
	if err != nil {
		exitError("failed to get remote info: %v", err)
	}
	if err := core.RecordRemoteStats(c.Store, name, info.QueryCount, info.VisualizationCount); err != nil {
		c.Logger.Warn("could not record remote stats", "remote", name, "error", err)
	}

	fmt.Printf("Remote: %s (%s)\n", name, r.URL)
	fmt.Printf("  Token:          %s\n", src)
	fmt.Printf("  Queries:        %d\n", info.QueryCount)
	fmt.Printf("  Visualizations: %d\n", info.VisualizationCount)
	if r.LastSeen != nil {
		fmt.Printf("  Previously:     %d queries, %d visualizations (%s)\n",
			r.LastSeen.Queries, r.LastSeen.Visualizations, r.LastSeen.CheckedAt.Local().Format("2006-01-02 15:04"))
	}
}
