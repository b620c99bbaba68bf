package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kilupskalvis/vizedit/internal/remote"
	"github.com/spf13/cobra"
)

var (
	serverAdminURL        string
	serverAdminToken      string
	serverTokenDesc       string
	serverTokenPermission string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Administer a vizedit-server",
	Long: `Commands for administering a running vizedit-server.
The server itself is started with the vizedit-server binary.`,
}

var serverTokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Manage server access tokens",
	Long: `Create, list and delete the bearer tokens clients use to reach a
vizedit-server. Requires the server's admin token.

Examples:
  vizedit server tokens create --url https://viz.example.com --desc ci --permission ro
  vizedit server tokens list --url https://viz.example.com
  vizedit server tokens delete --url https://viz.example.com <id>`,
}

var serverTokensCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a token",
	Args:  cobra.NoArgs,
	Run:   runServerTokensCreate,
}

var serverTokensListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tokens",
	Args:    cobra.NoArgs,
	Run:     runServerTokensList,
}

var serverTokensDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a token",
	Args:    cobra.ExactArgs(1),
	Run:     runServerTokensDelete,
}

func init() {
	serverCmd.AddCommand(serverTokensCmd)

	serverTokensCmd.PersistentFlags().StringVar(&serverAdminURL, "url",
		envOrDefault("VIZEDIT_SERVER_URL", ""),
		"Server base URL (env: VIZEDIT_SERVER_URL)")
	serverTokensCmd.PersistentFlags().StringVar(&serverAdminToken, "admin-token",
		os.Getenv("VIZEDIT_ADMIN_TOKEN"),
		"Admin token (env: VIZEDIT_ADMIN_TOKEN)")

	serverTokensCmd.AddCommand(serverTokensCreateCmd, serverTokensListCmd, serverTokensDeleteCmd)

	tf := serverTokensCreateCmd.Flags()
	tf.StringVar(&serverTokenDesc, "desc", "", "Token description")
	tf.StringVar(&serverTokenPermission, "permission", "rw", "Permission level: ro or rw")
}

func newAdminClient() *remote.AdminClient {
	if serverAdminURL == "" {
		exitError("--url is required (or set VIZEDIT_SERVER_URL)")
	}
	if serverAdminToken == "" {
		exitError("--admin-token is required (or set VIZEDIT_ADMIN_TOKEN)")
	}
	return remote.NewAdminClient(serverAdminURL, serverAdminToken)
}

func runServerTokensCreate(_ *cobra.Command, _ []string) {
	if serverTokenPermission != remote.PermissionRead && serverTokenPermission != remote.PermissionReadWrite {
		exitError("--permission must be ro or rw")
	}

	resp, err := newAdminClient().CreateToken(context.Background(), serverTokenDesc, serverTokenPermission)
	if err != nil {
		exitError("create token: %v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Created token %s (%s)\n", resp.ID, resp.Permission)
	fmt.Printf("\n  %s\n\n", resp.Token)
	fmt.Println("Store it now; the server keeps only its hash.")
}

func runServerTokensList(_ *cobra.Command, _ []string) {
	tokens, err := newAdminClient().ListTokens(context.Background())
	if err != nil {
		exitError("list tokens: %v", err)
	}
	if len(tokens) == 0 {
		fmt.Println("No tokens")
		return
	}

	t := newTable(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Permission", "Description", "Created", "Last used"})
	for _, tok := range tokens {
		lastUsed := "never"
		if !tok.LastUsedAt.IsZero() {
			lastUsed = tok.LastUsedAt.Local().Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{tok.ID, tok.Permission, tok.Description, tok.CreatedAt.Local().Format("2006-01-02"), lastUsed})
	}
	t.Render()
}

func runServerTokensDelete(_ *cobra.Command, args []string) {
	if err := newAdminClient().DeleteToken(context.Background(), args[0]); err != nil {
		exitError("delete token: %v", err)
	}
	fmt.Printf("Deleted token %s\n", args[0])
}

// envOrDefault returns the value of the environment variable key, or defaultVal if unset.
func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
