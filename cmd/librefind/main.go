// Command librefind is the operator CLI: scan a local inventory, browse
// alternatives, rate them and check candidate submissions for duplicates.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"librefind/infrastructure/config"
	"librefind/infrastructure/di"
	"librefind/pkg/auth"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "librefind",
	Short:         "Find FOSS replacements for the proprietary apps you run",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// app bundles what every subcommand needs. The caller must defer Close.
type app struct {
	*di.Container
	session *auth.SessionTracker
	cleanup func()
}

func (a *app) Close() {
	a.cleanup()
}

// newApp loads the environment configuration, lets the global flags
// override the catalog location and wires the container.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if table, _ := flags.GetString("table"); table != "" {
		cfg.AWS.TableName = table
	}
	if catalog, _ := flags.GetString("catalog"); catalog != "" {
		cfg.AWS.TableName = ""
		cfg.AWS.CatalogSeedPath = catalog
	}
	if region, _ := flags.GetString("region"); region != "" {
		cfg.AWS.Region = region
	}

	container, cleanup, err := di.InitializeContainer(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	session := auth.NewSessionTracker()
	if user, _ := flags.GetString("user"); user != "" {
		session.SetUser(user)
	}
	return &app{Container: container, session: session, cleanup: cleanup}, nil
}

// userID is the --user value, or "" when signed out.
func (a *app) userID() string {
	uid, _ := a.session.CurrentUserID()
	return uid
}

func init() {
	rootCmd.PersistentFlags().String("table", "", "DynamoDB table holding the catalog")
	rootCmd.PersistentFlags().String("catalog", "", "YAML catalog seed to use instead of DynamoDB")
	rootCmd.PersistentFlags().String("region", "", "AWS region (defaults to AWS_REGION)")
	rootCmd.PersistentFlags().String("user", "", "act as this user id")

	scanCmd.Flags().String("inventory", "", "inventory YAML (defaults to INVENTORY_PATH)")
	scanCmd.Flags().String("ignore-list", "", "ignore list YAML (defaults to IGNORE_LIST_PATH)")
	scanCmd.Flags().StringP("query", "q", "", "only show apps whose label or package contains this")
	scanCmd.Flags().StringP("status", "s", "", "only show apps with this status (FOSS, PROP, UNKN)")
	scanCmd.Flags().BoolP("watch", "w", false, "keep running and redraw when the inventory or ignore list changes")
	rootCmd.AddCommand(scanCmd)

	ignoreCmd.Flags().String("ignore-list", "", "ignore list YAML (defaults to IGNORE_LIST_PATH)")
	restoreCmd.Flags().String("ignore-list", "", "ignore list YAML (defaults to IGNORE_LIST_PATH)")
	rootCmd.AddCommand(ignoreCmd)
	rootCmd.AddCommand(restoreCmd)

	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(alternativesCmd)
	rootCmd.AddCommand(rateCmd)
	rootCmd.AddCommand(voteCmd)

	checkCmd.Flags().String("name", "", "app name to look up")
	checkCmd.Flags().String("package", "", "package name to look up")
	checkCmd.Flags().BoolP("interactive", "i", false, "read names and packages from stdin, one per line, and check each as it settles")
	rootCmd.AddCommand(checkCmd)
}
