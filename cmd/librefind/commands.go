package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"librefind/application/commands"
	"librefind/application/pipeline"
	"librefind/application/queries"
	"librefind/application/services"
	"librefind/domain/core/entities"
	"librefind/domain/core/valueobjects"
	"librefind/infrastructure/config"
	"librefind/infrastructure/inventory"
	"librefind/infrastructure/persistence/ignorelist"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Classify the local inventory and show the sovereignty score",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		flags := cmd.Flags()
		inventoryPath := stringFlag(cmd, "inventory", a.Config.Pipeline.InventoryPath)
		ignores, err := ignorelist.NewFileStore(stringFlag(cmd, "ignore-list", a.Config.Pipeline.IgnoreListPath), a.Logger)
		if err != nil {
			return err
		}

		var status *entities.AppStatus
		if raw, _ := flags.GetString("status"); raw != "" {
			s, err := entities.ParseAppStatus(raw)
			if err != nil {
				return err
			}
			status = &s
		}
		query, _ := flags.GetString("query")
		watch, _ := flags.GetBool("watch")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		source := inventory.NewFileSource(inventoryPath)
		p := pipeline.New(a.Classifier, source, ignores, pipeline.Options{
			Session:   a.session,
			Publisher: a.Publisher,
			Metrics:   a.Metrics,
			Logger:    a.Logger,
		})

		// A one-shot scan stops at the first settled view; --watch runs
		// until interrupted, rescans when the inventory file changes and
		// follows edits to the ignore list.
		states := p.Subscribe(ctx)
		if watch {
			if err := ignores.WatchFile(ctx); err != nil {
				return err
			}
			if err := source.Watch(ctx, p.Rescan, a.Logger); err != nil {
				return err
			}
		} else {
			states = pipeline.UntilSettled(ctx, states)
		}

		// Queued before Run so they apply ahead of the first scan result.
		if query != "" {
			_ = p.SetQuery(query)
		}
		if status != nil {
			_ = p.SetFilter(status)
		}
		runErr := make(chan error, 1)
		go func() { runErr <- p.Run(ctx) }()

		out := cmd.OutOrStdout()
		var last pipeline.State
		for s := range states {
			last = s
			if !s.Loading {
				renderInventory(out, s)
			}
		}
		cancel()
		<-runErr

		if last.Error != "" {
			return fmt.Errorf("scan failed: %s", last.Error)
		}
		return nil
	},
}

var ignoreCmd = &cobra.Command{
	Use:   "ignore <package>",
	Short: "Exclude a package from scoring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editIgnoreList(cmd, args[0], true)
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <package>",
	Short: "Count a previously ignored package again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editIgnoreList(cmd, args[0], false)
	},
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the catalogued proprietary apps",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.QueryBus.Ask(cmd.Context(), queries.ListTargetsQuery{})
		if err != nil {
			return err
		}
		renderTargets(cmd.OutOrStdout(), result.([]*entities.ProprietaryTarget))
		return nil
	},
}

var alternativesCmd = &cobra.Command{
	Use:   "alternatives <package>",
	Short: "Show the FOSS alternatives to a proprietary app, best rated first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.QueryBus.Ask(cmd.Context(), queries.GetAlternativesQuery{
			PackageName: args[0],
			ViewerID:    a.userID(),
		})
		if err != nil {
			return err
		}
		renderAlternatives(cmd.OutOrStdout(), result.([]entities.Alternative))
		return nil
	},
}

var rateCmd = &cobra.Command{
	Use:   "rate <alternative-id> <stars>",
	Short: "Rate an alternative from 1 to 5 stars (requires --user)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		stars, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("stars must be a number: %w", err)
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.CommandBus.Send(cmd.Context(), commands.RateAlternativeCommand{
			UserID:        a.userID(),
			AlternativeID: args[0],
			Stars:         stars,
		})
		if err != nil {
			return err
		}
		renderRating(cmd.OutOrStdout(), result.(*services.RatingResult))
		return nil
	},
}

var voteCmd = &cobra.Command{
	Use:   "vote <alternative-id> <usability|privacy|features>",
	Short: "Endorse an alternative for one category (requires --user)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.CommandBus.Send(cmd.Context(), commands.CastVoteCommand{
			UserID:        a.userID(),
			AlternativeID: args[0],
			Category:      entities.VoteCategory(strings.ToLower(args[1])),
		})
		if err != nil {
			return err
		}
		renderVote(cmd.OutOrStdout(), result.(*services.VoteResult))
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether an app is already catalogued",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		pkg, _ := cmd.Flags().GetString("package")
		interactive, _ := cmd.Flags().GetBool("interactive")
		if !interactive && strings.TrimSpace(name) == "" && strings.TrimSpace(pkg) == "" {
			return fmt.Errorf("provide --name, --package or --interactive")
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if interactive {
			return followDuplicates(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), a.DuplicateCheck)
		}

		result, err := a.QueryBus.Ask(cmd.Context(), queries.CheckDuplicateQuery{Name: name, PackageName: pkg})
		if err != nil {
			return err
		}
		renderDuplicate(cmd.OutOrStdout(), result.(services.DuplicateResult))
		return nil
	},
}

// followDuplicates checks every line read from in. A line that parses as a
// package name is looked up as a package and anything else as an app name.
// A line still waiting out the debounce is dropped when a newer line of the
// same kind arrives, so only settled input reaches the catalog.
func followDuplicates(ctx context.Context, in io.Reader, out io.Writer, checker *services.DebouncedChecker) error {
	var (
		mu      sync.Mutex
		pending sync.WaitGroup
	)
	lines := bufio.NewScanner(in)
	for lines.Scan() {
		input := strings.TrimSpace(lines.Text())
		if input == "" {
			continue
		}
		key, name, pkg := "name", input, ""
		if _, err := valueobjects.NewPackageName(input); err == nil {
			key, name, pkg = "package", "", input
		}

		results := checker.Request(ctx, key, name, pkg)
		pending.Add(1)
		go func() {
			defer pending.Done()
			for res := range results {
				mu.Lock()
				fmt.Fprintf(out, "%s: ", input)
				renderDuplicate(out, res)
				mu.Unlock()
			}
		}()
	}
	pending.Wait()
	return lines.Err()
}

func editIgnoreList(cmd *cobra.Command, pkg string, ignore bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	store, err := ignorelist.NewFileStore(stringFlag(cmd, "ignore-list", cfg.Pipeline.IgnoreListPath), nil)
	if err != nil {
		return err
	}
	if ignore {
		if err := store.Ignore(cmd.Context(), pkg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ignoring %s\n", pkg)
		return nil
	}
	if err := store.Restore(cmd.Context(), pkg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", pkg)
	return nil
}

func stringFlag(cmd *cobra.Command, name, fallback string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return fallback
}
