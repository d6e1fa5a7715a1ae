package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mindmate-hq/routellm/internal/settings"
)

// settingsCmd returns the settings parent command
func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change optimization settings",
	}

	cmd.AddCommand(settingsShowCmd())
	cmd.AddCommand(settingsSetLevelCmd())
	cmd.AddCommand(settingsSetFallbackCmd())

	return cmd
}

func settingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current optimization settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(func(ctx context.Context, store *settings.Store) error {
				return printSettings(cmd.OutOrStdout(), store.GetConfig(ctx), true)
			})
		},
	}
}

func settingsSetLevelCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set-level <aggressive|balanced|quality_first>",
		Short:     "Set the optimization level",
		Args:      cobra.ExactArgs(1),
		ValidArgs: levelNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := settings.ParseOptimizationLevel(args[0])
			if err != nil {
				return err
			}

			return withSettings(func(ctx context.Context, store *settings.Store) error {
				err := store.SetOptimizationLevel(ctx, level)
				return reportUpdate(cmd.OutOrStdout(), store.GetConfig(ctx), err)
			})
		},
	}
}

func settingsSetFallbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-fallback <true|false>",
		Short: "Enable or disable the local model as a last-resort fallback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := strconv.ParseBool(args[0])
			if err != nil {
				return fmt.Errorf("invalid value %q: want true or false", args[0])
			}

			return withSettings(func(ctx context.Context, store *settings.Store) error {
				err := store.SetFallbackToLocal(ctx, enabled)
				return reportUpdate(cmd.OutOrStdout(), store.GetConfig(ctx), err)
			})
		},
	}
}

func withSettings(fn func(ctx context.Context, store *settings.Store) error) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, cleanup, err := openSettings(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(ctx, store)
}

// reportUpdate prints the settings after a change. A change that could not be
// persisted is still printed, followed by the storage error.
func reportUpdate(w io.Writer, cfg settings.OptimizationConfig, err error) error {
	if err != nil && !errors.Is(err, settings.ErrConfigUnavailable) {
		return err
	}
	if perr := printSettings(w, cfg, err == nil); perr != nil {
		return perr
	}
	return err
}

func printSettings(w io.Writer, cfg settings.OptimizationConfig, persisted bool) error {
	if jsonOutput {
		return printJSON(w, map[string]interface{}{
			"optimization_level": cfg.OptimizationLevel,
			"fallback_to_local":  cfg.FallbackToLocal,
			"persisted":          persisted,
		})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Optimization level:\t%s\n", cfg.OptimizationLevel)
	fmt.Fprintf(tw, "Fallback to local:\t%t\n", cfg.FallbackToLocal)
	if !persisted {
		fmt.Fprintf(tw, "Persisted:\tno (applies to this process only)\n")
	}
	return tw.Flush()
}

func levelNames() []string {
	levels := settings.Levels()
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = string(l)
	}
	return names
}
