package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mindmate-hq/routellm/internal/config"
	"github.com/mindmate-hq/routellm/internal/db"
	"github.com/mindmate-hq/routellm/internal/llm"
	"github.com/mindmate-hq/routellm/internal/logging"
	"github.com/mindmate-hq/routellm/internal/routellm"
	"github.com/mindmate-hq/routellm/internal/settings"
)

var version = "dev"

var (
	jsonOutput bool
	verbose    bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "routellm",
		Short:   "RouteLLM - cost-optimized, privacy-aware model routing",
		Long:    `RouteLLM picks the cheapest capable AI provider for each query and keeps private queries on the local model.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if verbose {
				level = "debug"
			}
			logging.Setup(logging.Options{Level: level})
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(routeCmd())
	cmd.AddCommand(estimateCmd())
	cmd.AddCommand(settingsCmd())
	cmd.AddCommand(keysCmd())
	cmd.AddCommand(configCmd())

	return cmd
}

// queryFlags are shared by route and estimate
type queryFlags struct {
	feature string
	privacy string
	role    string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.feature, "feature", "f", string(routellm.FeatureChatCoaching), "Feature tag (chat_coaching, goal_planning, ...)")
	cmd.Flags().StringVarP(&f.privacy, "privacy", "p", string(routellm.PrivacyPublic), "Privacy level (PUBLIC, PRIVATE, SENSITIVE)")
	cmd.Flags().StringVarP(&f.role, "role", "r", "", "Role bias (creative, analytical, cautious)")
}

func (f *queryFlags) query(args []string) (routellm.Query, error) {
	feature, err := routellm.ParseFeature(f.feature)
	if err != nil {
		return routellm.Query{}, err
	}
	role, err := routellm.ParseRole(f.role)
	if err != nil {
		return routellm.Query{}, err
	}
	q := routellm.Query{
		Query:        strings.Join(args, " "),
		Feature:      feature,
		PrivacyLevel: routellm.ParsePrivacyLevel(f.privacy),
		Role:         role,
	}
	return q, q.Validate()
}

func routeCmd() *cobra.Command {
	var flags queryFlags

	cmd := &cobra.Command{
		Use:   "route <query>",
		Short: "Route a query to the best provider and print the reply",
		Long: `Route a query through the configured providers.

Examples:
  routellm route "What is 2+2?"
  routellm route --privacy PRIVATE --feature journal_reflection "I had a rough day"
  routellm route --role analytical "Compare these two habits"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			q, err := flags.query(args)
			if err != nil {
				return err
			}

			router, cleanup, err := openRouter(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := router.Route(ctx, q)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := printJSON(out, result); err != nil {
					return err
				}
			} else {
				printResult(out, result)
			}
			return result.Err()
		},
	}

	flags.register(cmd)
	return cmd
}

func estimateCmd() *cobra.Command {
	var flags queryFlags

	cmd := &cobra.Command{
		Use:   "estimate <query>",
		Short: "Show the route and estimated cost without calling a provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			q, err := flags.query(args)
			if err != nil {
				return err
			}

			router, cleanup, err := openRouter(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			estimate, err := router.EstimateCost(ctx, q)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, estimate)
			}
			printEstimate(out, estimate)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// openSettings opens the configured settings store. The returned cleanup
// releases any database connection.
func openSettings(ctx context.Context, cfg *config.Config) (*settings.Store, func(), error) {
	switch cfg.Settings.Backend {
	case config.SettingsPostgres:
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		backend := settings.NewPostgresBackend(db.NewStore(database), cfg.Settings.Key)
		return settings.NewStore(backend), database.Close, nil
	case config.SettingsFile:
		return settings.NewStore(settings.NewFileBackend(cfg.Settings.File, cfg.Settings.Key)), func() {}, nil
	default:
		return settings.NewStore(settings.NewMemoryBackend()), func() {}, nil
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openRouter(ctx context.Context) (*routellm.Router, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	adapters, err := llm.NewAdapters(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure providers: %w", err)
	}

	store, cleanup, err := openSettings(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	router, err := routellm.New(adapters, store,
		routellm.WithAdapterTimeout(cfg.Routing.AdapterTimeout),
		routellm.WithAbortOnCancel(cfg.Routing.AbortOnCancel),
	)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create router: %w", err)
	}

	log.Debug().Interface("providers", router.Providers()).Msg("router ready")
	return router, cleanup, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, result *routellm.RoutingResult) {
	if result.Response.Success {
		fmt.Fprintln(w, result.Response.Content)
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "Request failed: %s\n\n", result.Response.Error)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Request:\t%s\n", result.RequestID)
	fmt.Fprintf(tw, "Route:\t%s/%s\n", result.Route.Provider, result.Route.Model)
	fmt.Fprintf(tw, "Complexity:\t%.3f\n", result.Route.ComplexityScore)
	fmt.Fprintf(tw, "Attempted:\t%s\n", strings.Join(result.ProvidersAttempted, " -> "))
	fmt.Fprintf(tw, "Estimated:\t$%.6f\n", result.Route.EstimatedCost)
	fmt.Fprintf(tw, "Actual:\t$%.6f\n", result.ActualCost)
	fmt.Fprintf(tw, "Time:\t%dms\n", result.TotalTimeMs)
	fmt.Fprintf(tw, "Reasoning:\t%s\n", result.Route.Reasoning)
	tw.Flush()
}

func printEstimate(w io.Writer, estimate *routellm.CostEstimate) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Route:\t%s/%s\n", estimate.Provider, estimate.Model)
	fmt.Fprintf(tw, "Complexity:\t%.3f\n", estimate.ComplexityScore)
	fmt.Fprintf(tw, "Estimated:\t$%.6f\n", estimate.EstimatedCost)
	fmt.Fprintf(tw, "Reasoning:\t%s\n", estimate.Reasoning)
	tw.Flush()
}

// maskConnectionString hides the password of a URL-style connection string
func maskConnectionString(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		return s
	}
	if _, ok := u.User.Password(); !ok {
		return s
	}
	u.User = url.UserPassword(u.User.Username(), "****")
	return u.String()
}
