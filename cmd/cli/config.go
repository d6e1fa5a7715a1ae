package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mindmate-hq/routellm/internal/config"
	"github.com/mindmate-hq/routellm/internal/llm"
)

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg *config.Config) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "Environment:\t%s\n", cfg.Env)
	fmt.Fprintf(tw, "Settings backend:\t%s\n", cfg.Settings.Backend)
	if cfg.Settings.Backend == config.SettingsFile {
		fmt.Fprintf(tw, "Settings file:\t%s\n", cfg.Settings.File)
	}
	fmt.Fprintf(tw, "Database:\t%s\n", orNone(maskConnectionString(cfg.DatabaseURL)))
	fmt.Fprintf(tw, "NATS:\t%s\n", orNone(maskConnectionString(cfg.NATSURL)))
	fmt.Fprintf(tw, "Adapter timeout:\t%s\n", cfg.Routing.AdapterTimeout)

	keys := map[llm.Provider]string{
		llm.ProviderOpenAI:     cfg.LLM.OpenAIKey,
		llm.ProviderAnthropic:  cfg.LLM.AnthropicKey,
		llm.ProviderGemini:     cfg.LLM.GeminiKey,
		llm.ProviderXAI:        cfg.LLM.XAIKey,
		llm.ProviderOpenRouter: cfg.LLM.OpenRouterKey,
	}
	for _, p := range llm.Providers() {
		if p == llm.ProviderLocal {
			local := "disabled"
			if cfg.LLM.LocalEnabled {
				local = fmt.Sprintf("%s at %s", cfg.LLM.OllamaModel, cfg.LLM.OllamaURL)
			}
			fmt.Fprintf(tw, "%s:\t%s\n", p, local)
			continue
		}
		fmt.Fprintf(tw, "%s:\t%s\n", p, orNone(llm.MaskAPIKey(keys[p])))
	}
}

func orNone(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
