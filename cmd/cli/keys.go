package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindmate-hq/routellm/internal/llm"
)

const keyCheckTimeout = 30 * time.Second

// keysCmd returns the keys parent command
func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Validate and mask provider API keys",
	}

	cmd.AddCommand(keysValidateCmd())
	cmd.AddCommand(keysMaskCmd())

	return cmd
}

func keysValidateCmd() *cobra.Command {
	var (
		provider string
		key      string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check an API key with a minimal provider call",
		Long: `Check an API key by making the smallest possible request to the provider.

Examples:
  routellm keys validate --provider openai --key sk-...
  routellm keys validate --provider local`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := llm.ParseProvider(provider)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), keyCheckTimeout)
			defer cancel()

			validator := llm.NewKeyValidator(llm.BaseURLs(cfg), cfg.LLM.OllamaModel)
			valid := validator.ValidateKey(ctx, p, key)

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, map[string]interface{}{
					"provider":   p,
					"valid":      valid,
					"masked_key": llm.MaskAPIKey(key),
				})
			}

			status := "invalid"
			if valid {
				status = "valid"
			}
			fmt.Fprintf(out, "%s key %s is %s\n", p, llm.MaskAPIKey(key), status)
			if !valid {
				return fmt.Errorf("%s key rejected", p)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Provider (openai, anthropic, gemini, xai, openrouter, local)")
	cmd.Flags().StringVarP(&key, "key", "k", "", "API key to check")
	cmd.MarkFlagRequired("provider")

	return cmd
}

func keysMaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mask <key>",
		Short: "Print a key with all but its first and last four characters hidden",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), llm.MaskAPIKey(args[0]))
			return nil
		},
	}
}
