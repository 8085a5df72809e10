package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	collectMaxIterations int
	collectLanguages     []string
	collectBudget        float64
	collectIndex         bool
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one planned collection pass over every configured language",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if collectMaxIterations > 0 {
			cfg.Collect.MaxIterations = collectMaxIterations
		}
		if len(collectLanguages) > 0 {
			cfg.Collect.Languages = collectLanguages
		}
		if collectBudget >= 0 {
			cfg.Collect.CostBudgetUSD = collectBudget
		}

		env, err := initCollect(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		zap.L().Info("collect: starting",
			zap.Strings("languages", cfg.Collect.Languages),
			zap.Strings("harvesters", env.Harvested),
			zap.Int("max_iterations", cfg.Collect.MaxIterations),
			zap.Float64("budget_usd", cfg.Collect.CostBudgetUSD),
		)

		summary, err := env.Agent.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "collect run")
		}

		if collectIndex && len(summary.NewLiterature) > 0 {
			ix, err := initIndex(ctx, env.PubMed)
			if err != nil {
				return eris.Wrap(err, "init indexer")
			}
			defer ix.Close()
			stats := ix.Indexer.IndexAll(ctx, summary.NewLiterature)
			zap.L().Info("collect: new literature indexed",
				zap.Int("papers", stats.Papers),
				zap.Int("upserted", stats.Upserted),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	collectCmd.Flags().IntVar(&collectMaxIterations, "max-iterations", 0, "planning iterations per language (default from config)")
	collectCmd.Flags().StringSliceVar(&collectLanguages, "lang", nil, "languages to collect (default from config)")
	collectCmd.Flags().Float64Var(&collectBudget, "budget", -1, "LLM spend ceiling in USD, 0 for unlimited (default from config)")
	collectCmd.Flags().BoolVar(&collectIndex, "index", false, "index newly stored literature into the vector store")
	rootCmd.AddCommand(collectCmd)
}
