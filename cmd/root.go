package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/autotrans-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "autotrans-cli",
	Short: "Tooth autotransplantation content collector and knowledge indexer",
	Long:  "Plans searches across news, web, PubMed and video sources, keeps the relevant results in a deduplicated document store, and indexes literature into a bilingual vector store.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
