package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/autotrans-cli/internal/feed"
	"github.com/sells-group/autotrans-cli/internal/model"
)

var (
	latestKind  string
	latestLang  string
	latestLimit int
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the newest stored documents of a kind as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := model.ParseKind(latestKind)
		if err != nil {
			return err
		}
		lang, err := model.ParseLanguage(latestLang, true)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		resp, err := feed.New(st).Latest(ctx, kind, lang, latestLimit)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	latestCmd.Flags().StringVar(&latestKind, "kind", string(model.KindResearch), "document kind")
	latestCmd.Flags().StringVar(&latestLang, "lang", string(model.LangJA), "language: ja, en or all")
	latestCmd.Flags().IntVar(&latestLimit, "limit", feed.DefaultLimit, "number of documents (max 20)")
	rootCmd.AddCommand(latestCmd)
}
