package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/autotrans-cli/internal/model"
)

var (
	searchK    int
	searchLang string
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Semantic search over indexed literature chunks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		lang, err := model.ParseLanguage(searchLang, true)
		if err != nil {
			return err
		}

		env, err := initIndex(ctx, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		emb, err := env.AI.Embed(ctx, strings.Join(args, " "))
		if err != nil {
			return eris.Wrap(err, "embed query")
		}
		hits, err := env.Vectors.Search(ctx, emb.Embedding, searchK, lang)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchK, "k", 5, "number of chunks to return")
	searchCmd.Flags().StringVar(&searchLang, "lang", "all", "chunk language: ja, en or all")
	rootCmd.AddCommand(searchCmd)
}
