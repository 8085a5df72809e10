package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/autotrans-cli/internal/model"
)

var indexLimit int

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Backfill the vector store from every stored literature document",
	Long:  "Scans the document store for PubMed documents, sections their full text where available, translates each section and upserts the embeddings. Chunks already present are skipped, so the command can be re-run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var docs []model.StoredDocument
		err = st.ScanAll(ctx, func(d model.StoredDocument) error {
			if d.IsLiterature() && (indexLimit <= 0 || len(docs) < indexLimit) {
				docs = append(docs, d)
			}
			return nil
		})
		if err != nil {
			return eris.Wrap(err, "scan literature")
		}

		env, err := initIndex(ctx, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		stats := env.Indexer.IndexAll(ctx, docs)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	indexCmd.Flags().IntVar(&indexLimit, "limit", 0, "index at most this many papers (0 for all)")
	rootCmd.AddCommand(indexCmd)
}
