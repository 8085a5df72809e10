package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/autotrans-cli/internal/classify"
	"github.com/sells-group/autotrans-cli/internal/cost"
	"github.com/sells-group/autotrans-cli/internal/model"
	"github.com/sells-group/autotrans-cli/internal/store"
	"github.com/sells-group/autotrans-cli/pkg/anthropic"
)

var (
	wipeYes     bool
	auditMode   string
	auditDryRun bool
	inspectN    int
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Document store maintenance",
}

var adminWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete every stored document",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !wipeYes {
			return eris.New("refusing to wipe without --yes")
		}
		return withStore(cmd.Context(), func(st store.Store) error {
			return runWipe(cmd.Context(), st, os.Stdout)
		})
	},
}

var adminAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Re-classify every stored document and delete the ones that no longer pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Classifier.Mode = auditMode

		var client anthropic.Client
		if auditMode != classify.ModeHeuristic {
			if cfg.Anthropic.Key == "" {
				return eris.Errorf("anthropic.key is required for audit mode %s", auditMode)
			}
			client = anthropic.NewClient(cfg.Anthropic.Key)
		}
		c, err := buildClassifier(client, newJina(), newCalculator(cfg.Pricing), cost.NewBudget(0))
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(st store.Store) error {
			_, err := runAudit(cmd.Context(), st, c, auditDryRun, os.Stdout)
			return err
		})
	},
}

var adminDumpCmd = &cobra.Command{
	Use:   "dump <id|url>",
	Short: "Print one stored document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(st store.Store) error {
			return runDump(cmd.Context(), st, args[0], os.Stdout)
		})
	},
}

var adminInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show document counts and sample titles per kind and language",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(st store.Store) error {
			return runInspect(cmd.Context(), st, inspectN, os.Stdout)
		})
	},
}

func withStore(ctx context.Context, fn func(store.Store) error) error {
	if err := cfg.Validate("store"); err != nil {
		return err
	}
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	return fn(st)
}

func runWipe(ctx context.Context, st store.Store, w io.Writer) error {
	n, err := st.Wipe(ctx)
	if err != nil {
		return err
	}
	zap.L().Warn("admin: store wiped", zap.Int64("deleted", n))
	_, err = fmt.Fprintf(w, "deleted %d documents\n", n)
	return err
}

type auditResult struct {
	Scanned   int      `json:"scanned"`
	Failed    int      `json:"failed"`
	Undecided int      `json:"undecided"`
	Deleted   int      `json:"deleted"`
	IDs       []string `json:"ids,omitempty"`
}

// runAudit re-judges every stored document with c and deletes the ones
// that fail. Documents the classifier could not judge are kept. With dryRun
// nothing is deleted.
func runAudit(ctx context.Context, st store.Store, c classify.Classifier, dryRun bool, w io.Writer) (*auditResult, error) {
	res := &auditResult{}
	err := st.ScanAll(ctx, func(d model.StoredDocument) error {
		res.Scanned++
		verdict := c.Classify(ctx, classify.FromDocument(d))
		if verdict.Relevant {
			return nil
		}
		if verdict.Undecided {
			res.Undecided++
			zap.L().Warn("admin: audit undecided, keeping document",
				zap.String("id", d.ID),
				zap.String("reason", verdict.Reason),
			)
			return nil
		}
		res.Failed++
		res.IDs = append(res.IDs, d.ID)
		zap.L().Info("admin: audit failure",
			zap.String("id", d.ID),
			zap.String("title", d.Title),
			zap.String("reason", verdict.Reason),
			zap.Bool("dry_run", dryRun),
		)
		if dryRun {
			return nil
		}
		deleted, err := st.Delete(ctx, d.ID)
		if err != nil {
			return eris.Wrapf(err, "delete %s", d.ID)
		}
		if deleted {
			res.Deleted++
		}
		return nil
	})
	if err != nil {
		return res, eris.Wrap(err, "audit scan")
	}
	return res, writeJSON(w, res)
}

// runDump prints the document addressed by ref, which is either a stored
// id or a URL.
func runDump(ctx context.Context, st store.Store, ref string, w io.Writer) error {
	id := ref
	if strings.Contains(ref, "://") {
		id = model.DocumentID(ref)
	}
	d, err := st.Get(ctx, id)
	if err != nil {
		return err
	}
	if d == nil {
		return eris.Errorf("no document for %q", ref)
	}
	return writeJSON(w, d)
}

// runInspect prints per-partition counts and up to n sample titles.
func runInspect(ctx context.Context, st store.Store, n int, w io.Writer) error {
	counts, err := st.CountByPartition(ctx)
	if err != nil {
		return err
	}
	for _, kind := range model.AllKinds() {
		for _, lang := range model.AllLanguages() {
			p := store.Partition{Kind: kind, Language: lang}
			docs, _, err := st.QueryByPartition(ctx, kind, lang, n, "")
			if err != nil {
				return err
			}
			titles := make([]string, 0, len(docs))
			for _, d := range docs {
				titles = append(titles, d.Headline())
			}
			if _, err := fmt.Fprintf(w, "%s/%s: count=%d sample=%q\n", kind, lang, counts[p], titles); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	adminWipeCmd.Flags().BoolVar(&wipeYes, "yes", false, "confirm deleting every document")
	adminAuditCmd.Flags().StringVar(&auditMode, "mode", classify.ModeHeuristic, "classifier used for the audit: heuristic, llm or chain")
	adminAuditCmd.Flags().BoolVar(&auditDryRun, "dry-run", false, "report failures without deleting")
	adminInspectCmd.Flags().IntVar(&inspectN, "samples", 5, "sample titles per partition")

	adminCmd.AddCommand(adminWipeCmd, adminAuditCmd, adminDumpCmd, adminInspectCmd)
	rootCmd.AddCommand(adminCmd)
}
