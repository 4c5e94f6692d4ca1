/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"chainguard.dev/refgrader/grading/calibrate"
	"chainguard.dev/refgrader/grading/pipeline"
	"chainguard.dev/refgrader/grading/reference"
	"chainguard.dev/refgrader/grading/report"
	"chainguard.dev/refgrader/grading/results"
	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
)

func rootCommand(cfg *config) *cobra.Command {
	root := &cobra.Command{
		Use:           "grader",
		Short:         "Grade student diagrams against reference solutions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&cfg.Provider, "provider", cfg.Provider, "vision backend: qwen, claude, gemini or openai (default: inferred from --model)")
	pf.StringVar(&cfg.Model, "model", cfg.Model, "vision model name")
	pf.StringVar(&cfg.ReferenceDB, "reference-db", cfg.ReferenceDB, "reference database file or gs:// URI")
	pf.StringVar(&cfg.ResultsDB, "results-db", cfg.ResultsDB, "SQLite file holding the evaluation history")
	pf.IntVar(&cfg.Workers, "workers", cfg.Workers, "images processed concurrently")

	root.AddCommand(
		evaluateCommand(cfg),
		historyCommand(cfg),
		showCommand(cfg),
		healthCommand(cfg),
		referencesCommand(cfg),
		calibrateCommand(cfg),
	)
	return root
}

func evaluateCommand(cfg *config) *cobra.Command {
	var (
		custom  []string
		jsonOut string
		details bool
	)
	cmd := &cobra.Command{
		Use:   "evaluate DOCUMENT",
		Short: "Grade a PDF, ZIP, PNG or JPEG submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := newComponents(ctx, cfg)
			if err != nil {
				return err
			}
			store, err := openResults(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			engine, err := newEngine(ctx, cfg, c, len(custom) > 0, store)
			if err != nil {
				return err
			}

			req := pipeline.Request{Document: args[0]}
			if len(custom) > 0 {
				req.Mode, req.References = pipeline.ModeCustom, custom
			}
			res := engine.Evaluate(ctx, req)

			out := cmd.OutOrStdout()
			fmt.Fprint(out, report.Summary(res))
			fmt.Fprintln(out)
			if err := report.Images(out, res); err != nil {
				return err
			}
			if details {
				fmt.Fprintln(out)
				if err := report.Criteria(out, res); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "\nResult ID: %s\n", res.ID)

			if jsonOut != "" {
				p, err := results.WriteJSON(jsonOut, res)
				if err != nil {
					return err
				}
				clog.InfoContextf(ctx, "Evaluation result saved to %s", p)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&custom, "custom", nil, "grade against references built from these files instead of the stored database")
	cmd.Flags().StringVar(&jsonOut, "json-out", "", "also write the result as JSON into this directory")
	cmd.Flags().BoolVar(&details, "details", false, "print per-criterion points")
	return cmd
}

func historyCommand(cfg *config) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List graded submissions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openResults(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return report.History(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries (0 for all)")
	return cmd
}

func showCommand(cfg *config) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print a stored result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openResults(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprint(out, report.Summary(res))
			fmt.Fprintln(out)
			if err := report.Images(out, res); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return report.Criteria(out, res)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func healthCommand(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the vision backend is up and its model loaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newComponents(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			h, err := c.exec.Ping(cmd.Context())
			if err != nil {
				return fmt.Errorf("vision backend unreachable: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(h); err != nil {
				return err
			}
			if !h.ModelLoaded {
				return fmt.Errorf("model not loaded (status %q)", h.Status)
			}
			return nil
		},
	}
}

func referencesCommand(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "references",
		Short: "Inspect and build reference databases",
	}
	cmd.AddCommand(referencesListCommand(cfg), referencesBuildCommand(cfg))
	return cmd
}

func referencesListCommand(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the categories of the reference database and their sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := reference.Load(cmd.Context(), cfg.ReferenceDB)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range db.Categories() {
				fmt.Fprintf(out, "%-22s %d\n", name, len(db.Entries(name)))
			}
			fmt.Fprintf(out, "%-22s %d\n", "total", db.Len())
			return nil
		},
	}
}

func referencesBuildCommand(cfg *config) *cobra.Command {
	var (
		all      bool
		imageDir string
		out      string
	)
	cmd := &cobra.Command{
		Use:   "build FILE...",
		Short: "Build a reference database from solution documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := newComponents(ctx, cfg)
			if err != nil {
				return err
			}

			var opts []reference.BuilderOption
			if all {
				opts = append(opts, reference.WithAllImages())
			}
			if imageDir != "" {
				opts = append(opts, reference.WithImageDir(imageDir))
			}

			workdir, err := os.MkdirTemp("", "refgrader-build-*")
			if err != nil {
				return err
			}
			defer os.RemoveAll(workdir)

			db, err := c.builder(cfg, opts...).Build(ctx, args, workdir)
			if err != nil {
				return err
			}
			if db.Len() == 0 {
				return fmt.Errorf("no usable reference images in %d files", len(args))
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			if err := db.Save(out); err != nil {
				return err
			}
			clog.InfoContextf(ctx, "Wrote %d references in %d categories to %s", db.Len(), len(db.Categories()), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "keep images classified below the confidence threshold")
	cmd.Flags().StringVar(&imageDir, "image-dir", "", "store images as files under this directory instead of inline")
	cmd.Flags().StringVar(&out, "out", "metadata_database.json", "output database file")
	return cmd
}

func calibrateCommand(cfg *config) *cobra.Command {
	var (
		threshold    float64
		evaluability bool
	)
	cmd := &cobra.Command{
		Use:   "calibrate DIR",
		Short: "Check the classifier against labelled samples in DIR/<category>/",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := newComponents(ctx, cfg)
			if err != nil {
				return err
			}

			opts := []calibrate.Option{calibrate.WithWorkers(cfg.Workers)}
			if evaluability {
				opts = append(opts, calibrate.WithEvaluability(c.judge))
			}
			root := calibrate.NewTree(calibrate.DefaultFactory(ctx))
			n, err := calibrate.Run(ctx, calibrate.New(c.extractor, c.classifier, opts...), args[0], root)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("no samples found under %s", args[0])
			}

			below, err := report.Calibration(cmd.OutOrStdout(), root, threshold)
			if err != nil {
				return err
			}
			if below {
				return fmt.Errorf("pass rate below %.0f%% for at least one category", threshold*100)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0.8, "minimum pass rate (0.0-1.0) per category and check")
	cmd.Flags().BoolVar(&evaluability, "evaluability", false, "also expect every sample to be judged evaluable")
	return cmd
}
