package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kittclouds/taxomine/internal/pipeline"
	"github.com/kittclouds/taxomine/internal/store"
	"github.com/kittclouds/taxomine/internal/telemetry"
)

var (
	analyzeDB      string
	analyzeFormat  string
	analyzeOut     string
	analyzeMetrics bool
)

// analyzeCmd runs the full pipeline over one corpus file
var analyzeCmd = &cobra.Command{
	Use:   "analyze <corpus>",
	Short: "Discover hierarchies in a text corpus",
	Long: `Featurizes the corpus, scans it in overlapping windows under every
configured prime and assembles one forest per verified section.

Output formats:
  - json:   the full report (sections, forests, cuts, exclusions)
  - newick: one Newick tree per line, sections separated by a blank line`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDB, "db", "", "SQLite file to persist the run in (overrides store.dsn)")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "json", "Output format (json, newick)")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "Write output to a file instead of stdout")
	analyzeCmd.Flags().BoolVar(&analyzeMetrics, "metrics", false, "Print scan metrics to stderr")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeFormat != "json" && analyzeFormat != "newick" {
		return fmt.Errorf("unknown format %q", analyzeFormat)
	}
	text, err := readHostFile(args[0])
	if err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}

	opts := pipeline.Options{Config: cfg, Source: args[0], Logger: logger}

	dsn := cfg.Store.DSN
	if analyzeDB != "" {
		dsn = analyzeDB
	}
	if dsn != "" {
		s, err := store.NewSQLiteStoreWithDSN(dsn)
		if err != nil {
			return err
		}
		defer s.Close()
		opts.Store = s
	}

	reg := prometheus.NewRegistry()
	opts.Metrics = telemetry.New(reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := pipeline.Run(ctx, string(text), opts)
	if err != nil {
		return err
	}
	logger.Debug("report ready", zap.String("run", rep.RunID), zap.String("format", analyzeFormat))

	var buf bytes.Buffer
	if analyzeFormat == "newick" {
		writeNewick(&buf, rep)
	} else {
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	}

	if analyzeOut != "" {
		if err := writeHostFile(analyzeOut, buf.Bytes()); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	} else if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
		return err
	}

	if analyzeMetrics {
		return dumpMetrics(cmd.ErrOrStderr(), reg)
	}
	return nil
}

func writeNewick(w io.Writer, rep *pipeline.Report) {
	sections := make([]string, len(rep.Sections))
	for i, sec := range rep.Sections {
		sections[i] = sec.Newick
	}
	fmt.Fprintln(w, strings.Join(sections, "\n\n"))
}

func dumpMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
