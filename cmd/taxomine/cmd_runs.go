package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kittclouds/taxomine/internal/store"
)

var (
	runsDB    string
	showNodes bool
)

// runsCmd lists stored runs
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs stored in a database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.ListRuns()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSOURCE\tCREATED\tENTITIES\tWINDOWS\tSECTIONS\tCUTS\tUNRESOLVED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
				r.ID, r.Source, time.UnixMilli(r.CreatedAt).Format(time.DateTime),
				r.Entities, r.Windows, r.Sections, r.Cuts, r.Unresolved)
		}
		return tw.Flush()
	},
}

// showCmd prints one stored run
var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the sections and cuts of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		run, err := s.GetRun(args[0])
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %s not found", args[0])
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "run %s (%s): %d windows, %d sections, %d cuts\n",
			run.ID, run.Source, run.Windows, run.Sections, run.Cuts)

		sections, err := s.ListSections(run.ID)
		if err != nil {
			return err
		}
		for _, sec := range sections {
			fmt.Fprintf(out, "\nsection %d windows=%v energy=%.4f consistency=%.2f\n%s\n",
				sec.Index, sec.Windows, sec.Energy, sec.Consistency, sec.Newick)
			if !showNodes {
				continue
			}
			nodes, err := s.ListNodes(sec.ID)
			if err != nil {
				return err
			}
			for _, n := range nodes {
				fmt.Fprintf(out, "  %*s%s level=%d\n", 2*n.Depth, "", n.Entity, n.Level)
			}
		}

		cuts, err := s.ListCuts(run.ID)
		if err != nil {
			return err
		}
		for _, c := range cuts {
			fmt.Fprintf(out, "\ncut %d|%d\n", c.Before, c.After)
			for _, d := range c.Disagreements {
				fmt.Fprintf(out, "  %s\n", d)
			}
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{runsCmd, showCmd} {
		c.Flags().StringVar(&runsDB, "db", "", "SQLite file holding the runs (overrides store.dsn)")
	}
	showCmd.Flags().BoolVar(&showNodes, "nodes", false, "List every node with its level")
}

func openStore() (*store.SQLiteStore, error) {
	dsn := cfg.Store.DSN
	if runsDB != "" {
		dsn = runsDB
	}
	if dsn == "" {
		return nil, fmt.Errorf("no database: pass --db or set store.dsn")
	}
	return store.NewSQLiteStoreWithDSN(dsn)
}
