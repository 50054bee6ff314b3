package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"taskboard/internal/config"
	"taskboard/internal/models"
	"taskboard/internal/storage/journal"
)

func newMovesCmd(root *rootOptions) *cobra.Command {
	var (
		f        journal.Filter
		kind     string
		outcome  string
		asJSON   bool
		olderRaw string
	)
	cmd := &cobra.Command{
		Use:   "moves",
		Short: "Show recent card moves from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind != "" {
				k, err := models.ParseKind(kind)
				if err != nil {
					return err
				}
				f.Kind = k
			}
			if outcome != "" {
				f.Outcome = models.MoveOutcome(outcome)
			}

			store, err := openJournal(root)
			if err != nil {
				return err
			}
			defer store.Close()

			moves, err := store.ListMoves(cmd.Context(), f)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(moves)
			}
			return printMoves(cmd, moves)
		},
	}
	cmd.Flags().StringVarP(&f.TaskID, "task", "t", "", "Only moves of this task")
	cmd.Flags().StringVar(&f.ActorID, "actor", "", "Only moves by this staff member")
	cmd.Flags().StringVar(&kind, "kind", "", "Board kind (maintenance, plant)")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Outcome (applied, rejected, rolled_back)")
	cmd.Flags().IntVarP(&f.Limit, "limit", "n", 20, "Maximum entries")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete journal entries older than a duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			older, err := time.ParseDuration(olderRaw)
			if err != nil || older <= 0 {
				return fmt.Errorf("invalid --older-than %q", olderRaw)
			}
			store, err := openJournal(root)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Prune(cmd.Context(), time.Now().Add(-older))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", n)
			return nil
		},
	}
	prune.Flags().StringVar(&olderRaw, "older-than", "720h", "Age of the entries to delete")
	cmd.AddCommand(prune)
	return cmd
}

func openJournal(root *rootOptions) (*journal.Store, error) {
	cfg, err := root.load()
	if err != nil {
		return nil, err
	}
	if cfg.Journal.Driver == "none" {
		return nil, fmt.Errorf("move journal is disabled (journal.driver = none)")
	}
	return journal.Open(cfg.Journal.Driver, cfg.Journal.DSN, newLogger(config.LogConfig{Level: "warn", Format: cfg.Log.Format}, os.Stderr))
}

func printMoves(cmd *cobra.Command, moves []models.MoveRecord) error {
	if len(moves) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No moves recorded.")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tBOARD\tTASK\tACTOR\tMOVE\tOUTCOME\tERROR")
	for _, m := range moves {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s (%s)\t%s[%d] -> %s[%d]\t%s\t%s\n",
			m.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			m.Kind, m.TaskID, m.ActorID, m.ActorRole,
			m.From, m.FromIndex, m.To, m.ToIndex,
			m.Outcome, truncate(m.Error, 60))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
