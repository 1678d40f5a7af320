package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"emperror.dev/errors"
	"github.com/spf13/cobra"

	"github.com/waitsampling-io/waitsampling"
)

var (
	targetPid    int
	targetSocket string
)

func init() {
	for _, c := range []*cobra.Command{currentCmd, historyCmd, profileCmd, resetCmd, statusCmd} {
		c.Flags().IntVarP(&targetPid, "pid", "p", 0, "PID of the process running the collector.")
		c.Flags().StringVar(&targetSocket, "socket", "", "Readout socket path. Overrides --pid discovery.")
		rootCmd.AddCommand(c)
	}
}

// targetClient resolves the readout endpoint from the flags.
func targetClient() (*waitsampling.Client, error) {
	addr := targetSocket
	if addr == "" && targetPid != 0 {
		addr = waitsampling.DefaultSocketPath(targetPid)
	}
	if addr == "" {
		return nil, errors.New("no collector found: pass --pid or --socket")
	}
	return waitsampling.NewClient(addr), nil
}

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show waits in progress right now",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := targetClient()
		if err != nil {
			return err
		}
		rows, err := client.Current(cmd.Context())
		if err != nil {
			return err
		}
		w := newTable()
		fmt.Fprintln(w, "PID\tTYPE\tEVENT\tQUERY ID")
		for _, r := range rows {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", r.PID, eventTypeLabel(r.EventType), eventLabel(r.Event, r.Code), r.QueryID)
		}
		return w.Flush()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the recorded wait history, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := targetClient()
		if err != nil {
			return err
		}
		rows, err := client.History(cmd.Context())
		if err != nil {
			return err
		}
		w := newTable()
		fmt.Fprintln(w, "SAMPLED AT\tPID\tTYPE\tEVENT\tQUERY ID")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\n",
				r.SampledAt.Format("15:04:05.000"), r.PID, eventTypeLabel(r.EventType), eventLabel(r.Event, r.Code), r.QueryID)
		}
		return w.Flush()
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the aggregated wait profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := targetClient()
		if err != nil {
			return err
		}
		rows, err := client.Profile(cmd.Context())
		if err != nil {
			return err
		}
		w := newTable()
		fmt.Fprintln(w, "PID\tTYPE\tEVENT\tQUERY ID\tCOUNT")
		for _, r := range rows {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n",
				r.PID, eventTypeLabel(r.EventType), eventLabel(r.Event, r.Code), r.QueryID, r.Count)
		}
		return w.Flush()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the collector's configuration and cursors",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := targetClient()
		if err != nil {
			return err
		}
		st, err := client.Status(cmd.Context())
		if err != nil {
			return err
		}
		w := newTable()
		fmt.Fprintf(w, "pid\t%d\n", st.PID)
		fmt.Fprintf(w, "history period\t%s\n", st.Config.HistoryPeriod)
		fmt.Fprintf(w, "profile period\t%s\n", st.Config.ProfilePeriod)
		fmt.Fprintf(w, "history cursor\t%d (%d live)\n", st.HistoryCursor, st.HistoryLen)
		fmt.Fprintf(w, "profile entries\t%d / %d\n", st.ProfileEntries, st.Config.MaxProfileEntries)
		fmt.Fprintf(w, "worker slots\t%d\n", st.Workers)
		return w.Flush()
	},
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

func eventTypeLabel(eventType string) string {
	if eventType == "" {
		return "-"
	}
	return eventType
}

func eventLabel(event string, code uint32) string {
	if event == "" {
		return fmt.Sprintf("0x%08x", code)
	}
	return event
}
