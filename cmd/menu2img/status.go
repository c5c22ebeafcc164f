package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/loykin/menu2img-desktop/pkg/client"
)

func newClient(flags *StatusFlags) *client.Client {
	return client.New(client.Config{BaseURL: flags.URL, Timeout: flags.Timeout})
}

func runStatus(ctx context.Context, w io.Writer, flags *StatusFlags) error {
	st, err := newClient(flags).Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if flags.JSON {
		return printJSON(w, st)
	}
	b := st.Backend
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "STATE\t%s\n", b.State)
	_, _ = fmt.Fprintf(tw, "READY\t%t\n", b.Ready)
	_, _ = fmt.Fprintf(tw, "COMMAND\t%s\n", b.Command)
	if b.Running {
		_, _ = fmt.Fprintf(tw, "PID\t%d\n", b.PID)
	}
	if !b.StartedAt.IsZero() {
		_, _ = fmt.Fprintf(tw, "STARTED\t%s\n", b.StartedAt.Format(time.RFC3339))
	}
	if !b.ReadyAt.IsZero() {
		_, _ = fmt.Fprintf(tw, "READY AFTER\t%s\n", b.ReadyAt.Sub(b.StartedAt).Round(time.Millisecond))
	}
	if b.ExitCode >= 0 {
		_, _ = fmt.Fprintf(tw, "EXIT CODE\t%d\n", b.ExitCode)
	}
	if b.LastError != "" {
		_, _ = fmt.Fprintf(tw, "LAST ERROR\t%s\n", b.LastError)
	}
	if r := st.Resources; r != nil {
		_, _ = fmt.Fprintf(tw, "CPU\t%.1f%%\n", r.CPUPercent)
		_, _ = fmt.Fprintf(tw, "MEMORY\t%.1f MB\n", r.MemoryMB)
		_, _ = fmt.Fprintf(tw, "THREADS\t%d\n", r.NumThreads)
	}
	if st.Version != "" {
		_, _ = fmt.Fprintf(tw, "VERSION\t%s\n", st.Version)
	}
	return tw.Flush()
}

func runLogs(ctx context.Context, w io.Writer, flags *StatusFlags) error {
	logs, err := newClient(flags).Logs(ctx, client.LogsQuery{N: flags.Lines, Since: flags.Since})
	if err != nil {
		return fmt.Errorf("logs: %w", err)
	}
	for _, l := range logs.Lines {
		_, _ = fmt.Fprintf(w, "%d %s [%s] %s\n", l.Seq, l.Time.Format(time.TimeOnly), l.Stream, l.Text)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
