package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/grovetools/packreload/cli"
	"github.com/grovetools/packreload/internal/daemon/pidfile"
	"github.com/grovetools/packreload/internal/host"
	"github.com/grovetools/packreload/logging"
	"github.com/grovetools/packreload/pkg/paths"
	"github.com/grovetools/packreload/pkg/process"
	"github.com/spf13/cobra"
)

// NewStopCmd returns the stop command.
func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running reloader",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Reloader is not running")
				return nil
			}
			if err := process.Terminate(pid); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}

// NewStatusCmd returns the status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the running reloader",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			out := cmd.OutOrStdout()
			if !running {
				fmt.Fprintln(out, "Reloader is not running")
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			st, err := fetchStatus(ctx, paths.SocketPath())
			if err != nil {
				return fmt.Errorf("reloader is running (PID %d) but not answering: %w", pid, err)
			}

			if cli.GetOptions(cmd).JSONOutput {
				return writeJSON(out, st)
			}
			printStatus(logging.NewPrettyLogger(out), pid, st)
			return nil
		},
	}
}

// fetchStatus reads /api/status over the local socket.
func fetchStatus(ctx context.Context, socketPath string) (host.State, error) {
	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	}

	var st host.State
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://packreload/api/status", nil)
	if err != nil {
		return st, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return st, fmt.Errorf("status request returned %d: %s", resp.StatusCode, body)
	}
	err = json.NewDecoder(resp.Body).Decode(&st)
	return st, err
}

func printStatus(p *logging.PrettyLogger, pid int, st host.State) {
	p.Success(fmt.Sprintf("Reloader is running (PID %d)", pid))
	p.Field("Uptime", time.Since(st.StartedAt).Round(time.Second))
	p.Field("Ready", st.Ready)
	if st.Version != "" {
		p.Field("Compiler", st.Version)
	}
	if st.Bootstrap != "" {
		p.ErrorPretty("Bootstrap failed", fmt.Errorf("%s", st.Bootstrap))
	}
	if !st.Watermark.IsZero() {
		p.Field("Watermark", st.Watermark.Format(time.RFC3339))
	}
	p.Field("Listeners", st.Listeners)
	p.Field("Pending notifications", st.Pending)
	p.Field("Datapacks", len(st.Packs))

	names := make([]string, 0, len(st.Packages))
	for name := range st.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ps := st.Packages[name]
		line := fmt.Sprintf("%s (%d compiles, %s)", ps.LastEvent, ps.Compiles, ps.At.Format(time.Kitchen))
		if ps.Error != "" {
			line += ": " + ps.Error
		}
		p.Field(name, line)
	}
}
