package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/packreload/cli"
	"github.com/grovetools/packreload/logging"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

var (
	logComponentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	logErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	logWarnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	logMutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// NewLogsCmd returns the logs command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the reloader's operational log",
		Long: `Prints today's log file. Lines written by the json preset are
reformatted for reading; other lines are printed as they are.

Examples:
  # Follow the log
  packreload logs -f

  # Last 100 lines from the orchestrator only
  packreload logs --tail 100 --component orchestrator`,
		RunE: runLogsE,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().Int("tail", 50, "Number of lines to show from the end of the log (-1 for all)")
	cmd.Flags().StringSlice("component", nil, "Only show lines from these components")
	return cmd
}

func runLogsE(cmd *cobra.Command, args []string) error {
	settings, err := cli.LoadSettings(cmd)
	if err != nil {
		return err
	}
	follow, _ := cmd.Flags().GetBool("follow")
	tailLines, _ := cmd.Flags().GetInt("tail")
	components, _ := cmd.Flags().GetStringSlice("component")

	p := &logPrinter{
		out:        cmd.OutOrStdout(),
		jsonOutput: cli.GetOptions(cmd).JSONOutput,
		components: components,
	}

	path := logging.LogFilePath(settings.Logging)
	if path == "" {
		return fmt.Errorf("no log file configured")
	}
	cli.GetLogger(cmd).WithField("log_file", path).Debug("Reading log file")

	if err := printLastLines(path, tailLines, p); err != nil && !(follow && os.IsNotExist(err)) {
		return err
	}
	if !follow {
		return nil
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:   stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return fmt.Errorf("cannot follow %s: %w", path, err)
	}
	defer t.Cleanup()

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				continue
			}
			p.print(line.Text)
		}
	}
}

// printLastLines prints the last n lines of path, or all of it when n < 0.
func printLastLines(path string, n int, p *logPrinter) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n >= 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	for _, line := range lines {
		p.print(line)
	}
	return nil
}

type logPrinter struct {
	out        io.Writer
	jsonOutput bool
	components []string
}

func (p *logPrinter) print(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	var entry map[string]interface{}
	structured := json.Unmarshal([]byte(line), &entry) == nil
	component := ""
	if structured {
		component, _ = entry["component"].(string)
	} else {
		component = textComponent(line)
	}
	if !p.visible(component) {
		return
	}

	if p.jsonOutput || !structured {
		fmt.Fprintln(p.out, line)
		return
	}
	fmt.Fprintln(p.out, formatEntry(entry))
}

func (p *logPrinter) visible(component string) bool {
	if len(p.components) == 0 {
		return true
	}
	for _, c := range p.components {
		if c == component {
			return true
		}
	}
	return false
}

// textComponent extracts the component tag written by the text formatter,
// which follows the level tag: "<time> [INFO] [orchestrator] msg".
func textComponent(line string) string {
	fields := strings.Fields(line)
	tags := 0
	for _, f := range fields {
		if !strings.HasPrefix(f, "[") || !strings.HasSuffix(f, "]") {
			continue
		}
		tags++
		if tags == 2 {
			return strings.Trim(f, "[]")
		}
	}
	return ""
}

// formatEntry renders a logrus JSON entry as one readable line.
func formatEntry(entry map[string]interface{}) string {
	level, _ := entry["level"].(string)
	msg, _ := entry["msg"].(string)
	ts, _ := entry["time"].(string)
	component, _ := entry["component"].(string)

	levelText := strings.ToUpper(level)
	switch level {
	case "error", "fatal", "panic":
		levelText = logErrorStyle.Render(levelText)
	case "warning", "warn":
		levelText = logWarnStyle.Render("WARN")
	}

	var b strings.Builder
	if ts != "" {
		b.WriteString(logMutedStyle.Render(ts))
		b.WriteByte(' ')
	}
	b.WriteString(levelText)
	if component != "" {
		b.WriteString(" [" + logComponentStyle.Render(component) + "]")
	}
	b.WriteString(" " + msg)

	keys := make([]string, 0, len(entry))
	for k := range entry {
		switch k {
		case "level", "msg", "time", "component":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(logMutedStyle.Render(fmt.Sprintf(" %s=%v", k, entry[k])))
	}
	return b.String()
}
