package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"runbook/internal/api"
	"runbook/internal/config"
	"runbook/internal/executor"
	"runbook/internal/gate"
	"runbook/internal/logger"
	"runbook/internal/models"
	"runbook/internal/patterns"
	"runbook/internal/runner"
	"runbook/internal/storage"
	"runbook/internal/workflow"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	timeoutStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "runbook",
		Short: "Sandboxed script workflows with execution history",
		Long:  "Runbook stores short scripts, runs them as timeout-bounded child processes, and mines the failure history for recurring patterns.",
	}

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cobra.OnInitialize(func() {
		if lvl, err := rootCmd.PersistentFlags().GetString("log-level"); err == nil {
			logger.SetLevel(lvl)
		}
	})

	rootCmd.AddCommand(newSaveCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newPatternsCommand())
	rootCmd.AddCommand(newDeleteCommand())
	rootCmd.AddCommand(newServeCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg       *config.Config
	history   *storage.Storage
	workflows *workflow.Store
	exec      *executor.Executor
}

func setup() (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	history, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	workflows, err := workflow.NewStore(cfg.WorkflowsDir)
	if err != nil {
		history.Close()
		return nil, err
	}

	shell := runner.NewShell(gate.New(nil, nil), cfg.DefaultTimeout)
	script := runner.NewScript(cfg.PythonBin, cfg.DefaultTimeout)
	exec := executor.New(history, workflows, shell, script)

	return &app{cfg: cfg, history: history, workflows: workflows, exec: exec}, nil
}

func (a *app) Close() {
	a.history.Close()
}

func newSaveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Create or update a workflow from a file (or stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			file, _ := cmd.Flags().GetString("file")
			langFlag, _ := cmd.Flags().GetString("language")
			description, _ := cmd.Flags().GetString("description")
			timeout, _ := cmd.Flags().GetInt("timeout")

			lang, ok := models.ParseLanguage(langFlag)
			if !ok {
				return fmt.Errorf("unsupported language %q (want bash or python)", langFlag)
			}

			var code []byte
			var err error
			if file != "" {
				code, err = os.ReadFile(file)
			} else {
				code, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return fmt.Errorf("failed to read code: %w", err)
			}

			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			wf := &models.Workflow{
				Name:        name,
				Description: description,
				Language:    lang,
				Code:        string(code),
				Timeout:     timeout,
			}
			if err := a.workflows.Save(wf); err != nil {
				return err
			}

			fmt.Printf("Saved workflow %q (version %d)\n", wf.Name, wf.Version)
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "read code from this file instead of stdin")
	cmd.Flags().StringP("language", "l", "bash", "workflow language (bash or python)")
	cmd.Flags().StringP("description", "d", "", "workflow description")
	cmd.Flags().IntP("timeout", "t", 300, "execution timeout in seconds")
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			names, err := a.workflows.List()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Println("No workflows stored.")
				return nil
			}

			for _, name := range names {
				wf, err := a.workflows.Load(name)
				if err != nil || wf == nil {
					continue
				}
				fmt.Printf("%-24s %-8s v%-3d %s\n", wf.Name, wf.Language, wf.Version, dimStyle.Render(wf.Description))
			}
			return nil
		},
	}
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a workflow's metadata and code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			wf, err := a.workflows.Load(args[0])
			if err != nil {
				return err
			}
			if wf == nil {
				return fmt.Errorf("workflow %q not found", args[0])
			}

			fmt.Printf("Name:        %s\n", wf.Name)
			fmt.Printf("Description: %s\n", wf.Description)
			fmt.Printf("Language:    %s\n", wf.Language)
			fmt.Printf("Timeout:     %ds\n", wf.Timeout)
			fmt.Printf("Version:     %d\n", wf.Version)
			fmt.Printf("Updated:     %s\n", wf.UpdatedAt.Format(time.RFC3339))
			fmt.Printf("\n%s\n", wf.Code)
			return nil
		},
	}
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Execute a stored workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.exec.RunWorkflow(context.Background(), name)
			if err != nil && res == nil {
				return err
			}

			printExecution(res)

			// Recording failures should not hide the run outcome.
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}

			note := fmt.Sprintf("- %s: %s (%.1fs)", res.StartedAt.Format(time.RFC3339), res.Status, res.Duration)
			if err := a.workflows.AppendNotes(name, note); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to update notes: %v\n", err)
			}

			if res.Status.Failure() {
				os.Exit(1)
			}
			return nil
		},
	}
	return cmd
}

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [name]",
		Short: "Show execution history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			opts := storage.QueryOptions{Limit: limit}
			if len(args) > 0 {
				opts.WorkflowName = args[0]
			}
			if status != "" {
				opts.Status = models.ExecStatus(status)
			}

			results, err := a.history.QueryExecutions(opts)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No execution history found.")
				return nil
			}

			for _, res := range results {
				fmt.Printf("%s  %-24s %s  %6.1fs  %s\n",
					res.StartedAt.Format("2006-01-02 15:04:05"),
					res.WorkflowName,
					renderStatus(res.Status),
					res.Duration,
					dimStyle.Render(firstLine(res.ErrorMessage)),
				)
			}
			return nil
		},
	}

	cmd.Flags().String("status", "", "filter by status (success, failed, timeout)")
	cmd.Flags().Int("limit", 20, "maximum number of results")
	return cmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <name>",
		Short: "Show execution statistics for a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.history.Stats(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Total executions: %d\n", stats.Total)
			fmt.Printf("Successful:       %d\n", stats.Successful)
			fmt.Printf("Failed:           %d\n", stats.Failed)
			fmt.Printf("Success rate:     %.1f%%\n", stats.SuccessRate)
			fmt.Printf("Avg duration:     %.1fs\n", stats.AvgDuration)
			return nil
		},
	}
}

func newPatternsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns <name>",
		Short: "Mine the failure history for recurring patterns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minCount, _ := cmd.Flags().GetInt("min-count")

			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			miner := patterns.NewMiner(a.history)
			found, err := miner.ForWorkflow(args[0], minCount)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Println("No recurring failure patterns found.")
				return nil
			}

			for _, p := range found {
				fmt.Printf("%s  ×%d  last seen %s\n",
					failedStyle.Render(p.PatternType), p.Count, p.LastSeen.Format("2006-01-02 15:04"))
				for _, msg := range p.ErrorMessages {
					fmt.Printf("    %s\n", dimStyle.Render(firstLine(msg)))
				}
			}
			return nil
		},
	}

	cmd.Flags().Int("min-count", 2, "minimum occurrences to report a pattern")
	return cmd
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			deleted, err := a.workflows.Delete(args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("workflow %q not found", args[0])
			}

			fmt.Printf("Deleted workflow %q\n", args[0])
			return nil
		},
	}
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")

			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.ListenAddr
			}

			server := api.NewServer(a.exec, a.history, a.workflows)
			return server.Serve(addr)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default from RUNBOOK_LISTEN_ADDR)")
	return cmd
}

func printExecution(res *models.ExecutionResult) {
	fmt.Printf("%s  %s  %.1fs\n", renderStatus(res.Status), res.WorkflowName, res.Duration)
	if res.ExitCode != nil {
		fmt.Printf("exit code: %d\n", *res.ExitCode)
	}
	if res.Stdout != "" {
		fmt.Printf("\n%s\n", strings.TrimRight(res.Stdout, "\n"))
	}
	if res.Stderr != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", strings.TrimRight(res.Stderr, "\n"))
	}
	if res.ErrorMessage != "" && res.ErrorMessage != res.Stderr {
		fmt.Printf("\n%s\n", failedStyle.Render(res.ErrorMessage))
	}
}

func renderStatus(status models.ExecStatus) string {
	switch status {
	case models.ExecStatusSuccess:
		return successStyle.Render("success")
	case models.ExecStatusTimeout:
		return timeoutStyle.Render("timeout")
	case models.ExecStatusFailed:
		return failedStyle.Render("failed ")
	default:
		return string(status)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
