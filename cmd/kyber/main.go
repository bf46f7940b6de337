package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kokistudios/kyber/internal/entry"
	"github.com/kokistudios/kyber/internal/journal"
	kybermcp "github.com/kokistudios/kyber/internal/mcp"
	"github.com/kokistudios/kyber/internal/report"
	"github.com/kokistudios/kyber/internal/sheet"
	"github.com/kokistudios/kyber/internal/store"
	"github.com/kokistudios/kyber/internal/tracker"
	"github.com/kokistudios/kyber/internal/trend"
	"github.com/kokistudios/kyber/internal/ui"
)

// Set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func buildVersion() string {
	if commit == "none" {
		return version
	}
	return fmt.Sprintf("%s (%s, %s)", version, commit, date)
}

func main() {
	var noColor bool

	rootCmd := &cobra.Command{
		Use:           "kyber",
		Short:         "KYBER — weight and diet phase tracker",
		Long:          "A local CLI that logs daily weigh-ins against a calorie target, groups them into diet phases, and tells you whether the current phase is still moving the scale.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Init(noColor)
		},
	}

	rootCmd.Version = buildVersion()
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	// Command groups
	rootCmd.AddGroup(
		&cobra.Group{ID: "log", Title: "Log Commands:"},
		&cobra.Group{ID: "view", Title: "View Commands:"},
		&cobra.Group{ID: "config", Title: "Configuration:"},
	)

	addC := addCmd()
	addC.GroupID = "log"
	undoC := undoCmd()
	undoC.GroupID = "log"

	statusC := statusCmd()
	statusC.GroupID = "view"
	historyC := historyCmd()
	historyC.GroupID = "view"
	phasesC := phasesCmd()
	phasesC.GroupID = "view"
	reportC := reportCmd()
	reportC.GroupID = "view"
	exportC := exportCmd()
	exportC.GroupID = "view"

	initC := initCmd()
	initC.GroupID = "config"
	configC := configCmd()
	configC.GroupID = "config"
	doctorC := doctorCmd()
	doctorC.GroupID = "config"

	rootCmd.AddCommand(addC, undoC)
	rootCmd.AddCommand(statusC, historyC, phasesC, reportC, exportC)
	rootCmd.AddCommand(initC, configC, doctorC)
	rootCmd.AddCommand(completionCmd())
	rootCmd.AddCommand(mcpServeCmd())

	if err := rootCmd.Execute(); err != nil {
		ui.Error(err.Error())
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Initialize KYBER_HOME",
		Long:    "Create the KYBER_HOME directory (~/.kyber by default) with a default config.yaml. Run this once before using any other kyber commands.",
		Example: "  kyber init\n  kyber init --force",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := store.Home()
			if err := store.Init(home, force); err != nil {
				return err
			}
			ui.LogoWithTagline("weigh in, stay honest")
			ui.Success("kyber initialized")
			ui.Detail("Home:", home)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Reinitialize even if KYBER_HOME already exists")
	return cmd
}

func loadStore() (*store.Store, error) {
	s, err := store.Load(store.Home())
	if err != nil {
		return nil, fmt.Errorf("kyber not initialized — run 'kyber init' first: %w", err)
	}
	if err := ui.SetLevel(s.Config.Log.Level); err != nil {
		return nil, err
	}
	return s, nil
}

func openTracker() (*tracker.Tracker, error) {
	s, err := loadStore()
	if err != nil {
		return nil, err
	}
	t, err := tracker.Open(s, ui.Logger)
	if err != nil {
		return nil, err
	}
	ui.Logger.Debug("Opened log", "backend", s.Config.Storage.Backend, "path", s.DataPath())
	return t, nil
}

// status returns the current view. A trend that cannot be fitted is logged
// and the view is still returned; only store failures are errors.
func status(ctx context.Context, t *tracker.Tracker) (journal.View, error) {
	v, err := t.Status(ctx)
	var se *tracker.StoreError
	if errors.As(err, &se) {
		return v, err
	}
	if err != nil {
		ui.Logger.Warn("Trend unavailable", "err", err)
	}
	return v, nil
}

func addCmd() *cobra.Command {
	var (
		dateFlag  string
		weight    float64
		calories  int
		deviation int
		pick      bool
	)
	cmd := &cobra.Command{
		Use:     "add",
		Aliases: []string{"log"},
		Short:   "Record today's weigh-in",
		Long: "Record one day: body weight, the calorie target you are following, and any surplus eaten above it. " +
			"Changing the calorie target starts a new phase. The day after a deviation is kept in the log but excluded from the trend.",
		Example: `  kyber add --weight 81.4
  kyber add --weight 81.4 --calories 2200
  kyber add --weight 81.9 --deviation 1500 --date 03/03/2026
  kyber add --weight 81.9 --pick`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("weight") {
				return fmt.Errorf("--weight is required")
			}
			t, err := openTracker()
			if err != nil {
				return err
			}
			defer t.Close()

			ctx := cmd.Context()
			c := entry.Candidate{Weight: weight, CalorieTarget: calories, DeviationAmount: deviation}
			if dateFlag != "" {
				d, err := entry.ParseDate(dateFlag)
				if err != nil {
					return err
				}
				c.Date = d
			}
			if pick {
				amount, err := ui.PickDeviation("Calories eaten above target today?", t.Menu())
				if errors.Is(err, ui.ErrCancelled) {
					ui.Warning("Nothing recorded.")
					return nil
				}
				if err != nil {
					return err
				}
				c.DeviationAmount = amount
			}

			e, err := t.Record(ctx, c)
			if err != nil {
				return err
			}

			ui.Success(fmt.Sprintf("Saved, current phase %d", e.PhaseID))
			ui.Detail("Date:", entry.FormatDate(e.Date))
			ui.Detail("Weight:", fmt.Sprintf("%.1f kg", e.Weight))
			ui.Detail("Target:", fmt.Sprintf("%d kcal", e.CalorieTarget))
			if e.DeviationAmount > 0 {
				ui.Detail("Deviation:", ui.DeviationLabel(e.DeviationAmount))
			}
			if e.Smoothed {
				ui.Info("Excluded from the trend: yesterday had a deviation.")
			}

			v, err := status(ctx, t)
			if err != nil {
				return err
			}
			if v.Verdict.Kind == trend.Stalled {
				ui.Warning("The current phase has stalled. Run 'kyber status' for details.")
				ui.Notify("kyber", "Weight trend stalled. Consider talking to a professional.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dateFlag, "date", "", "Day of the weigh-in, dd/mm/yyyy or yyyy-mm-dd (default today)")
	cmd.Flags().Float64VarP(&weight, "weight", "w", 0, "Body weight in kg")
	cmd.Flags().IntVarP(&calories, "calories", "c", 0, "Calorie target in kcal (default: previous target)")
	cmd.Flags().IntVarP(&deviation, "deviation", "d", 0, "Calories eaten above target, one of the deviation menu")
	cmd.Flags().BoolVar(&pick, "pick", false, "Choose the deviation amount from the menu interactively")
	cmd.MarkFlagsMutuallyExclusive("deviation", "pick")
	return cmd
}

func undoCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Delete the most recent entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := openTracker()
			if err != nil {
				return err
			}
			defer t.Close()

			ctx := cmd.Context()
			last, err := t.History(ctx, 1)
			if err != nil {
				return err
			}
			if len(last) == 0 {
				ui.EmptyState("Nothing to undo: the log is empty.")
				return nil
			}

			if !yes {
				e := last[0]
				prompt := fmt.Sprintf("Delete the entry for %s (%.1f kg, phase %d)?", entry.FormatDate(e.Date), e.Weight, e.PhaseID)
				ok, err := ui.Confirm(prompt)
				if err != nil {
					return err
				}
				if !ok {
					ui.Info("Kept.")
					return nil
				}
			}

			removed, err := t.Undo(ctx)
			if err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Removed the entry for %s (%.1f kg)", entry.FormatDate(removed.Date), removed.Weight))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func statusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current phase, its chart and the trend verdict",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := openTracker()
			if err != nil {
				return err
			}
			defer t.Close()

			v, err := status(cmd.Context(), t)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			}

			ui.CommandBanner("STATUS", "")
			if !v.HasData {
				ui.EmptyState("The log is empty. Record a day with 'kyber add --weight <kg>'.")
				return nil
			}

			ui.KeyValue("Phase", strconv.Itoa(v.Phase))
			ui.KeyValue("Target", fmt.Sprintf("%d kcal", v.Last.CalorieTarget))
			ui.KeyValue("Last", fmt.Sprintf("%.1f kg on %s", v.Last.Weight, entry.FormatDate(v.Last.Date)))

			ui.SectionHeader("Clean readings")
			ui.Chart(v.Chart)
			fmt.Fprintln(os.Stderr)
			ui.VerdictBanner(v.Verdict, v.Params)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List logged entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := openTracker()
			if err != nil {
				return err
			}
			defer t.Close()

			h, err := t.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(h) == 0 {
				ui.EmptyState("No entries yet.")
				return nil
			}

			rows := make([][]string, 0, len(h))
			for _, e := range h {
				smoothed := ""
				if e.Smoothed {
					smoothed = ui.Dim("smoothed")
				}
				rows = append(rows, []string{
					entry.FormatDate(e.Date),
					fmt.Sprintf("%.1f", e.Weight),
					strconv.Itoa(e.CalorieTarget),
					ui.DeviationLabel(e.DeviationAmount),
					strconv.Itoa(e.PhaseID),
					smoothed,
				})
			}
			ui.Table([]string{"DATE", "KG", "TARGET", "DEVIATION", "PHASE", ""}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the most recent N entries")
	return cmd
}

func phasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "phases",
		Short: "Summarize every calorie phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := openTracker()
			if err != nil {
				return err
			}
			defer t.Close()

			phases, err := t.Phases(cmd.Context())
			if err != nil {
				return err
			}
			if len(phases) == 0 {
				ui.EmptyState("No phases yet.")
				return nil
			}

			rows := make([][]string, 0, len(phases))
			for _, p := range phases {
				rows = append(rows, []string{
					strconv.Itoa(p.ID),
					strconv.Itoa(p.CalorieTarget),
					entry.FormatDate(p.FirstDate),
					entry.FormatDate(p.LastDate),
					strconv.Itoa(p.Entries),
					strconv.Itoa(p.Clean),
				})
			}
			ui.Table([]string{"PHASE", "TARGET", "FROM", "TO", "ENTRIES", "CLEAN"}, rows)
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	var (
		recent int
		raw    bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a Markdown report of the log",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := openTracker()
			if err != nil {
				return err
			}
			defer t.Close()

			ctx := cmd.Context()
			v, err := status(ctx, t)
			if err != nil {
				return err
			}
			h, err := t.History(ctx, recent)
			if err != nil {
				return err
			}

			md := report.Markdown(v, h, recent, time.Now())
			if raw {
				fmt.Print(md)
				return nil
			}
			ui.RenderMarkdown(md)
			return nil
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 14, "Number of recent entries to include")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print Markdown source instead of rendering it")
	return cmd
}

func exportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Export the log to a CSV or JSON file",
		Long:  "Write every entry, in recorded order, to a file. CSV output uses the same layout as the csv backend, so it can be used as a storage.path.",
		Example: `  kyber export ~/weights.csv
  kyber export --format json ~/weights.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := openTracker()
			if err != nil {
				return err
			}
			defer t.Close()

			ctx := cmd.Context()
			h, err := t.History(ctx, 0)
			if err != nil {
				return err
			}

			path := args[0]
			if format == "" {
				format = strings.TrimPrefix(filepath.Ext(path), ".")
			}
			switch format {
			case "csv":
				if err := sheet.New(path, ui.Logger).Write(ctx, h); err != nil {
					return err
				}
			case "json":
				data, err := json.MarshalIndent(h, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal entries: %w", err)
				}
				if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
			default:
				return fmt.Errorf("unsupported export format %q (use csv or json)", format)
			}
			ui.Success(fmt.Sprintf("Exported %d entries to %s", len(h), path))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "csv or json (default: from the file extension)")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and edit kyber configuration",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configSetCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(s.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  "Set a kyber configuration value. Valid keys: " + strings.Join(store.ConfigKeys, ", ") + ".",
		Example: `  kyber config set storage.backend sqlite
  kyber config set trend.min_samples 14
  kyber config set entry.deviation_menu 0,500,1000,2000`,
		Args: cobra.ExactArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return slices.Clone(store.ConfigKeys), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if err := s.SetConfigValue(args[0], args[1]); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Set %s = %s", args[0], args[1]))
			return nil
		},
	}
}

func doctorCmd() *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check health of KYBER_HOME and the log",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := store.Home()

			if fix {
				ui.CommandBanner("DOCTOR", "repair mode")
				fixed := store.FixIssues(home)
				for _, f := range fixed {
					ui.Success(fmt.Sprintf("[FIXED] %s", f))
				}
				if len(fixed) == 0 {
					ui.EmptyState("Nothing to fix.")
				}
			} else {
				ui.CommandBanner("DOCTOR", "health check")
			}

			issues := store.CheckHealth(home)
			if len(issues) == 0 {
				issues = append(issues, checkLog(cmd.Context())...)
			}

			if len(issues) == 0 {
				ui.Success("Everything looks good")
				return nil
			}

			hasError := false
			for _, issue := range issues {
				if issue.Severity == "error" {
					ui.Error(fmt.Sprintf("[ERR]  %s", issue.Message))
					hasError = true
				} else {
					ui.Warning(fmt.Sprintf("[WARN] %s", issue.Message))
				}
			}

			if hasError {
				os.Exit(2)
			}
			os.Exit(1)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Recreate a missing KYBER_HOME or config.yaml")
	return cmd
}

// checkLog reads the data file and reports rows the tracker would ignore.
func checkLog(ctx context.Context) []store.Issue {
	s, err := store.Load(store.Home())
	if err != nil {
		return []store.Issue{{Severity: "error", Message: err.Error()}}
	}
	t, err := tracker.Open(s, ui.Logger)
	if err != nil {
		return []store.Issue{{Severity: "error", Message: err.Error()}}
	}
	defer t.Close()

	valid, skipped, err := t.Check(ctx)
	if err != nil {
		return []store.Issue{{Severity: "error", Message: fmt.Sprintf("cannot read log at %s: %v", s.DataPath(), err)}}
	}
	ui.Detail("Log:", fmt.Sprintf("%s (%d entries)", s.DataPath(), valid))

	var issues []store.Issue
	if skipped > 0 {
		issues = append(issues, store.Issue{
			Severity: "warning",
			Message:  fmt.Sprintf("%d unparseable row(s) in %s are ignored", skipped, s.DataPath()),
		})
	}
	if _, err := t.Status(ctx); err != nil {
		issues = append(issues, store.Issue{Severity: "warning", Message: fmt.Sprintf("trend: %v", err)})
	}
	return issues
}

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish]",
		Short:     "Generate shell completion scripts",
		Long:      "Generate shell completion scripts for bash, zsh, or fish. Output the script to stdout for sourcing in your shell profile.",
		Example:   "  kyber completion bash > ~/.bashrc.d/kyber\n  kyber completion zsh > ~/.zfunc/_kyber\n  kyber completion fish > ~/.config/fish/completions/kyber.fish",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", args[0])
			}
		},
	}
}

func mcpServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "mcp-serve",
		Short:  "Run kyber as an MCP server",
		Long:   "Start kyber as a Model Context Protocol (MCP) server over stdio, so MCP-compatible assistants can read and record the log.",
		Hidden: true, // Not typically called directly by users
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := openTracker()
			if err != nil {
				return err
			}
			defer t.Close()

			server := kybermcp.NewServer(t, version)
			return server.Run(context.Background())
		},
	}
}
