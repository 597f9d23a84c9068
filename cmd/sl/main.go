package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"time"

	"sl-go/internal/app"
	"sl-go/internal/config"
	"sl-go/internal/sl"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the defaults.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates an SLApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "sync", "autoscan").
func newApp(cmd *cobra.Command, operation, parameters string) (*app.SLApp, error) {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openApp(cmd, cfg, configPath, operation, parameters)
}

func openApp(cmd *cobra.Command, cfg *config.Config, configPath, operation, parameters string) (*app.SLApp, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewSLApp(cmd.Context(), cfg, app.Options{
		ConfigPath: configPath,
		Operation:  operation,
		Parameters: parameters,
		Verbose:    verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readSecret prompts on stderr and reads a line without echo when stdin is a terminal.
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printResult(r *sl.SyncResult) {
	if r.Volume != "" {
		fmt.Printf("Volume %s (%s)\n", r.Volume, r.VolumeID)
		fmt.Printf("  entries:   %d created, %d updated, %d unchanged, %d archived\n",
			r.Entries.Created, r.Entries.Updated, r.Entries.Unchanged, r.Entries.Archived)
	}
	fmt.Printf("  projects:  %d groups, %d created, %d updated, %d archived\n",
		r.Groups, r.Projects.Created, r.Projects.Updated, r.Projects.Archived)
	if r.Logs != nil {
		fmt.Printf("  anomalies: %d opened, %d reopened, %d resolved, %d open\n",
			r.Logs.Opened, r.Logs.Reopened, r.Logs.Resolved, len(r.Logs.OpenFindings))
		for _, name := range r.Logs.OpenFindings {
			fmt.Printf("    %s\n", name)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:          "sl",
	Short:        "Storage ledger for production volumes",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		name, _ := cmd.Flags().GetString("user")
		if name == "" {
			if u, err := user.Current(); err == nil {
				name = u.Username
			}
		}
		cfg := config.NewConfig(name, defaults["base_dir"])

		if page, _ := cmd.Flags().GetString("notion-page"); page != "" {
			if _, err := config.NotionPageID(page); err != nil {
				return err
			}
			cfg.Store.Type = "notion"
			cfg.Store.NotionParentPage = page
			token, err := readSecret("Notion token (empty to use SL_NOTION_TOKEN): ")
			if err != nil {
				return err
			}
			cfg.Store.NotionToken = token
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("User:     %s\n", cfg.User)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Store:    %s\n", cfg.Store.Type)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, configPath, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", configPath)
		fmt.Printf("User:       %s\n", cfg.User)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Store:      %s\n", cfg.Store.Type)
		if cfg.Store.Type == "notion" {
			fmt.Printf("  Parent:   %s\n", cfg.Store.NotionParentPage)
			for rel, id := range cfg.Store.NotionDatabases {
				fmt.Printf("  %-22s %s\n", rel+":", id)
			}
		}
		fmt.Printf("Queue:      %s\n", cfg.Queue.Type)
		for _, a := range cfg.Archives {
			fmt.Printf("Archive:    %s (%s)\n", a.Name, a.Type)
		}
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		fmt.Printf("Volumes:    %s\n", cfg.AutoScan.VolumesRoot)
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan PATH",
	Short: "Scan a mounted volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		doSync, _ := cmd.Flags().GetBool("sync")
		doQueue, _ := cmd.Flags().GetBool("queue")
		if doSync && doQueue {
			return errors.New("--sync and --queue are exclusive")
		}

		a, err := newApp(cmd, "scan", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Scan(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Scanned %s: %d projects, %d unassigned\n",
			report.VolumeName(), report.ScanInfo.ValidFolders, report.ScanInfo.UnassignedFolders)

		switch {
		case output != "":
			if err := app.WriteReportFile(output, report); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Report written to %s\n", output)
		case !doSync && !doQueue:
			return sl.WriteReport(os.Stdout, report)
		}

		if doQueue {
			return a.Enqueue(report)
		}
		if doSync {
			result, err := a.SyncReport(cmd.Context(), report)
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			printResult(result)
		}
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync FILE",
	Short: "Sync a scan report into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "sync", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.SyncFile(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		printResult(result)
		return nil
	},
}

// analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Recompute projects and anomalies from the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "analyze", "")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Analyze(cmd.Context())
		if err != nil {
			return fmt.Errorf("analyze failed: %w", err)
		}
		printResult(result)
		return nil
	},
}

// queue command
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage queued scan reports",
}

var queueAddCmd = &cobra.Command{
	Use:   "add FILE",
	Short: "Queue a scan report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := app.ReadReportFile(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(cmd, "queue add", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Enqueue(report); err != nil {
			return err
		}
		fmt.Printf("Queued report for %s\n", report.VolumeName())
		return nil
	},
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued scan reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "queue list", "")
		if err != nil {
			return err
		}
		defer a.Close()

		reports, err := a.QueuedReports()
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			fmt.Println("Queue is empty.")
			return nil
		}
		for _, r := range reports {
			fmt.Printf("%s  %-20s  %s\n", r.ID, r.VolumeName, r.ScanDate)
		}
		return nil
	},
}

var queueDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Sync every queued scan report",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "queue drain", "")
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.DrainQueue(cmd.Context())
		for _, r := range results {
			printResult(r)
		}
		if err != nil {
			return fmt.Errorf("drain stopped: %w", err)
		}
		fmt.Printf("Synced %d report(s)\n", len(results))
		return nil
	},
}

// autoscan command
var autoscanCmd = &cobra.Command{
	Use:   "autoscan",
	Short: "Scan and sync mounted production volumes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "autoscan", "")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.AutoScan(cmd.Context())
		if result != nil {
			if len(result.Plan.Candidates) == 0 {
				fmt.Println("No volumes need scanning.")
			}
			for _, r := range result.Synced {
				printResult(r)
			}
			for name, ferr := range result.Failed {
				fmt.Printf("FAILED %s: %v\n", name, ferr)
			}
		}
		if err != nil {
			return err
		}
		if len(result.Failed) > 0 {
			return fmt.Errorf("%d volume(s) failed", len(result.Failed))
		}
		return nil
	},
}

// volumes command
var volumesCmd = &cobra.Command{
	Use:   "volumes",
	Short: "List known volumes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "volumes", "")
		if err != nil {
			return err
		}
		defer a.Close()

		states, err := a.VolumeStates()
		if err != nil {
			return err
		}
		if len(states) == 0 {
			fmt.Println("No volumes recorded.")
			return nil
		}
		for _, s := range states {
			lastScan := "never"
			if s.LastScanAt.Valid {
				lastScan = s.LastScanAt.Time.Local().Format("2006-01-02 15:04:05")
			}
			mounted := ""
			if s.Mounted {
				mounted = "  [mounted]"
			}
			fmt.Printf("%-20s  %-19s  %s%s\n", s.Name, lastScan, s.RecordID, mounted)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "history", "")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No sync operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-12s  %s  %-8s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Local().Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Message,
			)
		}
		return nil
	},
}

// reports command
var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Browse archived scan reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list VOLUME",
	Short: "List archived reports of a volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "reports list", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.ListReports(args[0])
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No reports archived.")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var reportsGetCmd = &cobra.Command{
	Use:   "get VOLUME NAME",
	Short: "Print an archived report",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp(cmd, "reports get", args[0]+"/"+args[1])
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if app.ReportEncrypted(args[1]) {
			passphrase, err = readSecret("Passphrase: ")
			if err != nil {
				return err
			}
		}

		w := os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			defer f.Close()
			w = f
		}
		return a.GetReport(args[0], args[1], passphrase, w)
	},
}

// encryption command
var encryptionCmd = &cobra.Command{
	Use:   "encryption",
	Short: "Manage archived report encryption",
}

var encryptionSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate the key pair and enable encryption",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, configPath, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Encryption.Type == "" || cfg.Encryption.Type == "none" {
			cfg.Encryption.Type = "age"
		}

		passphrase, err := readSecret("New passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readSecret("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return errors.New("passphrases do not match")
		}

		a, err := openApp(cmd, cfg, configPath, "encryption setup", "")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetupEncryption(passphrase); err != nil {
			return err
		}
		if err := config.Save(configPath, cfg); err != nil {
			return err
		}
		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("user", "", "User recorded on scanned volumes (default: current user)")
	configInitCmd.Flags().String("notion-page", "", "Notion parent page id or URL; selects the notion store")

	// queue subcommands
	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueDrainCmd)

	// reports subcommands
	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsGetCmd)
	reportsGetCmd.Flags().StringP("output", "o", "", "Write the report to a file")

	encryptionCmd.AddCommand(encryptionSetupCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	scanCmd.Flags().Bool("sync", false, "Sync the report right after scanning")
	scanCmd.Flags().Bool("queue", false, "Queue the report for a later drain")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(autoscanCmd)
	rootCmd.AddCommand(volumesCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(encryptionCmd)
}
