package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/apresai/callcoach/internal/config"
	"github.com/apresai/callcoach/internal/progress"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:          "callcoach",
	Short:        "Simulate outreach calls to farmers and improve the agent script from each call",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		flagTUI = true
		return runLoop(cmd, args)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "callcoach %s\n", Version)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the learning loop: call, analyze, improve, repeat",
	RunE:  runLoop,
}

var (
	flagConfig      string
	flagLogLevel    string
	flagVerbose     bool
	flagTUI         bool
	flagIterations  int
	flagMaxTurns    int
	flagProvider    string
	flagModel       string
	flagTTS         string
	flagAssemble    bool
	flagDB          string
	flagOutput      string
	flagMetricsAddr string
	flagScriptFile  string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&flagProvider, "provider", "m", "", "Model provider: none, claude, openai, gemini, nova")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "Model id or alias for the provider")
	rootCmd.PersistentFlags().IntVar(&flagMaxTurns, "max-turns", 0, "Maximum turns per call")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (empty string disables persistence)")
	rootCmd.PersistentFlags().StringVar(&flagScriptFile, "script", "", "Start from this script JSON instead of the built-in one")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(improveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(personasCmd)
	rootCmd.AddCommand(listVoicesCmd)
	rootCmd.AddCommand(mcpCmd)

	runCmd.Flags().IntVarP(&flagIterations, "iterations", "n", 0, "Number of calls")
	runCmd.Flags().StringVarP(&flagTTS, "tts", "T", "", "TTS provider: none, mock, elevenlabs, google, polly")
	runCmd.Flags().BoolVar(&flagAssemble, "assemble", false, "Concatenate each call's clips into one MP3 (needs ffmpeg)")
	runCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output directory for reports and logs")
	runCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	runCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log to the terminal instead of showing a progress bar")
	runCmd.Flags().BoolVarP(&flagTUI, "tui", "t", false, "Interactive setup wizard for run options")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	// run-only flags; other commands reuse some of the same names.
	runChanged := func(name string) bool {
		return cmd.Name() == "run" && changed(name)
	}
	if changed("log-level") {
		cfg.Logging.Level = flagLogLevel
	}
	if changed("provider") {
		cfg.Model.Provider = flagProvider
	}
	if changed("model") {
		cfg.Model.Model = flagModel
	}
	if changed("max-turns") {
		cfg.Dialogue.MaxTurns = flagMaxTurns
	}
	if changed("db") {
		cfg.Storage.Path = flagDB
	}
	if runChanged("iterations") {
		cfg.Learning.Iterations = flagIterations
	}
	if runChanged("tts") {
		cfg.TTS.Provider = flagTTS
	}
	if runChanged("assemble") {
		cfg.TTS.Assemble = flagAssemble
	}
	if runChanged("output") {
		cfg.Report.OutputDir = flagOutput
	}
	if runChanged("metrics-addr") {
		cfg.Metrics.Addr = flagMetricsAddr
	}
	return cfg, cfg.Validate()
}

func runLoop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if flagTUI {
		if cfg, err = runInteractiveSetup(cfg); err != nil {
			return err
		}
	}

	ctx, cancel := withSignals(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg, setupOptions{quiet: !flagVerbose, withStore: true, withSpeech: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if addr := a.cfg.Metrics.Addr; addr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, addr, a.logger); err != nil {
				a.logger.Error("metrics endpoint stopped", "error", err)
			}
		}()
	}

	onProgress := progress.NopCallback
	var bar *progress.BarRenderer
	if !flagVerbose {
		bar = progress.NewBarRenderer(os.Stdout)
		logFile := a.cfg.Logging.File
		onProgress = func(e progress.Event) {
			if e.Stage == progress.StageComplete {
				e.LogFile = logFile
			}
			bar.Handle(e)
		}
	}

	runner, err := a.runner(ctx, onProgress)
	if err != nil {
		return err
	}
	report, runErr := runner.Run(ctx)
	if bar != nil {
		bar.Finish()
	}
	if report.RunID != "" {
		report.Print(cmd.OutOrStdout())
	}
	return runErr
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func withSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
