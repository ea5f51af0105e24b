package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/apresai/callcoach/internal/analysis"
	"github.com/apresai/callcoach/internal/apperr"
	"github.com/apresai/callcoach/internal/config"
	"github.com/apresai/callcoach/internal/dialogue"
	"github.com/apresai/callcoach/internal/improve"
	"github.com/apresai/callcoach/internal/mcpserver"
	"github.com/apresai/callcoach/internal/persona"
	"github.com/apresai/callcoach/internal/progress"
	"github.com/apresai/callcoach/internal/script"
	"github.com/apresai/callcoach/internal/store"
	"github.com/apresai/callcoach/internal/tts"
)

var (
	flagPersona        string
	flagJSON           bool
	flagAnalysisFile   string
	flagTranscriptFile string
	flagImproveOut     string
	flagRunID          string
	flagHTTPAddr       string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play one call against a persona without changing the script",
	RunE:  runSimulate,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <transcript.json>",
	Short: "Analyze a transcript (Transcript JSON or an array of farmer replies)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var improveCmd = &cobra.Command{
	Use:   "improve",
	Short: "Produce the next script version from a call analysis",
	RunE:  runImprove,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored runs, or the calls and script versions of one run",
	RunE:  runHistory,
}

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List the farmer personas",
	RunE:  runPersonas,
}

var listVoicesCmd = &cobra.Command{
	Use:   "list-voices",
	Short: "List available TTS voices",
	RunE:  runListVoices,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the call tools over MCP (stdio, or streamable HTTP with --http)",
	RunE:  runMCP,
}

func init() {
	simulateCmd.Flags().StringVarP(&flagPersona, "persona", "p", "", "Persona id (default: first in the roster)")
	simulateCmd.Flags().BoolVar(&flagJSON, "json", false, "Print the call record as JSON")

	improveCmd.Flags().StringVarP(&flagAnalysisFile, "analysis", "a", "", "Call analysis JSON (required)")
	improveCmd.Flags().StringVar(&flagTranscriptFile, "transcript", "", "Transcript JSON the analysis came from")
	improveCmd.Flags().StringVarP(&flagImproveOut, "output", "o", "", "Write the new script here instead of stdout")
	_ = improveCmd.MarkFlagRequired("analysis")

	historyCmd.Flags().StringVar(&flagRunID, "run", "", "Show one run; \"latest\" picks the most recent")

	mcpCmd.Flags().StringVar(&flagHTTPAddr, "http", "", "Listen address for streamable HTTP, e.g. :8000")
}

func loadStartScript(path string) (script.Script, error) {
	s, err := script.LoadScript(path)
	if err != nil {
		return script.Script{}, err
	}
	if err := s.Validate(); err != nil {
		return script.Script{}, fmt.Errorf("script %s: %w", path, err)
	}
	return s, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := withSignals(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg, setupOptions{quiet: true})
	if err != nil {
		return err
	}
	defer a.Close()

	p := a.roster.At(0)
	if flagPersona != "" {
		var ok bool
		if p, ok = a.roster.Get(flagPersona); !ok {
			return apperr.Invalid("persona", flagPersona, "not in roster")
		}
	}

	runner, err := a.runner(ctx, progress.NopCallback)
	if err != nil {
		return err
	}
	rec, err := runner.Call(ctx, "", 0, p)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return printJSON(out, rec)
	}
	fmt.Fprintf(out, "\nCall %s with %s (script v%d)\n\n", rec.CallID, p, rec.ScriptVersion)
	for _, line := range rec.Transcript.Lines() {
		fmt.Fprintf(out, "  %s\n", line)
	}
	printAnalysis(out, rec.Analysis)
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	t, err := parseTranscript(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := withSignals(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg, setupOptions{quiet: true})
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.analysisEngine().Analyze(ctx, t)
	return printJSON(cmd.OutOrStdout(), struct {
		analysis.CallAnalysis
		Suggestions []string `json:"suggestions"`
	}{result, nonNil(improve.Suggestions(result))})
}

// parseTranscript accepts either a Transcript object or a bare array of
// counterpart replies.
func parseTranscript(data []byte) (dialogue.Transcript, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return dialogue.Transcript{}, apperr.Invalid("transcript", "", "empty input")
	}
	if data[0] == '[' {
		var replies []string
		if err := json.Unmarshal(data, &replies); err != nil {
			return dialogue.Transcript{}, fmt.Errorf("parse replies: %w", err)
		}
		return dialogue.FromUtterances(replies), nil
	}
	var t dialogue.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return dialogue.Transcript{}, fmt.Errorf("parse transcript: %w", err)
	}
	return t, nil
}

func runImprove(cmd *cobra.Command, args []string) error {
	s := script.Initial()
	if flagScriptFile != "" {
		var err error
		if s, err = loadStartScript(flagScriptFile); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(flagAnalysisFile)
	if err != nil {
		return fmt.Errorf("read analysis: %w", err)
	}
	var result analysis.CallAnalysis
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("parse analysis %s: %w", flagAnalysisFile, err)
	}

	var lines []string
	if flagTranscriptFile != "" {
		data, err := os.ReadFile(flagTranscriptFile)
		if err != nil {
			return fmt.Errorf("read transcript: %w", err)
		}
		t, err := parseTranscript(data)
		if err != nil {
			return fmt.Errorf("%s: %w", flagTranscriptFile, err)
		}
		lines = t.Lines()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := withSignals(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg, setupOptions{quiet: true})
	if err != nil {
		return err
	}
	defer a.Close()

	next, strategy := a.improveEngine().Improve(ctx, s, result, lines)
	a.logger.Info("script improved", "from", s.Version, "to", next.Version, "strategy", strategy)

	if flagImproveOut != "" {
		if err := script.SaveScript(next, flagImproveOut); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Script v%d written to %s (%s)\n", next.Version, flagImproveOut, strategy)
		return nil
	}
	return printJSON(cmd.OutOrStdout(), next)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Storage.Path == "" {
		return apperr.Invalid("storage.path", "", "history needs a database")
	}
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if flagRunID == "" {
		runs, err := st.Runs(ctx, 20)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSTARTED\tCALLS")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d/%d\n", r.RunID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Calls, r.Iterations)
		}
		return tw.Flush()
	}

	runID := flagRunID
	if runID == "latest" {
		if runID, err = st.LatestRunID(ctx); err != nil {
			return err
		}
	}
	calls, err := st.Calls(ctx, runID)
	if err != nil {
		return err
	}
	revisions, err := st.Revisions(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s\n\n", runID)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCALL\tPERSONA\tSCRIPT\tOUTCOME\tSCORE")
	for _, c := range calls {
		fmt.Fprintf(tw, "%d\t%s\t%s\tv%d\t%s\t%.2f\n",
			c.Iteration, c.CallID, c.PersonaName, c.ScriptVersion, c.Analysis.Outcome, c.Analysis.Effectiveness)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nScript versions:")
	for _, rev := range revisions {
		notes := strings.Join(rev.Notes, "; ")
		if notes == "" {
			notes = "initial"
		}
		fmt.Fprintf(out, "  v%d  %s\n", rev.Version, notes)
	}
	return nil
}

func runPersonas(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	roster, err := loadRoster(cfg)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAGE\tLOCATION\tTYPE\tSKEPTICISM")
	for _, p := range roster.Personas {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%.1f\n", p.ID, p.Name, p.Age, p.Location, p.Type(), p.Skepticism)
	}
	return tw.Flush()
}

func loadRoster(cfg config.Config) (persona.Roster, error) {
	if cfg.PersonasFile == "" {
		return persona.DefaultRoster(), nil
	}
	return persona.LoadRoster(cfg.PersonasFile)
}

func runListVoices(cmd *cobra.Command, args []string) error {
	providers := []struct {
		name  string
		label string
	}{
		{"elevenlabs", "ELEVENLABS"},
		{"google", "GOOGLE CLOUD TTS"},
		{"polly", "AMAZON POLLY"},
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nAvailable voices:")

	for _, p := range providers {
		voices, err := tts.AvailableVoices(p.name)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "\n  %s\n", p.label)
		fmt.Fprintf(out, "  %s\n", strings.Repeat("─", 50))
		fmt.Fprintf(out, "  %-28s %-12s %-8s %s\n", "ID", "NAME", "GENDER", "DESCRIPTION")
		for _, v := range voices {
			def := ""
			if v.DefaultFor != "" {
				def = fmt.Sprintf(" (default %s)", v.DefaultFor)
			}
			fmt.Fprintf(out, "  %-28s %-12s %-8s %s%s\n", v.ID, v.Name, v.Gender, v.Description, def)
		}
	}
	fmt.Fprintln(out)
	return nil
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := withSignals(cmd.Context())
	defer cancel()

	// stdout carries the protocol, so logs stay on stderr.
	a, err := newApp(ctx, cfg, setupOptions{withStore: true})
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner(ctx, progress.NopCallback)
	if err != nil {
		return err
	}
	h := mcpserver.NewHandlers(runner, a.roster, a.analysisEngine(), a.store, a.logger)
	srv := mcpserver.New(h, Version, a.logger)

	errc := make(chan error, 1)
	go func() {
		if flagHTTPAddr != "" {
			errc <- srv.ServeHTTP(flagHTTPAddr)
			return
		}
		errc <- srv.ServeStdio()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		a.logger.Info("mcp server stopping")
		return nil
	}
}

func printAnalysis(w io.Writer, a analysis.CallAnalysis) {
	fmt.Fprintf(w, "\n  Outcome:       %s\n", a.Outcome)
	fmt.Fprintf(w, "  Sentiment:     %s\n", a.Sentiment)
	fmt.Fprintf(w, "  Interest:      %s\n", a.Interest)
	fmt.Fprintf(w, "  Effectiveness: %.2f (%s)\n", a.Effectiveness, a.Source)
	if len(a.Objections) > 0 {
		fmt.Fprintf(w, "  Objections:    %s\n", strings.Join(a.Objections, ", "))
	}
	for _, s := range improve.Suggestions(a) {
		fmt.Fprintf(w, "  - %s\n", s)
	}
	fmt.Fprintln(w)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
