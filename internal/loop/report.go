package loop

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/apresai/callcoach/internal/improve"
	"github.com/apresai/callcoach/internal/metrics"
	"github.com/apresai/callcoach/internal/script"
	"github.com/apresai/callcoach/internal/store"
)

const topObjections = 3

// ObjectionCount is how many calls raised an objection.
type ObjectionCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// CallSummary is one line of the report's call table.
type CallSummary struct {
	CallID        string  `json:"call_id"`
	PersonaID     string  `json:"persona_id"`
	PersonaName   string  `json:"persona_name"`
	ScriptVersion int     `json:"script_version"`
	Turns         int     `json:"turns"`
	EndReason     string  `json:"end_reason"`
	Outcome       string  `json:"outcome"`
	Effectiveness float64 `json:"effectiveness"`
	Recording     string  `json:"recording,omitempty"`
}

// Report summarizes a run.
type Report struct {
	RunID         string              `json:"run_id"`
	GeneratedAt   time.Time           `json:"generated_at"`
	Performance   metrics.Performance `json:"performance"`
	Improvement   float64             `json:"effectiveness_improvement"`
	TopObjections []ObjectionCount    `json:"top_objections"`
	Suggestions   []string            `json:"suggestions"`
	Calls         []CallSummary       `json:"calls"`
	Versions      []script.Revision   `json:"script_versions"`
	FinalScript   script.Script       `json:"final_script"`

	File string `json:"-"`
	URL  string `json:"-"`
}

// BuildReport assembles the report of a run from its completed calls.
// Improvement is the last call's effectiveness minus the first's.
func BuildReport(runID string, now time.Time, records []store.CallRecord, perf metrics.Performance, versions []script.Revision) Report {
	r := Report{
		RunID:         runID,
		GeneratedAt:   now.UTC(),
		Performance:   perf,
		TopObjections: []ObjectionCount{},
		Suggestions:   []string{},
		Calls:         make([]CallSummary, 0, len(records)),
		Versions:      versions,
	}
	if len(versions) > 0 {
		r.FinalScript = versions[len(versions)-1].Script
	}
	if len(records) > 1 {
		r.Improvement = records[len(records)-1].Analysis.Effectiveness - records[0].Analysis.Effectiveness
	}

	counts := map[string]int{}
	for _, rec := range records {
		a := rec.Analysis
		for _, tag := range a.Objections {
			counts[tag]++
		}
		for _, s := range improve.Suggestions(a) {
			if !slices.Contains(r.Suggestions, s) {
				r.Suggestions = append(r.Suggestions, s)
			}
		}
		r.Calls = append(r.Calls, CallSummary{
			CallID:        rec.CallID,
			PersonaID:     rec.PersonaID,
			PersonaName:   rec.PersonaName,
			ScriptVersion: rec.ScriptVersion,
			Turns:         len(rec.Transcript.Turns),
			EndReason:     string(rec.Transcript.EndReason),
			Outcome:       string(a.Outcome),
			Effectiveness: a.Effectiveness,
			Recording:     rec.Recording,
		})
	}
	r.TopObjections = rankObjections(counts, topObjections)
	return r
}

// rankObjections orders by count descending, then tag, and keeps limit.
func rankObjections(counts map[string]int, limit int) []ObjectionCount {
	out := make([]ObjectionCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, ObjectionCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Save writes the report to <dir>/reports/report_<run id>.json and returns
// the path and the encoded bytes.
func (r Report) Save(dir string) (string, []byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("encode report: %w", err)
	}
	reports := filepath.Join(dir, "reports")
	if err := os.MkdirAll(reports, 0o755); err != nil {
		return "", nil, fmt.Errorf("create reports dir: %w", err)
	}
	path := filepath.Join(reports, "report_"+r.RunID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", nil, fmt.Errorf("write report: %w", err)
	}
	return path, data, nil
}

// Print renders a styled summary of the report.
func (r Report) Print(w io.Writer) {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	label := lipgloss.NewStyle().Width(22).Foreground(lipgloss.Color("#626262"))
	value := lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("#555555")).Italic(true)
	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	p := r.Performance
	row := func(k, v string) string { return label.Render(k) + value.Render(v) }
	lines := []string{
		title.Render("Learning run " + r.RunID),
		"",
		row("Calls", fmt.Sprintf("%d (%d skipped)", p.Calls, p.Skipped)),
		row("Success rate", fmt.Sprintf("%.0f%%", p.SuccessRate*100)),
		row("Avg effectiveness", fmt.Sprintf("%.2f", p.AverageEffectiveness)),
		row("Avg turns", fmt.Sprintf("%.1f", p.AverageTurns)),
		row("Improvement", fmt.Sprintf("%+.2f", r.Improvement)),
		row("Script versions", fmt.Sprintf("v1 -> v%d (%d revisions)", r.FinalScript.Version, p.Improvements)),
	}

	if len(r.TopObjections) > 0 {
		var tags []string
		for _, o := range r.TopObjections {
			tags = append(tags, fmt.Sprintf("%s (%d)", o.Tag, o.Count))
		}
		lines = append(lines, row("Top objections", strings.Join(tags, ", ")))
	}

	if len(r.Calls) > 0 {
		lines = append(lines, "", title.Render("Calls"))
		for i, c := range r.Calls {
			lines = append(lines, fmt.Sprintf("%2d. %-8s v%-2d %-10s %-9s %.2f",
				i+1, c.PersonaName, c.ScriptVersion, c.EndReason, c.Outcome, c.Effectiveness))
		}
	}

	if len(r.Suggestions) > 0 {
		lines = append(lines, "", title.Render("Suggestions"))
		for _, s := range r.Suggestions {
			lines = append(lines, "- "+s)
		}
	}

	if r.File != "" {
		lines = append(lines, "", dim.Render("Report: "+r.File))
	}
	if r.URL != "" {
		lines = append(lines, dim.Render("Uploaded: "+r.URL))
	}

	fmt.Fprintln(w, box.Render(strings.Join(lines, "\n")))
}
