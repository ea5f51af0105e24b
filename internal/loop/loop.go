// Package loop runs the learning loop: simulated calls against a roster of
// personas, analysis of each call, and script improvement between calls.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/callcoach/internal/analysis"
	"github.com/apresai/callcoach/internal/assembly"
	"github.com/apresai/callcoach/internal/dialogue"
	"github.com/apresai/callcoach/internal/improve"
	"github.com/apresai/callcoach/internal/metrics"
	"github.com/apresai/callcoach/internal/observability"
	"github.com/apresai/callcoach/internal/persona"
	"github.com/apresai/callcoach/internal/progress"
	"github.com/apresai/callcoach/internal/script"
	"github.com/apresai/callcoach/internal/store"
	"github.com/apresai/callcoach/internal/tts"
)

var tracer = otel.Tracer("callcoach/loop")

const finalizeTimeout = 30 * time.Second

// Archiver copies a finished call somewhere outside the local store.
type Archiver interface {
	ArchiveCall(ctx context.Context, rec store.CallRecord) error
}

// Deps are the collaborators of a Runner. Store, Archive, Speech, Assembler
// and Uploader are optional.
type Deps struct {
	Roster    persona.Roster
	Dialogue  *dialogue.Manager
	Responder persona.Responder
	Analysis  *analysis.Engine
	Improve   *improve.Engine
	Metrics   *metrics.Recorder
	Store     *store.Store
	Archive   Archiver
	Speech    tts.Provider
	Voices    tts.VoiceMap
	Assembler assembly.Assembler
	Uploader  Uploader
	Logger    *slog.Logger
}

// Options control a run.
type Options struct {
	Iterations int
	MaxTurns   int
	// Script is the starting script; the zero value selects script.Initial().
	Script     script.Script
	OutputDir  string // reports go to <OutputDir>/reports
	AudioDir   string
	OnProgress progress.Callback
}

// Runner owns the current script and its version log.
type Runner struct {
	deps Deps
	opts Options
	log  *slog.Logger
	now  func() time.Time

	mu       sync.Mutex
	versions *script.VersionLog
}

// NewRunner validates deps and opts and prepares a runner.
func NewRunner(deps Deps, opts Options) (*Runner, error) {
	if deps.Dialogue == nil || deps.Responder == nil || deps.Analysis == nil || deps.Improve == nil {
		return nil, fmt.Errorf("loop: dialogue, responder, analysis and improve are required")
	}
	if len(deps.Roster.Personas) == 0 {
		return nil, fmt.Errorf("loop: persona roster is empty")
	}
	if opts.Iterations < 1 {
		opts.Iterations = 1
	}
	if opts.MaxTurns < 1 {
		return nil, fmt.Errorf("loop: max turns must be at least 1, got %d", opts.MaxTurns)
	}
	if opts.OnProgress == nil {
		opts.OnProgress = progress.NopCallback
	}
	if opts.Script.Version == 0 {
		opts.Script = script.Initial()
	}
	if err := opts.Script.Validate(); err != nil {
		return nil, fmt.Errorf("loop: starting script: %w", err)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Runner{
		deps:     deps,
		opts:     opts,
		log:      deps.Logger.With("component", "loop"),
		now:      time.Now,
		versions: script.NewVersionLog(opts.Script),
	}, nil
}

// Script returns the script currently in use.
func (r *Runner) Script() script.Script {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.versions.Current()
}

// Revisions returns the script history of this runner.
func (r *Runner) Revisions() []script.Revision {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.versions.Revisions()
}

// Performance returns the counters accumulated so far.
func (r *Runner) Performance() metrics.Performance {
	return r.deps.Metrics.Performance()
}

// Run plays opts.Iterations calls, cycling through the roster, and returns
// the final report. A failed call is skipped and the loop moves on with the
// same script. Cancellation stops the loop; the report for the calls made so
// far is still written and returned along with the context error.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	start := r.now()
	runID := NewRunID(start)
	n := r.opts.Iterations
	log := r.log.With("run_id", runID)
	log.InfoContext(ctx, "run started", "iterations", n, "personas", len(r.deps.Roster.Personas))

	if r.deps.Store != nil {
		if err := r.deps.Store.StartRun(ctx, runID, n); err != nil {
			return Report{}, &StageError{Stage: StageStore, Message: "failed to record run", Err: err}
		}
		if err := r.deps.Store.SaveRevision(ctx, runID, r.Revisions()[0]); err != nil {
			return Report{}, &StageError{Stage: StageStore, Message: "failed to record initial script", Err: err}
		}
	}
	r.deps.Metrics.SetScriptVersion(r.Script().Version)

	var (
		records []store.CallRecord
		runErr  error
	)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		p := r.deps.Roster.At(i)
		r.opts.OnProgress(progress.NewEvent(progress.StageCall,
			fmt.Sprintf("Calling %s (%s)", p.Name, p.ID), i+1, n, start))

		rec, err := r.call(ctx, runID, i, p)
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			log.WarnContext(ctx, "call skipped", "iteration", i+1, "persona", p.ID, "error", err)
			r.deps.Metrics.ObserveSkipped()
			ev := progress.NewEvent(progress.StageSkipped, "Call skipped", i+1, n, start)
			ev.Error = err
			r.opts.OnProgress(ev)
			continue
		}
		records = append(records, rec)
		r.deps.Metrics.ObserveCall(rec.Analysis, len(rec.Transcript.Turns))

		ev := progress.NewEvent(progress.StageAnalysis,
			fmt.Sprintf("%s: %s", p.Name, rec.Analysis.Outcome), i+1, n, start)
		ev.Effectiveness = rec.Analysis.Effectiveness
		r.opts.OnProgress(ev)

		if i == n-1 {
			continue
		}
		if err := r.improve(ctx, runID, rec); err != nil {
			var se *StageError
			if errors.As(err, &se) && se.Stage == StageImprove {
				log.WarnContext(ctx, "script revision rejected", "version", r.Script().Version, "error", err)
			} else {
				log.WarnContext(ctx, "script version not persisted", "error", err)
			}
		}
		r.opts.OnProgress(progress.NewEvent(progress.StageImprove,
			fmt.Sprintf("Script v%d", r.Script().Version), i+1, n, start))
	}

	// The report is written even when the run was interrupted.
	fctx, cancel := context.WithTimeout(observability.DetachTraceContext(ctx), finalizeTimeout)
	defer cancel()
	report := BuildReport(runID, r.now(), records, r.Performance(), r.Revisions())
	if err := r.publish(fctx, &report); err != nil {
		return report, errors.Join(runErr, err)
	}

	perf := report.Performance
	log.InfoContext(ctx, "run finished",
		"calls", perf.Calls, "skipped", perf.Skipped,
		"success_rate", perf.SuccessRate, "avg_effectiveness", perf.AverageEffectiveness,
		"final_version", report.FinalScript.Version, "elapsed", time.Since(start).Round(time.Millisecond))

	done := progress.NewEvent(progress.StageComplete, "Run complete", n, n, start)
	done.ReportFile = report.File
	done.SuccessRate = perf.SuccessRate
	r.opts.OnProgress(done)
	return report, runErr
}

// Call plays a single call with the current script against p. It does not
// touch the script. iteration is 0-based.
func (r *Runner) Call(ctx context.Context, runID string, iteration int, p persona.Persona) (store.CallRecord, error) {
	return r.call(ctx, runID, iteration, p)
}

func (r *Runner) call(ctx context.Context, runID string, iteration int, p persona.Persona) (rec store.CallRecord, err error) {
	s := r.Script()
	started := r.now()
	callID := NewCallID(started)

	ctx, span := tracer.Start(ctx, "loop.call")
	defer span.End()
	span.SetAttributes(
		attribute.String("call.id", callID),
		attribute.String("persona.id", p.ID),
		attribute.Int("script.version", s.Version),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "call failed")
		}
	}()

	var opts dialogue.Options
	var voice *trackedVoice
	if r.deps.Speech != nil {
		if err := os.MkdirAll(r.opts.AudioDir, 0o755); err != nil {
			return store.CallRecord{}, &StageError{Stage: StageTTS, Message: "failed to create audio directory", Err: err}
		}
		voice = &trackedVoice{inner: tts.NewFileVoice(r.deps.Speech, r.deps.Voices, r.opts.AudioDir, callID, r.deps.Logger)}
		opts.Voice = voice
	}

	t, err := r.deps.Dialogue.Run(ctx, s, p, r.deps.Responder, r.opts.MaxTurns, opts)
	if err != nil {
		stage := StageDialogue
		if voice != nil && voice.failed {
			stage = StageTTS
		}
		return store.CallRecord{}, &StageError{Stage: stage, Message: "call did not complete", Err: err}
	}

	a := r.deps.Analysis.Analyze(ctx, t)
	span.SetAttributes(
		attribute.Float64("analysis.effectiveness", a.Effectiveness),
		attribute.String("analysis.outcome", string(a.Outcome)),
	)

	rec = store.CallRecord{
		CallID:        callID,
		RunID:         runID,
		Iteration:     iteration,
		PersonaID:     p.ID,
		PersonaName:   p.Name,
		ScriptVersion: s.Version,
		Transcript:    t,
		Analysis:      a,
		AudioFiles:    t.AudioFiles(),
		StartedAt:     started,
	}
	if r.deps.Assembler != nil && len(rec.AudioFiles) > 0 {
		out := filepath.Join(r.opts.AudioDir, callID+".mp3")
		if err := r.deps.Assembler.Assemble(ctx, rec.AudioFiles, filepath.Join(r.opts.AudioDir, callID), out); err != nil {
			r.log.WarnContext(ctx, "recording not assembled", "call_id", callID, "error", err)
		} else {
			rec.Recording = out
		}
	}
	rec.EndedAt = r.now()

	if r.deps.Store != nil && runID != "" {
		if err := r.deps.Store.SaveCall(ctx, rec); err != nil {
			r.log.WarnContext(ctx, "call not saved", "call_id", callID,
				"error", &StageError{Stage: StageStore, Message: "failed to save call", Err: err})
		}
	}
	if r.deps.Archive != nil && runID != "" {
		if err := r.deps.Archive.ArchiveCall(ctx, rec); err != nil {
			r.log.WarnContext(ctx, "call not archived", "call_id", callID, "error", err)
		}
	}

	r.log.InfoContext(ctx, "call analyzed",
		"call_id", callID, "persona", p.ID, "script_version", s.Version,
		"turns", len(t.Turns), "end_reason", t.EndReason,
		"outcome", a.Outcome, "effectiveness", a.Effectiveness, "source", a.Source)
	return rec, nil
}

func (r *Runner) improve(ctx context.Context, runID string, rec store.CallRecord) error {
	cur := r.Script()
	next, strategy := r.deps.Improve.Improve(ctx, cur, rec.Analysis, rec.Transcript.Lines())

	r.mu.Lock()
	err := r.versions.Append(next, string(strategy))
	var rev script.Revision
	if err == nil {
		revs := r.versions.Revisions()
		rev = revs[len(revs)-1]
	}
	r.mu.Unlock()
	if err != nil {
		return &StageError{Stage: StageImprove, Message: "rejected script revision", Err: err}
	}

	r.deps.Metrics.ObserveImprovement(next.Version)
	if r.deps.Store != nil {
		if err := r.deps.Store.SaveRevision(ctx, runID, rev); err != nil {
			return &StageError{Stage: StageStore, Message: "failed to save script version", Err: err}
		}
	}
	return nil
}

// publish saves the report file and uploads it when an uploader is set.
func (r *Runner) publish(ctx context.Context, report *Report) error {
	if r.opts.OutputDir == "" {
		return nil
	}
	path, data, err := report.Save(r.opts.OutputDir)
	if err != nil {
		return &StageError{Stage: StageReport, Message: "failed to save report", Err: err}
	}
	report.File = path
	r.log.InfoContext(ctx, "report saved", "path", path)

	if r.deps.Uploader != nil {
		url, err := r.deps.Uploader.Upload(ctx, filepath.Base(path), data)
		if err != nil {
			return &StageError{Stage: StageReport, Message: "failed to upload report", Err: err}
		}
		report.URL = url
		r.log.InfoContext(ctx, "report uploaded", "url", url)
	}
	return nil
}

// trackedVoice remembers whether speech synthesis failed so the call's
// failure can be attributed to the tts stage.
type trackedVoice struct {
	inner  dialogue.Voice
	failed bool
}

func (v *trackedVoice) Speak(ctx context.Context, who dialogue.Speaker, turn int, text string) (string, error) {
	path, err := v.inner.Speak(ctx, who, turn, text)
	if err != nil {
		v.failed = true
	}
	return path, err
}
