package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/apresai/callcoach/internal/analysis"
	"github.com/apresai/callcoach/internal/assembly"
	"github.com/apresai/callcoach/internal/config"
	"github.com/apresai/callcoach/internal/dialogue"
	"github.com/apresai/callcoach/internal/improve"
	"github.com/apresai/callcoach/internal/lexicon"
	"github.com/apresai/callcoach/internal/llm"
	"github.com/apresai/callcoach/internal/loop"
	"github.com/apresai/callcoach/internal/metrics"
	"github.com/apresai/callcoach/internal/observability"
	"github.com/apresai/callcoach/internal/persona"
	"github.com/apresai/callcoach/internal/progress"
	"github.com/apresai/callcoach/internal/store"
	"github.com/apresai/callcoach/internal/tts"
)

// app holds the collaborators built from the configuration.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	lex       *lexicon.Lexicon
	roster    persona.Roster
	templates improve.Templates
	metrics   *metrics.Recorder
	client    llm.Completer
	store     *store.Store
	speech    tts.Provider

	closers []func() error
}

type setupOptions struct {
	// quiet sends logs to the log file only.
	quiet bool
	// withStore opens the SQLite database when one is configured.
	withStore bool
	// withSpeech builds the TTS provider when one is configured.
	withSpeech bool
}

// newApp loads everything a command needs. The caller must Close it.
func newApp(ctx context.Context, cfg config.Config, opts setupOptions) (*app, error) {
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	logFile := cfg.Logging.File
	if opts.quiet && logFile == "" {
		logFile = filepath.Join(cfg.Report.OutputDir, "logs", "callcoach.log")
	}
	logger, closeLog, err := observability.InitLogger(observability.LogOptions{
		Level: cfg.Logging.Level,
		File:  logFile,
		Quiet: opts.quiet,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeLog)
	a.cfg.Logging.File = logFile
	slog.SetDefault(logger)
	a.logger = logger

	if err := config.LoadSecrets(ctx, &a.cfg, logger); err != nil {
		logger.Warn("secrets not loaded, using environment only", "error", err)
	}
	cfg = a.cfg

	shutdown, err := observability.InitTracer(ctx, "callcoach", Version)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })

	a.lex = lexicon.Default()
	if cfg.LexiconFile != "" {
		if a.lex, err = lexicon.Load(cfg.LexiconFile); err != nil {
			return nil, err
		}
	}
	a.roster = persona.DefaultRoster()
	if cfg.PersonasFile != "" {
		if a.roster, err = persona.LoadRoster(cfg.PersonasFile); err != nil {
			return nil, err
		}
	}
	a.templates = improve.DefaultTemplates()
	if cfg.TemplatesFile != "" {
		if a.templates, err = improve.LoadTemplates(cfg.TemplatesFile); err != nil {
			return nil, err
		}
	}

	a.metrics = metrics.Default()

	if opts.withStore && cfg.Storage.Path != "" {
		st, err := store.Open(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		a.store = st
		a.closers = append(a.closers, st.Close)
	}

	if cfg.ModelEnabled() {
		client, err := llm.New(ctx, cfg.LLM())
		if err != nil {
			return nil, err
		}
		observers := []llm.Observer{a.metrics.Observer()}
		if a.store != nil {
			observers = append(observers, a.store.Observer(logger))
		}
		a.client = llm.Observe(client, observers...)
		logger.Info("model enabled", "provider", client.Name(), "model", cfg.Model.Model)
	}

	if opts.withSpeech && cfg.TTSEnabled() {
		p, err := tts.NewProvider(ctx, cfg.Speech())
		if err != nil {
			return nil, err
		}
		cached, err := tts.NewCachedProvider(p, cfg.TTS.CacheMB<<20)
		if err != nil {
			p.Close()
			return nil, err
		}
		a.speech = cached
		a.closers = append(a.closers, cached.Close)
	}

	ok = true
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) analysisEngine() *analysis.Engine {
	var model *analysis.ModelAnalyzer
	if a.client != nil && a.cfg.Learning.UseModelAnalysis {
		model = analysis.NewModelAnalyzer(a.client)
	}
	e := analysis.NewEngine(analysis.NewRuleAnalyzer(a.lex), model, a.logger)
	e.OnFallback = func(error) { a.metrics.ObserveFallback("analysis") }
	return e
}

func (a *app) improveEngine() *improve.Engine {
	var client llm.Completer
	if a.cfg.Learning.UseModelImprovement {
		client = a.client
	}
	e := improve.NewEngine(a.templates, client, a.logger)
	e.OnFallback = func(error) { a.metrics.ObserveFallback("improve") }
	return e
}

func (a *app) responder() persona.Responder {
	templates := persona.NewTemplateResponder(a.roster.Templates)
	if a.client == nil || !a.cfg.Learning.UseModelCounterpart {
		return templates
	}
	return persona.FallbackResponder{
		Primary:   persona.NewModelResponder(a.client, a.roster.Templates, a.logger),
		Secondary: templates,
		Logger:    a.logger,
	}
}

// runner wires a learning-loop runner from the app.
func (a *app) runner(ctx context.Context, onProgress progress.Callback) (*loop.Runner, error) {
	deps := loop.Deps{
		Roster:    a.roster,
		Dialogue:  dialogue.NewManager(a.lex, dialogue.DefaultRoutes(), a.logger),
		Responder: a.responder(),
		Analysis:  a.analysisEngine(),
		Improve:   a.improveEngine(),
		Metrics:   a.metrics,
		Store:     a.store,
		Logger:    a.logger,
	}
	if a.speech != nil {
		deps.Speech = a.speech
		deps.Voices = a.speech.DefaultVoices()
		if a.cfg.TTS.Assemble {
			asm := assembly.NewFFmpegAssembler()
			if asm.Available() {
				deps.Assembler = asm
			} else {
				a.logger.Warn("ffmpeg not found, call recordings will not be assembled")
			}
		}
	}
	if table := a.cfg.Storage.DynamoTable; table != "" {
		archive, err := store.NewDynamoArchive(ctx, table, a.cfg.Storage.Region)
		if err != nil {
			return nil, fmt.Errorf("call archive: %w", err)
		}
		deps.Archive = archive
	}
	if a.cfg.Report.S3Bucket != "" {
		up, err := loop.NewS3Uploader(ctx, a.cfg.Report.S3Bucket, a.cfg.Report.S3Prefix, a.cfg.Report.Region)
		if err != nil {
			return nil, fmt.Errorf("report upload: %w", err)
		}
		deps.Uploader = up
	}

	opts := loop.Options{
		Iterations: a.cfg.Learning.Iterations,
		MaxTurns:   a.cfg.Dialogue.MaxTurns,
		OutputDir:  a.cfg.Report.OutputDir,
		AudioDir:   a.cfg.TTS.OutputDir,
		OnProgress: onProgress,
	}
	if flagScriptFile != "" {
		s, err := loadStartScript(flagScriptFile)
		if err != nil {
			return nil, err
		}
		opts.Script = s
	}
	return loop.NewRunner(deps, opts)
}
