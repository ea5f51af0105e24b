package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/apresai/callcoach/internal/apperr"
	"github.com/apresai/callcoach/internal/lexicon"
	"github.com/apresai/callcoach/internal/persona"
	"github.com/apresai/callcoach/internal/script"
)

// Speaker names who is talking in an utterance handed to a Voice.
type Speaker string

const (
	SpeakerAgent       Speaker = "agent"
	SpeakerCounterpart Speaker = "farmer"
)

// Voice renders one utterance to audio and returns the clip path. Turn is
// 1-based.
type Voice interface {
	Speak(ctx context.Context, who Speaker, turn int, text string) (string, error)
}

// Manager drives the turn loop of a call.
type Manager struct {
	lex    *lexicon.Lexicon
	routes []Route
	logger *slog.Logger
}

func NewManager(lex *lexicon.Lexicon, routes []Route, logger *slog.Logger) *Manager {
	if lex == nil {
		lex = lexicon.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{lex: lex, routes: routes, logger: logger.With("component", "dialogue")}
}

// Options are per-call extras.
type Options struct {
	// Voice, when set, synthesizes every utterance. Its failure fails the call.
	Voice Voice
}

// Run plays one call of at most maxTurns turns. Counterpart and voice
// failures are returned as-is; nothing is retried here.
func (m *Manager) Run(ctx context.Context, s script.Script, p persona.Persona, r persona.Responder, maxTurns int, opts Options) (Transcript, error) {
	if maxTurns < 1 {
		return Transcript{}, apperr.Invalid("max_turns", maxTurns, "must be at least 1")
	}
	if err := s.Validate(); err != nil {
		return Transcript{}, err
	}
	if err := p.Validate(); err != nil {
		return Transcript{}, err
	}

	router := NewRouter(m.lex, m.routes, maxTurns)
	log := m.logger.With("persona", p.ID, "script_version", s.Version)

	var (
		t       Transcript
		history []persona.Exchange
	)
	agentLine := s.OpeningLine()

	for i := 0; i < maxTurns; i++ {
		turn := Turn{Index: i + 1, Agent: agentLine}

		if opts.Voice != nil {
			path, err := opts.Voice.Speak(ctx, SpeakerAgent, turn.Index, agentLine)
			if err != nil {
				return Transcript{}, fmt.Errorf("speak agent turn %d: %w", turn.Index, err)
			}
			turn.AgentAudio = path
		}

		reply, err := r.Respond(ctx, p, agentLine, history)
		if err != nil {
			return Transcript{}, fmt.Errorf("counterpart turn %d: %w", turn.Index, err)
		}
		turn.Counterpart = reply

		if opts.Voice != nil {
			path, err := opts.Voice.Speak(ctx, SpeakerCounterpart, turn.Index, reply)
			if err != nil {
				return Transcript{}, fmt.Errorf("speak counterpart turn %d: %w", turn.Index, err)
			}
			turn.CounterpartAudio = path
		}

		t.Turns = append(t.Turns, turn)
		history = append(history, persona.Exchange{Agent: agentLine, Counterpart: reply})
		log.Debug("turn", "index", turn.Index, "agent", agentLine, "counterpart", reply)

		if reason, done := m.shouldEnd(reply, i, maxTurns); done {
			t.EndReason = reason
			log.Info("call ended", "turns", len(t.Turns), "reason", reason)
			return t, nil
		}
		agentLine = router.Route(reply, turn.Index)
	}

	t.EndReason = EndMaxTurns
	return t, nil
}

// shouldEnd evaluates the end predicates in order for the reply at 0-based
// turn i.
func (m *Manager) shouldEnd(reply string, i, maxTurns int) (EndReason, bool) {
	reply = strings.ToLower(reply)
	switch {
	case m.lex.Any(lexicon.EndRejection, reply):
		return EndRejected, true
	case m.lex.Any(lexicon.EndAgreement, reply):
		return EndAgreed, true
	case m.lex.Any(lexicon.EndLater, reply):
		return EndLater, true
	case i >= maxTurns-1:
		return EndMaxTurns, true
	}
	return "", false
}
