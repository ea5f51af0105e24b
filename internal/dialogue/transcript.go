package dialogue

import (
	"fmt"
	"strings"
)

// EndReason records why a call stopped.
type EndReason string

const (
	EndRejected EndReason = "rejected"
	EndAgreed   EndReason = "agreed"
	EndLater    EndReason = "later"
	EndMaxTurns EndReason = "max_turns"
)

// Turn is one agent line and the counterpart's answer.
type Turn struct {
	Index            int    `json:"index"`
	Agent            string `json:"agent"`
	Counterpart      string `json:"counterpart"`
	AgentAudio       string `json:"agent_audio,omitempty"`
	CounterpartAudio string `json:"counterpart_audio,omitempty"`
}

// Transcript is the full record of one call. It is not modified after Run
// returns it.
type Transcript struct {
	Turns     []Turn    `json:"turns"`
	EndReason EndReason `json:"end_reason"`
}

// CounterpartUtterances returns the counterpart's lines in turn order.
func (t Transcript) CounterpartUtterances() []string {
	out := make([]string, len(t.Turns))
	for i, turn := range t.Turns {
		out[i] = turn.Counterpart
	}
	return out
}

func (t Transcript) AgentUtterances() []string {
	out := make([]string, len(t.Turns))
	for i, turn := range t.Turns {
		out[i] = turn.Agent
	}
	return out
}

// AudioFiles lists every synthesized clip in speaking order.
func (t Transcript) AudioFiles() []string {
	var out []string
	for _, turn := range t.Turns {
		if turn.AgentAudio != "" {
			out = append(out, turn.AgentAudio)
		}
		if turn.CounterpartAudio != "" {
			out = append(out, turn.CounterpartAudio)
		}
	}
	return out
}

// Lines renders the call as "Agent: ..." / "Farmer: ..." lines.
func (t Transcript) Lines() []string {
	out := make([]string, 0, 2*len(t.Turns))
	for _, turn := range t.Turns {
		out = append(out, "Agent: "+turn.Agent, "Farmer: "+turn.Counterpart)
	}
	return out
}

func (t Transcript) String() string {
	var b strings.Builder
	for _, turn := range t.Turns {
		fmt.Fprintf(&b, "[%d] Agent: %s\n[%d] Farmer: %s\n", turn.Index, turn.Agent, turn.Index, turn.Counterpart)
	}
	return b.String()
}

// FromUtterances builds a transcript from counterpart lines alone, for
// analyzing replies recorded elsewhere.
func FromUtterances(replies []string) Transcript {
	t := Transcript{Turns: make([]Turn, len(replies))}
	for i, r := range replies {
		t.Turns[i] = Turn{Index: i + 1, Counterpart: r}
	}
	return t
}
