package persona

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/callcoach/internal/llm"
)

func farmer(t *testing.T, id string) Persona {
	t.Helper()
	p, ok := DefaultRoster().Get(id)
	require.True(t, ok)
	return p
}

func TestTemplateResponderCycles(t *testing.T) {
	r := NewTemplateResponder(nil)
	p := farmer(t, "F002")
	ctx := context.Background()

	patterns := DefaultRoster().Templates[TypeInterested].ResponsePatterns
	var history []Exchange
	for i := 0; i < len(patterns)+1; i++ {
		reply, err := r.Respond(ctx, p, "Namaste ji", history)
		require.NoError(t, err)
		assert.Equal(t, patterns[i%len(patterns)], reply)
		history = append(history, Exchange{Agent: "Namaste ji", Counterpart: reply})
	}
}

func TestTemplateResponderContext(t *testing.T) {
	r := NewTemplateResponder(nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		persona string
		turn    int
		agent   string
		want    string
	}{
		{"solar for low education", "F001", 2, "Solar pump lagwaiye", "Solar kya hota hai bhai? Simple mein batao."},
		{"solar reply already asks", "F001", 0, "Solar pump lagwaiye", "Kaun ho tum? Government se ho kya?"},
		{"subsidy for low income", "F001", 0, "90% subsidy milegi", "Kaun ho tum? Government se ho kya? Sach mein sirf 10% paisa lagega?"},
		{"process question", "F002", 0, "Process simple hai", "Haan, sun raha hun. Batayiye details Kitne din lagenge?"},
		{"skeptic hears government", "F001", 0, "Government scheme hai", "Kaun ho tum? Government se ho kya? Government ki guarantee hai kya?"},
		{"no modification", "F003", 0, "Namaste", "Interesting. What's the ROI on this investment?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := r.Respond(ctx, farmer(t, tt.persona), tt.agent, make([]Exchange, tt.turn))
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply)
		})
	}
}

func TestTemplateResponderUnknownType(t *testing.T) {
	r := NewTemplateResponder(map[string]Template{})
	reply, err := r.Respond(context.Background(), farmer(t, "F003"), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "Haan, sun raha hun.", reply)
}

func TestModelResponder(t *testing.T) {
	mock := llm.NewMock("As a farmer, mujhe   achha laga!!")
	r := NewModelResponder(mock, DefaultRoster().Templates, nil)

	history := make([]Exchange, 7)
	for i := range history {
		history[i] = Exchange{Agent: "a", Counterpart: "c"}
	}
	reply, err := r.Respond(context.Background(), farmer(t, "F002"), "Kya aap interested hain?", history)
	require.NoError(t, err)
	assert.Equal(t, "mujhe achha laga!! Batayiye aur details.", reply)

	require.Len(t, mock.Requests, 1)
	req := mock.Requests[0]
	assert.Equal(t, 0.8, req.Temperature)
	assert.Equal(t, 100, req.MaxTokens)
	assert.Len(t, req.Messages, 11)
	assert.Equal(t, "Agent says: Kya aap interested hain?", req.Messages[10].Content)
	assert.Contains(t, req.System, "Suresh Patel")
	assert.Contains(t, req.System, "Concerned about: savings")
}

func TestModelResponderTrimsForLowEducation(t *testing.T) {
	long := "Dekhiye main ek gareeb kisan hun. Mere paas itne paise nahi hain ki main abhi kuch bhi naya karun aur phir se phas jaun."
	r := NewModelResponder(llm.NewMock(long), nil, nil)

	reply, err := r.Respond(context.Background(), farmer(t, "F001"), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "Dekhiye main ek gareeb kisan hun.", reply)
}

func TestModelResponderSurfacesFailure(t *testing.T) {
	mock := llm.NewMock()
	mock.Err = errors.New("boom")
	r := NewModelResponder(mock, nil, nil)

	_, err := r.Respond(context.Background(), farmer(t, "F001"), "hello", nil)
	assert.Error(t, err)
}

func TestFallbackResponder(t *testing.T) {
	mock := llm.NewMock()
	mock.Err = errors.New("unavailable")
	r := FallbackResponder{
		Primary:   NewModelResponder(mock, nil, nil),
		Secondary: NewTemplateResponder(nil),
	}

	reply, err := r.Respond(context.Background(), farmer(t, "F003"), "Namaste", nil)
	require.NoError(t, err)
	assert.Equal(t, "Interesting. What's the ROI on this investment?", reply)
	assert.Equal(t, 1, mock.Calls())
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Haan bhai, theek hai!", CleanText("  Haan   bhai, theek hai! 🙏 "))
	assert.Equal(t, "नमस्ते ji", CleanText("नमस्ते  ji"))
}

func TestRolePrefixStripped(t *testing.T) {
	p := Persona{Education: TierMedium, Skepticism: 0.8}

	assert.Equal(t, "mujhe nahi chahiye", postProcess("As a farmer, mujhe nahi chahiye", p))
	assert.Equal(t, "pehle paise dikhao.", postProcess("As an elder, pehle paise dikhao.", p))
	assert.Equal(t, "As soon as possible batao.", postProcess("As soon as possible batao.", p))
	assert.Equal(t, "As I said, nahi chahiye.", postProcess("As I said, nahi chahiye.", p))
}
