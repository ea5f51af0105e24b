package llm

import (
	"context"
	"time"
)

// Event describes one finished completion call.
type Event struct {
	Provider  string
	Purpose   string
	Request   Request
	Response  string
	Err       error
	Duration  time.Duration
	StartedAt time.Time
}

// Observer receives an Event after every call. Observers must not block.
type Observer func(ctx context.Context, ev Event)

type observed struct {
	inner     Completer
	observers []Observer
}

// Observe wraps c so every call is reported to the observers.
func Observe(c Completer, observers ...Observer) Completer {
	if len(observers) == 0 {
		return c
	}
	return &observed{inner: c, observers: observers}
}

func (o *observed) Name() string { return o.inner.Name() }

func (o *observed) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := o.inner.Complete(ctx, req)
	ev := Event{
		Provider:  o.inner.Name(),
		Purpose:   req.Purpose,
		Request:   req,
		Response:  text,
		Err:       err,
		Duration:  time.Since(start),
		StartedAt: start,
	}
	for _, fn := range o.observers {
		fn(ctx, ev)
	}
	return text, err
}
