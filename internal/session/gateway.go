package session

import "context"

// Completer produces the assistant reply for a History whose last Turn is the
// newest user Turn. Failures are reported as ErrCompletionFailed.
type Completer interface {
	Complete(ctx context.Context, h History) (string, error)
}

// Summarizer condenses a non-empty History into a single Summary Turn.
// Failures are reported as ErrSummarizationFailed.
type Summarizer interface {
	Summarize(ctx context.Context, h History) (Turn, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, h History) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, h History) (string, error) { return f(ctx, h) }

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, h History) (Turn, error)

func (f SummarizerFunc) Summarize(ctx context.Context, h History) (Turn, error) { return f(ctx, h) }
