package usage

import (
	"context"
	"errors"
)

// Report is the token usage of one successful request.
type Report struct {
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Streamed     bool   `json:"streamed"`
}

// Reporter persists usage reports. Implementations must be safe for
// concurrent use.
type Reporter interface {
	Report(ctx context.Context, r Report) error
}

// NoopReporter discards every report.
type NoopReporter struct{}

func (NoopReporter) Report(context.Context, Report) error { return nil }

// Multi fans a report out to several reporters. Every reporter is called even
// if an earlier one fails.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, r Report) error {
	var errs []error
	for _, reporter := range m {
		if err := reporter.Report(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
