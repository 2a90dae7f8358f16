package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cognicore/supportlens/pkg/supportlens/conversation"
	"github.com/cognicore/supportlens/pkg/supportlens/internalerr"
	"github.com/cognicore/supportlens/pkg/supportlens/records"
)

// DefaultTimeout bounds a single enrichment call when none is configured.
const DefaultTimeout = 30 * time.Second

// TagSummary is a free-text digest of one tag's records
type TagSummary struct {
	FAQText  string
	Keywords []string
}

// Enricher is an optional external source of inquiries and tag summaries.
// Implementations may return ("", nil) or (nil, nil) when they have nothing.
type Enricher interface {
	ExtractInquiry(ctx context.Context, c *conversation.Conversation) (string, error)
	SummarizeTag(ctx context.Context, tag string, recs []records.Record) (*TagSummary, error)
}

// GuardOptions configures a Guard
type GuardOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Logger            *zap.Logger
}

// Guard wraps an Enricher so that absence, errors, timeouts and panics all
// read as "no enrichment". Its methods never fail and never block past the
// timeout. A nil *Guard is valid and disabled.
type Guard struct {
	enricher Enricher
	timeout  time.Duration
	limiter  *rate.Limiter
	log      *zap.Logger
}

// NewGuard wraps e. A nil e yields a disabled guard.
func NewGuard(e Enricher, opts GuardOptions) *Guard {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	g := &Guard{enricher: e, timeout: opts.Timeout, log: opts.Logger}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return g
}

// Enabled reports whether an enricher is attached
func (g *Guard) Enabled() bool {
	return g != nil && g.enricher != nil
}

// ExtractInquiry returns the enricher's inquiry for c, or "" when enrichment
// is unavailable.
func (g *Guard) ExtractInquiry(ctx context.Context, c *conversation.Conversation) string {
	if !g.Enabled() || c == nil {
		return ""
	}
	text, err := call(ctx, g, func(ctx context.Context) (string, error) {
		return g.enricher.ExtractInquiry(ctx, c)
	})
	if err != nil {
		g.log.Warn("inquiry enrichment failed, using rule-based extraction",
			zap.String("conversation", c.ID), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}

// SummarizeTag returns the enricher's summary of a tag, or nil when
// enrichment is unavailable or produced nothing.
func (g *Guard) SummarizeTag(ctx context.Context, tag string, recs []records.Record) *TagSummary {
	if !g.Enabled() || len(recs) == 0 {
		return nil
	}
	sum, err := call(ctx, g, func(ctx context.Context) (*TagSummary, error) {
		return g.enricher.SummarizeTag(ctx, tag, recs)
	})
	if err != nil {
		g.log.Warn("tag summary enrichment failed", zap.String("tag", tag), zap.Error(err))
		return nil
	}
	if sum == nil || (strings.TrimSpace(sum.FAQText) == "" && len(sum.Keywords) == 0) {
		return nil
	}
	return sum
}

type result[T any] struct {
	val T
	err error
}

// call runs fn under the rate limit and timeout. fn runs on its own
// goroutine so an implementation that ignores ctx cannot stall the caller.
func call[T any](ctx context.Context, g *Guard, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("%w: rate limit: %w", internalerr.ErrEnrichmentUnavailable, err)
		}
	}

	done := make(chan result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result[T]{err: fmt.Errorf("%w: panic: %v", internalerr.ErrEnrichmentUnavailable, r)}
			}
		}()
		v, err := fn(ctx)
		done <- result[T]{val: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return zero, fmt.Errorf("%w: %w", internalerr.ErrEnrichmentUnavailable, res.err)
		}
		return res.val, nil
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %w", internalerr.ErrEnrichmentUnavailable, ctx.Err())
	}
}
