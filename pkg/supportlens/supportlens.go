package supportlens

import (
	"context"
	"crypto/rand"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/supportlens/pkg/supportlens/aggregate"
	"github.com/cognicore/supportlens/pkg/supportlens/config"
	"github.com/cognicore/supportlens/pkg/supportlens/conversation"
	"github.com/cognicore/supportlens/pkg/supportlens/enrich"
	"github.com/cognicore/supportlens/pkg/supportlens/records"
	"github.com/cognicore/supportlens/pkg/supportlens/resolve"
	"github.com/cognicore/supportlens/pkg/supportlens/store"
)

// Engine is the main analysis facade
type Engine struct {
	comp       *config.Components
	resolver   *resolve.Resolver
	builder    *records.Builder
	aggregator *aggregate.Aggregator
	enricher   *enrich.Guard
	store      store.Store
	log        *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Options configures an Engine
type Options struct {
	// Components supplies the pattern library, text helpers and settings.
	// Nil selects the built-in defaults; missing helpers are rebuilt.
	Components *config.Components

	// Enricher is optional; a nil or disabled guard means rule-based only.
	Enricher *enrich.Guard

	// Store is optional; when set every analysis run is persisted.
	Store store.Store

	Logger *zap.Logger
}

// New creates an Engine. Invalid settings are reported as
// internalerr.ErrInvalidConfig.
func New(opts Options) (*Engine, error) {
	comp := opts.Components
	switch {
	case comp == nil:
		comp = config.Build(nil, config.DefaultSettings())
	case comp.Library == nil || comp.Normalizer == nil || comp.Tokenizer == nil || comp.Questions == nil:
		comp = config.Build(comp.Library, comp.Settings)
	}
	if err := comp.Settings.Validate(); err != nil {
		return nil, err
	}
	rule, err := comp.Settings.Rule()
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		comp:     comp,
		resolver: resolve.New(comp.Library, comp.Normalizer),
		builder:  records.NewBuilder(comp.Normalizer, comp.Questions, rule),
		aggregator: aggregate.New(comp.Normalizer, comp.Tokenizer, comp.Questions, aggregate.Options{
			FAQTopN:      comp.Settings.TopN.FAQ,
			KeywordTopN:  comp.Settings.TopN.Keywords,
			MinChatCount: comp.Settings.MinChatCount,
		}),
		enricher: opts.Enricher,
		store:    opts.Store,
		log:      log,
		now:      time.Now,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// Close releases the attached store, if any
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Settings returns the effective settings
func (e *Engine) Settings() config.Settings {
	return e.comp.Settings
}

// Resolve finds the customer's inquiry in one conversation. An enrichment
// result, when available, is offered to the resolver as its first tier. A
// usable inquiry already attached to the input is not requested again.
func (e *Engine) Resolve(ctx context.Context, c conversation.Conversation) resolve.Inquiry {
	attached := strings.TrimSpace(c.Enrichment) != "" && !e.comp.Library.IsFailureMarker(c.Enrichment)
	if e.enricher.Enabled() && !attached {
		if inquiry := e.enricher.ExtractInquiry(ctx, &c); inquiry != "" {
			c = c.WithEnrichment(inquiry)
		}
	}
	return e.resolver.Resolve(&c)
}

// Build derives deduplicated tagged records from conversations and their
// standalone messages.
func (e *Engine) Build(convs []conversation.Conversation, msgs []conversation.Message) []records.Record {
	return e.builder.Build(convs, msgs)
}

// Aggregate groups records by tag and ranks each group's FAQ sentences and
// keywords.
func (e *Engine) Aggregate(ctx context.Context, recs []records.Record) ([]aggregate.Bucket, error) {
	return e.aggregator.All(ctx, aggregate.GroupByTag(recs), e.comp.Settings.Workers)
}

// Analyze runs the full pipeline over one batch and returns the run. The run
// is saved when a store is attached.
func (e *Engine) Analyze(ctx context.Context, convs []conversation.Conversation, msgs []conversation.Message) (store.Run, error) {
	start := e.now()

	recs := e.Build(convs, msgs)
	buckets, err := e.Aggregate(ctx, recs)
	if err != nil {
		return store.Run{}, fmt.Errorf("aggregate: %w", err)
	}
	if e.enricher.Enabled() {
		if err := e.summarize(ctx, buckets, recs); err != nil {
			return store.Run{}, err
		}
	}
	inquiries, err := e.resolveAll(ctx, convs)
	if err != nil {
		return store.Run{}, fmt.Errorf("resolve: %w", err)
	}

	run := store.Run{
		ID:             e.newID(start),
		CreatedAt:      start.UTC(),
		PatternVersion: e.comp.Library.Version(),
		Records:        recs,
		Buckets:        buckets,
		Inquiries:      inquiries,
	}
	if e.store != nil {
		if err := e.store.SaveRun(ctx, run); err != nil {
			return store.Run{}, fmt.Errorf("save run: %w", err)
		}
	}

	e.log.Info("analysis complete",
		zap.String("run", run.ID),
		zap.Int("conversations", len(convs)),
		zap.Int("messages", len(msgs)),
		zap.Int("records", len(recs)),
		zap.Int("tags", len(buckets)),
		zap.Duration("took", e.now().Sub(start)),
	)
	return run, nil
}

// summarize attaches an enrichment digest to every bucket that gets one.
func (e *Engine) summarize(ctx context.Context, buckets []aggregate.Bucket, recs []records.Record) error {
	byTag := make(map[string][]records.Record)
	for _, g := range aggregate.GroupByTag(recs) {
		byTag[g.Tag] = g.Records
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for i := range buckets {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if sum := e.enricher.SummarizeTag(ctx, buckets[i].Tag, byTag[buckets[i].Tag]); sum != nil {
				buckets[i].Summary = &aggregate.Summary{FAQText: sum.FAQText, Keywords: sum.Keywords}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	return nil
}

func (e *Engine) resolveAll(ctx context.Context, convs []conversation.Conversation) ([]store.Inquiry, error) {
	out := make([]store.Inquiry, len(convs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for i := range convs {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			inq := e.Resolve(ctx, convs[i])
			out[i] = store.Inquiry{
				ConversationID: convs[i].ID,
				Text:           inq.Text,
				Tier:           inq.Tier.String(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) workers() int {
	if w := e.comp.Settings.Workers; w > 0 {
		return w
	}
	return runtime.GOMAXPROCS(0)
}

// newID returns a monotonic ULID. MonotonicEntropy is not safe for
// concurrent use.
func (e *Engine) newID(at time.Time) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), e.entropy).String()
}

