package aggregate

import (
	"context"
	"runtime"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/supportlens/pkg/supportlens/records"
	"github.com/cognicore/supportlens/pkg/supportlens/textnorm"
)

// minSentenceRunes is the shortest FAQ sentence reported.
const minSentenceRunes = 3

// FAQEntry is a recurring question sentence and the conversations asking it
type FAQEntry struct {
	Sentence        string   `json:"sentence"`
	Count           int      `json:"count"`
	ConversationIDs []string `json:"conversationIds"`
}

// KeywordEntry is a recurring token and the conversations containing it
type KeywordEntry struct {
	Keyword         string   `json:"keyword"`
	Count           int      `json:"count"`
	ConversationIDs []string `json:"conversationIds"`
}

// Summary is an optional free-text digest of a tag produced by enrichment
type Summary struct {
	FAQText  string   `json:"faqText"`
	Keywords []string `json:"keywords"`
}

// Bucket holds the ranked FAQ and keyword lists of one tag
type Bucket struct {
	Tag      string         `json:"tag"`
	FAQ      []FAQEntry     `json:"faq"`
	Keywords []KeywordEntry `json:"keywords"`
	Summary  *Summary       `json:"summary,omitempty"`
}

// Group is the set of records sharing one tag
type Group struct {
	Tag     string
	Records []records.Record
}

// Options bounds the ranked lists
type Options struct {
	FAQTopN      int
	KeywordTopN  int
	MinChatCount int
}

// Aggregator mines recurring questions and keywords from tag groups. It holds
// no mutable state; one Aggregator may serve many goroutines.
type Aggregator struct {
	norm      *textnorm.Normalizer
	tokenizer *textnorm.Tokenizer
	questions *textnorm.QuestionDetector
	opts      Options
}

// New creates an aggregator. Nil collaborators select defaults over the
// default pattern library.
func New(norm *textnorm.Normalizer, tokenizer *textnorm.Tokenizer, questions *textnorm.QuestionDetector, opts Options) *Aggregator {
	if norm == nil {
		norm = textnorm.New(nil)
	}
	lib := norm.Library()
	if tokenizer == nil {
		tokenizer = textnorm.NewTokenizer(lib.StopWords())
	}
	if questions == nil {
		questions = textnorm.NewQuestionDetector(lib.QuestionWords(), lib)
	}
	return &Aggregator{norm: norm, tokenizer: tokenizer, questions: questions, opts: opts}
}

// FAQ ranks the question sentences of a group by the number of distinct
// conversations asking them.
func (a *Aggregator) FAQ(recs []records.Record) []FAQEntry {
	s := newSupport()
	for _, r := range recs {
		for _, sent := range textnorm.SplitSentences(r.Text) {
			if !a.questions.IsQuestion(sent) {
				continue
			}
			sent = a.norm.Normalize(sent)
			if utf8.RuneCountInString(sent) < minSentenceRunes {
				continue
			}
			s.Add(strings.ToLower(sent), sent, r.ConversationID)
		}
	}

	top := s.Top(a.opts.MinChatCount, a.opts.FAQTopN)
	out := make([]FAQEntry, len(top))
	for i, t := range top {
		out[i] = FAQEntry{Sentence: t.label, Count: len(t.ids), ConversationIDs: append([]string(nil), t.ids...)}
	}
	return out
}

// Keywords ranks the tokens of a group by the number of distinct
// conversations containing them.
func (a *Aggregator) Keywords(recs []records.Record) []KeywordEntry {
	s := newSupport()
	for _, r := range recs {
		for _, tok := range a.tokenizer.Tokenize(r.Text) {
			s.Add(tok, tok, r.ConversationID)
		}
	}

	top := s.Top(a.opts.MinChatCount, a.opts.KeywordTopN)
	out := make([]KeywordEntry, len(top))
	for i, t := range top {
		out[i] = KeywordEntry{Keyword: t.label, Count: len(t.ids), ConversationIDs: append([]string(nil), t.ids...)}
	}
	return out
}

// Bucket aggregates a single tag group
func (a *Aggregator) Bucket(g Group) Bucket {
	return Bucket{Tag: g.Tag, FAQ: a.FAQ(g.Records), Keywords: a.Keywords(g.Records)}
}

// All aggregates every group with at most workers groups in flight; zero
// or less means GOMAXPROCS. Buckets are returned in group order.
func (a *Aggregator) All(ctx context.Context, groups []Group, workers int) ([]Bucket, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]Bucket, len(groups))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range groups {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = a.Bucket(groups[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GroupByTag splits records into per-tag groups, ordered by the first
// appearance of each tag.
func GroupByTag(recs []records.Record) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, r := range recs {
		i, ok := index[r.Tag]
		if !ok {
			i = len(groups)
			index[r.Tag] = i
			groups = append(groups, Group{Tag: r.Tag})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}
