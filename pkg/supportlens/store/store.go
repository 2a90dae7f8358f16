package store

import (
	"context"
	"time"

	"github.com/cognicore/supportlens/pkg/supportlens/aggregate"
	"github.com/cognicore/supportlens/pkg/supportlens/records"
)

// Store persists analysis runs for downstream consumers
type Store interface {
	Close() error

	// SaveRun stores a run. Saving an existing id fails with
	// internalerr.ErrDuplicate.
	SaveRun(ctx context.Context, r Run) error

	// GetRun loads a run by id, or fails with internalerr.ErrNotFound.
	GetRun(ctx context.Context, id string) (Run, error)

	// LatestRun loads the most recently created run, or fails with
	// internalerr.ErrNotFound when the store is empty.
	LatestRun(ctx context.Context) (Run, error)

	// ListRuns returns run headers, newest first, at most limit of them.
	ListRuns(ctx context.Context, limit int) ([]RunInfo, error)
}

// Run is the complete output of one analysis
type Run struct {
	ID             string             `json:"id"`
	CreatedAt      time.Time          `json:"createdAt"`
	PatternVersion string             `json:"patternVersion"`
	Records        []records.Record   `json:"records"`
	Buckets        []aggregate.Bucket `json:"buckets"`
	Inquiries      []Inquiry          `json:"inquiries"`
}

// Info returns the run header
func (r Run) Info() RunInfo {
	return RunInfo{
		ID:             r.ID,
		CreatedAt:      r.CreatedAt,
		PatternVersion: r.PatternVersion,
		Records:        len(r.Records),
		Tags:           len(r.Buckets),
	}
}

// RunInfo summarises a stored run
type RunInfo struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	PatternVersion string    `json:"patternVersion"`
	Records        int       `json:"records"`
	Tags           int       `json:"tags"`
}

// Inquiry is the resolved inquiry of one conversation
type Inquiry struct {
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
	Tier           string `json:"tier"`
}
