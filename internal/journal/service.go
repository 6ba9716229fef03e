package journal

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cleared-dev/bookkeeper/internal/metrics"
	"github.com/cleared-dev/bookkeeper/internal/model"
)

// Committer persists validated entries atomically. *store.DB implements it.
type Committer interface {
	Commit(ctx context.Context, e model.Entry) (model.Entry, error)
	CommitAll(ctx context.Context, entries []model.Entry) ([]model.Entry, error)
}

// Service validates and commits journal entries.
type Service struct {
	accounts AccountResolver
	store    Committer
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewService creates a journal Service. log and m may be nil.
func NewService(accounts AccountResolver, store Committer, log *zap.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{accounts: accounts, store: store, log: log, metrics: m}
}

// Post validates sub and commits it. It returns the committed entry's ID.
// A rejected submission leaves the ledger untouched.
func (s *Service) Post(ctx context.Context, sub Submission) (string, error) {
	e, err := s.PostEntry(ctx, sub)
	if err != nil {
		return "", err
	}
	return e.ID, nil
}

// PostEntry is Post returning the whole committed entry.
func (s *Service) PostEntry(ctx context.Context, sub Submission) (model.Entry, error) {
	entry, err := Validate(sub, s.accounts)
	if err != nil {
		s.reject(sub, err)
		return model.Entry{}, err
	}

	entry, err = s.store.Commit(ctx, entry)
	if err != nil {
		s.reject(sub, err)
		return model.Entry{}, fmt.Errorf("committing entry: %w", err)
	}

	s.posted(entry)
	return entry, nil
}

func (s *Service) posted(entry model.Entry) {
	s.metrics.Posted(len(entry.Lines))
	s.log.Info("entry posted",
		zap.String("entry_id", entry.ID),
		zap.String("date", entry.Date.Format(model.DateFormat)),
		zap.Int("lines", len(entry.Lines)),
		zap.String("amount", entry.Totals().Debits.StringFixed(2)))
}

// PostError reports which submission of a batch failed.
type PostError struct {
	Index int
	Err   error
}

func (e *PostError) Error() string {
	return fmt.Sprintf("entry %d: %v", e.Index+1, e.Err)
}

func (e *PostError) Unwrap() error { return e.Err }

// PostAll posts subs as one unit. Every submission is validated before any
// is written, and the batch commits in a single transaction, so a failure
// leaves the ledger untouched and the corrected batch can be resubmitted
// whole. On success it returns the IDs in submission order. A validation
// failure is a *PostError naming the first bad submission.
func (s *Service) PostAll(ctx context.Context, subs []Submission) ([]string, error) {
	entries := make([]model.Entry, len(subs))
	for i, sub := range subs {
		if err := ctx.Err(); err != nil {
			return nil, &PostError{Index: i, Err: err}
		}
		entry, err := Validate(sub, s.accounts)
		if err != nil {
			s.reject(sub, err)
			return nil, &PostError{Index: i, Err: err}
		}
		entries[i] = entry
	}
	if len(entries) == 0 {
		return []string{}, nil
	}

	committed, err := s.store.CommitAll(ctx, entries)
	if err != nil {
		s.metrics.Rejected(rejectReason(err))
		s.log.Warn("batch rejected", zap.Int("entries", len(entries)), zap.Error(err))
		return nil, fmt.Errorf("committing %d entries: %w", len(entries), err)
	}

	ids := make([]string, len(committed))
	for i, entry := range committed {
		s.posted(entry)
		ids[i] = entry.ID
	}
	return ids, nil
}

func (s *Service) reject(sub Submission, err error) {
	reason := rejectReason(err)
	s.metrics.Rejected(reason)
	s.log.Warn("entry rejected",
		zap.String("date", sub.Date.Format(model.DateFormat)),
		zap.String("description", sub.Description),
		zap.String("reason", reason),
		zap.Error(err))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, model.ErrEmptyEntry):
		return metrics.ReasonEmpty
	case errors.Is(err, model.ErrUnknownAccount):
		return metrics.ReasonUnknown
	case errors.Is(err, model.ErrUnbalancedEntry):
		return metrics.ReasonUnbalanced
	case errors.Is(err, model.ErrInvalidLine):
		return metrics.ReasonInvalid
	default:
		return metrics.ReasonStorage
	}
}
