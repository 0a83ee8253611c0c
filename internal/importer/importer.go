// Package importer commits enrichment output to the directory: it loads the
// stored document, merges the incoming partial record into it, resolves the
// reviews star state, rescores profile completeness and writes the result
// back conditionally on the version it read.
package importer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/company-directory/internal/config"
	"github.com/sells-group/company-directory/internal/metrics"
	"github.com/sells-group/company-directory/internal/model"
	"github.com/sells-group/company-directory/internal/reconcile"
	"github.com/sells-group/company-directory/internal/resilience"
	"github.com/sells-group/company-directory/internal/stars"
	"github.com/sells-group/company-directory/internal/store"
)

var (
	// ErrMissingDomain is returned when an incoming document has no usable normalized_domain.
	ErrMissingDomain = eris.New("importer: normalized_domain is required")
	// ErrMissingID is returned when a stored document has no id to write back under.
	ErrMissingID = eris.New("importer: stored company has no id")
)

// Import actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionFailed  = "failed"
)

// Result describes a committed import.
type Result struct {
	ID       string        `json:"id"`
	Domain   string        `json:"domain"`
	Action   string        `json:"action"`
	Attempts int           `json:"attempts"`
	Version  int64         `json:"version"`
	Company  *model.Record `json:"-"`
}

// Outcome pairs a batch input with its result or error.
type Outcome struct {
	Result *Result
	Err    error
}

// Service imports company documents into a store.
type Service struct {
	store       store.Store
	breaker     *resilience.CircuitBreaker
	retry       resilience.RetryConfig
	limiter     *rate.Limiter
	concurrency int
	deadLetter  bool
	metrics     *metrics.Metrics
	now         func() time.Time
	newID       func() string
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records import metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDeadLetter parks documents whose import fails in the store's dead letter queue.
func WithDeadLetter(enabled bool) Option {
	return func(s *Service) { s.deadLetter = enabled }
}

// WithBreaker replaces the default store circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(s *Service) { s.breaker = cb }
}

// WithClock overrides the time source used for default timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how ids are minted for new companies.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// New creates an import Service over st.
func New(st store.Store, cfg config.ImportConfig, opts ...Option) *Service {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	s := &Service{
		store:       st,
		retry:       resilience.FromRetryConfig(cfg.MaxAttempts, cfg.InitialBackoffMS),
		limiter:     rate.NewLimiter(limit, concurrency),
		concurrency: concurrency,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		bc := resilience.FromCircuitConfig(cfg.CircuitFailureThreshold, cfg.CircuitResetSecs)
		bc.OnStateChange = resilience.StateLogger("store")
		s.breaker = resilience.NewCircuitBreaker(bc)
	}
	return s
}

// Import merges incoming into the stored document for its domain, or seeds a
// new document when none exists. Lost version races are retried from a fresh
// read. When dead-lettering is enabled, failures other than invalid input are
// parked for replay.
func (s *Service) Import(ctx context.Context, incoming *model.Record) (*Result, error) {
	res, err := s.importDoc(ctx, incoming)
	if err != nil && s.deadLetter && !isInvalidInput(err) {
		s.enqueueDeadLetter(ctx, incoming, err)
	}
	return res, err
}

// ImportAll imports docs concurrently, bounded by the configured concurrency
// and rate. Outcomes are returned in input order. The error is non-nil only
// when ctx ends before every document was attempted.
func (s *Service) ImportAll(ctx context.Context, docs []*model.Record) ([]Outcome, error) {
	out := make([]Outcome, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var failed atomic.Int64
	for i, doc := range docs {
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				out[i] = Outcome{Err: eris.Wrap(err, "importer: rate limit")}
				return err
			}
			res, err := s.Import(gctx, doc)
			if err != nil {
				failed.Add(1)
			}
			out[i] = Outcome{Result: res, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return out, eris.Wrap(err, "importer: batch")
	}

	zap.L().Info("import batch complete",
		zap.Int("documents", len(docs)),
		zap.Int64("failed", failed.Load()),
	)
	return out, nil
}

func (s *Service) importDoc(ctx context.Context, incoming *model.Record) (*Result, error) {
	start := s.now()
	defer func() { s.metrics.ObserveImportLatency(s.now().Sub(start)) }()

	domain := ""
	if incoming != nil {
		domain = store.NormalizeDomain(string(incoming.NormalizedDomain))
	}
	if !reconcile.IsMeaningful(domain) {
		s.metrics.IncrementOutcome(ActionFailed)
		return nil, ErrMissingDomain
	}

	cfg := s.retry
	cfg.ShouldRetry = resilience.RetryOn(store.ErrVersionConflict)
	logRetry := resilience.RetryLogger("importer", "commit")
	cfg.OnRetry = func(attempt int, err error) {
		if errors.Is(err, store.ErrVersionConflict) {
			s.metrics.IncrementConflict()
		}
		logRetry(attempt, err)
	}

	attempts := 0
	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Result, error) {
		attempts++
		return s.commit(ctx, domain, incoming)
	})
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			s.metrics.IncrementConflict()
		}
		s.metrics.IncrementOutcome(ActionFailed)
		return nil, eris.Wrapf(err, "importer: import %s", domain)
	}

	res.Attempts = attempts
	s.metrics.IncrementOutcome(res.Action)
	zap.L().Debug("company imported",
		zap.String("domain", res.Domain),
		zap.String("action", res.Action),
		zap.Int("attempts", res.Attempts),
		zap.Int64("version", res.Version),
	)
	return res, nil
}

// commit performs one read-merge-write cycle.
func (s *Service) commit(ctx context.Context, domain string, incoming *model.Record) (*Result, error) {
	existing, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*store.Company, error) {
		return s.store.GetCompany(ctx, domain)
	})
	if errors.Is(err, store.ErrNotFound) {
		return s.seed(ctx, domain, incoming)
	}
	if err != nil {
		return nil, err
	}
	return s.update(ctx, domain, existing, incoming)
}

func (s *Service) seed(ctx context.Context, domain string, incoming *model.Record) (*Result, error) {
	doc := incoming.Clone()
	doc.NormalizedDomain = model.Text(domain)
	now := s.timestamp()
	if doc.CreatedAt.Trim() == "" {
		doc.CreatedAt = model.Text(now)
	}
	if doc.UpdatedAt.Trim() == "" {
		doc.UpdatedAt = model.Text(now)
	}

	merged := reconcile.Merge(nil, doc, domain)
	merged.ID = doc.ID
	if !reconcile.IsMeaningful(merged.ID.Trim()) {
		merged.ID = model.Text(s.newID())
	}
	if merged.Rating == nil {
		merged.Rating = stars.InitialRating(stars.EligibilityFromRecord(merged))
	}
	merged = reconcile.ApplyCompleteness(reconcile.ApplyReviewsStarState(merged))

	c, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*store.Company, error) {
		return s.store.CreateCompany(ctx, merged)
	})
	if err != nil {
		return nil, err
	}
	return newResult(c, ActionCreated), nil
}

func (s *Service) update(ctx context.Context, domain string, existing *store.Company, incoming *model.Record) (*Result, error) {
	doc := incoming.Clone()
	if doc.UpdatedAt.Trim() == "" {
		doc.UpdatedAt = model.Text(s.timestamp())
	}

	merged := reconcile.Merge(existing.Record, doc, domain)
	if merged.ID.Trim() == "" {
		return nil, ErrMissingID
	}
	merged = reconcile.ApplyCompleteness(reconcile.ApplyReviewsStarState(merged))

	c, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*store.Company, error) {
		return s.store.UpdateCompany(ctx, merged, existing.Version)
	})
	if err != nil {
		return nil, err
	}
	return newResult(c, ActionUpdated), nil
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func newResult(c *store.Company, action string) *Result {
	return &Result{
		ID:      c.Record.ID.Trim(),
		Domain:  string(c.Record.NormalizedDomain),
		Action:  action,
		Version: c.Version,
		Company: c.Record,
	}
}

func isInvalidInput(err error) bool {
	return errors.Is(err, ErrMissingDomain) || errors.Is(err, ErrMissingID)
}
