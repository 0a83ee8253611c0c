package importer

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-directory/internal/model"
	"github.com/sells-group/company-directory/internal/resilience"
	"github.com/sells-group/company-directory/internal/store"
)

// ReplaySummary counts the outcome of a dead letter replay pass.
type ReplaySummary struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

func (s *Service) enqueueDeadLetter(ctx context.Context, incoming *model.Record, cause error) {
	now := s.now().UTC()
	errType := resilience.ClassifyError(cause)
	entry := resilience.DLQEntry{
		Domain:       store.NormalizeDomain(string(incoming.NormalizedDomain)),
		Record:       incoming.Clone(),
		Error:        cause.Error(),
		ErrorType:    errType,
		MaxRetries:   resilience.DefaultDLQMaxRetries,
		NextRetryAt:  now.Add(resilience.NextRetryDelay(0)),
		CreatedAt:    now,
		LastFailedAt: now,
	}

	// The import context may already be done; parking the document must not depend on it.
	if err := s.store.EnqueueDLQ(context.WithoutCancel(ctx), entry); err != nil {
		zap.L().Error("failed to dead-letter import",
			zap.String("domain", entry.Domain),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return
	}
	s.metrics.IncrementDeadLettered(errType)
	zap.L().Warn("import dead-lettered",
		zap.String("domain", entry.Domain),
		zap.String("error_type", errType),
		zap.Error(cause),
	)
}

// ReplayDeadLetters re-imports due entries from the dead letter queue.
// Successful entries are removed; failed ones are rescheduled with a longer
// delay until they run out of retries.
func (s *Service) ReplayDeadLetters(ctx context.Context, filter resilience.DLQFilter) (ReplaySummary, error) {
	var sum ReplaySummary

	entries, err := s.store.DequeueDLQ(ctx, filter)
	if err != nil {
		return sum, eris.Wrap(err, "importer: dequeue dead letters")
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			return sum, eris.Wrap(ctx.Err(), "importer: replay dead letters")
		}
		sum.Attempted++

		log := zap.L().With(zap.String("dlq_id", e.ID), zap.String("domain", e.Domain))
		if _, err := s.importDoc(ctx, e.Record); err != nil {
			sum.Failed++
			next := s.now().Add(resilience.NextRetryDelay(e.RetryCount + 1))
			if incErr := s.store.IncrementDLQRetry(ctx, e.ID, next, err.Error()); incErr != nil {
				return sum, eris.Wrapf(incErr, "importer: reschedule dead letter %s", e.ID)
			}
			e.RetryCount++
			if !e.CanRetry() {
				log.Error("dead letter exhausted its replays", zap.Int("retry_count", e.RetryCount), zap.Error(err))
				continue
			}
			log.Warn("dead letter replay failed", zap.Int("retry_count", e.RetryCount), zap.Error(err))
			continue
		}

		if err := s.store.RemoveDLQ(ctx, e.ID); err != nil {
			return sum, eris.Wrapf(err, "importer: remove dead letter %s", e.ID)
		}
		sum.Succeeded++
		log.Info("dead letter replayed")
	}
	return sum, nil
}
