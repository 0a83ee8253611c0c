package resilience

import (
	"time"

	"github.com/sells-group/company-directory/internal/model"
)

// DefaultDLQMaxRetries is how many replays a dead-lettered import gets.
const DefaultDLQMaxRetries = 3

// DLQEntry is an incoming document whose import failed and can be replayed.
type DLQEntry struct {
	ID           string        `json:"id"`
	Domain       string        `json:"domain"`
	Record       *model.Record `json:"record"`
	Error        string        `json:"error"`
	ErrorType    string        `json:"error_type"` // "transient" or "permanent"
	RetryCount   int           `json:"retry_count"`
	MaxRetries   int           `json:"max_retries"`
	NextRetryAt  time.Time     `json:"next_retry_at"`
	CreatedAt    time.Time     `json:"created_at"`
	LastFailedAt time.Time     `json:"last_failed_at"`
}

// DLQFilter specifies criteria for querying the dead letter queue.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry returns true if this entry hasn't used up its replays.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

// NextRetryDelay is the wait before replay number retryCount+1: one minute,
// doubling per replay, capped at an hour.
func NextRetryDelay(retryCount int) time.Duration {
	d := time.Minute
	for i := 0; i < retryCount && d < time.Hour; i++ {
		d *= 2
	}
	return min(d, time.Hour)
}
