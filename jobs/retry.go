package jobs

import (
	"time"

	"github.com/hibiken/asynq"
)

// RetryPolicy bounds attempts per job and spaces them with exponential
// backoff: Base, Base*Factor, Base*Factor^2, ...
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Factor      int
}

// DefaultRetryPolicy allows three attempts, waiting 2s then 4s.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Base: 2 * time.Second, Factor: 2}

// MaxRetry is the number of retries after the first attempt.
func (p RetryPolicy) MaxRetry() int {
	if p.MaxAttempts <= 1 {
		return 0
	}
	return p.MaxAttempts - 1
}

// Delay returns the wait before the next attempt once a job has already been
// retried `retried` times.
func (p RetryPolicy) Delay(retried int) time.Duration {
	factor := p.Factor
	if factor < 2 {
		factor = 2
	}
	d := p.Base
	for i := 0; i < retried; i++ {
		d *= time.Duration(factor)
	}
	return d
}

// RetryDelayFunc adapts the policy for the Asynq server. Asynq passes the
// retry count before increment, so the first retry waits Base.
func (p RetryPolicy) RetryDelayFunc() asynq.RetryDelayFunc {
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		return p.Delay(n)
	}
}

// TaskOptions are applied to every proctoring enqueue. Completed tasks are
// deleted at once (no retention); exhausted tasks are archived by Asynq.
func (p RetryPolicy) TaskOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(QueueProctoring),
		asynq.MaxRetry(p.MaxRetry()),
		asynq.Timeout(2 * time.Minute),
	}
}
