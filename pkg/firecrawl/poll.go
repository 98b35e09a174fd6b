package firecrawl

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCrawlFailed is returned when the crawl job ends in a failed or
// cancelled state.
var ErrCrawlFailed = errors.New("firecrawl: crawl job did not complete")

// PollOption configures PollCrawl.
type PollOption func(*poller)

type poller struct {
	initial   time.Duration
	cap       time.Duration
	timeout   time.Duration
	maxErrors int
	progress  func(completed, total int)
}

// WithPollInterval sets the first wait between status checks.
func WithPollInterval(d time.Duration) PollOption {
	return func(p *poller) { p.initial = d }
}

// WithPollCap bounds the wait between status checks.
func WithPollCap(d time.Duration) PollOption {
	return func(p *poller) { p.cap = d }
}

// WithPollTimeout bounds the whole wait. It only applies when ctx carries no
// deadline of its own.
func WithPollTimeout(d time.Duration) PollOption {
	return func(p *poller) { p.timeout = d }
}

// WithPollErrorBudget sets how many consecutive retryable status errors
// (429 and 5xx) are tolerated before giving up.
func WithPollErrorBudget(n int) PollOption {
	return func(p *poller) { p.maxErrors = n }
}

// WithProgress registers a callback invoked after every status check.
func WithProgress(fn func(completed, total int)) PollOption {
	return func(p *poller) { p.progress = fn }
}

// PollCrawl waits for crawl job id to reach a terminal state and returns its
// final status. The wait doubles after each check, starting at 2s and capped
// at 15s.
func PollCrawl(ctx context.Context, client Client, id string, opts ...PollOption) (*CrawlStatusResponse, error) {
	p := poller{
		initial:   2 * time.Second,
		cap:       15 * time.Second,
		timeout:   5 * time.Minute,
		maxErrors: 3,
	}
	for _, opt := range opts {
		opt(&p)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	log := zap.L().With(zap.String("crawl_id", id))
	wait := p.initial
	errorsInRow := 0

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		status, err := client.GetCrawlStatus(ctx, id)
		switch {
		case err != nil && retryableStatus(err) && errorsInRow < p.maxErrors:
			errorsInRow++
			log.Debug("firecrawl: status check failed, retrying", zap.Int("attempt", errorsInRow), zap.Error(err))
		case err != nil:
			return nil, eris.Wrapf(err, "firecrawl: poll crawl %s", id)
		default:
			errorsInRow = 0
			if p.progress != nil {
				p.progress(status.Completed, status.Total)
			}
			switch status.Status {
			case "completed":
				log.Debug("firecrawl: crawl completed", zap.Int("pages", len(status.Data)))
				return status, nil
			case "failed", "cancelled":
				return status, eris.Wrapf(ErrCrawlFailed, "firecrawl: crawl %s %s", id, status.Status)
			}
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "firecrawl: crawl %s still running", id)
		case <-timer.C:
		}

		wait = min(wait*2, p.cap)
	}
}

func retryableStatus(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
}
