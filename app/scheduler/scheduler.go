package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Priority orders queued requests. Higher priorities dispatch first; within a
// tier dispatch is FIFO.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

// Operation is a single outbound API call.
type Operation func(ctx context.Context) (any, error)

type Config struct {
	MaxConcurrent int           // simultaneous in-flight requests
	MinInterval   time.Duration // minimum delay between dispatches; negative disables spacing
	MaxRetries    int           // retry ceiling for transient failures
	BaseBackoff   time.Duration // first retry delay, doubled per attempt
	MaxBackoff    time.Duration // backoff cap
	Cooldown      time.Duration // rate-limit cooldown when no Retry-After is given
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 1,
		MinInterval:   250 * time.Millisecond,
		MaxRetries:    3,
		BaseBackoff:   time.Second,
		MaxBackoff:    30 * time.Second,
		Cooldown:      30 * time.Second,
	}
}

type result struct {
	value any
	err   error
}

type request struct {
	ctx      context.Context
	op       Operation
	priority Priority
	attempts int
	done     chan result
}

// Scheduler throttles, retries, and deduplicates outbound API calls. It is
// the single concurrency bound for the whole engine: no matter how many feed
// operations are logically in flight, at most MaxConcurrent network calls
// run at once, with MinInterval between dispatches.
type Scheduler struct {
	cfg   Config
	group singleflight.Group

	mu             sync.Mutex
	queues         [3][]*request // indexed by Priority
	rateLimitUntil time.Time
	lastDispatch   time.Time

	wake   chan struct{}
	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = def.MinInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cfg:    cfg,
		wake:   make(chan struct{}, 1),
		sem:    make(chan struct{}, cfg.MaxConcurrent),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.dispatchLoop()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.failPending(ErrStopped)
}

// Do enqueues an operation and blocks until it completes, is rejected, or the
// caller's context is cancelled. If dedupKey is non-empty and an identical
// request is already in flight, the caller shares its result instead of
// issuing a duplicate call; the dedup entry is released on completion.
func (s *Scheduler) Do(ctx context.Context, op Operation, priority Priority, dedupKey string) (any, error) {
	if dedupKey == "" {
		return s.do(ctx, op, priority)
	}

	value, err, shared := s.group.Do(dedupKey, func() (any, error) {
		return s.do(ctx, op, priority)
	})
	if shared {
		slog.Debug("Request deduplicated", "key", dedupKey)
	}
	return value, err
}

func (s *Scheduler) do(ctx context.Context, op Operation, priority Priority) (any, error) {
	req := &request{
		ctx:      ctx,
		op:       op,
		priority: priority,
		done:     make(chan result, 1),
	}
	s.push(req)

	select {
	case res := <-req.done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Scheduler) push(req *request) {
	s.mu.Lock()
	s.queues[req.priority] = append(s.queues[req.priority], req)
	s.mu.Unlock()
	s.signal()
}

// pushFront re-queues a rate-limited request at the head of its tier so it
// dispatches first once the cooldown elapses.
func (s *Scheduler) pushFront(req *request) {
	s.mu.Lock()
	s.queues[req.priority] = append([]*request{req}, s.queues[req.priority]...)
	s.mu.Unlock()
	s.signal()
}

func (s *Scheduler) pop() *request {
	s.mu.Lock()
	defer s.mu.Unlock()

	for p := PriorityHigh; p >= PriorityLow; p-- {
		if q := s.queues[p]; len(q) > 0 {
			req := q[0]
			s.queues[p] = q[1:]
			return req
		}
	}
	return nil
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// dispatchDelay returns how long dispatch must wait to honor both the
// rate-limit cooldown and the minimum inter-request interval.
func (s *Scheduler) dispatchDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var delay time.Duration
	if until := s.rateLimitUntil.Sub(now); until > delay {
		delay = until
	}
	if !s.lastDispatch.IsZero() {
		if next := s.lastDispatch.Add(s.cfg.MinInterval).Sub(now); next > delay {
			delay = next
		}
	}
	return delay
}

func (s *Scheduler) dispatchLoop() {
	defer s.wg.Done()

	for {
		// Claim a worker slot before choosing a request, so the priority
		// decision is made at dispatch time rather than while a slot is
		// still busy.
		select {
		case s.sem <- struct{}{}:
		case <-s.ctx.Done():
			return
		}

		var req *request
		for req == nil {
			req = s.pop()
			if req != nil {
				break
			}
			select {
			case <-s.ctx.Done():
				<-s.sem
				return
			case <-s.wake:
			}
		}

		if req.ctx.Err() != nil {
			req.done <- result{err: req.ctx.Err()}
			<-s.sem
			continue
		}

		if delay := s.dispatchDelay(); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-s.ctx.Done():
				timer.Stop()
				req.done <- result{err: ErrStopped}
				<-s.sem
				return
			case <-timer.C:
			}
		}

		s.mu.Lock()
		s.lastDispatch = time.Now()
		s.mu.Unlock()

		s.wg.Add(1)
		go s.execute(req)
	}
}

func (s *Scheduler) execute(req *request) {
	defer s.wg.Done()
	defer func() {
		<-s.sem
		s.signal()
	}()

	value, err := req.op(req.ctx)
	if err == nil {
		req.done <- result{value: value}
		return
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		if reqErr.RateLimited() {
			// The failed request goes back to the front of its tier and
			// dispatch suspends until the cooldown elapses. Rate limits do
			// not consume the retry budget.
			s.enterCooldown(reqErr.RetryAfter)
			s.pushFront(req)
			return
		}
		if !reqErr.Retryable() {
			req.done <- result{err: err}
			return
		}
	}

	req.attempts++
	if req.attempts > s.cfg.MaxRetries {
		slog.Error("Request failed after maximum retries", "priority", req.priority.String(), "attempts", req.attempts, "error", err)
		req.done <- result{err: err}
		return
	}

	backoff := s.backoff(req.attempts)
	slog.Warn("Request retry scheduled", "priority", req.priority.String(), "attempt", req.attempts, "max_retries", s.cfg.MaxRetries, "delay", backoff.String(), "error", err)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(backoff)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			req.done <- result{err: ErrStopped}
		case <-req.ctx.Done():
			req.done <- result{err: req.ctx.Err()}
		case <-timer.C:
			s.push(req)
		}
	}()
}

func (s *Scheduler) backoff(attempt int) time.Duration {
	backoff := s.cfg.BaseBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > s.cfg.MaxBackoff {
		backoff = s.cfg.MaxBackoff
	}
	return backoff
}

func (s *Scheduler) enterCooldown(retryAfter time.Duration) {
	cooldown := s.cfg.Cooldown
	if retryAfter > 0 {
		cooldown = retryAfter
	}

	s.mu.Lock()
	until := time.Now().Add(cooldown)
	if until.After(s.rateLimitUntil) {
		s.rateLimitUntil = until
	}
	s.mu.Unlock()

	slog.Warn("Rate limited, dispatch suspended", "cooldown", cooldown.String())
}

func (s *Scheduler) failPending(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for p := range s.queues {
		for _, req := range s.queues[p] {
			req.done <- result{err: err}
		}
		s.queues[p] = nil
	}
}
