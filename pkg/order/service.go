package order

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"buffet/pkg/catalog"
	"buffet/pkg/lock"
)

// commitKey names the single critical section every commit runs in.
const commitKey = "commit"

// command envelopes the work the service goroutine must perform.
type command struct {
	id    string
	req   Request
	reply chan commandResult
}

// commandResult contains the committed order or an error to propagate back to the caller.
type commandResult struct {
	order Order
	err   error
}

// Service hands commits to one goroutine, which takes the commit lock and
// runs the pipeline. Reads go straight to the ledger.
type Service struct {
	pipeline      *Pipeline
	ledger        Ledger
	locker        lock.Locker
	logger        *slog.Logger
	commitTimeout time.Duration
	queueTimeout  time.Duration
	commands      chan command
	cancellations chan struct{}
	done          chan struct{}
	closeOnce     sync.Once
}

// Option customizes NewService.
type Option func(*Service)

// WithLocker replaces the in-process lock, e.g. with a lock.Redis shared by replicas.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithCommitTimeout bounds one commit, lock wait included.
func WithCommitTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.commitTimeout = d
		}
	}
}

// WithQueueTimeout bounds how long Submit waits for the goroutine to take a commit.
func WithQueueTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.queueTimeout = d
		}
	}
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService launches the coordinating goroutine immediately.
func NewService(ledger Ledger, opts ...Option) *Service {
	svc := &Service{
		ledger:        ledger,
		locker:        lock.NewLocal(),
		logger:        slog.Default(),
		commitTimeout: 10 * time.Second,
		queueTimeout:  20 * time.Second,
		commands:      make(chan command),
		cancellations: make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.pipeline = NewPipeline(ledger, svc.logger)
	go svc.loop()
	return svc
}

// loop runs one commit at a time. Commits never see the caller's context:
// once started, a commit runs to completion or to its own timeout.
func (s *Service) loop() {
	defer close(s.done)
	for {
		select {
		case cmd := <-s.commands:
			order, err := s.run(cmd)
			cmd.reply <- commandResult{order: order, err: err}
		case <-s.cancellations:
			return
		}
	}
}

func (s *Service) run(cmd command) (Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.commitTimeout)
	defer cancel()

	release, err := s.locker.Acquire(ctx, commitKey)
	if err != nil {
		s.logger.Warn("commit lock unavailable", "commit_id", cmd.id, "error", err)
		return Order{}, fmt.Errorf("%w: %v", ErrQueueBusy, err)
	}
	defer release()
	return s.pipeline.Commit(ctx, cmd.id, cmd.req)
}

// Submit commits req and waits for the outcome. If ctx ends after the commit
// was handed over, the commit still finishes but the caller gets
// ErrCommitFailed since the outcome is unknown to it.
func (s *Service) Submit(ctx context.Context, req Request) (Order, error) {
	id := uuid.NewString()
	reply := make(chan commandResult, 1)
	cmd := command{id: id, req: req, reply: reply}

	select {
	case s.commands <- cmd:
	case <-s.cancellations:
		return Order{}, fmt.Errorf("%w: service is shutting down", ErrQueueBusy)
	case <-ctx.Done():
		return Order{}, fmt.Errorf("%w: %v", ErrQueueBusy, ctx.Err())
	case <-time.After(s.queueTimeout):
		return Order{}, fmt.Errorf("%w: waited %s", ErrQueueBusy, s.queueTimeout)
	}

	select {
	case res := <-reply:
		return res.order, res.err
	case <-ctx.Done():
		s.logger.Warn("caller left before commit finished", "commit_id", id, "error", ctx.Err())
		return Order{}, fmt.Errorf("%w: outcome unknown, audit stock before retrying (commit %s)", ErrCommitFailed, id)
	}
}

// Catalog reads the products for display. It does not wait for commits in flight.
func (s *Service) Catalog(ctx context.Context) ([]catalog.Product, error) {
	return s.ledger.ReadCatalog(ctx)
}

// List returns the sales ledger.
func (s *Service) List(ctx context.Context) ([]catalog.Sale, error) {
	return s.ledger.ReadOrders(ctx)
}

// Close stops the goroutine after the commit in progress, if any, finishes.
func (s *Service) Close() {
	s.closeOnce.Do(func() { close(s.cancellations) })
	<-s.done
}
