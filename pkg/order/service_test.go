package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, f *fixture, opts ...Option) *Service {
	t.Helper()
	svc := NewService(f.ledger, append([]Option{WithLogger(quietLogger)}, opts...)...)
	t.Cleanup(svc.Close)
	return svc
}

func TestServiceLastUnitGoesToOneCustomer(t *testing.T) {
	f := newFixture(t)
	svc := newTestService(t, f)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), Request{Space: 1, Items: []RequestItem{{ProductName: "Medialuna", Quantity: 1}}})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientStock)
			rejected++
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, "0", f.stockRows(t)[2][1])
}

func TestServiceAssignsDistinctIDsUnderContention(t *testing.T) {
	f := newFixture(t)
	svc := newTestService(t, f)

	ids := make(chan int, 10)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := svc.Submit(context.Background(), Request{Space: 3, Items: []RequestItem{{ProductName: "Empanada", Quantity: 1}}})
			if err == nil {
				ids <- order.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int]bool)
	for id := range ids {
		assert.False(t, seen[id], "id %d assigned twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, 5, "space 3 holds five empanadas")
	assert.Equal(t, "0", f.stockRows(t)[0][3])

	sales, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, sales, 5)
}

func TestServiceCallerLeavingDoesNotAbortCommit(t *testing.T) {
	f := newFixture(t)
	f.store.entered = make(chan struct{}, 1)
	f.store.block = make(chan struct{})
	svc := newTestService(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-f.store.entered
		cancel()
	}()
	_, err := svc.Submit(ctx, Request{Space: 1, Items: []RequestItem{{ProductName: "Empanada", Quantity: 1}}})
	require.ErrorIs(t, err, ErrCommitFailed)
	assert.Contains(t, err.Error(), "outcome unknown")

	close(f.store.block)
	svc.Close()

	assert.Len(t, f.salesRows(t), 1)
	assert.Equal(t, "4", f.stockRows(t)[0][1])
}

func TestServiceRejectsAfterClose(t *testing.T) {
	f := newFixture(t)
	svc := newTestService(t, f)
	svc.Close()

	_, err := svc.Submit(context.Background(), Request{Space: 1, Items: []RequestItem{{ProductName: "Empanada", Quantity: 1}}})
	assert.ErrorIs(t, err, ErrQueueBusy)
}

func TestServiceCommitTimeoutReportsFailure(t *testing.T) {
	f := newFixture(t)
	f.store.entered = make(chan struct{}, 1)
	f.store.block = make(chan struct{})
	svc := newTestService(t, f, WithCommitTimeout(20*time.Millisecond))

	_, err := svc.Submit(context.Background(), Request{Space: 1, Items: []RequestItem{{ProductName: "Empanada", Quantity: 1}}})
	require.ErrorIs(t, err, ErrCommitFailed)
	assert.Equal(t, "5", f.stockRows(t)[0][1], "stock restored after the timed-out append")
}

func TestServiceCatalogReadsLedger(t *testing.T) {
	f := newFixture(t)
	svc := newTestService(t, f)

	products, err := svc.Catalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 3)
}
