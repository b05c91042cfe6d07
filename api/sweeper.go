/*
sweeper.go - Automated checkout sweeper

PURPOSE:
  Periodically finds confirmed or checked-in bookings whose checkout date
  has passed and completes them, so stale bookings never linger in an open
  state when no front-desk system drives the check-out explicitly.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Sweeps bookings where today >= checkout date
  - Complete is idempotent, so overlapping sweeps are harmless
  - A failed completion is logged and retried on the next sweep

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewCheckoutSweeper(store, handler)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: CheckOutBooking endpoint (manual check-out)
  - booking/coordinator.go: Complete transition
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/booking-engine/engine"
	"github.com/warp/booking-engine/store/sqlite"
)

// CheckoutSweeper completes open bookings past their checkout date.
type CheckoutSweeper struct {
	Store         *sqlite.Store
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewCheckoutSweeper creates a new sweeper.
func NewCheckoutSweeper(store *sqlite.Store, handler *Handler) *CheckoutSweeper {
	return &CheckoutSweeper{
		Store:         store,
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the sweeper.
func (cs *CheckoutSweeper) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.Enabled {
		log.Println("[Sweeper] Disabled, not starting")
		return
	}

	cs.ticker = time.NewTicker(cs.CheckInterval)
	cs.wg.Add(1)

	go cs.run()

	log.Printf("[Sweeper] Started with check interval: %v", cs.CheckInterval)
}

// Stop stops the sweeper.
func (cs *CheckoutSweeper) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ticker != nil {
		cs.ticker.Stop()
		close(cs.stop)
		cs.wg.Wait()
		log.Println("[Sweeper] Stopped")
	}
}

func (cs *CheckoutSweeper) run() {
	defer cs.wg.Done()

	// Run immediately on start
	cs.Sweep(context.Background())

	for {
		select {
		case <-cs.ticker.C:
			cs.Sweep(context.Background())
		case <-cs.stop:
			return
		}
	}
}

// Sweep completes every open booking whose checkout date is today or
// earlier. Exported so tests and admin tooling can drive it directly.
func (cs *CheckoutSweeper) Sweep(ctx context.Context) {
	today := engine.Today()

	open, err := cs.Store.ListOpenBookingsBefore(ctx, today)
	if err != nil {
		log.Printf("[Sweeper] Failed to list open bookings: %v", err)
		return
	}
	if len(open) == 0 {
		return
	}

	log.Printf("[Sweeper] Completing %d booking(s) past checkout", len(open))
	completed := 0
	for _, b := range open {
		if _, err := cs.Handler.Coordinator.Complete(ctx, b.ID, today); err != nil {
			// Retried on the next sweep.
			log.Printf("[Sweeper] Failed to complete booking %s: %v", b.ID, err)
			continue
		}
		completed++
	}
	log.Printf("[Sweeper] Completed %d/%d booking(s)", completed, len(open))
}
