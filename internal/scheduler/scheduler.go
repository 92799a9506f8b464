// Package scheduler maintains one recurring rotation timer per application.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/systmms/keygate/internal/logging"
)

// RotateFunc is the action invoked when an application's timer fires.
type RotateFunc func(ctx context.Context, app string) error

// timerState holds one armed per-application timer.
type timerState struct {
	periodDays int
	cancel     context.CancelFunc
	done       chan struct{}
}

// Scheduler is a per-application recurring timer registry. Schedule replaces
// any existing timer for the same application; at most one timer exists per
// application at any time.
type Scheduler struct {
	rotate RotateFunc
	clock  clockwork.Clock
	logger *logging.Logger

	mu     sync.Mutex
	timers map[string]*timerState
}

// New creates a scheduler dispatching fires to rotate.
func New(rotate RotateFunc, clock clockwork.Clock, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		rotate: rotate,
		clock:  clock,
		logger: logger,
		timers: make(map[string]*timerState),
	}
}

// Schedule arms (or replaces) the recurring timer for app. The previous
// timer, if any, is canceled and joined before the new one is armed, so no
// two timers for one application ever coexist.
func (s *Scheduler) Schedule(app string, periodDays int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, exists := s.timers[app]; exists {
		prev.cancel()
		<-prev.done
	}

	ctx, cancel := context.WithCancel(context.Background())
	state := &timerState{
		periodDays: periodDays,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.timers[app] = state

	go s.run(ctx, app, state)
	s.logger.Info("scheduled rotation for app %s every %d day(s)", app, periodDays)
}

// Period returns the armed period for app, if a timer exists.
func (s *Scheduler) Period(app string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, exists := s.timers[app]
	if !exists {
		return 0, false
	}
	return state.periodDays, true
}

// Stop cancels every timer and waits for their loops to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	timers := s.timers
	s.timers = make(map[string]*timerState)
	s.mu.Unlock()

	for _, state := range timers {
		state.cancel()
		<-state.done
	}
}

// run is the timer loop for one application. Fires dispatch the rotation on
// their own goroutine so a slow or failing rotation never delays timer
// bookkeeping, and a failed rotation never deregisters the timer.
func (s *Scheduler) run(ctx context.Context, app string, state *timerState) {
	defer close(state.done)

	period := time.Duration(state.periodDays) * 24 * time.Hour
	ticker := s.clock.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			go s.fire(ctx, app)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, app string) {
	if err := s.rotate(ctx, app); err != nil {
		s.logger.Error("scheduled rotation failed for app %s: %v", app, err)
		return
	}
	s.logger.Info("scheduled rotation completed for app %s", app)
}
