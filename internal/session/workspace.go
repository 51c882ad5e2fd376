// Package session keeps the live, group-scoped view of one signed-in
// identity: its active group's document, entries, payments and members, and
// the summary derived from them.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fkhayef/chaikhata/internal/entry"
	"github.com/fkhayef/chaikhata/internal/group"
	"github.com/fkhayef/chaikhata/internal/payment"
	"github.com/fkhayef/chaikhata/internal/realtime"
	"github.com/fkhayef/chaikhata/internal/report"
	"github.com/fkhayef/chaikhata/internal/user"
)

// ErrProfileNotFound is returned by Run when the identity has no profile.
var ErrProfileNotFound = errors.New("profile not found")

// State is the workspace content at one version. Group-scoped fields are
// empty until the active group's first snapshots arrive.
type State struct {
	Version  uint64
	Profile  *user.User
	GroupID  string
	Group    *group.Group
	Entries  []*entry.Entry
	Payments []*payment.Payment
	Members  []*user.User
	Summary  report.Summary
}

// Workspace holds State for one identity and keeps it current. Switching the
// active group clears every group-scoped field and tears down the previous
// group's subscriptions before new ones are opened.
type Workspace struct {
	hub    *realtime.Hub
	source Source
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger

	updates chan State

	mu    sync.Mutex
	gen   uint64
	state State
	stop  func()
}

// NewWorkspace creates an empty workspace.
func NewWorkspace(hub *realtime.Hub, source Source, loc *time.Location, logger *slog.Logger) *Workspace {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		hub:     hub,
		source:  source,
		loc:     loc,
		now:     time.Now,
		logger:  logger,
		updates: make(chan State, 1),
	}
}

// Updates delivers the latest State after every change. Intermediate states
// are dropped when the reader falls behind.
func (w *Workspace) Updates() <-chan State {
	return w.updates
}

// State returns the current state.
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// publish must be called with mu held.
func (w *Workspace) publish() {
	select {
	case <-w.updates:
	default:
	}
	w.updates <- w.state
}

// apply mutates the state if gen is still the active generation.
func (w *Workspace) apply(gen uint64, fn func(s *State)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return
	}
	fn(&w.state)
	w.state.Summary = report.Compute(w.state.Entries, w.state.Payments, w.now(), w.loc)
	w.state.Version++
	w.publish()
}

// Run follows uid's profile until ctx is cancelled, switching the workspace
// whenever the profile's active group changes.
func (w *Workspace) Run(ctx context.Context, uid string) error {
	defer w.Close()

	profile := realtime.Subscribe(ctx, w.hub, realtime.Change{Key: uid, Collection: realtime.Profile},
		func(ctx context.Context) (*user.User, error) { return w.source.Profile(ctx, uid) })
	defer profile.Close()

	for snap := range profile.All() {
		if snap.Err != nil {
			w.logger.WarnContext(ctx, "Profile snapshot failed", "user_id", uid, "error", snap.Err)
			continue
		}
		if snap.Data == nil {
			return ErrProfileNotFound
		}

		groupID := ""
		if snap.Data.GroupID != nil {
			groupID = *snap.Data.GroupID
		}

		w.mu.Lock()
		switched := groupID != w.state.GroupID || snap.Seq == 1
		w.mu.Unlock()

		if switched {
			if err := w.Switch(ctx, groupID); err != nil && ctx.Err() == nil {
				w.logger.WarnContext(ctx, "Initial group load failed", "group_id", groupID, "error", err)
			}
		}
		w.setProfile(snap.Data)
	}
	return ctx.Err()
}

func (w *Workspace) setProfile(p *user.User) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Profile = p
	w.state.Version++
	w.publish()
}

// Switch makes groupID the active group. All group-scoped state is cleared
// and the previous subscriptions are closed before it returns control to new
// ones; snapshots still in flight for the old group are discarded. Switch
// waits until each of the new group's four collections has loaded once.
// An empty groupID leaves the workspace with no active group.
func (w *Workspace) Switch(ctx context.Context, groupID string) error {
	w.mu.Lock()
	w.gen++
	gen := w.gen
	old := w.stop
	w.stop = nil
	w.state = State{
		Version: w.state.Version + 1,
		Profile: w.state.Profile,
		GroupID: groupID,
		Summary: report.Compute(nil, nil, w.now(), w.loc),
	}
	w.publish()
	w.mu.Unlock()

	if old != nil {
		old()
	}
	if groupID == "" {
		return nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	ready := make([]chan error, 0, 4)
	var wg sync.WaitGroup
	start := func(run func(ready chan<- error)) {
		ch := make(chan error, 1)
		ready = append(ready, ch)
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ch)
		}()
	}

	groupSub := realtime.Subscribe(subCtx, w.hub, realtime.Change{Key: groupID, Collection: realtime.Group},
		func(ctx context.Context) (*group.Group, error) { return w.source.Group(ctx, groupID) })
	entrySub := realtime.Subscribe(subCtx, w.hub, realtime.Change{Key: groupID, Collection: realtime.Entries},
		func(ctx context.Context) ([]*entry.Entry, error) { return w.source.Entries(ctx, groupID) })
	paymentSub := realtime.Subscribe(subCtx, w.hub, realtime.Change{Key: groupID, Collection: realtime.Payments},
		func(ctx context.Context) ([]*payment.Payment, error) { return w.source.Payments(ctx, groupID) })
	memberSub := realtime.Subscribe(subCtx, w.hub, realtime.Change{Key: groupID, Collection: realtime.Members},
		func(ctx context.Context) ([]*user.User, error) { return w.source.Members(ctx, groupID) })

	start(func(r chan<- error) {
		follow(groupSub, r, func(g *group.Group) { w.apply(gen, func(s *State) { s.Group = g }) })
	})
	start(func(r chan<- error) {
		follow(entrySub, r, func(e []*entry.Entry) { w.apply(gen, func(s *State) { s.Entries = e }) })
	})
	start(func(r chan<- error) {
		follow(paymentSub, r, func(p []*payment.Payment) { w.apply(gen, func(s *State) { s.Payments = p }) })
	})
	start(func(r chan<- error) {
		follow(memberSub, r, func(m []*user.User) { w.apply(gen, func(s *State) { s.Members = m }) })
	})

	stop := func() {
		cancel()
		groupSub.Close()
		entrySub.Close()
		paymentSub.Close()
		memberSub.Close()
		wg.Wait()
	}

	w.mu.Lock()
	if gen != w.gen {
		// Superseded by a concurrent Switch.
		w.mu.Unlock()
		stop()
		return nil
	}
	w.stop = stop
	w.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range ready {
		g.Go(func() error {
			select {
			case err := <-ch:
				return err
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}

// follow applies every successful snapshot of sub and reports the outcome of
// the first one on ready.
func follow[T any](sub *realtime.Subscription[T], ready chan<- error, apply func(T)) {
	first := true
	for snap := range sub.Events() {
		if snap.Err == nil {
			apply(snap.Data)
		}
		if first {
			ready <- snap.Err
			first = false
		}
	}
	if first {
		ready <- context.Canceled
	}
}

// Close tears down the active group's subscriptions.
func (w *Workspace) Close() {
	w.mu.Lock()
	w.gen++
	stop := w.stop
	w.stop = nil
	w.mu.Unlock()

	if stop != nil {
		stop()
	}
}
