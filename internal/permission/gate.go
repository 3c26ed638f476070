package permission

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Snapshot is the OS authorization state at one decision point. It is
// recomputed for every gating decision and never cached across them, because
// the user can change it from OS settings at any time.
type Snapshot struct {
	LocationAlways       bool `json:"location_always"`
	LocationPrecise      bool `json:"location_precise"`
	NotificationsGranted bool `json:"notifications_granted"`
	ServicesEnabled      bool `json:"services_enabled"`
}

// BackgroundReady reports whether background tracking is fully authorized.
func (s Snapshot) BackgroundReady() bool {
	return s.ServicesEnabled && s.LocationAlways && s.LocationPrecise
}

// Prompt kinds forwarded to the platform bridge.
type Prompt string

const (
	PromptForeground    Prompt = "foreground_location"
	PromptBackground    Prompt = "background_location"
	PromptNotifications Prompt = "notifications"
)

// Gate negotiates OS permissions. Denial is a terminal negative result, never
// an error to retry.
type Gate interface {
	Current() Snapshot
	RequestNotifications(ctx context.Context) (bool, error)
	RequestAlways(ctx context.Context) (Snapshot, error)
	Changes() <-chan Snapshot
}

// Bridge is a Gate fed by a platform bridge: the bridge reports authorization
// snapshots as they change, and receives prompt requests through an optional
// hook. Prompt outcomes settle asynchronously, so each request re-polls the
// snapshot with a bounded exponential backoff instead of a single fixed delay.
type Bridge struct {
	mu      sync.RWMutex
	snap    Snapshot
	settle  time.Duration
	tries   uint64
	prompt  func(Prompt)
	changes chan Snapshot
}

func NewBridge(initial Snapshot, settle time.Duration, prompt func(Prompt)) *Bridge {
	if settle <= 0 {
		settle = 600 * time.Millisecond
	}
	return &Bridge{
		snap:    initial,
		settle:  settle,
		tries:   4,
		prompt:  prompt,
		changes: make(chan Snapshot, 8),
	}
}

func (b *Bridge) Current() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

// Set records a snapshot reported by the platform bridge and notifies the
// change subscriber.
func (b *Bridge) Set(snap Snapshot) {
	b.mu.Lock()
	b.snap = snap
	b.mu.Unlock()

	select {
	case b.changes <- snap:
	default:
	}
}

// Changes is a single-consumer subscription to reported snapshots.
func (b *Bridge) Changes() <-chan Snapshot {
	return b.changes
}

func (b *Bridge) RequestNotifications(ctx context.Context) (bool, error) {
	if b.Current().NotificationsGranted {
		return true, nil
	}
	b.ask(PromptNotifications)
	snap, err := b.await(ctx, func(s Snapshot) bool { return s.NotificationsGranted })
	if err != nil {
		return false, err
	}
	return snap.NotificationsGranted, nil
}

// RequestAlways runs the foreground-then-background prompt sequence and
// reports the final snapshot. A snapshot without LocationAlways is a denial,
// not an error.
func (b *Bridge) RequestAlways(ctx context.Context) (Snapshot, error) {
	snap := b.Current()
	if snap.BackgroundReady() {
		return snap, nil
	}

	b.ask(PromptForeground)
	if _, err := b.await(ctx, func(s Snapshot) bool { return s.LocationPrecise }); err != nil {
		return Snapshot{}, err
	}

	b.ask(PromptBackground)
	snap, err := b.await(ctx, func(s Snapshot) bool { return s.LocationAlways })
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (b *Bridge) ask(p Prompt) {
	if b.prompt != nil {
		b.prompt(p)
	}
}

var errNotSettled = errors.New("authorization not settled")

// await re-polls the snapshot until ok or the retry budget runs out, then
// returns whatever state the prompt settled in.
func (b *Bridge) await(ctx context.Context, ok func(Snapshot) bool) (Snapshot, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(b.settle),
		backoff.WithMaxInterval(4*b.settle),
	), b.tries), ctx)

	var snap Snapshot
	err := backoff.Retry(func() error {
		snap = b.Current()
		if ok(snap) {
			return nil
		}
		return errNotSettled
	}, policy)
	if err != nil && ctx.Err() != nil {
		return Snapshot{}, ctx.Err()
	}
	return snap, nil
}
