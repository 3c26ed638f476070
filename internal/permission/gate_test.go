package permission

import (
	"context"
	"testing"
	"time"
)

func grantedSnapshot() Snapshot {
	return Snapshot{LocationAlways: true, LocationPrecise: true, NotificationsGranted: true, ServicesEnabled: true}
}

func TestBackgroundReady(t *testing.T) {
	if !grantedSnapshot().BackgroundReady() {
		t.Fatalf("expected ready")
	}
	snap := grantedSnapshot()
	snap.LocationPrecise = false
	if snap.BackgroundReady() {
		t.Fatalf("precision loss must not be ready")
	}
	snap = grantedSnapshot()
	snap.ServicesEnabled = false
	if snap.BackgroundReady() {
		t.Fatalf("disabled services must not be ready")
	}
}

func TestRequestAlwaysAlreadyGranted(t *testing.T) {
	bridge := NewBridge(grantedSnapshot(), time.Millisecond, func(Prompt) {
		t.Fatalf("no prompt expected when already granted")
	})
	snap, err := bridge.RequestAlways(context.Background())
	if err != nil {
		t.Fatalf("request always: %v", err)
	}
	if !snap.BackgroundReady() {
		t.Fatalf("expected ready snapshot")
	}
}

func TestRequestAlwaysPromptSequence(t *testing.T) {
	var bridge *Bridge
	var prompts []Prompt
	bridge = NewBridge(Snapshot{ServicesEnabled: true, NotificationsGranted: true}, time.Millisecond, func(p Prompt) {
		prompts = append(prompts, p)
		// the user grants each prompt shortly after it is shown
		go func(p Prompt) {
			snap := bridge.Current()
			switch p {
			case PromptForeground:
				snap.LocationPrecise = true
			case PromptBackground:
				snap.LocationAlways = true
			}
			bridge.Set(snap)
		}(p)
	})

	snap, err := bridge.RequestAlways(context.Background())
	if err != nil {
		t.Fatalf("request always: %v", err)
	}
	if !snap.LocationAlways || !snap.LocationPrecise {
		t.Fatalf("expected granted snapshot: %+v", snap)
	}
	if len(prompts) != 2 || prompts[0] != PromptForeground || prompts[1] != PromptBackground {
		t.Fatalf("unexpected prompt sequence: %v", prompts)
	}
}

func TestRequestAlwaysDeniedIsNotError(t *testing.T) {
	bridge := NewBridge(Snapshot{ServicesEnabled: true}, time.Millisecond, func(Prompt) {})
	snap, err := bridge.RequestAlways(context.Background())
	if err != nil {
		t.Fatalf("denial must not be an error: %v", err)
	}
	if snap.LocationAlways {
		t.Fatalf("expected denial snapshot")
	}
}

func TestRequestNotifications(t *testing.T) {
	var bridge *Bridge
	bridge = NewBridge(Snapshot{ServicesEnabled: true}, time.Millisecond, func(p Prompt) {
		if p != PromptNotifications {
			t.Fatalf("unexpected prompt %v", p)
		}
		go func() {
			snap := bridge.Current()
			snap.NotificationsGranted = true
			bridge.Set(snap)
		}()
	})

	granted, err := bridge.RequestNotifications(context.Background())
	if err != nil {
		t.Fatalf("request notifications: %v", err)
	}
	if !granted {
		t.Fatalf("expected grant")
	}
}

func TestRequestCancelled(t *testing.T) {
	bridge := NewBridge(Snapshot{ServicesEnabled: true}, 50*time.Millisecond, func(Prompt) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := bridge.RequestAlways(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestChangesSubscription(t *testing.T) {
	bridge := NewBridge(Snapshot{}, time.Millisecond, nil)
	bridge.Set(grantedSnapshot())

	select {
	case snap := <-bridge.Changes():
		if !snap.BackgroundReady() {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for change")
	}
}
