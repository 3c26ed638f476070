package upload

import "time"

// Fix is a single location reading from the provider.
type Fix struct {
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Accuracy float64   `json:"accuracy"`
	Time     time.Time `json:"time"`
}

// Throttle enforces the minimum interval between accepted uploads. Its clock
// only moves forward: lastUpload is set when a fix is accepted and never
// rewound. Reset on every session start.
type Throttle struct {
	interval   time.Duration
	lastUpload time.Time
	now        func() time.Time
}

func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval, now: time.Now}
}

// Accept reports whether an upload may happen now, advancing the throttle
// clock when it does. The first fix after a Reset is always accepted.
func (t *Throttle) Accept() bool {
	now := t.now()
	if !t.lastUpload.IsZero() && now.Sub(t.lastUpload) < t.interval {
		return false
	}
	t.lastUpload = now
	return true
}

// Reset clears the throttle so the next fix uploads immediately.
func (t *Throttle) Reset() {
	t.lastUpload = time.Time{}
}
