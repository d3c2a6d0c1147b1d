package shopify

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Throttle tuning. Shopify publishes the REST bucket state in the
// X-Shopify-Shop-Api-Call-Limit header as "used/total"; the client slows
// itself down before the platform starts answering 429.
const (
	// callWindow is the sliding window the leaky bucket counts calls over
	callWindow = 30 * time.Second
	// windowCapacity bounds the ring buffer; Shopify buckets top out at 80
	// calls (Plus), so 256 recent timestamps is always enough for 30s
	windowCapacity = 256

	// windowPressureThreshold is the window utilization above which a
	// scaled delay is inserted
	windowPressureThreshold = 0.85
	// quotaHighThreshold forces the long pause
	quotaHighThreshold = 0.90
	// quotaMediumThreshold forces the short pause
	quotaMediumThreshold = 0.75

	quotaHighSleep   = 500 * time.Millisecond
	quotaMediumSleep = 250 * time.Millisecond

	// scaled delay bounds for window pressure
	windowDelayMin = 500 * time.Millisecond
	windowDelayMax = time.Second
)

// throttle tracks recent call timestamps in a fixed-capacity ring buffer and
// the last reported bucket state, and decides how long to pause.
type throttle struct {
	mu sync.Mutex

	// ring buffer of call timestamps
	stamps [windowCapacity]time.Time
	head   int
	count  int

	lastCall   time.Time
	quotaUsed  int
	quotaTotal int

	minSpacing time.Duration
	nowFunc    func() time.Time
	sleepFunc  func(time.Duration)
}

// newThrottle creates a throttle with the given minimum call spacing
func newThrottle(minSpacing time.Duration) *throttle {
	return &throttle{
		minSpacing: minSpacing,
		nowFunc:    time.Now,
		sleepFunc:  time.Sleep,
	}
}

// beforeCall blocks until the minimum inter-call spacing has elapsed and
// records the call in the window.
func (t *throttle) beforeCall() {
	t.mu.Lock()
	now := t.nowFunc()
	var wait time.Duration
	if !t.lastCall.IsZero() {
		if elapsed := now.Sub(t.lastCall); elapsed < t.minSpacing {
			wait = t.minSpacing - elapsed
		}
	}
	t.mu.Unlock()

	if wait > 0 {
		t.sleepFunc(wait)
	}

	t.mu.Lock()
	now = t.nowFunc()
	t.lastCall = now
	t.stamps[t.head] = now
	t.head = (t.head + 1) % windowCapacity
	if t.count < windowCapacity {
		t.count++
	}
	t.mu.Unlock()
}

// afterResponse updates the bucket state from the quota header and inserts
// the computed delay before control returns to the caller.
func (t *throttle) afterResponse(callLimit string) {
	if used, total, ok := parseCallLimit(callLimit); ok {
		t.mu.Lock()
		t.quotaUsed = used
		t.quotaTotal = total
		t.mu.Unlock()
	}

	if delay := t.delay(); delay > 0 {
		t.sleepFunc(delay)
	}
}

// delay computes the pause owed for the current quota and window pressure
func (t *throttle) delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.quotaTotal <= 0 {
		return 0
	}

	usage := float64(t.quotaUsed) / float64(t.quotaTotal)
	if usage > quotaHighThreshold {
		return quotaHighSleep
	}

	windowUtilization := float64(t.recentCalls(t.nowFunc())) / float64(t.quotaTotal)
	if windowUtilization > windowPressureThreshold {
		// Scale between 0.5s and 1.0s as pressure climbs toward full
		over := (windowUtilization - windowPressureThreshold) / (1 - windowPressureThreshold)
		if over > 1 {
			over = 1
		}
		return windowDelayMin + time.Duration(over*float64(windowDelayMax-windowDelayMin))
	}

	if usage >= quotaMediumThreshold {
		return quotaMediumSleep
	}
	return 0
}

// recentCalls counts timestamps within the sliding window. Callers hold mu.
func (t *throttle) recentCalls(now time.Time) int {
	cutoff := now.Add(-callWindow)
	recent := 0
	for i := 0; i < t.count; i++ {
		idx := (t.head - 1 - i + windowCapacity) % windowCapacity
		if t.stamps[idx].Before(cutoff) {
			// Entries are ordered newest first; everything older follows
			break
		}
		recent++
	}
	return recent
}

// parseCallLimit parses a "used/total" quota header value
func parseCallLimit(value string) (used, total int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(value), "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	used, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	total, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || total <= 0 {
		return 0, 0, false
	}
	return used, total, true
}
