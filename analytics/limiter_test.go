package analytics

import (
	"testing"
	"time"
)

func TestCollectLimiterBudget(t *testing.T) {
	rl := newRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !rl.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("1.2.3.4") {
		t.Error("request over budget should be denied")
	}
	if !rl.allow("5.6.7.8") {
		t.Error("budget must be tracked per client")
	}
}

func TestCollectLimiterWindowReset(t *testing.T) {
	rl := newRateLimiter(1, 10*time.Millisecond)

	if !rl.allow("k") {
		t.Fatal("first request should be allowed")
	}
	if rl.allow("k") {
		t.Error("second request in the window should be denied")
	}
	time.Sleep(25 * time.Millisecond)
	if !rl.allow("k") {
		t.Error("an expired window should reset the budget")
	}
}
