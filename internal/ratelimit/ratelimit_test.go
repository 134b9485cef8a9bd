package ratelimit_test

import (
	"testing"
	"time"

	"github.com/sitegauge/sitegauge/internal/logging"
	"github.com/sitegauge/sitegauge/internal/ratelimit"
)

func TestHostLimiter_SixthScanRejected(t *testing.T) {
	t.Parallel()
	limiter := ratelimit.New(ratelimit.DefaultConfig(), logging.NewNop())

	for i := 0; i < 5; i++ {
		if !limiter.Allow("example.com") {
			t.Fatalf("scan %d rejected, want first 5 allowed", i+1)
		}
	}
	if limiter.Allow("example.com") {
		t.Error("sixth scan within the window must be rejected")
	}
}

func TestHostLimiter_HostsIndependent(t *testing.T) {
	t.Parallel()
	limiter := ratelimit.New(ratelimit.Config{Window: time.Hour, Ceiling: 2}, logging.NewNop())

	limiter.Allow("a.example.com")
	limiter.Allow("a.example.com")
	if limiter.Allow("a.example.com") {
		t.Error("third scan of a.example.com must be rejected")
	}

	if !limiter.Allow("b.example.com") {
		t.Error("b.example.com must not be affected by a.example.com's ceiling")
	}
}

func TestHostLimiter_RejectionPersistsWithinWindow(t *testing.T) {
	t.Parallel()
	limiter := ratelimit.New(ratelimit.Config{Window: time.Hour, Ceiling: 1}, logging.NewNop())

	if !limiter.Allow("example.com") {
		t.Fatal("first scan must be allowed")
	}
	for i := 0; i < 3; i++ {
		if limiter.Allow("example.com") {
			t.Fatalf("repeat attempt %d allowed within the window", i+1)
		}
	}
}

func TestHostLimiter_SixthScanRejectedLateInWindow(t *testing.T) {
	t.Parallel()
	limiter := ratelimit.New(ratelimit.Config{Window: time.Second, Ceiling: 5}, logging.NewNop())

	for i := 0; i < 5; i++ {
		if !limiter.Allow("example.com") {
			t.Fatalf("scan %d rejected, want first 5 allowed", i+1)
		}
	}

	// Partway through the window no tokens may have accrued: the ceiling is
	// per window, not spread across it.
	time.Sleep(300 * time.Millisecond)
	if limiter.Allow("example.com") {
		t.Error("sixth scan partway through the window must still be rejected")
	}
}

func TestHostLimiter_TokensReplenish(t *testing.T) {
	t.Parallel()
	limiter := ratelimit.New(ratelimit.Config{Window: 100 * time.Millisecond, Ceiling: 1}, logging.NewNop())

	if !limiter.Allow("example.com") {
		t.Fatal("first scan must be allowed")
	}
	if limiter.Allow("example.com") {
		t.Fatal("second immediate scan must be rejected")
	}

	time.Sleep(150 * time.Millisecond)
	if !limiter.Allow("example.com") {
		t.Error("scan after the window must be allowed again")
	}
}

func TestHostLimiter_ZeroConfigUsesDefaults(t *testing.T) {
	t.Parallel()
	limiter := ratelimit.New(ratelimit.Config{}, logging.NewNop())

	for i := 0; i < 5; i++ {
		if !limiter.Allow("example.com") {
			t.Fatalf("scan %d rejected under default ceiling of 5", i+1)
		}
	}
	if limiter.Allow("example.com") {
		t.Error("default ceiling must reject the sixth scan")
	}
}
