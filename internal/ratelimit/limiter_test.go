package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	limiter := New(time.Second)
	if limiter == nil {
		t.Fatal("New() returned nil")
	}
	if limiter.hosts == nil {
		t.Fatal("New() returned limiter with nil hosts map")
	}
	if limiter.minInterval != time.Second {
		t.Errorf("New() minInterval = %v, want %v", limiter.minInterval, time.Second)
	}
}

func TestAllow_FirstRequest(t *testing.T) {
	limiter := New(100 * time.Millisecond)

	if !limiter.Allow("api.github.com") {
		t.Error("Allow() should return true for first request to a host")
	}
}

func TestAllow_SecondRequestTooSoon(t *testing.T) {
	limiter := New(100 * time.Millisecond)

	limiter.Allow("api.github.com")
	if limiter.Allow("api.github.com") {
		t.Error("Allow() should return false for second request before minInterval")
	}
}

func TestAllow_SecondRequestAfterInterval(t *testing.T) {
	limiter := New(50 * time.Millisecond)

	limiter.Allow("api.github.com")
	time.Sleep(60 * time.Millisecond)

	if !limiter.Allow("api.github.com") {
		t.Error("Allow() should return true after minInterval has passed")
	}
}

func TestAllow_DifferentHosts(t *testing.T) {
	limiter := New(100 * time.Millisecond)

	limiter.Allow("api.github.com")
	if !limiter.Allow("huggingface.co") {
		t.Error("Allow() should return true for different host")
	}
}

func TestWait_BlocksUntilPermitted(t *testing.T) {
	limiter := New(50 * time.Millisecond)

	limiter.Wait("export.arxiv.org")
	start := time.Now()
	limiter.Wait("export.arxiv.org")
	elapsed := time.Since(start)

	if elapsed < 40*time.Millisecond {
		t.Errorf("second Wait() returned after %v, want at least ~50ms", elapsed)
	}
}

func TestWaitContext_Cancelled(t *testing.T) {
	limiter := New(time.Hour)

	limiter.Allow("slow.example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.WaitContext(ctx, "slow.example.com"); err == nil {
		t.Error("WaitContext() should fail when the context expires first")
	}
}
