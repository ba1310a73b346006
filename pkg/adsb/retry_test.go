package adsb

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// TestRetryWithBackoff tests basic retry logic.
func TestRetryWithBackoff(t *testing.T) {
	t.Run("Success on first attempt", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(context.Background(), DefaultRetryConfig(), func() error {
			attempts++
			return nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("Success after retries", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("receiver unreachable")
			}
			return nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("Max retries exceeded", func(t *testing.T) {
		attempts := 0
		sentinel := errors.New("persistent error")
		err := RetryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
			attempts++
			return sentinel
		})

		if err == nil {
			t.Fatal("Expected error after max retries")
		}
		if !errors.Is(err, sentinel) {
			t.Errorf("Expected wrapped sentinel error, got: %v", err)
		}
		// Should attempt: initial + 3 retries = 4 total
		if attempts != 4 {
			t.Errorf("Expected 4 attempts (initial + 3 retries), got %d", attempts)
		}
	})

	t.Run("Permanent error stops retrying", func(t *testing.T) {
		attempts := 0
		sentinel := errors.New("invalid address")
		err := RetryWithBackoff(context.Background(), fastRetryConfig(5), func() error {
			attempts++
			return Permanent(sentinel)
		})

		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
		if !errors.Is(err, sentinel) {
			t.Errorf("Expected sentinel error, got: %v", err)
		}
		if !IsPermanent(err) {
			t.Error("Expected error to be permanent")
		}
	})

	t.Run("Context cancellation", func(t *testing.T) {
		attempts := 0
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := RetryWithBackoff(ctx, DefaultRetryConfig(), func() error {
			attempts++
			return errors.New("error")
		})

		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled error, got: %v", err)
		}
		if attempts != 0 {
			t.Errorf("Expected no attempts on a cancelled context, got %d", attempts)
		}
	})

	t.Run("Context timeout during retry", func(t *testing.T) {
		attempts := 0
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		cfg := RetryConfig{
			MaxRetries:   -1,
			InitialDelay: 100 * time.Millisecond, // Longer than timeout
			MaxDelay:     time.Second,
			Multiplier:   2.0,
		}

		start := time.Now()
		err := RetryWithBackoff(ctx, cfg, func() error {
			attempts++
			return errors.New("error")
		})
		elapsed := time.Since(start)

		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected deadline exceeded, got: %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt before timeout, got %d", attempts)
		}
		if elapsed > 500*time.Millisecond {
			t.Errorf("Expected quick return on timeout, took %v", elapsed)
		}
	})
}

// TestPermanentNil verifies Permanent(nil) stays nil.
func TestPermanentNil(t *testing.T) {
	if err := Permanent(nil); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}

// TestStaticSource tests the fixed-list Source implementation.
func TestStaticSource(t *testing.T) {
	src := StaticSource{
		{Address: "A12345", Callsign: "N123AB"},
		{Address: "ABCDEF"},
	}

	list := src.Aircraft()
	if len(list) != 2 {
		t.Fatalf("Expected 2 aircraft, got %d", len(list))
	}
	list[0].Callsign = "CHANGED"
	if src[0].Callsign != "N123AB" {
		t.Error("Expected Aircraft() to return a copy")
	}

	ac, ok := src.AircraftByAddress("ABCDEF")
	if !ok {
		t.Fatal("Expected to find ABCDEF")
	}
	if ac.DisplayName() != "ABCDEF" {
		t.Errorf("Expected display name to fall back to address, got %s", ac.DisplayName())
	}

	if _, ok := src.AircraftByAddress("000000"); ok {
		t.Error("Expected unknown address to be absent")
	}
	if err := src.Close(); err != nil {
		t.Errorf("Expected nil error from Close, got %v", err)
	}
}
