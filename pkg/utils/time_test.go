package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSleepContext(t *testing.T) {
	if err := SleepContext(context.Background(), 0); err != nil {
		t.Errorf("SleepContext(0) error = %v, want nil", err)
	}

	if err := SleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("SleepContext(1ms) error = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := SleepContext(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("SleepContext on cancelled context error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("SleepContext did not return promptly on cancel")
	}
}
