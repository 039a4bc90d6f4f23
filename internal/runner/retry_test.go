package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRetryPolicy(t *testing.T) {
	errFlaky := errors.New("flaky")
	policy := newRetryPolicy(3, time.Millisecond, nil)

	calls := 0
	err := policy.do(context.Background(), "flush", func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third call, got %v after %d", err, calls)
	}

	calls = 0
	err = newRetryPolicy(2, time.Millisecond, nil).do(context.Background(), "flush", func(context.Context) error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) || calls != 3 {
		t.Fatalf("expected 3 attempts ending in flaky, got %v after %d", err, calls)
	}

	calls = 0
	err = newRetryPolicy(5, time.Millisecond, nil).do(context.Background(), "flush", func(context.Context) error {
		calls++
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("expected canceled without retry, got %v after %d", err, calls)
	}
}

func TestRetryPolicyLogsAttempts(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	policy := newRetryPolicy(1, time.Millisecond, zap.New(core))

	err := policy.do(context.Background(), "filter logs", func(context.Context) error {
		return errors.New("rpc down")
	}, zap.Uint64("from", 7))
	if err == nil {
		t.Fatalf("expected error")
	}

	entries := logs.FilterMessage("filter logs failed").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(entries))
	}
	last := entries[1].ContextMap()
	if last["attempt"] != int64(2) || last["giving_up"] != true || last["from"] != uint64(7) {
		t.Fatalf("unexpected fields: %v", last)
	}
}
