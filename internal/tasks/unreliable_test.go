package tasks

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestUnreliableAlwaysSucceeds(t *testing.T) {
	u := &Unreliable{
		WorkTime:        10 * time.Millisecond,
		FailProbability: 0,
		Result:          "payload",
	}

	out, err := u.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "payload" {
		t.Errorf("output = %v, want %q", out, "payload")
	}
}

func TestUnreliableAlwaysFails(t *testing.T) {
	u := &Unreliable{
		WorkTime:        time.Millisecond,
		FailProbability: 1,
	}

	_, err := u.Run(context.Background(), nil)
	if !errors.Is(err, ErrSimulatedFailure) {
		t.Fatalf("err = %v, want ErrSimulatedFailure", err)
	}
}

func TestUnreliableDeterministicRand(t *testing.T) {
	// Seeded source makes the failure decision reproducible.
	u := &Unreliable{
		WorkTime:        time.Millisecond,
		FailProbability: 0.5,
		Result:          1,
		Rand:            rand.New(rand.NewSource(42)),
	}
	probe := rand.New(rand.NewSource(42))
	wantFail := probe.Float64() < 0.5

	_, err := u.Run(context.Background(), nil)
	if wantFail && !errors.Is(err, ErrSimulatedFailure) {
		t.Errorf("err = %v, want simulated failure", err)
	}
	if !wantFail && err != nil {
		t.Errorf("err = %v, want success", err)
	}
}

func TestUnreliableHonorsCancellation(t *testing.T) {
	u := &Unreliable{
		WorkTime:        10 * time.Second,
		FailProbability: 0,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := u.Run(ctx, nil)
	elapsed := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("cancellation took %v, want prompt exit", elapsed)
	}
}
