package retry

import (
	"errors"
	"testing"
	"time"
)

// fakePolicyRepo is an in-memory PolicyRepo with optional error injection.
type fakePolicyRepo struct {
	fails int
	err   error
}

func (f *fakePolicyRepo) ConsecutiveFails() (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.fails, nil
}

func (f *fakePolicyRepo) SetConsecutiveFails(n int) error {
	if f.err != nil {
		return f.err
	}
	f.fails = n
	return nil
}

func TestNextDelay_Monotonic(t *testing.T) {
	prev := time.Duration(-1)
	for n := 0; n < 50; n++ {
		d := NextDelay(n)
		if d < prev {
			t.Errorf("NextDelay(%d)=%v is less than NextDelay(%d)=%v", n, d, n-1, prev)
		}
		prev = d
	}
}

func TestNextDelay_Bounded(t *testing.T) {
	for _, n := range []int{0, 1, 10, 20, 100, 1000} {
		if d := NextDelay(n); d > MaxDelay {
			t.Errorf("NextDelay(%d)=%v exceeds ceiling %v", n, d, MaxDelay)
		}
	}
	// Large streaks saturate at the ceiling rather than overflowing.
	if d := NextDelay(1000); d != MaxDelay {
		t.Errorf("Expected NextDelay(1000)=%v, got %v", MaxDelay, d)
	}
}

func TestNextDelay_FibonacciMinutes(t *testing.T) {
	expected := []time.Duration{
		0,
		1 * time.Minute,
		1 * time.Minute,
		2 * time.Minute,
		3 * time.Minute,
		5 * time.Minute,
		8 * time.Minute,
	}
	for n, want := range expected {
		if got := NextDelay(n); got != want {
			t.Errorf("NextDelay(%d): expected %v, got %v", n, want, got)
		}
	}
}

func TestPolicy_IncrementUsesPreviousCount(t *testing.T) {
	repo := &fakePolicyRepo{}
	p := NewPolicy(repo)

	// First failed cycle: counter was 0, so the retry is immediate.
	delay, err := p.Increment()
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if delay != 0 {
		t.Errorf("Expected zero delay on first failure, got %v", delay)
	}
	if repo.fails != 1 {
		t.Errorf("Expected counter 1, got %d", repo.fails)
	}

	delay, err = p.Increment()
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if delay != 1*time.Minute {
		t.Errorf("Expected 1m delay on second failure, got %v", delay)
	}
	if repo.fails != 2 {
		t.Errorf("Expected counter 2, got %d", repo.fails)
	}
}

func TestPolicy_Reset(t *testing.T) {
	repo := &fakePolicyRepo{fails: 7}
	p := NewPolicy(repo)

	if err := p.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if repo.fails != 0 {
		t.Errorf("Expected counter 0 after reset, got %d", repo.fails)
	}
}

func TestPolicy_IncrementPropagatesRepoError(t *testing.T) {
	repoErr := errors.New("disk gone")
	p := NewPolicy(&fakePolicyRepo{err: repoErr})

	if _, err := p.Increment(); !errors.Is(err, repoErr) {
		t.Errorf("Expected repo error, got %v", err)
	}
}
