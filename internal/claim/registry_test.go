package claim

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/1broseidon/multiboxer/internal/platform"
)

func TestTryClaimIsExclusive(t *testing.T) {
	r := NewRegistry()
	if !r.TryClaim(0x10, 1) {
		t.Fatal("first claim failed")
	}
	if r.TryClaim(0x10, 2) {
		t.Fatal("second slot claimed an owned handle")
	}
	if owner, _ := r.Owner(0x10); owner != 1 {
		t.Fatalf("Owner() = %d, want 1", owner)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.TryClaim(0x10, 1)
	r.Release(0x10)
	r.Release(0x10)
	r.Release(0x99)
	if r.IsClaimed(0x10) {
		t.Fatal("handle still claimed after release")
	}
	if !r.TryClaim(0x10, 2) {
		t.Fatal("released handle could not be reclaimed")
	}
}

func TestZeroHandleNeverClaimed(t *testing.T) {
	r := NewRegistry()
	if r.TryClaim(0, 1) {
		t.Fatal("zero handle claimed")
	}
}

func TestClaimRaceHasSingleWinner(t *testing.T) {
	r := NewRegistry()
	const contenders = 64
	var wins atomic.Int32
	var winner atomic.Int32

	start := make(chan struct{})
	var wg sync.WaitGroup
	for slot := 1; slot <= contenders; slot++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			<-start
			if r.TryClaim(platform.WindowID(0xABC), slot) {
				wins.Add(1)
				winner.Store(int32(slot))
			}
		}(slot)
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins.Load())
	}
	owner, _ := r.Owner(0xABC)
	if int32(owner) != winner.Load() {
		t.Fatalf("owner = %d, winner = %d", owner, winner.Load())
	}
}

func TestClaimGuardRelease(t *testing.T) {
	r := NewRegistry()
	c := r.Acquire(0x20, 4)
	if c == nil {
		t.Fatal("Acquire() returned nil for a free handle")
	}
	if r.Acquire(0x20, 5) != nil {
		t.Fatal("Acquire() succeeded on an owned handle")
	}
	c.Release()
	c.Release()
	if r.Len() != 0 {
		t.Fatalf("Len() = %d after release, want 0", r.Len())
	}

	var nilClaim *Claim
	nilClaim.Release()
}
