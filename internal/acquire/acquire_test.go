package acquire

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/multiboxer/internal/claim"
	"github.com/1broseidon/multiboxer/internal/platform"
	"github.com/1broseidon/multiboxer/internal/process"
)

type fakeWindows struct {
	mu      sync.Mutex
	windows []platform.Window
}

func (f *fakeWindows) ListWindows() ([]platform.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Window(nil), f.windows...), nil
}

func (f *fakeWindows) add(w platform.Window) {
	f.mu.Lock()
	f.windows = append(f.windows, w)
	f.mu.Unlock()
}

type fakeProcs struct {
	mu       sync.Mutex
	alive    map[int]bool
	names    map[string][]int
	children map[int][]int
}

func (f *fakeProcs) Alive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func (f *fakeProcs) FindByName(names []string) ([]process.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []process.Info
	for _, n := range names {
		for _, pid := range f.names[n] {
			if f.alive[pid] {
				out = append(out, process.Info{PID: pid, Name: n})
			}
		}
	}
	return out, nil
}

func (f *fakeProcs) Children(pid int) ([]process.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []process.Info
	for _, child := range f.children[pid] {
		out = append(out, process.Info{PID: child, PPID: pid})
	}
	return out, nil
}

func fastConfig() Config {
	return Config{Interval: time.Millisecond, Timeout: 200 * time.Millisecond, RescanEvery: 2}
}

func gameWindow(id platform.WindowID, pid int) platform.Window {
	return platform.Window{ID: id, PID: pid, AppID: "Game", Title: "Game Client", Visible: true}
}

func TestAcquireClaimsMainWindow(t *testing.T) {
	reg := claim.NewRegistry()
	wins := &fakeWindows{windows: []platform.Window{gameWindow(0x100, 10)}}
	procs := &fakeProcs{alive: map[int]bool{10: true}}

	a := New(fastConfig(), reg, procs, wins)
	res, err := a.Acquire(context.Background(), Request{Slot: 1, PID: 10, Criteria: Criteria{WindowClass: "Game"}})
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if res.Window.ID != 0x100 {
		t.Fatalf("acquired window 0x%x, want 0x100", res.Window.ID)
	}
	if owner, _ := reg.Owner(0x100); owner != 1 {
		t.Fatalf("owner = %d, want 1", owner)
	}
	res.Claim.Release()
	if reg.IsClaimed(0x100) {
		t.Fatal("claim not released")
	}
}

func TestAcquireSkipsClaimedWindows(t *testing.T) {
	reg := claim.NewRegistry()
	reg.TryClaim(0x100, 9)
	wins := &fakeWindows{windows: []platform.Window{gameWindow(0x100, 10), gameWindow(0x101, 10)}}
	procs := &fakeProcs{alive: map[int]bool{10: true}}

	res, err := New(fastConfig(), reg, procs, wins).Acquire(context.Background(), Request{Slot: 2, PID: 10})
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if res.Window.ID != 0x101 {
		t.Fatalf("acquired 0x%x, want 0x101", res.Window.ID)
	}
}

func TestAcquireFollowsLauncherHandoff(t *testing.T) {
	reg := claim.NewRegistry()
	wins := &fakeWindows{}
	procs := &fakeProcs{
		alive: map[int]bool{10: false, 20: true},
		names: map[string][]int{"game.bin": {20}},
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		wins.add(gameWindow(0x200, 20))
	}()

	req := Request{Slot: 3, PID: 10, Criteria: Criteria{Executables: []string{"game.bin"}}}
	res, err := New(fastConfig(), reg, procs, wins).Acquire(context.Background(), req)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if res.PID != 20 || res.Window.ID != 0x200 {
		t.Fatalf("acquired pid %d window 0x%x, want pid 20 window 0x200", res.PID, res.Window.ID)
	}
}

func TestAcquireFollowsChildProcess(t *testing.T) {
	reg := claim.NewRegistry()
	// The launcher stays alive but the window belongs to its child.
	wins := &fakeWindows{windows: []platform.Window{gameWindow(0x210, 11)}}
	procs := &fakeProcs{
		alive:    map[int]bool{10: true, 11: true},
		children: map[int][]int{10: {11}},
	}

	req := Request{Slot: 2, PID: 10, Criteria: Criteria{WindowClass: "Game"}}
	res, err := New(fastConfig(), reg, procs, wins).Acquire(context.Background(), req)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if res.PID != 11 || res.Window.ID != 0x210 {
		t.Fatalf("acquired pid %d window 0x%x, want pid 11 window 0x210", res.PID, res.Window.ID)
	}
}

func TestAcquireTimesOut(t *testing.T) {
	reg := claim.NewRegistry()
	wins := &fakeWindows{}
	procs := &fakeProcs{alive: map[int]bool{10: true}}

	cfg := Config{Interval: time.Millisecond, Timeout: 20 * time.Millisecond}
	_, err := New(cfg, reg, procs, wins).Acquire(context.Background(), Request{Slot: 4, PID: 10})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	var te *TimeoutError
	if !errors.As(err, &te) || te.Slot != 4 {
		t.Fatalf("error = %#v, want *TimeoutError for slot 4", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("registry has %d claims after timeout", reg.Len())
	}
}

func TestAcquireHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := Config{Interval: 50 * time.Millisecond, Timeout: time.Second}
	_, err := New(cfg, claim.NewRegistry(), &fakeProcs{alive: map[int]bool{}}, &fakeWindows{}).
		Acquire(ctx, Request{Slot: 1, PID: 10})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestConcurrentAcquisitionsNeverShareAWindow(t *testing.T) {
	reg := claim.NewRegistry()
	wins := &fakeWindows{windows: []platform.Window{gameWindow(0x300, 30), gameWindow(0x301, 30)}}
	procs := &fakeProcs{alive: map[int]bool{30: true}}
	a := New(fastConfig(), reg, procs, wins)

	results := make([]Result, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = a.Acquire(context.Background(), Request{Slot: i + 1, PID: 30})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("slot %d: %v", i+1, err)
		}
	}
	if results[0].Window.ID == results[1].Window.ID {
		t.Fatalf("both slots acquired 0x%x", results[0].Window.ID)
	}
}

func TestCriteriaFallbackRequiresVisibleTitledWindow(t *testing.T) {
	var c Criteria
	if c.Matches(platform.Window{Title: "x", Visible: false}) {
		t.Fatal("invisible window matched fallback")
	}
	if c.Matches(platform.Window{Title: "  ", Visible: true}) {
		t.Fatal("untitled window matched fallback")
	}
	if !c.Matches(platform.Window{Title: "Client", Visible: true}) {
		t.Fatal("visible titled window rejected")
	}

	c, err := NewCriteria("Game", "^Game - ", nil)
	if err != nil {
		t.Fatalf("NewCriteria() error: %v", err)
	}
	if !c.Matches(platform.Window{AppID: "Game", Title: "Game - Alice"}) {
		t.Fatal("class/title match rejected")
	}
	if c.Matches(platform.Window{AppID: "game", Title: "Game - Alice"}) {
		t.Fatal("class match ignored case")
	}
	if c.Matches(platform.Window{AppID: "Game", Title: "Launcher"}) {
		t.Fatal("title mismatch accepted")
	}
	if _, err := NewCriteria("", "(", nil); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}
