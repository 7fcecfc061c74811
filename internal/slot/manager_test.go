package slot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/multiboxer/internal/acquire"
	"github.com/1broseidon/multiboxer/internal/claim"
	"github.com/1broseidon/multiboxer/internal/platform"
	"github.com/1broseidon/multiboxer/internal/process"
)

type fakeStarter struct {
	mu      sync.Mutex
	nextPID int
	started []string
	exits   map[int]chan struct{}
	fail    error
}

func (f *fakeStarter) Start(_ context.Context, spec process.Spec) (*process.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.nextPID++
	f.started = append(f.started, spec.Command)
	pid := 1000 + f.nextPID
	exit := make(chan struct{})
	if f.exits == nil {
		f.exits = make(map[int]chan struct{})
	}
	f.exits[pid] = exit
	return process.Track(pid, func() error {
		<-exit
		return nil
	}), nil
}

func (f *fakeStarter) exit(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.exits[pid])
}

// fakeAcquirer claims window pid<<4 for each request.
type fakeAcquirer struct {
	registry *claim.Registry
	fail     error
}

func (f *fakeAcquirer) Acquire(_ context.Context, req acquire.Request) (acquire.Result, error) {
	if f.fail != nil {
		return acquire.Result{}, f.fail
	}
	handle := platform.WindowID(req.PID << 4)
	c := f.registry.Acquire(handle, req.Slot)
	if c == nil {
		return acquire.Result{}, errors.New("claimed")
	}
	return acquire.Result{Claim: c, Window: platform.Window{ID: handle, PID: req.PID}, PID: req.PID, Attempts: 1}, nil
}

func newTestManager(t *testing.T) (*Manager, *claim.Registry, *fakeStarter, *fakeAcquirer) {
	t.Helper()
	reg := claim.NewRegistry()
	starter := &fakeStarter{}
	acq := &fakeAcquirer{registry: reg}
	m := NewManager(ManagerConfig{LaunchParallel: 2}, reg, acq, starter)
	game := Profile{Name: "game", Spec: process.Spec{Command: "/opt/game"}}
	for id := 1; id <= 3; id++ {
		if err := m.Configure(id, game); err != nil {
			t.Fatalf("Configure(%d) error: %v", id, err)
		}
	}
	return m, reg, starter, acq
}

func waitEvent(t *testing.T, m *Manager) Event {
	t.Helper()
	select {
	case ev := <-m.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for slot event")
	}
	return Event{}
}

func TestConfigureRejectsOutOfRange(t *testing.T) {
	m := NewManager(ManagerConfig{}, claim.NewRegistry(), &fakeAcquirer{}, &fakeStarter{})
	if err := m.Configure(0, Profile{}); err == nil {
		t.Fatalf("expected error for slot 0")
	}
	if err := m.Configure(41, Profile{}); err == nil {
		t.Fatalf("expected error for slot 41")
	}
}

func TestLaunchAcquiresWindow(t *testing.T) {
	m, reg, _, _ := newTestManager(t)

	if err := m.Launch(context.Background(), 2); err != nil {
		t.Fatalf("Launch() error: %v", err)
	}
	ev := waitEvent(t, m)
	if ev.Kind != EventAcquired || ev.Slot != 2 {
		t.Fatalf("event = %+v, want acquired for slot 2", ev)
	}

	info, _ := m.Get(2)
	if info.State != StateRunning {
		t.Fatalf("state = %s, want running", info.State)
	}
	if owner, ok := reg.Owner(info.Window); !ok || owner != 2 {
		t.Fatalf("registry owner = %d,%v, want 2", owner, ok)
	}
	if got := m.ActiveSlots(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("ActiveSlots() = %v, want [2]", got)
	}
}

func TestLaunchWithoutProfile(t *testing.T) {
	m := NewManager(ManagerConfig{}, claim.NewRegistry(), &fakeAcquirer{}, &fakeStarter{})
	_ = m.Configure(1, Profile{Name: "empty"})
	if err := m.Launch(context.Background(), 1); !errors.Is(err, ErrNoProfile) {
		t.Fatalf("Launch() error = %v, want ErrNoProfile", err)
	}
	if err := m.Launch(context.Background(), 9); !errors.Is(err, ErrUnknownSlot) {
		t.Fatalf("Launch() error = %v, want ErrUnknownSlot", err)
	}
}

func TestAcquisitionTimeoutMarksError(t *testing.T) {
	m, reg, _, acq := newTestManager(t)
	acq.fail = &acquire.TimeoutError{Slot: 1, Attempts: 300, Elapsed: 30 * time.Second}

	if err := m.Launch(context.Background(), 1); err != nil {
		t.Fatalf("Launch() error: %v", err)
	}
	ev := waitEvent(t, m)
	if ev.Kind != EventFailed || !errors.Is(ev.Err, acquire.ErrTimeout) {
		t.Fatalf("event = %+v, want timeout failure", ev)
	}
	if ev.Attempts != 300 {
		t.Fatalf("attempts = %d, want 300", ev.Attempts)
	}
	info, _ := m.Get(1)
	if info.State != StateError || info.Window != 0 {
		t.Fatalf("slot = %+v, want error state without window", info)
	}
	if reg.Len() != 0 {
		t.Fatalf("registry holds %d claims after timeout", reg.Len())
	}
}

func TestLaunchAllCollectsErrors(t *testing.T) {
	m, _, starter, _ := newTestManager(t)
	_ = m.Configure(4, Profile{Name: "broken"})

	err := m.LaunchAll(context.Background(), []int{1, 2, 3, 4})
	if err == nil || !errors.Is(err, ErrNoProfile) {
		t.Fatalf("LaunchAll() error = %v, want ErrNoProfile for slot 4", err)
	}
	if len(starter.started) != 3 {
		t.Fatalf("started %d processes, want 3", len(starter.started))
	}
	if got := m.ActiveSlots(); len(got) != 3 {
		t.Fatalf("ActiveSlots() = %v, want 3 slots", got)
	}
}

func TestLaunchAllHonoursCancellation(t *testing.T) {
	reg := claim.NewRegistry()
	m := NewManager(ManagerConfig{LaunchInterval: time.Hour}, reg, &fakeAcquirer{registry: reg}, &fakeStarter{})
	for id := 1; id <= 3; id++ {
		_ = m.Configure(id, Profile{Spec: process.Spec{Command: "/opt/game"}})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := m.LaunchAll(ctx, []int{1, 2, 3}); err == nil {
		t.Fatalf("expected error when launch interval exceeds deadline")
	}
	if got := len(m.ActiveSlots()); got != 1 {
		t.Fatalf("active slots = %d, want only the first launch", got)
	}
}

func TestReleaseFreesClaim(t *testing.T) {
	m, reg, _, _ := newTestManager(t)
	_ = m.Launch(context.Background(), 1)
	waitEvent(t, m)

	w, ok := m.Window(1)
	if !ok {
		t.Fatalf("slot 1 has no window")
	}
	if err := m.Release(1); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if reg.IsClaimed(w) {
		t.Fatalf("window still claimed after release")
	}
	if ev := waitEvent(t, m); ev.Kind != EventReleased || ev.Window != w {
		t.Fatalf("event = %+v, want released", ev)
	}
	if _, ok := m.Window(1); ok {
		t.Fatalf("released slot still reports a window")
	}
}

func TestMarkExitedReleasesClaim(t *testing.T) {
	m, reg, _, _ := newTestManager(t)
	_ = m.Launch(context.Background(), 3)
	waitEvent(t, m)
	w, _ := m.Window(3)

	m.MarkExited(3)
	if reg.IsClaimed(w) {
		t.Fatalf("window still claimed after exit")
	}
	info, _ := m.Get(3)
	if info.State != StateExited {
		t.Fatalf("state = %s, want exited", info.State)
	}
	if ev := waitEvent(t, m); ev.Kind != EventExited {
		t.Fatalf("event = %+v, want exited", ev)
	}
}

func TestSetForegroundIsExclusive(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	if err := m.LaunchAll(context.Background(), []int{1, 2}); err != nil {
		t.Fatalf("LaunchAll() error: %v", err)
	}

	m.SetForeground(1)
	m.SetForeground(2)

	one, _ := m.Get(1)
	two, _ := m.Get(2)
	if one.State != StateRunning || two.State != StateForeground {
		t.Fatalf("states = %s/%s, want running/foreground", one.State, two.State)
	}
}

func TestAttachUsesGivenPID(t *testing.T) {
	m, _, starter, _ := newTestManager(t)
	if err := m.Attach(context.Background(), 1, 4242); err != nil {
		t.Fatalf("Attach() error: %v", err)
	}
	ev := waitEvent(t, m)
	if ev.Kind != EventAcquired || ev.PID != 4242 {
		t.Fatalf("event = %+v, want acquired pid 4242", ev)
	}
	if len(starter.started) != 0 {
		t.Fatalf("attach must not start a process")
	}
	if slotID, ok := m.SlotByWindow(ev.Window); !ok || slotID != 1 {
		t.Fatalf("SlotByWindow() = %d,%v, want 1", slotID, ok)
	}
}

type fakeWindows []platform.Window

func (f fakeWindows) ListWindows() ([]platform.Window, error) {
	return append([]platform.Window(nil), f...), nil
}

type fakeProcs map[int]bool

func (f fakeProcs) Alive(pid int) bool                                { return f[pid] }
func (f fakeProcs) FindByName(names []string) ([]process.Info, error) { return nil, nil }
func (f fakeProcs) Children(pid int) ([]process.Info, error)          { return nil, nil }

func TestReattachReleasesOwnedWindowFirst(t *testing.T) {
	reg := claim.NewRegistry()
	wins := fakeWindows{{ID: 0x500, PID: 77, AppID: "Game", Title: "Game", Visible: true}}
	acq := acquire.New(acquire.Config{Interval: time.Millisecond, Timeout: 200 * time.Millisecond}, reg, fakeProcs{77: true}, wins)
	m := NewManager(ManagerConfig{}, reg, acq, &fakeStarter{})
	_ = m.Configure(1, Profile{Name: "game"})

	if err := m.Attach(context.Background(), 1, 77); err != nil {
		t.Fatalf("Attach() error: %v", err)
	}
	if ev := waitEvent(t, m); ev.Kind != EventAcquired || ev.Window != 0x500 {
		t.Fatalf("event = %+v, want acquired 0x500", ev)
	}

	if err := m.Attach(context.Background(), 1, 77); err != nil {
		t.Fatalf("second Attach() error: %v", err)
	}
	if ev := waitEvent(t, m); ev.Kind != EventReleased || ev.Window != 0x500 {
		t.Fatalf("event = %+v, want released 0x500 before rebinding", ev)
	}
	if ev := waitEvent(t, m); ev.Kind != EventAcquired || ev.Window != 0x500 {
		t.Fatalf("event = %+v, want 0x500 acquired again", ev)
	}
	info, _ := m.Get(1)
	if info.State != StateRunning {
		t.Fatalf("state = %s, want running", info.State)
	}
	if owner, ok := reg.Owner(0x500); !ok || owner != 1 {
		t.Fatalf("registry owner = %d,%v, want 1", owner, ok)
	}
}

// gatedAcquirer claims its window only once gate is closed, whether or
// not the request was cancelled meanwhile.
type gatedAcquirer struct {
	registry *claim.Registry
	gate     chan struct{}
	done     chan error
}

func (g *gatedAcquirer) Acquire(ctx context.Context, req acquire.Request) (acquire.Result, error) {
	<-g.gate
	g.done <- ctx.Err()
	c := g.registry.Acquire(0x900, req.Slot)
	return acquire.Result{Claim: c, Window: platform.Window{ID: 0x900, PID: req.PID}, PID: req.PID, Attempts: 1}, nil
}

func TestReleaseDiscardsAcquisitionInFlight(t *testing.T) {
	reg := claim.NewRegistry()
	acq := &gatedAcquirer{registry: reg, gate: make(chan struct{}), done: make(chan error, 1)}
	m := NewManager(ManagerConfig{}, reg, acq, &fakeStarter{})
	_ = m.Configure(1, Profile{Name: "game"})

	if err := m.Attach(context.Background(), 1, 9); err != nil {
		t.Fatalf("Attach() error: %v", err)
	}
	if err := m.Release(1); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if ev := waitEvent(t, m); ev.Kind != EventReleased {
		t.Fatalf("event = %+v, want released", ev)
	}

	close(acq.gate)
	if err := <-acq.done; !errors.Is(err, context.Canceled) {
		t.Fatalf("acquisition context error = %v, want canceled", err)
	}
	// The discarded claim is dropped after the acquirer returns.
	deadline := time.Now().Add(2 * time.Second)
	for reg.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("registry still holds %d claims", reg.Len())
		}
		time.Sleep(time.Millisecond)
	}

	select {
	case ev := <-m.Events():
		t.Fatalf("unexpected event %+v after release", ev)
	case <-time.After(20 * time.Millisecond):
	}
	info, _ := m.Get(1)
	if info.State != StateEmpty || info.Window != 0 {
		t.Fatalf("slot = %+v, want empty without window", info)
	}
}

func TestProcessExitMarksSlotExited(t *testing.T) {
	m, reg, starter, _ := newTestManager(t)
	if err := m.Launch(context.Background(), 1); err != nil {
		t.Fatalf("Launch() error: %v", err)
	}
	ev := waitEvent(t, m)
	if ev.Kind != EventAcquired {
		t.Fatalf("event = %+v, want acquired", ev)
	}

	starter.exit(ev.PID)
	if ev := waitEvent(t, m); ev.Kind != EventExited || ev.Slot != 1 {
		t.Fatalf("event = %+v, want exited for slot 1", ev)
	}
	info, _ := m.Get(1)
	if info.State != StateExited {
		t.Fatalf("state = %s, want exited", info.State)
	}
	if reg.Len() != 0 {
		t.Fatalf("registry holds %d claims after exit", reg.Len())
	}
}

func TestSetMinimizedRestoresForeground(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	if err := m.LaunchAll(context.Background(), []int{1, 2}); err != nil {
		t.Fatalf("LaunchAll() error: %v", err)
	}
	m.SetForeground(1)

	if !m.SetMinimized(1, true) {
		t.Fatal("SetMinimized(1, true) reported no change")
	}
	if m.SetMinimized(1, true) {
		t.Fatal("repeated SetMinimized reported a change")
	}
	if info, _ := m.Get(1); info.State != StateMinimized {
		t.Fatalf("state = %s, want minimized", info.State)
	}
	if got := m.ActiveSlots(); len(got) != 2 {
		t.Fatalf("ActiveSlots() = %v, minimized slot must stay active", got)
	}

	m.SetMinimized(1, false)
	m.SetMinimized(2, true)
	m.SetMinimized(2, false)
	one, _ := m.Get(1)
	two, _ := m.Get(2)
	if one.State != StateForeground || two.State != StateRunning {
		t.Fatalf("states = %s/%s, want foreground/running", one.State, two.State)
	}
}
