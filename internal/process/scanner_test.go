package process

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func writeProc(t *testing.T, root string, pid, ppid int, comm, state, argv0 string) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stat := strconv.Itoa(pid) + " (" + comm + ") " + state + " " + strconv.Itoa(ppid) +
		" 1 1 0 -1 4194304 100 0 0 0 10 5 0 0 20 0 1 0 " + strconv.Itoa(1000+pid) + " 0 0\n"
	if err := os.WriteFile(filepath.Join(dir, "stat"), []byte(stat), 0644); err != nil {
		t.Fatalf("write stat: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cmdline"), []byte(argv0+"\x00--flag\x00"), 0644); err != nil {
		t.Fatalf("write cmdline: %v", err)
	}
}

func TestScannerInfoParsesStat(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, 42, 1, "game (x64)", "S", "/opt/game/game.bin")

	s := &Scanner{Root: root}
	info, err := s.Info(42)
	if err != nil {
		t.Fatalf("Info() error: %v", err)
	}
	if info.Name != "game (x64)" {
		t.Fatalf("Name = %q, want %q", info.Name, "game (x64)")
	}
	if info.PPID != 1 || info.State != 'S' {
		t.Fatalf("PPID/State = %d/%c, want 1/S", info.PPID, info.State)
	}
	if info.Exe != "game.bin" {
		t.Fatalf("Exe = %q, want game.bin", info.Exe)
	}
	if info.StartTicks != 1042 {
		t.Fatalf("StartTicks = %d, want 1042", info.StartTicks)
	}
}

func TestScannerAliveSkipsZombies(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, 10, 1, "live", "R", "live")
	writeProc(t, root, 11, 1, "dead", "Z", "dead")

	s := &Scanner{Root: root}
	if !s.Alive(10) {
		t.Fatal("pid 10 should be alive")
	}
	if s.Alive(11) {
		t.Fatal("zombie pid 11 reported alive")
	}
	if s.Alive(12) {
		t.Fatal("missing pid 12 reported alive")
	}
}

func TestScannerFindByName(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, 20, 1, "launcher", "S", "/opt/game/launcher")
	writeProc(t, root, 21, 20, "averyverylongga", "S", "/opt/game/averyverylonggamename")
	writeProc(t, root, 22, 1, "bash", "S", "/bin/bash")
	if err := os.MkdirAll(filepath.Join(root, "self"), 0755); err != nil {
		t.Fatal(err)
	}

	s := &Scanner{Root: root}
	got, err := s.FindByName([]string{"AveryVeryLongGameName"})
	if err != nil {
		t.Fatalf("FindByName() error: %v", err)
	}
	if len(got) != 1 || got[0].PID != 21 {
		t.Fatalf("FindByName() = %+v, want pid 21", got)
	}

	children, err := s.Children(20)
	if err != nil {
		t.Fatalf("Children() error: %v", err)
	}
	if len(children) != 1 || children[0].PID != 21 {
		t.Fatalf("Children(20) = %+v, want pid 21", children)
	}
}

func TestLauncherStartAndExit(t *testing.T) {
	l := &Launcher{}
	h, err := l.Start(context.Background(), Spec{Command: "/bin/sh", Args: []string{"-c", "exit 0"}})
	if err != nil {
		t.Skipf("cannot start /bin/sh: %v", err)
	}
	<-h.Done()
	if err := h.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
}

func TestTrackReportsWaitError(t *testing.T) {
	release := make(chan struct{})
	h := Track(7, func() error {
		<-release
		return os.ErrProcessDone
	})
	select {
	case <-h.Done():
		t.Fatal("Done closed before wait returned")
	default:
	}
	close(release)
	if err := h.Err(); err != os.ErrProcessDone {
		t.Fatalf("Err() = %v, want ErrProcessDone", err)
	}
}

func TestLauncherRejectsEmptyCommand(t *testing.T) {
	l := &Launcher{}
	if _, err := l.Start(context.Background(), Spec{}); err == nil {
		t.Fatal("expected error for empty command")
	}
}
