// Package process inspects and launches the game client processes that
// back each slot.
package process

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Info is a snapshot of one /proc entry.
type Info struct {
	PID   int
	PPID  int
	Name  string
	State byte
	// Exe is the base name of argv[0] from cmdline.
	Exe string
	// StartTicks is the start time in clock ticks after boot; together with
	// PID it identifies a process across pid reuse.
	StartTicks uint64
}

// Zombie reports whether the process has exited but not been reaped.
func (i Info) Zombie() bool {
	return i.State == 'Z' || i.State == 'X'
}

// Scanner reads process information from a procfs mount.
type Scanner struct {
	Root string
}

// NewScanner returns a scanner over /proc.
func NewScanner() *Scanner {
	return &Scanner{Root: "/proc"}
}

func (s *Scanner) root() string {
	if s == nil || s.Root == "" {
		return "/proc"
	}
	return s.Root
}

// Info reads /proc/<pid>/stat and cmdline.
func (s *Scanner) Info(pid int) (Info, error) {
	dir := filepath.Join(s.root(), strconv.Itoa(pid))
	statData, err := os.ReadFile(filepath.Join(dir, "stat"))
	if err != nil {
		return Info{}, err
	}

	info, err := parseStat(string(statData))
	if err != nil {
		return Info{}, fmt.Errorf("pid %d: %w", pid, err)
	}
	info.PID = pid

	if cmdData, err := os.ReadFile(filepath.Join(dir, "cmdline")); err == nil {
		argv0, _, _ := strings.Cut(string(cmdData), "\x00")
		if argv0 != "" {
			info.Exe = filepath.Base(argv0)
		}
	}
	return info, nil
}

// Alive reports whether pid exists and is not a zombie.
func (s *Scanner) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	info, err := s.Info(pid)
	if err != nil {
		return false
	}
	return !info.Zombie()
}

// All returns every readable live process ordered by pid.
func (s *Scanner) All() ([]Info, error) {
	entries, err := os.ReadDir(s.root())
	if err != nil {
		return nil, err
	}

	var out []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		info, err := s.Info(pid)
		if err != nil || info.Zombie() {
			continue
		}
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

// FindByName returns live processes whose comm or argv[0] base name
// matches any of names (case-insensitive). comm is truncated by the kernel
// to 15 bytes, so names are compared truncated as well.
func (s *Scanner) FindByName(names []string) ([]Info, error) {
	if len(names) == 0 {
		return nil, nil
	}
	all, err := s.All()
	if err != nil {
		return nil, err
	}

	var out []Info
	for _, info := range all {
		if matchesName(info, names) {
			out = append(out, info)
		}
	}
	return out, nil
}

// Children returns the direct children of pid.
func (s *Scanner) Children(pid int) ([]Info, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	var out []Info
	for _, info := range all {
		if info.PPID == pid {
			out = append(out, info)
		}
	}
	return out, nil
}

func matchesName(info Info, names []string) bool {
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if strings.EqualFold(info.Exe, n) {
			return true
		}
		if strings.EqualFold(info.Name, truncateComm(n)) {
			return true
		}
	}
	return false
}

func truncateComm(name string) string {
	const commLen = 15
	if len(name) > commLen {
		return name[:commLen]
	}
	return name
}

// parseStat parses the fields of /proc/<pid>/stat that we use. The comm
// field may contain spaces and parentheses, so it is delimited by the
// first '(' and the last ')'.
func parseStat(stat string) (Info, error) {
	open := strings.Index(stat, "(")
	closing := strings.LastIndex(stat, ")")
	if open == -1 || closing == -1 || closing < open {
		return Info{}, fmt.Errorf("malformed stat")
	}

	info := Info{Name: stat[open+1 : closing]}
	fields := strings.Fields(stat[closing+1:])
	// fields[0] is state (field 3); starttime is field 22.
	if len(fields) < 20 {
		return Info{}, fmt.Errorf("short stat: %d fields", len(fields))
	}
	if len(fields[0]) > 0 {
		info.State = fields[0][0]
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return Info{}, fmt.Errorf("bad ppid %q", fields[1])
	}
	info.PPID = ppid
	start, err := strconv.ParseUint(fields[19], 10, 64)
	if err != nil {
		return Info{}, fmt.Errorf("bad starttime %q", fields[19])
	}
	info.StartTicks = start
	return info, nil
}
