package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/1broseidon/multiboxer/internal/journal"
)

func runHistory(args []string) int {
	fs := newFlagSet("history", "history [--limit N] [--since DURATION] [--json] [--journal PATH]",
		"Show recent swap and acquisition outcomes from the journal.")
	limit := fs.Int("limit", 20, "Number of entries per section")
	since := fs.Duration("since", 24*time.Hour, "Window for the swap summary")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	path := fs.String("journal", "", "Journal database path (default: ~/.config/multiboxer/journal.db)")
	if code := parse(fs, args); code >= 0 {
		return code
	}

	if *path == "" {
		if res, err := loadConfig(""); err == nil {
			*path = res.Config.Journal.Path
		}
	}
	db, err := journal.Open(*path)
	if err != nil {
		return fail(err)
	}
	defer db.Close()
	repo := journal.NewRepository(db)

	swaps, err := repo.RecentSwaps(*limit)
	if err != nil {
		return fail(err)
	}
	acqs, err := repo.RecentAcquisitions(*limit)
	if err != nil {
		return fail(err)
	}
	summary, err := repo.SwapSummarySince(time.Now().Add(-*since))
	if err != nil {
		return fail(err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{
			"summary":      summary,
			"swaps":        swaps,
			"acquisitions": acqs,
		}); err != nil {
			return fail(err)
		}
		return 0
	}

	now := time.Now()
	fmt.Printf("swaps in the last %s:\n", *since)
	if len(summary) == 0 {
		fmt.Println("  none")
	}
	for _, s := range summary {
		fmt.Printf("  %-10s %s (avg %.1fms)\n", s.Outcome, humanize.Comma(int64(s.Count)), s.AvgLatencyMS)
	}

	fmt.Println("recent swaps:")
	for _, s := range swaps {
		line := fmt.Sprintf("  %-14s slot %-2d %-9s", humanize.RelTime(s.CreatedAt, now, "ago", "from now"), s.Slot, s.Outcome)
		if s.Path != "" {
			line += fmt.Sprintf(" %s/%d", s.Path, s.Touched)
		}
		line += fmt.Sprintf(" %dms", s.LatencyMS)
		if s.Reason != "" {
			line += " " + s.Reason
		}
		fmt.Println(line)
	}

	fmt.Println("recent acquisitions:")
	for _, a := range acqs {
		outcome := "ok"
		if !a.Success {
			outcome = "failed"
		}
		line := fmt.Sprintf("  %-14s slot %-2d %-6s pid=%d attempts=%d %dms",
			humanize.RelTime(a.CreatedAt, now, "ago", "from now"), a.Slot, outcome, a.PID, a.Attempts, a.ElapsedMS)
		if a.Window != 0 {
			line += fmt.Sprintf(" window=0x%x", a.Window)
		}
		if a.Error != "" {
			line += " " + a.Error
		}
		fmt.Println(line)
	}
	return 0
}
