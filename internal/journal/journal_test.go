package journal

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db)
}

func TestRecentSwapsNewestFirst(t *testing.T) {
	repo := openTestJournal(t)
	for slot := 1; slot <= 3; slot++ {
		if err := repo.RecordSwap(&SwapRecord{RequestID: "r", Slot: slot, Outcome: OutcomeCompleted, LatencyMS: int64(slot * 100)}); err != nil {
			t.Fatalf("RecordSwap() error: %v", err)
		}
	}

	recs, err := repo.RecentSwaps(2)
	if err != nil {
		t.Fatalf("RecentSwaps() error: %v", err)
	}
	if len(recs) != 2 || recs[0].Slot != 3 || recs[1].Slot != 2 {
		t.Fatalf("RecentSwaps() = %+v, want slots 3 then 2", recs)
	}
	if recs[0].CreatedAt.IsZero() {
		t.Fatalf("CreatedAt not set")
	}
}

func TestSwapSummaryGroupsByOutcome(t *testing.T) {
	repo := openTestJournal(t)
	_ = repo.RecordSwap(&SwapRecord{RequestID: "a", Slot: 1, Outcome: OutcomeCompleted, LatencyMS: 200})
	_ = repo.RecordSwap(&SwapRecord{RequestID: "b", Slot: 2, Outcome: OutcomeCompleted, LatencyMS: 400})
	_ = repo.RecordSwap(&SwapRecord{RequestID: "c", Slot: 2, Outcome: OutcomeFailed})

	summary, err := repo.SwapSummarySince(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("SwapSummarySince() error: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("summary = %+v, want two outcomes", summary)
	}
	if summary[0].Outcome != OutcomeCompleted || summary[0].Count != 2 || summary[0].AvgLatencyMS != 300 {
		t.Fatalf("completed summary = %+v", summary[0])
	}
}

func TestAcquisitionsAndPrune(t *testing.T) {
	repo := openTestJournal(t)
	if err := repo.RecordAcquisition(&AcquisitionRecord{Slot: 4, PID: 99, Window: 0x400, Success: true, Attempts: 3}); err != nil {
		t.Fatalf("RecordAcquisition() error: %v", err)
	}
	recs, err := repo.RecentAcquisitions(10)
	if err != nil || len(recs) != 1 || !recs[0].Success {
		t.Fatalf("RecentAcquisitions() = %+v, %v", recs, err)
	}

	n, err := repo.Prune(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d records, want 1", n)
	}
}
