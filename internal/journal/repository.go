package journal

import (
	"time"

	"github.com/pkg/errors"
)

// Repository reads and writes journal records.
type Repository struct {
	db *DB
}

// NewRepository creates a repository over db.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// RecordSwap appends a swap outcome.
func (r *Repository) RecordSwap(rec *SwapRecord) error {
	result := r.db.Create(rec)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert swap record")
	}
	return nil
}

// RecordAcquisition appends an acquisition outcome.
func (r *Repository) RecordAcquisition(rec *AcquisitionRecord) error {
	result := r.db.Create(rec)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert acquisition record")
	}
	return nil
}

// RecentSwaps returns the newest limit swaps, newest first.
func (r *Repository) RecentSwaps(limit int) ([]SwapRecord, error) {
	var recs []SwapRecord
	result := r.db.Order("id DESC").Limit(limit).Find(&recs)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query swap records")
	}
	return recs, nil
}

// RecentAcquisitions returns the newest limit acquisitions, newest first.
func (r *Repository) RecentAcquisitions(limit int) ([]AcquisitionRecord, error) {
	var recs []AcquisitionRecord
	result := r.db.Order("id DESC").Limit(limit).Find(&recs)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query acquisition records")
	}
	return recs, nil
}

// SwapSummarySince aggregates swaps per outcome.
func (r *Repository) SwapSummarySince(since time.Time) ([]SwapSummary, error) {
	var out []SwapSummary
	result := r.db.Model(&SwapRecord{}).
		Select("outcome, COUNT(*) as count, AVG(latency_ms) as avg_latency_ms").
		Where("created_at >= ?", since).
		Group("outcome").
		Order("count DESC").
		Scan(&out)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query swap summary")
	}
	return out, nil
}

// Prune deletes records older than before and returns how many went.
func (r *Repository) Prune(before time.Time) (int64, error) {
	swaps := r.db.Where("created_at < ?", before).Delete(&SwapRecord{})
	if swaps.Error != nil {
		return 0, errors.Wrap(swaps.Error, "failed to prune swap records")
	}
	acqs := r.db.Where("created_at < ?", before).Delete(&AcquisitionRecord{})
	if acqs.Error != nil {
		return swaps.RowsAffected, errors.Wrap(acqs.Error, "failed to prune acquisition records")
	}
	return swaps.RowsAffected + acqs.RowsAffected, nil
}
