package journal

import "time"

// Swap outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeRecovery  = "recovery"
)

// SwapRecord is one finished swap request.
type SwapRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RequestID string    `gorm:"not null;index" json:"request_id"`
	Slot      int       `gorm:"not null;index" json:"slot"`
	Outcome   string    `gorm:"not null;index" json:"outcome"`
	Path      string    `json:"path"`
	Touched   int       `json:"touched"`
	LatencyMS int64     `json:"latency_ms"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// AcquisitionRecord is one slot acquisition attempt.
type AcquisitionRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Slot      int       `gorm:"not null;index" json:"slot"`
	PID       int       `json:"pid"`
	Window    uint32    `json:"window"`
	Success   bool      `gorm:"not null;default:false" json:"success"`
	Attempts  int       `json:"attempts"`
	ElapsedMS int64     `json:"elapsed_ms"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// SwapSummary aggregates swaps per outcome.
type SwapSummary struct {
	Outcome      string  `json:"outcome"`
	Count        int     `json:"count"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}
