package engine

import (
	"sync"
	"time"
)

// Stats is a consistent snapshot of the engine's observability counters.
// Counters are monotonic between resets; averages are derived at snapshot
// time from the underlying sums.
type Stats struct {
	TotalTransactions     uint64 `json:"total_transactions"`
	ConfirmedTransactions uint64 `json:"confirmed_transactions"`
	FailedTransactions    uint64 `json:"failed_transactions"`
	CancelledTransactions uint64 `json:"cancelled_transactions"`

	// PendingTransactions is the current depth of the non-terminal queue
	// (built but not yet confirmed, failed, or cancelled).
	PendingTransactions uint64 `json:"pending_transactions"`

	TotalFeesPaid   uint64 `json:"total_fees_paid"`
	TotalValueMoved uint64 `json:"total_value_moved"`

	AvgConfirmationSeconds float64 `json:"avg_confirmation_seconds"`
	AvgFeePerTransaction   float64 `json:"avg_fee_per_transaction"`
}

// statsCollector aggregates counters behind a single short-lived mutex.
// Writers touch a handful of integer fields; a snapshot copies them in one
// critical section so readers always see a consistent tuple.
type statsCollector struct {
	mu sync.Mutex

	total     uint64
	confirmed uint64
	failed    uint64
	cancelled uint64
	pending   uint64

	feesPaid   uint64
	valueMoved uint64

	confirmationSeconds float64
}

func newStatsCollector() *statsCollector {
	return &statsCollector{}
}

func (s *statsCollector) recordBuilt() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

func (s *statsCollector) recordSubmitted() {
	s.mu.Lock()
	s.total++
	s.mu.Unlock()
}

func (s *statsCollector) recordConfirmed(latency time.Duration, fee, value uint64) {
	s.mu.Lock()
	s.confirmed++
	s.feesPaid += fee
	s.valueMoved += value
	s.confirmationSeconds += latency.Seconds()
	if s.pending > 0 {
		s.pending--
	}
	s.mu.Unlock()
}

func (s *statsCollector) recordFailed() {
	s.mu.Lock()
	s.failed++
	if s.pending > 0 {
		s.pending--
	}
	s.mu.Unlock()
}

func (s *statsCollector) recordCancelled() {
	s.mu.Lock()
	s.cancelled++
	if s.pending > 0 {
		s.pending--
	}
	s.mu.Unlock()
}

func (s *statsCollector) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		TotalTransactions:     s.total,
		ConfirmedTransactions: s.confirmed,
		FailedTransactions:    s.failed,
		CancelledTransactions: s.cancelled,
		PendingTransactions:   s.pending,
		TotalFeesPaid:         s.feesPaid,
		TotalValueMoved:       s.valueMoved,
	}
	if s.confirmed > 0 {
		st.AvgConfirmationSeconds = s.confirmationSeconds / float64(s.confirmed)
		st.AvgFeePerTransaction = float64(s.feesPaid) / float64(s.confirmed)
	}
	return st
}

func (s *statsCollector) reset() {
	s.mu.Lock()
	s.total, s.confirmed, s.failed, s.cancelled, s.pending = 0, 0, 0, 0, 0
	s.feesPaid, s.valueMoved = 0, 0
	s.confirmationSeconds = 0
	s.mu.Unlock()
}
