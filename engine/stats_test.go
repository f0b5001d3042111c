package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsLifecycleCounters(t *testing.T) {
	s := newStatsCollector()

	s.recordBuilt()
	s.recordBuilt()
	s.recordBuilt()
	s.recordSubmitted()
	s.recordConfirmed(2*time.Second, 150_000, 5_000_000)
	s.recordFailed()
	s.recordCancelled()

	st := s.snapshot()
	assert.Equal(t, uint64(1), st.TotalTransactions)
	assert.Equal(t, uint64(1), st.ConfirmedTransactions)
	assert.Equal(t, uint64(1), st.FailedTransactions)
	assert.Equal(t, uint64(1), st.CancelledTransactions)
	assert.Equal(t, uint64(0), st.PendingTransactions)
	assert.Equal(t, uint64(150_000), st.TotalFeesPaid)
	assert.Equal(t, uint64(5_000_000), st.TotalValueMoved)
}

func TestStatsAverages(t *testing.T) {
	s := newStatsCollector()

	// No confirmations yet: averages stay zero instead of dividing by zero.
	require.Zero(t, s.snapshot().AvgConfirmationSeconds)
	require.Zero(t, s.snapshot().AvgFeePerTransaction)

	s.recordConfirmed(1*time.Second, 100, 0)
	s.recordConfirmed(3*time.Second, 300, 0)

	st := s.snapshot()
	assert.InDelta(t, 2.0, st.AvgConfirmationSeconds, 1e-9)
	assert.InDelta(t, 200.0, st.AvgFeePerTransaction, 1e-9)
}

func TestStatsReset(t *testing.T) {
	s := newStatsCollector()
	s.recordBuilt()
	s.recordSubmitted()
	s.recordConfirmed(time.Second, 1, 1)

	s.reset()
	assert.Equal(t, Stats{}, s.snapshot())
}

func TestStatsConcurrentWriters(t *testing.T) {
	s := newStatsCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.recordBuilt()
			s.recordSubmitted()
			s.recordConfirmed(time.Second, 10, 100)
		}()
	}
	wg.Wait()

	st := s.snapshot()
	assert.Equal(t, uint64(50), st.TotalTransactions)
	assert.Equal(t, uint64(50), st.ConfirmedTransactions)
	assert.Equal(t, uint64(0), st.PendingTransactions)
	assert.Equal(t, uint64(500), st.TotalFeesPaid)
	assert.Equal(t, uint64(5000), st.TotalValueMoved)
}

func TestStatsPendingNeverUnderflows(t *testing.T) {
	s := newStatsCollector()
	s.recordFailed()
	s.recordCancelled()
	assert.Equal(t, uint64(0), s.snapshot().PendingTransactions)
}
