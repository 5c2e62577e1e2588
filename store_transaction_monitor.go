package actionkit

import (
	"sync"
	"time"
)

// TransactionMetrics provides store transaction performance and failure statistics.
type TransactionMetrics struct {
	TotalTransactions      int64         `json:"total_transactions"`
	SuccessfulTransactions int64         `json:"successful_transactions"`
	FailedTransactions     int64         `json:"failed_transactions"`
	AverageDuration        time.Duration `json:"average_duration"`
	MaxDuration            time.Duration `json:"max_duration"`
	MinDuration            time.Duration `json:"min_duration"`
	LastReset              time.Time     `json:"last_reset"`
}

// FailureRate returns the share of failed transactions, 0 when none ran.
func (m TransactionMetrics) FailureRate() float64 {
	if m.TotalTransactions == 0 {
		return 0
	}
	return float64(m.FailedTransactions) / float64(m.TotalTransactions)
}

// transactionMonitor accumulates transaction outcomes. The zero duration
// bounds are unset until the first transaction is recorded.
type transactionMonitor struct {
	mu            sync.Mutex
	totalCount    int64
	successCount  int64
	failureCount  int64
	totalDuration time.Duration
	maxDuration   time.Duration
	minDuration   time.Duration
	lastReset     time.Time
}

func newTransactionMonitor() *transactionMonitor {
	return &transactionMonitor{lastReset: time.Now()}
}

func (tm *transactionMonitor) recordTransaction(duration time.Duration, success bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.totalCount++
	tm.totalDuration += duration
	if success {
		tm.successCount++
	} else {
		tm.failureCount++
	}
	if duration > tm.maxDuration {
		tm.maxDuration = duration
	}
	if tm.totalCount == 1 || duration < tm.minDuration {
		tm.minDuration = duration
	}
}

func (tm *transactionMonitor) getMetrics() TransactionMetrics {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	var avg time.Duration
	if tm.totalCount > 0 {
		avg = tm.totalDuration / time.Duration(tm.totalCount)
	}
	return TransactionMetrics{
		TotalTransactions:      tm.totalCount,
		SuccessfulTransactions: tm.successCount,
		FailedTransactions:     tm.failureCount,
		AverageDuration:        avg,
		MaxDuration:            tm.maxDuration,
		MinDuration:            tm.minDuration,
		LastReset:              tm.lastReset,
	}
}

func (tm *transactionMonitor) reset() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.totalCount = 0
	tm.successCount = 0
	tm.failureCount = 0
	tm.totalDuration = 0
	tm.maxDuration = 0
	tm.minDuration = 0
	tm.lastReset = time.Now()
}

// GetTransactionMetrics returns the current transaction performance metrics.
func (s *Store) GetTransactionMetrics() TransactionMetrics {
	return s.txMonitor.getMetrics()
}

// ResetTransactionMetrics resets all transaction metrics.
func (s *Store) ResetTransactionMetrics() {
	s.txMonitor.reset()
}

// IsTransactionHealthy checks if transaction performance is within acceptable thresholds:
// under 5% failures and under one second on average. Fewer than ten
// transactions are always healthy.
func (s *Store) IsTransactionHealthy() bool {
	m := s.txMonitor.getMetrics()
	if m.TotalTransactions < 10 {
		return true
	}
	if m.FailureRate() > 0.05 {
		return false
	}
	return m.AverageDuration <= time.Second
}
