package domain

import "time"

const (
	// DefaultBatchSize is used when a job does not specify one.
	DefaultBatchSize = 5
	// DefaultBatchDelay staggers the scheduled start of consecutive batches.
	DefaultBatchDelay = 5 * time.Second
)

// PartitionBatches splits productIDs into contiguous queued batches of size in list order.
// Batch i (0-based) is numbered i+1 and scheduled at now + i*delay.
func PartitionBatches(jobID string, productIDs []int64, size int, now time.Time, delay time.Duration) []Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	count := (len(productIDs) + size - 1) / size
	batches := make([]Batch, 0, count)
	for i := 0; i < count; i++ {
		start := i * size
		end := min(start+size, len(productIDs))
		ids := make([]int64, end-start)
		copy(ids, productIDs[start:end])
		batches = append(batches, Batch{
			JobID:       jobID,
			Number:      i + 1,
			ProductIDs:  ids,
			Status:      BatchQueued,
			Priority:    count - i,
			ScheduledAt: now.Add(time.Duration(i) * delay),
		})
	}
	return batches
}
