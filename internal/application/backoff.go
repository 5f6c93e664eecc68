package application

import "time"

// retryDelay is min(maxDelay, 2^attempts minutes).
func retryDelay(attempts int, maxDelay time.Duration) time.Duration {
	delay := time.Minute
	for i := 0; i < attempts && delay < maxDelay; i++ {
		delay *= 2
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// nextRetryAt schedules the next attempt after a failure observed at now.
func nextRetryAt(now time.Time, attempts int, maxDelay, jitter time.Duration) time.Time {
	return now.Add(retryDelay(attempts, maxDelay) + jitter)
}
