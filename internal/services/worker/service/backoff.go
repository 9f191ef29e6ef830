package service

import "time"

// Backoff doubles base per prior attempt and caps the result at limit
// tries is the attempt count stamped by the lease, so the first failure waits base
func Backoff(base, limit time.Duration, tries int) time.Duration {
	if base <= 0 {
		base = time.Minute
	}
	if limit <= 0 {
		limit = 10 * time.Minute
	}
	d := base
	for i := 1; i < tries && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}
