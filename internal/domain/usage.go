package domain

import (
	"fmt"
	"time"
)

// UsageRecord holds the per-period counters of one account. All counters share
// one ResetWatermark, the start of the period they were counted in.
type UsageRecord struct {
	Counts         map[Feature]int64
	LastUpdated    time.Time
	ResetWatermark time.Time
}

func NewUsageRecord(periodStart time.Time) UsageRecord {
	return UsageRecord{
		Counts:         zeroCounts(),
		ResetWatermark: periodStart,
	}
}

// Stale reports whether the record belongs to a period other than the one
// containing now.
func (u UsageRecord) Stale(now time.Time, period Period) bool {
	return !u.ResetWatermark.Equal(period.Start(now))
}

// CountAt returns the counter as seen at now. A stale record reads as zero.
func (u UsageRecord) CountAt(feature Feature, now time.Time, period Period) int64 {
	if u.Stale(now, period) {
		return 0
	}
	return u.Counts[feature]
}

// Record adds one unit of feature at now and returns the new count. When the
// period changed, every counter is reset first and the watermark advanced.
func (u *UsageRecord) Record(feature Feature, now time.Time, period Period) (int64, error) {
	if !feature.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}

	start := period.Start(now)
	if !u.ResetWatermark.Equal(start) {
		u.Counts = zeroCounts()
		u.ResetWatermark = start
	}
	if u.Counts == nil {
		u.Counts = zeroCounts()
	}

	u.Counts[feature]++
	u.LastUpdated = now

	return u.Counts[feature], nil
}

// Snapshot returns a copy of all counters as seen at now.
func (u UsageRecord) Snapshot(now time.Time, period Period) map[Feature]int64 {
	out := zeroCounts()
	if u.Stale(now, period) {
		return out
	}
	for feature, count := range u.Counts {
		out[feature] = count
	}
	return out
}

func zeroCounts() map[Feature]int64 {
	counts := make(map[Feature]int64, len(features))
	for _, feature := range features {
		counts[feature] = 0
	}
	return counts
}
