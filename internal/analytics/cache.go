package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSnapshotMiss is returned when no fresh snapshot exists for a key.
// Corrupt entries are reported as misses too.
var ErrSnapshotMiss = errors.New("analytics: snapshot miss")

// SnapshotCache stores computed KPI snapshots for reuse within a TTL.
type SnapshotCache interface {
	Load(ctx context.Context, key string) (*KPIs, error)
	Store(ctx context.Context, key string, kpis *KPIs, ttl time.Duration) error
}

// SnapshotKey identifies the snapshot of one period. Rule-version changes
// are folded in so a classifier upgrade never serves stale figures.
func SnapshotKey(period Period, ruleVersion string) string {
	return fmt.Sprintf("kpis:%s:%s:%s", ruleVersion,
		period.Start.UTC().Format(time.RFC3339), period.End.UTC().Format(time.RFC3339))
}
