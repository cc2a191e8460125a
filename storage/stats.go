package storage

import (
	"sync/atomic"

	"github.com/arbors/arbors"
)

// StatsSnapshot is a point-in-time read of an Engine's counters (spec
// §4.6 "Counters", SPEC_FULL §C "Stats snapshot"). The counters are held
// per Engine; two Engines in one process do not share them.
type StatsSnapshot struct {
	PoolsDecoded     uint64
	PoolsSkipped     uint64
	BatchCacheHits   uint64
	BatchCacheMisses uint64
}

type engineStats struct {
	poolsDecoded atomic.Uint64
	poolsSkipped atomic.Uint64
	cacheHits    atomic.Uint64
	cacheMisses  atomic.Uint64
}

// recordDecode is called once per actual decode operation (never on a
// cache hit, spec §4.6 "incremented only by actual decode operations").
func (s *engineStats) recordDecode(plan arbors.DecodePlan) {
	decoded := uint64(plan.PopCount())
	s.poolsDecoded.Add(decoded)
	s.poolsSkipped.Add(8 - decoded)
}

func (s *engineStats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		PoolsDecoded:     s.poolsDecoded.Load(),
		PoolsSkipped:     s.poolsSkipped.Load(),
		BatchCacheHits:   s.cacheHits.Load(),
		BatchCacheMisses: s.cacheMisses.Load(),
	}
}

// Stats returns a snapshot of this Engine's counters.
func (e *Engine) Stats() StatsSnapshot {
	return e.stats.snapshot()
}
