// Package signal decides whether a tracked token qualifies for entry.
package signal

import (
	"sort"
	"sync"

	"pumpfun-engine/internal/observability"
)

// Check names a rejection category.
type Check string

// Rejection taxonomy. The last four are raised by the risk controller.
const (
	CheckMarketCap Check = "mc"
	CheckPump      Check = "pump"
	CheckBuys      Check = "buys"
	CheckVolume    Check = "volume"
	CheckOwnership Check = "ownership"
	CheckLiquidity Check = "liquidity"
	CheckDexPaid   Check = "dexPaid"
	CheckMaxTrades Check = "maxTrades"
	CheckCooldown  Check = "cooldown"
	CheckPosition  Check = "position"
	CheckProfitCap Check = "profitCap"
)

// Checks lists every category in reporting order.
var Checks = []Check{
	CheckMarketCap, CheckPump, CheckBuys, CheckVolume, CheckOwnership, CheckLiquidity,
	CheckDexPaid, CheckMaxTrades, CheckCooldown, CheckPosition, CheckProfitCap,
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Check     Check
	Threshold string
	Actual    string
	Pass      bool
}

// Decision is the outcome of a run of checks. Failed is empty on a pass.
type Decision struct {
	Pass    bool
	Failed  Check
	Results []CheckResult
}

func (d *Decision) add(r CheckResult) bool {
	d.Results = append(d.Results, r)
	if !r.Pass {
		d.Pass = false
		d.Failed = r.Check
	}
	return r.Pass
}

// Last returns the final result evaluated.
func (d Decision) Last() (CheckResult, bool) {
	if len(d.Results) == 0 {
		return CheckResult{}, false
	}
	return d.Results[len(d.Results)-1], true
}

// Stats counts rejections per check for the stats snapshot.
type Stats struct {
	mu     sync.Mutex
	counts map[Check]int64
}

// NewStats creates empty counters.
func NewStats() *Stats {
	return &Stats{counts: make(map[Check]int64)}
}

// Reject counts one rejection and exports it.
func (s *Stats) Reject(c Check) {
	s.mu.Lock()
	s.counts[c]++
	s.mu.Unlock()
	observability.RecordRejection(string(c))
}

// Snapshot returns a copy keyed by check name, with every check present.
func (s *Stats) Snapshot() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(Checks))
	for _, c := range Checks {
		out[string(c)] = s.counts[c]
	}
	return out
}

// Names returns the snapshot keys sorted by count, highest first.
func Names(counts map[string]int64) []string {
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}
