package eventstream

import "sync/atomic"

// demandLedger tracks outstanding downstream event demand and the two
// mutual-exclusion leases that keep the pipeline single-file: at most one
// drain task (delivering) and at most one in-flight upstream byte request
// (requesting). All transitions are compare-and-set; the ledger never
// touches the event queue.
type demandLedger struct {
	demand     atomic.Int64
	delivering atomic.Bool
	requesting atomic.Bool
}

func (l *demandLedger) addDemand(n int64) {
	l.demand.Add(n)
}

// takeDemand consumes one unit of demand before an event hand-off.
func (l *demandLedger) takeDemand() {
	l.demand.Add(-1)
}

func (l *demandLedger) outstanding() int64 {
	return l.demand.Load()
}

// tryTakeDeliveryLease returns true exactly once per idle-to-active
// transition.
func (l *demandLedger) tryTakeDeliveryLease() bool {
	return l.delivering.CompareAndSwap(false, true)
}

func (l *demandLedger) releaseDeliveryLease() {
	l.delivering.CompareAndSwap(true, false)
}

func (l *demandLedger) tryTakeRequestLease() bool {
	return l.requesting.CompareAndSwap(false, true)
}

func (l *demandLedger) releaseRequestLease() {
	l.requesting.CompareAndSwap(true, false)
}
