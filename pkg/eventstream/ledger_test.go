package eventstream

import (
	"sync"
	"testing"
)

func TestDemandLedgerCounts(t *testing.T) {
	var l demandLedger
	l.addDemand(5)
	l.addDemand(2)
	l.takeDemand()
	if got := l.outstanding(); got != 6 {
		t.Fatalf("outstanding = %d", got)
	}
}

func TestDeliveryLeaseExclusive(t *testing.T) {
	var l demandLedger

	// Only one goroutine wins each idle-to-active transition.
	for round := 0; round < 10; round++ {
		var wins int
		var mu sync.Mutex
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if l.tryTakeDeliveryLease() {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			t.Fatalf("round %d: %d lease winners", round, wins)
		}
		l.releaseDeliveryLease()
	}
}

func TestRequestLeaseExclusive(t *testing.T) {
	var l demandLedger
	if !l.tryTakeRequestLease() {
		t.Fatalf("first take failed")
	}
	if l.tryTakeRequestLease() {
		t.Fatalf("second take succeeded while held")
	}
	l.releaseRequestLease()
	if !l.tryTakeRequestLease() {
		t.Fatalf("take after release failed")
	}
}
