package eventstream

// The drain engine moves events from the queue to the subscriber on the
// executor, bounded by demand. The delivery lease guarantees a single
// drain task at a time; chaining each delivery and the next drain step
// through the executor keeps deliveries strictly ordered, bounds stack
// depth, and ensures OnNext is never re-entrant with the subscriber's
// Request.

// kickDrain starts a drain task unless one is already running.
func (t *Transformer[R, E]) kickDrain() {
	if t.ledger.tryTakeDeliveryLease() {
		t.exec.Submit(t.drain)
	}
}

// drain delivers at most one event, then reschedules itself. Runs on the
// executor while holding the delivery lease.
func (t *Transformer[R, E]) drain() {
	// Terminal already delivered, or the subscriber walked away; the
	// lease intentionally stays held so no further drain can start.
	if t.done.Load() || t.cancelled.Load() {
		return
	}
	t.mu.Lock()

	if len(t.queue) > 0 && t.queue[0].eos {
		t.mu.Unlock()
		t.onEventComplete()
		return
	}

	if len(t.queue) == 0 || t.ledger.outstanding() == 0 {
		t.ledger.releaseDeliveryLease()
		// Demand may have raced in between the check and the release;
		// make sure bytes are on the way for it.
		needMore := t.ledger.outstanding() > 0
		t.mu.Unlock()
		if needMore {
			t.requestDataIfNotAlready()
		}
		return
	}

	item := t.queue[0]
	t.queue = t.queue[1:]
	t.ledger.takeDemand()
	t.mu.Unlock()

	t.exec.Submit(func() {
		// The stream may have terminated or been cancelled since the
		// pop; the event is dropped, not delivered late.
		if !t.done.Load() && !t.cancelled.Load() {
			t.deliver(item.event)
		}
		t.exec.Submit(t.drain)
	})
}

// deliver hands one event to the downstream subscriber. A panicking
// subscriber is logged and ignored; the stream carries on.
func (t *Transformer[R, E]) deliver(event E) {
	ref := t.subscriber.Load()
	if ref == nil {
		return
	}
	safeCall("Subscriber.OnNext", func() { ref.sub.OnNext(event) })
}
