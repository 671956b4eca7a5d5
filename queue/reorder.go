package queue

import "github.com/relaynet-go/relaynet/wire"

// Reorder restores per-channel delivery order for Ordered messages
// that may arrive out of wire order. Each channel tracks the next
// order_seq it expects; messages that arrive early are buffered until
// their turn, and messages older than the cursor are duplicates and
// are dropped.
type Reorder struct {
	expected [256]uint8
	pending  [256]map[uint8]wire.Message
}

// NewReorder returns an empty reassembly buffer.
func NewReorder() *Reorder {
	return &Reorder{}
}

// Accept feeds one inbound Ordered message and returns zero or more
// messages now eligible for delivery, in increasing order_seq order.
// A message whose order_seq is behind the channel's cursor is a
// duplicate and is dropped (nil, no match found).
func (r *Reorder) Accept(msg wire.Message) []wire.Message {
	ch := msg.OrderChannel
	expected := r.expected[ch]

	if msg.OrderSeq != expected {
		if wire.SeqLess(msg.OrderSeq, expected) {
			return nil // duplicate of an already-delivered sequence
		}
		if r.pending[ch] == nil {
			r.pending[ch] = make(map[uint8]wire.Message)
		}
		r.pending[ch][msg.OrderSeq] = msg
		return nil
	}

	var ready []wire.Message
	ready = append(ready, msg)
	expected++

	for {
		if r.pending[ch] == nil {
			break
		}
		next, ok := r.pending[ch][expected]
		if !ok {
			break
		}
		delete(r.pending[ch], expected)
		ready = append(ready, next)
		expected++
	}
	r.expected[ch] = expected
	return ready
}

// Reset clears every channel's cursor and pending buffer.
func (r *Reorder) Reset() {
	r.expected = [256]uint8{}
	for i := range r.pending {
		r.pending[i] = nil
	}
}
