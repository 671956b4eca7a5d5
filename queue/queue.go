// Package queue implements the three outbound message FIFOs (Instant,
// Reliable, Ordered) that feed a single outbound datagram, and the
// inbound per-channel reassembly buffer that restores Ordered message
// delivery order regardless of arrival order.
package queue

import "github.com/relaynet-go/relaynet/wire"

// Outbound holds the three logical send queues plus the per-channel
// order counters assigned at Send time and held stable through
// retransmission.
type Outbound struct {
	instant  []wire.Message
	reliable []wire.Message
	ordered  []wire.Message

	orderCounters [256]uint8
}

// NewOutbound returns an empty outbound queue set.
func NewOutbound() *Outbound {
	return &Outbound{}
}

// Send enqueues a new application message. For Ordered messages the
// channel's order sequence is assigned here and stays fixed across
// any later retransmission via Requeue.
func (o *Outbound) Send(kind byte, channel byte, payload []byte) wire.Message {
	msg := wire.Message{Kind: kind, Payload: payload}
	switch kind {
	case wire.KindInstant:
		o.instant = append(o.instant, msg)
	case wire.KindReliable:
		o.reliable = append(o.reliable, msg)
	case wire.KindOrdered:
		msg.OrderChannel = channel
		msg.OrderSeq = o.orderCounters[channel]
		o.orderCounters[channel]++
		o.ordered = append(o.ordered, msg)
	}
	return msg
}

// Requeue re-inserts messages lost in flight at the head of their
// respective queue, preserving their assigned order_seq. Instant
// messages must never be passed here — callers are responsible for
// filtering them out before requeuing a lost packet's contents.
func (o *Outbound) Requeue(messages []wire.Message) {
	var reliable, ordered []wire.Message
	for _, m := range messages {
		switch m.Kind {
		case wire.KindReliable:
			reliable = append(reliable, m)
		case wire.KindOrdered:
			ordered = append(ordered, m)
		}
	}
	if len(reliable) > 0 {
		o.reliable = append(reliable, o.reliable...)
	}
	if len(ordered) > 0 {
		o.ordered = append(ordered, o.ordered...)
	}
}

// Drain pulls queued messages in priority order {Instant, Reliable,
// Ordered} until the next message would exceed budget bytes. It
// returns every drained message (for serialization) and, separately,
// the subset that must be retained in the sender's ledger (Reliable
// and Ordered — Instant is fire-and-forget and never retained).
func (o *Outbound) Drain(budget int) (drained, retained []wire.Message) {
	full := false
	pull := func(src *[]wire.Message) {
		for !full && len(*src) > 0 {
			m := (*src)[0]
			if m.Size() > budget {
				full = true
				return
			}
			*src = (*src)[1:]
			budget -= m.Size()
			drained = append(drained, m)
			if m.Kind != wire.KindInstant {
				retained = append(retained, m)
			}
		}
	}
	pull(&o.instant)
	pull(&o.reliable)
	pull(&o.ordered)
	return drained, retained
}

// Reset empties all queues and order counters, as required by a
// connection reset.
func (o *Outbound) Reset() {
	o.instant = nil
	o.reliable = nil
	o.ordered = nil
	o.orderCounters = [256]uint8{}
}
