// Package ledger tracks unacknowledged outbound datagrams so the
// connection engine can measure round-trip time on acknowledgment and
// re-queue Reliable/Ordered messages when a datagram is judged lost.
package ledger

import (
	"time"

	"github.com/relaynet-go/relaynet/wire"
)

// Entry is a single unacknowledged datagram: the local sequence it
// was sent under, when it was sent, and the Reliable/Ordered messages
// it carried (Instant messages are never retained here).
type Entry struct {
	LocalSeq uint8
	SendTime time.Time
	Messages []wire.Message
}

// Ledger is the sender's record of in-flight datagrams, keyed by
// local sequence. At most one entry exists per sequence value at a
// time: because the acknowledgment window (32) is far smaller than
// the sequence ring (256), a wrapped sequence cannot collide with a
// still-live entry under normal operation. Per the open question in
// the design notes, a collision (only reachable with far more than
// 256 packets in flight) is resolved by overwriting the stale entry,
// which is exactly what assigning into the map below does.
type Ledger struct {
	entries map[uint8]*Entry
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[uint8]*Entry)}
}

// Append records a newly sent datagram.
func (l *Ledger) Append(seq uint8, sendTime time.Time, messages []wire.Message) {
	l.entries[seq] = &Entry{LocalSeq: seq, SendTime: sendTime, Messages: messages}
}

// Acknowledge removes every entry covered by remoteAck/bitfield and
// returns one RTT sample per newly acknowledged entry, each already
// corrected for the caller-supplied tick delay (time intentionally
// slept between ticks, which would otherwise inflate the measured
// round trip).
func (l *Ledger) Acknowledge(remoteAck uint8, bitfield uint32, now time.Time, tickDelayCorrection time.Duration) []time.Duration {
	var samples []time.Duration
	for seq, entry := range l.entries {
		if !wire.AckCovers(seq, remoteAck, bitfield) {
			continue
		}
		sample := now.Sub(entry.SendTime) - tickDelayCorrection
		if sample < 0 {
			sample = 0
		}
		samples = append(samples, sample)
		delete(l.entries, seq)
	}
	return samples
}

// ExpireLost removes and returns every entry whose age exceeds
// dropThreshold, for the caller to re-queue their Reliable/Ordered
// messages and report the loss.
func (l *Ledger) ExpireLost(now time.Time, dropThreshold time.Duration) []Entry {
	var lost []Entry
	for seq, entry := range l.entries {
		if now.Sub(entry.SendTime) > dropThreshold {
			lost = append(lost, *entry)
			delete(l.entries, seq)
		}
	}
	return lost
}

// Len reports the number of unacknowledged entries currently tracked.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Reset discards every tracked entry.
func (l *Ledger) Reset() {
	l.entries = make(map[uint8]*Entry)
}
