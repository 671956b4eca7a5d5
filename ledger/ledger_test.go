package ledger

import (
	"testing"
	"time"

	"github.com/relaynet-go/relaynet/wire"
)

func TestAcknowledgeRemovesCoveredEntries(t *testing.T) {
	l := New()
	now := time.Now()
	l.Append(5, now, []wire.Message{{Kind: wire.KindReliable, Payload: []byte("A")}})
	l.Append(6, now, []wire.Message{{Kind: wire.KindReliable, Payload: []byte("B")}})

	samples := l.Acknowledge(6, 1, now.Add(10*time.Millisecond), 0)
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2 (seq 6 itself plus seq 5 via bit 0)", len(samples))
	}
	if l.Len() != 0 {
		t.Errorf("expected both entries removed, got %d remaining", l.Len())
	}
}

func TestAcknowledgeAppliesTickDelayCorrection(t *testing.T) {
	l := New()
	sendTime := time.Now()
	l.Append(0, sendTime, nil)

	samples := l.Acknowledge(0, 0, sendTime.Add(100*time.Millisecond), 90*time.Millisecond)
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	if samples[0] > 15*time.Millisecond {
		t.Errorf("sample = %v, want <= ~10ms after subtracting the tick delay", samples[0])
	}
}

func TestAcknowledgeClampsNegativeSample(t *testing.T) {
	l := New()
	sendTime := time.Now()
	l.Append(0, sendTime, nil)

	samples := l.Acknowledge(0, 0, sendTime.Add(5*time.Millisecond), 50*time.Millisecond)
	if len(samples) != 1 || samples[0] != 0 {
		t.Errorf("expected an over-correction to clamp to 0, got %v", samples)
	}
}

func TestExpireLostReturnsAgedEntries(t *testing.T) {
	l := New()
	sendTime := time.Now()
	l.Append(0, sendTime, []wire.Message{{Kind: wire.KindOrdered, Payload: []byte("A")}})

	lost := l.ExpireLost(sendTime.Add(20*time.Millisecond), 10*time.Millisecond)
	if len(lost) != 1 {
		t.Fatalf("got %d lost entries, want 1", len(lost))
	}
	if l.Len() != 0 {
		t.Errorf("expired entries must be removed from the ledger, got %d remaining", l.Len())
	}
}

func TestExpireLostIgnoresFreshEntries(t *testing.T) {
	l := New()
	sendTime := time.Now()
	l.Append(0, sendTime, nil)

	lost := l.ExpireLost(sendTime.Add(5*time.Millisecond), 10*time.Millisecond)
	if len(lost) != 0 {
		t.Errorf("expected a fresh entry to survive, got %d lost", len(lost))
	}
}

func TestResetClearsEntries(t *testing.T) {
	l := New()
	l.Append(0, time.Now(), nil)
	l.Reset()
	if l.Len() != 0 {
		t.Errorf("expected Reset to clear the ledger, got %d entries", l.Len())
	}
}
