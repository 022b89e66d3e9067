package goShield

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)

	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), AuditEvent{
			EventType: auditEventTokenIssued,
			RequestID: string(rune('a' + i)),
		})
	}
	d.Close()

	for i := 0; i < 3; i++ {
		select {
		case event := <-sink.Events():
			if event.RequestID != string(rune('a'+i)) {
				t.Fatalf("events out of order: got %q at %d", event.RequestID, i)
			}
		default:
			t.Fatalf("missing event %d", i)
		}
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled audit config should produce a nil dispatcher")
	}

	// Every method tolerates the nil receiver.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher cannot drop events")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, AuditEvent) { <-s.release }

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(sink.release)
		d.Close()
	}()

	deadline := time.Now().Add(time.Second)
	for d.Dropped() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected drops against a full buffer")
		}
		d.Emit(context.Background(), AuditEvent{EventType: auditEventRequestAdmitted})
	}
}

func TestDispatcherEmitAfterCloseIsNoOp(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)
	d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: auditEventTokenIssued})

	select {
	case <-sink.Events():
		t.Fatal("no event should be delivered after Close")
	default:
	}
}

func TestJSONWriterSinkOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{EventType: auditEventTokenIssued, UserID: "u1"})
	sink.Emit(context.Background(), AuditEvent{EventType: auditEventTokenRevoked, UserID: "u2"})

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		var event AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines+1, err)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}
}

func TestAuditEventOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(AuditEvent{EventType: auditEventRequestAdmitted, Success: true})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if bytes.Contains(data, []byte("user_id")) || bytes.Contains(data, []byte("metadata")) {
		t.Fatalf("empty fields should be omitted: %s", data)
	}
}
