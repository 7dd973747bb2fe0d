package api

import (
    "testing"
    "time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
    b := NewBroker()
    rid := "run1"
    ch := b.Subscribe(rid)

    evt := SSEEvent{Type: "run.progress", Data: map[string]any{"restart": 1}}
    b.Publish(rid, evt)

    select {
    case got := <-ch:
        if got.Type != evt.Type { t.Fatalf("got type %s, want %s", got.Type, evt.Type) }
        if got.Data["restart"].(int) != 1 { t.Fatalf("bad payload: %+v", got.Data) }
    case <-time.After(200 * time.Millisecond):
        t.Fatal("timeout waiting for event")
    }

    b.Unsubscribe(rid, ch)
    select {
    case _, ok := <-ch:
        if ok { t.Fatal("channel should be closed after unsubscribe") }
    case <-time.After(50 * time.Millisecond):
        // acceptable if already drained and closed
    }
}

func TestBrokerIsolatesRuns(t *testing.T) {
    b := NewBroker()
    chA := b.Subscribe("runA")
    chB := b.Subscribe("runB")
    defer b.Unsubscribe("runA", chA)
    defer b.Unsubscribe("runB", chB)

    b.Publish("runA", SSEEvent{Type: "run.completed", Data: map[string]any{}})

    select {
    case <-chA:
    case <-time.After(200 * time.Millisecond):
        t.Fatal("subscriber for runA missed event")
    }
    select {
    case evt := <-chB:
        t.Fatalf("runB should not receive runA events: %+v", evt)
    case <-time.After(50 * time.Millisecond):
    }
}
