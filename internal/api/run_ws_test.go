package api

import (
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/websocket"
)

func TestRunWSInterleavedWriters(t *testing.T) {
    s := newTestServer(t)
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        s.RunWSHandler(w, r, "run_ws1")
    }))
    defer srv.Close()

    conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
    if err != nil { t.Fatalf("dial: %v", err) }
    defer conn.Close()

    if err := conn.WriteJSON(wsMessage{Type: "connection_init"}); err != nil { t.Fatalf("init: %v", err) }
    if err := conn.WriteJSON(wsMessage{Type: "subscribe", ID: "sub1"}); err != nil { t.Fatalf("subscribe: %v", err) }

    // fanout, pong replies and keepalive all share the connection; every
    // frame must still decode cleanly
    stop := make(chan struct{})
    go func() {
        for {
            select {
            case <-stop:
                return
            default:
                s.Broker.Publish("run_ws1", SSEEvent{Type: "run.progress", Data: map[string]any{"restart": 0}})
                time.Sleep(time.Millisecond)
            }
        }
    }()
    for i := 0; i < 10; i++ {
        if err := conn.WriteJSON(wsMessage{Type: "ping"}); err != nil { t.Fatalf("ping %d: %v", i, err) }
    }

    acks, pongs := 0, 0
    deadline := time.Now().Add(3 * time.Second)
    for pongs < 10 || acks < 1 {
        _ = conn.SetReadDeadline(deadline)
        var msg wsMessage
        if err := conn.ReadJSON(&msg); err != nil {
            t.Fatalf("read (acks=%d pongs=%d): %v", acks, pongs, err)
        }
        switch msg.Type {
        case "connection_ack":
            acks++
        case "pong":
            pongs++
        case "next":
            var pl map[string]any
            if err := json.Unmarshal(msg.Payload, &pl); err != nil { t.Fatalf("next payload: %v", err) }
        }
    }
    close(stop)
}
