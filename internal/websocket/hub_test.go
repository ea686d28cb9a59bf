package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xelth-com/f8tracker/internal/models"
)

type fakeEditor struct {
	mu    sync.Mutex
	calls []models.Edit
}

func (f *fakeEditor) ApplyEdit(_ context.Context, e models.Edit) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, e)
	if e.ID != "A1" {
		return models.Order{}, errors.New("record not found")
	}
	o := models.Order{Forma8Salmi: e.ID}
	o.Set(e.Field, e.Value)
	return o, nil
}

func (f *fakeEditor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func startHub(t *testing.T, editor Editor) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub(editor, nil)
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		hub.Stop()
		srv.Close()
	})

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return hub, conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(v); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestHubBroadcast(t *testing.T) {
	hub, conn := startHub(t, nil)

	hub.Broadcast("ORDERS_UPDATED", map[string]int{"count": 3})

	var got struct {
		Type string         `json:"type"`
		Data map[string]int `json:"data"`
	}
	readJSON(t, conn, &got)
	if got.Type != "ORDERS_UPDATED" || got.Data["count"] != 3 {
		t.Errorf("got %+v", got)
	}
}

func TestClientEditAckAndError(t *testing.T) {
	editor := &fakeEditor{}
	_, conn := startHub(t, editor)

	conn.WriteJSON(map[string]string{
		"type": MsgOrderEdit, "msgId": "m1", "id": "A1", "field": "estado", "value": "EMPACADO",
	})
	var ack reply
	readJSON(t, conn, &ack)
	if ack.Type != MsgAck || ack.MsgID != "m1" || ack.Order == nil || ack.Order.Estado != "EMPACADO" {
		t.Fatalf("ack = %+v", ack)
	}

	conn.WriteJSON(map[string]string{"type": MsgOrderEdit, "msgId": "m2", "id": "ZZ", "field": "estado"})
	var nack reply
	readJSON(t, conn, &nack)
	if nack.Type != MsgError || nack.MsgID != "m2" || nack.Error == "" {
		t.Fatalf("error reply = %+v", nack)
	}
}

func TestClientIgnoresDuplicateMsgID(t *testing.T) {
	editor := &fakeEditor{}
	_, conn := startHub(t, editor)

	edit := map[string]string{"type": MsgOrderEdit, "msgId": "dup", "id": "A1", "field": "comentarios", "value": "x"}
	conn.WriteJSON(edit)
	conn.WriteJSON(edit)
	conn.WriteJSON(map[string]string{"type": MsgOrderEdit, "msgId": "next", "id": "A1", "field": "comentarios", "value": "y"})

	var first, second reply
	readJSON(t, conn, &first)
	readJSON(t, conn, &second)
	if first.MsgID != "dup" || second.MsgID != "next" {
		t.Errorf("replies = %q, %q", first.MsgID, second.MsgID)
	}
	if editor.count() != 2 {
		t.Errorf("editor called %d times, want 2", editor.count())
	}
}

func TestClientRejectsMalformed(t *testing.T) {
	_, conn := startHub(t, &fakeEditor{})

	conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
	var got reply
	readJSON(t, conn, &got)
	if got.Type != MsgError {
		t.Errorf("got %+v", got)
	}
}

func TestDeduplicator(t *testing.T) {
	d := NewDeduplicator(5 * time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	if d.IsDuplicate("m1") {
		t.Fatal("first sighting reported as duplicate")
	}
	if !d.IsDuplicate("m1") {
		t.Fatal("repeat within ttl not detected")
	}
	if d.IsDuplicate("") || d.IsDuplicate("") {
		t.Fatal("empty id must never be a duplicate")
	}

	now = now.Add(6 * time.Minute)
	if d.IsDuplicate("m1") {
		t.Fatal("id should expire after ttl")
	}
}

func TestEnvelopeJSON(t *testing.T) {
	b, _ := json.Marshal(Envelope{Type: "SYNC_STATUS"})
	if string(b) != `{"type":"SYNC_STATUS"}` {
		t.Errorf("got %s", b)
	}
}

type blockingEditor struct {
	started chan struct{}
	release chan struct{}
	done    chan struct{}
}

func (b *blockingEditor) ApplyEdit(_ context.Context, e models.Edit) (models.Order, error) {
	close(b.started)
	<-b.release
	defer close(b.done)
	return models.Order{Forma8Salmi: e.ID}, nil
}

func TestStopWaitsForInFlightEdit(t *testing.T) {
	editor := &blockingEditor{
		started: make(chan struct{}),
		release: make(chan struct{}),
		done:    make(chan struct{}),
	}
	hub, conn := startHub(t, editor)

	conn.WriteJSON(map[string]string{"type": MsgOrderEdit, "msgId": "m1", "id": "A1", "field": "comentarios", "value": "x"})
	select {
	case <-editor.started:
	case <-time.After(2 * time.Second):
		t.Fatal("edit never reached the editor")
	}

	stopped := make(chan struct{})
	go func() {
		hub.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while an edit was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(editor.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the edit finished")
	}
	select {
	case <-editor.done:
	default:
		t.Error("Stop returned before the edit completed")
	}
}

func TestSendAfterCloseIsDropped(t *testing.T) {
	c := &Client{ID: "c1", hub: NewHub(nil, nil), send: make(chan []byte, 1)}
	c.closeSend()
	c.closeSend()

	if c.trySend([]byte("x")) {
		t.Error("send on a closed client should be refused")
	}
	c.sendJSON(reply{Type: MsgAck})
}
