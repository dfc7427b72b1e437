package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mossy-p/webrtc-relay/internal/models"
)

// wireFrame is a server frame as a browser sees it
type wireFrame struct {
	Type    models.MessageType `json:"type"`
	ID      uint64             `json:"id"`
	Payload json.RawMessage    `json:"payload"`
}

type wsPeer struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dialPeer(t *testing.T, srv *httptest.Server) *wsPeer {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	p := &wsPeer{t: t, conn: conn}
	hello := p.expect(models.TypeConnected)
	var connected models.ConnectedPayload
	p.payload(hello, &connected)
	p.id = connected.ID
	return p
}

func (p *wsPeer) send(typ models.MessageType, id uint64, payload any) {
	p.t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		p.t.Fatalf("Marshal failed: %v", err)
	}
	msg := models.InboundMessage{Type: typ, ID: id, Payload: raw}
	if err := p.conn.WriteJSON(msg); err != nil {
		p.t.Fatalf("Write failed: %v", err)
	}
}

func (p *wsPeer) expect(typ models.MessageType) wireFrame {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f wireFrame
	if err := p.conn.ReadJSON(&f); err != nil {
		p.t.Fatalf("Read failed waiting for %s: %v", typ, err)
	}
	if f.Type != typ {
		p.t.Fatalf("Expected %s, got %s (%s)", typ, f.Type, f.Payload)
	}
	return f
}

func (p *wsPeer) payload(f wireFrame, v any) {
	p.t.Helper()
	if err := json.Unmarshal(f.Payload, v); err != nil {
		p.t.Fatalf("Failed to decode %s payload: %v", f.Type, err)
	}
}

func TestWebSocketSession(t *testing.T) {
	cfg := testConfig(t)
	srv := httptest.NewServer(setupRouter(t, cfg))
	defer srv.Close()

	host := dialPeer(t, srv)
	guest := dialPeer(t, srv)
	viewer := dialPeer(t, srv)

	host.send(models.TypeCreateRoom, 1, nil)
	ack := host.expect(models.TypeAck)
	var created models.CreateRoomResponse
	host.payload(ack, &created)

	// join with an unknown room first
	guest.send(models.TypeJoin, 1, models.JoinRequest{Role: models.RoleGuest, Room: "missing"})
	var joinAck models.JoinAck
	guest.payload(guest.expect(models.TypeAck), &joinAck)
	if joinAck.Error != models.ErrCodeRoomNotFound {
		t.Fatalf("Expected room-not-found, got %+v", joinAck)
	}

	guest.send(models.TypeJoin, 2, models.JoinRequest{Role: models.RoleGuest, Room: created.Room, Name: "Gia"})
	guest.payload(guest.expect(models.TypeAck), &joinAck)
	if joinAck.Status != "waiting" {
		t.Fatalf("Expected waiting, got %+v", joinAck)
	}

	host.send(models.TypeJoin, 2, models.JoinRequest{Role: models.RoleHost, Room: created.Room})
	var lobby []models.LobbyEntry
	host.payload(host.expect(models.TypeLobbyList), &lobby)
	if len(lobby) != 1 || lobby[0].ID != guest.id || lobby[0].Name != "Gia" {
		t.Fatalf("Unexpected lobby %+v", lobby)
	}
	host.expect(models.TypeAck)

	host.send(models.TypeAcceptGuest, 0, models.AcceptGuestRequest{Room: created.Room, GuestID: guest.id})
	var accepted models.AcceptedPayload
	guest.payload(guest.expect(models.TypeAccepted), &accepted)
	if accepted.HostID != host.id || accepted.Room != created.Room {
		t.Errorf("Unexpected accepted payload %+v", accepted)
	}
	host.expect(models.TypeGuestAccepted)
	host.expect(models.TypeLobbyList)

	guest.send(models.TypeSignal, 0, models.SignalRequest{
		To:   host.id,
		Type: "offer",
		Data: json.RawMessage(`{"sdp":"v=0"}`),
	})
	var sig models.SignalPayload
	host.payload(host.expect(models.TypeSignal), &sig)
	if sig.From != guest.id || sig.Type != "offer" || string(sig.Data) != `{"sdp":"v=0"}` {
		t.Errorf("Unexpected signal %+v", sig)
	}

	viewer.send(models.TypeJoin, 0, models.JoinRequest{Role: models.RoleViewer, Room: created.Room})
	var ready models.ViewerReadyPayload
	host.payload(host.expect(models.TypeViewerReady), &ready)
	if ready.ViewerID != viewer.id {
		t.Errorf("Expected viewer-ready for %s, got %+v", viewer.id, ready)
	}

	host.send(models.TypeHostCommand, 0, models.HostCommandRequest{Room: created.Room, Cmd: models.CommandStartForward})
	var sf struct {
		ViewerID string `json:"viewerId"`
		GuestID  string `json:"guestId"`
	}
	host.payload(host.expect(models.TypeStartForward), &sf)
	if sf.ViewerID != viewer.id || sf.GuestID != guest.id {
		t.Errorf("Unexpected start-forward %+v", sf)
	}
	var prep models.PrepareViewerPayload
	viewer.payload(viewer.expect(models.TypePrepareViewer), &prep)
	if prep.HostID != host.id || prep.Room != created.Room {
		t.Errorf("Unexpected prepare-viewer %+v", prep)
	}

	host.conn.Close()
	guest.expect(models.TypeHostLeft)
	viewer.expect(models.TypeHostLeft)
}

func TestWebSocketIgnoresGarbage(t *testing.T) {
	srv := httptest.NewServer(setupRouter(t, testConfig(t)))
	defer srv.Close()

	peer := dialPeer(t, srv)
	if err := peer.conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// the connection survives and still answers
	peer.send(models.TypeCreateRoom, 5, nil)
	if ack := peer.expect(models.TypeAck); ack.ID != 5 {
		t.Errorf("Expected ack 5, got %d", ack.ID)
	}
}
