package adsb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/yegors/co-radar/internal/websocket"
	"github.com/yegors/co-radar/pkg/logger"
)

type captureBroadcaster struct {
	mu       sync.Mutex
	messages []*websocket.Message
}

func (c *captureBroadcaster) Broadcast(m *websocket.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
}

func (c *captureBroadcaster) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.Type
	}
	return out
}

func TestServiceStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/receiver.json":
			w.Write([]byte(`{"refresh":200,"lat":1.5,"lon":2.5,"readsb":true,"version":"3.14.1"}`))
		case "/data/aircraft.json":
			w.Write([]byte(aircraftJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	log := logger.NewNop()
	ws := &captureBroadcaster{}
	registry := NewRegistry(RegistryConfig{}, log)
	svc := NewService(testClient(t, srv, nil), registry, nil, nil, ws, ServiceConfig{
		Interval:         time.Second,
		WebSocketUpdates: true,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop()

	if got := svc.Interval(); got != 200*time.Millisecond {
		t.Errorf("Interval = %v, want receiver refresh", got)
	}
	meta, info := svc.Receiver()
	if info == nil || meta.Decoder != "readsb" || meta.Version != "3.14.1" {
		t.Errorf("receiver = %+v %v", meta, info)
	}
	if lat, lon, ok := registry.ReceiverPosition(); !ok || lat != 1.5 || lon != 2.5 {
		t.Errorf("receiver position = %v %v %v", lat, lon, ok)
	}

	e, ok := registry.Get("abc123")
	if !ok || e.Callsign != "TEST1" || e.DistanceNM == nil {
		t.Fatalf("entity = %+v, %v", e, ok)
	}
	if last, ok := svc.GetStatus(); !ok || last.IsZero() {
		t.Errorf("status = %v %v", last, ok)
	}

	got := ws.types()
	want := []string{websocket.MessageTypeReceiver, websocket.MessageTypeAircraftAdded, websocket.MessageTypeStats}
	if len(got) < len(want) {
		t.Fatalf("broadcasts = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("broadcast %d = %q, want %q", i, got[i], want[i])
		}
	}

	resp := svc.HandleBulkRequest(Filter{}, &Bounds{MinLon: 0, MinLat: 0, MaxLon: 5, MaxLat: 5})
	if resp.Count != 1 {
		t.Errorf("bulk count = %d", resp.Count)
	}
	resp = svc.HandleBulkRequest(Filter{MilitaryOnly: true}, nil)
	if resp.Count != 0 {
		t.Errorf("military bulk count = %d", resp.Count)
	}
}

func TestParseClientFilters(t *testing.T) {
	f := ParseClientFilters(map[string]any{
		"military_only": true,
		"sources":       []any{"adsb", 3, "mlat"},
		"altitude_min":  1000.0,
		"selected_hex":  "abc123",
	})
	if !f.MilitaryOnly || len(f.Sources) != 2 || f.AltitudeMin == nil || *f.AltitudeMin != 1000 || f.AltitudeMax != nil || f.SelectedHex != "abc123" {
		t.Errorf("filters = %+v", f)
	}

	if b := parseBounds(map[string]any{"min_lon": 1.0, "min_lat": 2.0, "max_lon": 3.0}); b != nil {
		t.Errorf("incomplete bounds parsed: %+v", b)
	}
	b := parseBounds(map[string]any{"min_lon": 1.0, "min_lat": 2.0, "max_lon": 3.0, "max_lat": 4.0})
	if b == nil || *b != (Bounds{MinLon: 1, MinLat: 2, MaxLon: 3, MaxLat: 4}) {
		t.Errorf("bounds = %+v", b)
	}
}
