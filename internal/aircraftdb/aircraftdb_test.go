package aircraftdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yegors/co-radar/pkg/logger"
)

type memLocal struct {
	mu   sync.Mutex
	recs map[string]Record
}

func (m *memLocal) Get(_ context.Context, hex string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[hex]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *memLocal) Put(_ context.Context, hex string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[hex] = rec
	return nil
}

func treeServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/db2/A.js":
			w.Write([]byte(`{"children":["AB","AC"],"12345":["N1","C172",null,"L",null,null,null]}`))
		case "/db/AB.js":
			w.Write([]byte(`{"CDEF":["N737AB","B738","L2J","M","Boeing 737-800","Acme Air",2010]}`))
		case "/db/icao_aircraft_types.json":
			w.Write([]byte(`{"B738":{"desc":"L2J","wtc":"M"}}`))
		case "/db2/icao_aircraft_types2.js":
			w.WriteHeader(http.StatusNotFound)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParseNode(t *testing.T) {
	n, err := ParseNode([]byte(`{"children":["A1"],"BC":["N1","B738","L2J","M","Boeing",null,1999]}`))
	if err != nil {
		t.Fatalf("ParseNode: %v", err)
	}
	if !n.HasChild("A1") || n.HasChild("A2") {
		t.Errorf("children = %v", n.Children)
	}
	rec := n.Records["BC"]
	want := Record{Registration: "N1", TypeCode: "B738", Description: "L2J", WTC: "M", TypeLong: "Boeing", Year: "1999"}
	if rec != want {
		t.Errorf("record = %+v, want %+v", rec, want)
	}

	if _, err := ParseNode([]byte(`not json`)); err == nil {
		t.Error("ParseNode accepted invalid JSON")
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"abc", "ABC", false},
		{" a1b2c3 ", "A1B2C3", false},
		{"", "", true},
		{"ABCDEFA", "", true},
		{"../x", "", true},
	}
	for _, tt := range tests {
		got, err := SanitizeKey(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("SanitizeKey(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestSchedulerResolve(t *testing.T) {
	var hits atomic.Int32
	srv := treeServer(t, &hits)
	local := &memLocal{recs: map[string]Record{}}
	s := NewScheduler(NewHTTPSource(srv.URL, 5*time.Second), local, SchedulerConfig{}, logger.NewNop())
	ctx := context.Background()

	rec, err := s.Resolve(ctx, "abcdef")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Registration != "N737AB" || rec.TypeCode != "B738" || rec.Operator != "Acme Air" || rec.Year != "2010" {
		t.Errorf("record = %+v", rec)
	}
	if _, ok := local.recs["ABCDEF"]; !ok {
		t.Error("remote hit was not written to the local store")
	}

	rec, err = s.Resolve(ctx, "A12345")
	if err != nil || rec.Registration != "N1" {
		t.Errorf("leaf at level 1 = %+v, %v", rec, err)
	}

	before := hits.Load()
	if _, err := s.Resolve(ctx, "AB0000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing leaf error = %v, want ErrNotFound", err)
	}
	if _, err := s.Resolve(ctx, "AD0000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing child error = %v, want ErrNotFound", err)
	}
	if hits.Load() != before {
		t.Errorf("cached nodes were fetched again (%d new requests)", hits.Load()-before)
	}

	if _, err := s.Resolve(ctx, "~123456"); !errors.Is(err, ErrNotFound) {
		t.Errorf("synthetic address error = %v, want ErrNotFound", err)
	}
}

func TestSchedulerLocalFirst(t *testing.T) {
	var hits atomic.Int32
	srv := treeServer(t, &hits)
	local := &memLocal{recs: map[string]Record{"C0FFEE": {Registration: "C-GABC"}}}
	s := NewScheduler(NewHTTPSource(srv.URL, 5*time.Second), local, SchedulerConfig{}, logger.NewNop())

	call := s.Lookup(context.Background(), "c0ffee")
	rec, err := call.Wait(context.Background())
	if err != nil || rec.Registration != "C-GABC" {
		t.Errorf("Lookup = %+v, %v", rec, err)
	}
	if hits.Load() != 0 {
		t.Errorf("local hit made %d remote requests", hits.Load())
	}
}

func TestSchedulerCoalesces(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte(`{"BCDEF":["N2","A320"]}`))
	}))
	defer srv.Close()

	s := NewScheduler(NewHTTPSource(srv.URL, 5*time.Second), nil, SchedulerConfig{}, logger.NewNop())
	ctx := context.Background()

	calls := make([]*Call, 5)
	for i := range calls {
		calls[i] = s.Lookup(ctx, "ABCDEF")
	}
	time.Sleep(50 * time.Millisecond)
	close(release)

	for i, c := range calls {
		rec, err := c.Wait(ctx)
		if err != nil || rec.Registration != "N2" {
			t.Errorf("call %d = %+v, %v", i, rec, err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("got %d requests, want 1", n)
	}
}

func TestTypeTable(t *testing.T) {
	var hits atomic.Int32
	srv := treeServer(t, &hits)
	table := NewTypeTable(NewHTTPSource(srv.URL, 5*time.Second))

	if _, ok := table.Lookup("B738"); ok {
		t.Error("Lookup succeeded before Load")
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := table.Load(context.Background()); err != nil {
				t.Errorf("Load: %v", err)
			}
		}()
	}
	wg.Wait()

	info, ok := table.Lookup("b738")
	if !ok || info.Description != "L2J" || info.WTC != "M" {
		t.Errorf("Lookup(b738) = %+v, %v", info, ok)
	}

	before := hits.Load()
	if err := table.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != before {
		t.Error("second Load fetched again")
	}
}

func TestParseTypesArrays(t *testing.T) {
	types, err := ParseTypes([]byte(`{"P8":["Boeing P-8 Poseidon","L2J","M"]}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := types["P8"]; got.TypeLong != "Boeing P-8 Poseidon" || got.Description != "L2J" {
		t.Errorf("P8 = %+v", got)
	}
	if NormalizeTypeCode("p8 ?") != "P8" {
		t.Errorf("NormalizeTypeCode(p8 ?) = %q", NormalizeTypeCode("p8 ?"))
	}
}
