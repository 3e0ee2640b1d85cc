package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClient_BaseURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":8080", "http://localhost:8080"},
		{"daemon:9000", "http://daemon:9000"},
		{"https://rent.example.com/", "https://rent.example.com"},
	}
	for _, tt := range tests {
		if got := NewClient(tt.addr).baseURL; got != tt.want {
			t.Fatalf("NewClient(%q): expected %s, got %s", tt.addr, tt.want, got)
		}
	}
}

func TestListingsAndAreas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/listings":
			w.Write([]byte(`{"listings":[{"id":"a","title":"Bilocale","city":"Roma","price":950}],"total":1,"hasMore":false}`))
		case "/api/v1/areas":
			w.Write([]byte(`[{"id":"milan","name":"Milano"},{"id":"rome","name":"Roma"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	f, err := c.Listings(context.Background())
	if err != nil {
		t.Fatalf("Listings: %v", err)
	}
	if f.Total != 1 || f.Listings[0].City != "Roma" {
		t.Fatalf("unexpected feed: %+v", f)
	}

	areas, err := c.Areas(context.Background())
	if err != nil {
		t.Fatalf("Areas: %v", err)
	}
	if len(areas) != 2 || areas[1].ID != "rome" {
		t.Fatalf("unexpected areas: %+v", areas)
	}
}

func TestErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).LoadMore(context.Background())
	if err == nil || !strings.Contains(err.Error(), "daemon error 500") {
		t.Fatalf("expected daemon error, got %v", err)
	}
}
