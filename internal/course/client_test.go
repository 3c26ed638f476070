package course

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"events": []string{"E1", "E2"}})
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, srv.URL)
	events, err := client.ListEvents(context.Background())
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 || events[0] != "E1" {
		t.Fatalf("unexpected events: %v", events)
	}
}

func TestListEventsMalformedIsSilent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, srv.URL)
	events, err := client.ListEvents(context.Background())
	if err != nil {
		t.Fatalf("malformed events payload must not error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected empty event list")
	}
}

func TestListEventsNetworkError(t *testing.T) {
	client := NewClient(nil, "http://127.0.0.1:1", "http://127.0.0.1:1")
	if _, err := client.ListEvents(context.Background()); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestValidateAndFetchTrack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["main_event"] != "E1" || req["code"] != "ABC123" {
			t.Errorf("unexpected request: %v", req)
		}
		// numeric bib and birth year must be sent as numbers
		if _, ok := req["bib"].(float64); !ok {
			t.Errorf("expected numeric bib, got %T", req["bib"])
		}
		if _, ok := req["birth_year"].(float64); !ok {
			t.Errorf("expected numeric birth year, got %T", req["birth_year"])
		}
		_, _ = w.Write([]byte(`{"track":[[45.0,5.0],[45.1,5.1]],"markers":[{"lat":45.0,"lon":5.0,"type":"water"},{"lat":45.1,"lon":5.1}],"firstName":"Jo","lastName":"Doe","eventName":"Trail X"}`))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, srv.URL)
	resp, err := client.ValidateAndFetchTrack(context.Background(), "E1", "42", "1990", "ABC123")
	if err != nil {
		t.Fatalf("fetch track: %v", err)
	}
	if len(resp.Track.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(resp.Track.Points))
	}
	if resp.Track.Points[0].Lat != 45.0 || resp.Track.Points[1].Lon != 5.1 {
		t.Fatalf("points out of order: %+v", resp.Track.Points)
	}
	if resp.Track.Markers[0].Type != MarkerWater {
		t.Fatalf("unexpected marker type: %v", resp.Track.Markers[0].Type)
	}
	if resp.Track.Markers[1].Type != MarkerOther {
		t.Fatalf("missing marker type must fall back to other")
	}
	if resp.Participant.FirstName != "Jo" || resp.Participant.LastName != "Doe" || resp.Participant.EventName != "Trail X" {
		t.Fatalf("unexpected participant: %+v", resp.Participant)
	}
	if len(resp.Raw) == 0 {
		t.Fatalf("expected raw body retained")
	}
}

func TestValidateAndFetchTrackNonNumericBib(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if _, ok := req["bib"].(string); !ok {
			t.Errorf("expected string bib, got %T", req["bib"])
		}
		_, _ = w.Write([]byte(`{"track":[]}`))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, srv.URL)
	if _, err := client.ValidateAndFetchTrack(context.Background(), "E1", "A42", "1990", "ABC123"); err != nil {
		t.Fatalf("fetch track: %v", err)
	}
}

func TestValidateAndFetchTrackStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		reason string
	}{
		{http.StatusNotFound, "invalid bib or birth year"},
		{http.StatusForbidden, "invalid race code"},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client := NewClient(nil, srv.URL, srv.URL)
		_, err := client.ValidateAndFetchTrack(context.Background(), "E1", "42", "1990", "ABC123")
		srv.Close()

		var rejected *RejectedError
		if !errors.As(err, &rejected) {
			t.Fatalf("status %d: expected rejection, got %v", tc.status, err)
		}
		if rejected.Status != tc.status || rejected.Reason != tc.reason {
			t.Fatalf("status %d: unexpected rejection %+v", tc.status, rejected)
		}
	}
}

func TestValidateAndFetchTrackErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"event closed"}`))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, srv.URL)
	_, err := client.ValidateAndFetchTrack(context.Background(), "E1", "42", "1990", "ABC123")
	var rejected *RejectedError
	if !errors.As(err, &rejected) || rejected.Reason != "event closed" {
		t.Fatalf("expected server-supplied reason, got %v", err)
	}
}

func TestValidateAndFetchTrackDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{"))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, srv.URL)
	if _, err := client.ValidateAndFetchTrack(context.Background(), "E1", "42", "1990", "ABC123"); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestValidateAndFetchTrackNetworkError(t *testing.T) {
	client := NewClient(nil, "http://127.0.0.1:1", "http://127.0.0.1:1")
	if _, err := client.ValidateAndFetchTrack(context.Background(), "E1", "42", "1990", "ABC123"); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestParseTrackRoundTrip(t *testing.T) {
	raw := []byte(`{"track":[[1,2],[3,4],[5,6]],"markers":[]}`)
	resp, err := ParseTrack(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(resp.Track.Points) != 3 {
		t.Fatalf("expected 3 points")
	}
	for i, p := range resp.Track.Points {
		if p.Lat != float64(2*i+1) || p.Lon != float64(2*i+2) {
			t.Fatalf("point %d out of order: %+v", i, p)
		}
	}
}

func TestParseTrackShortPair(t *testing.T) {
	if _, err := ParseTrack([]byte(`{"track":[[1]]}`)); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}
