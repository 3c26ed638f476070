package course

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"tracker-kronotrack/internal/shared/geo"
)

var (
	// ErrNetwork marks connectivity failures talking to the timing server.
	ErrNetwork = errors.New("timing server unreachable")
	// ErrDecode marks malformed responses from the timing server.
	ErrDecode = errors.New("malformed timing server response")
)

// RejectedError is a validation rejection from the timing server: the
// participant identity was understood but refused.
type RejectedError struct {
	Status int
	Reason string
}

func (e *RejectedError) Error() string { return e.Reason }

// Client talks to the timing server. It is the only place raw transport and
// decode failures exist; everything above sees the error taxonomy.
type Client struct {
	http      *http.Client
	eventsURL string
	trackURL  string
}

func NewClient(httpClient *http.Client, eventsURL, trackURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, eventsURL: eventsURL, trackURL: trackURL}
}

// ListEvents fetches the open event ids. Empty or malformed payloads are a
// silent empty state, not an error.
func (c *Client) ListEvents(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.eventsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Events []string `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, nil
	}
	return payload.Events, nil
}

type trackRequest struct {
	MainEvent string `json:"main_event"`
	Bib       any    `json:"bib"`
	BirthYear any    `json:"birth_year"`
	Code      string `json:"code"`
}

// ValidateAndFetchTrack validates the participant identity and retrieves the
// course geometry. 404 means the bib/birth-year pair is unknown, 403 means
// the race code is wrong for the event.
func (c *Client) ValidateAndFetchTrack(ctx context.Context, mainEvent, bib, birthYear, code string) (TrackResponse, error) {
	body, err := json.Marshal(trackRequest{
		MainEvent: mainEvent,
		Bib:       intOrString(bib),
		BirthYear: intOrString(birthYear),
		Code:      code,
	})
	if err != nil {
		return TrackResponse{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.trackURL, bytes.NewReader(body))
	if err != nil {
		return TrackResponse{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return TrackResponse{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return TrackResponse{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return TrackResponse{}, &RejectedError{Status: resp.StatusCode, Reason: "invalid bib or birth year"}
	case resp.StatusCode == http.StatusForbidden:
		return TrackResponse{}, &RejectedError{Status: resp.StatusCode, Reason: "invalid race code"}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return TrackResponse{}, &RejectedError{Status: resp.StatusCode, Reason: serverReason(raw, resp.StatusCode)}
	}

	parsed, err := ParseTrack(raw)
	if err != nil {
		return TrackResponse{}, err
	}
	return parsed, nil
}

// ParseTrack decodes a /track response body. It is also used to restore the
// persisted geometry after a restart.
func ParseTrack(raw []byte) (TrackResponse, error) {
	var payload struct {
		Track     [][]float64 `json:"track"`
		Markers   []Marker    `json:"markers"`
		FirstName string      `json:"firstName"`
		LastName  string      `json:"lastName"`
		EventName string      `json:"eventName"`
		Error     string      `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return TrackResponse{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if payload.Error != "" {
		return TrackResponse{}, &RejectedError{Status: http.StatusOK, Reason: payload.Error}
	}

	points := make([]geo.Point, 0, len(payload.Track))
	for _, pair := range payload.Track {
		if len(pair) < 2 {
			return TrackResponse{}, fmt.Errorf("%w: track point with %d coordinates", ErrDecode, len(pair))
		}
		points = append(points, geo.Point{Lat: pair[0], Lon: pair[1]})
	}

	markers := make([]Marker, 0, len(payload.Markers))
	for _, m := range payload.Markers {
		if m.Type == "" {
			m.Type = MarkerOther
		}
		markers = append(markers, m)
	}

	return TrackResponse{
		Track:       TrackData{Points: points, Markers: markers},
		Participant: Participant{FirstName: payload.FirstName, LastName: payload.LastName, EventName: payload.EventName},
		Raw:         raw,
	}, nil
}

func serverReason(raw []byte, status int) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return "timing server refused the request (status " + strconv.Itoa(status) + ")"
}

// The server expects numeric bib and birth year when they parse as integers,
// and tolerates strings otherwise.
func intOrString(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}
