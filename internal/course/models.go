package course

import "tracker-kronotrack/internal/shared/geo"

// Marker types the timing server is known to emit. The set is open-ended;
// anything else keeps its type string and renders with a generic fallback.
const (
	MarkerWater  = "water"
	MarkerFood   = "food"
	MarkerSignal = "signal"
	MarkerStart  = "start"
	MarkerOther  = "other"
)

type Marker struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Type string  `json:"type"`
}

// TrackData is the course geometry: the ordered route polyline plus the
// unordered points of interest. Replaced wholesale on each successful fetch.
type TrackData struct {
	Points  []geo.Point `json:"points"`
	Markers []Marker    `json:"markers"`
}

// Participant is the display info returned alongside the track.
type Participant struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	EventName string `json:"event_name"`
}

// TrackResponse bundles a validated fetch. Raw keeps the original response
// body so it can be persisted and re-parsed after a restart.
type TrackResponse struct {
	Track       TrackData
	Participant Participant
	Raw         []byte
}
