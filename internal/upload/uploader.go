package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
)

// Report identifies who an upload belongs to. Frozen for the whole session.
type Report struct {
	Bib       string
	MainEvent string
}

type locationPayload struct {
	Token     string  `json:"token"`
	BibNumber any     `json:"bib_number"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	MainEvent string  `json:"main_event"`
	Timestamp int64   `json:"timestamp"`
	Accuracy  float64 `json:"accuracy"`
}

// Client posts location fixes to the timing server.
type Client struct {
	http  *http.Client
	url   string
	token string
}

func NewClient(httpClient *http.Client, url, token string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, url: url, token: token}
}

func (c *Client) Send(ctx context.Context, report Report, fix Fix) error {
	body, err := json.Marshal(locationPayload{
		Token:     c.token,
		BibNumber: intOrString(report.Bib),
		Latitude:  fix.Lat,
		Longitude: fix.Lon,
		MainEvent: report.MainEvent,
		Timestamp: fix.Time.UnixMilli(),
		Accuracy:  fix.Accuracy,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("update-location status %d", resp.StatusCode)
	}
	return nil
}

// Dispatcher throttles fixes and fires uploads without waiting for them.
// Upload failures are logged and otherwise swallowed: losing one fix is
// acceptable for a live feed, and retries would break the interval guarantee.
type Dispatcher struct {
	throttle *Throttle
	client   *Client
	ticket   Ticket
}

func NewDispatcher(throttle *Throttle, client *Client, ticket Ticket) *Dispatcher {
	if ticket == nil {
		ticket = NopTicket{}
	}
	return &Dispatcher{throttle: throttle, client: client, ticket: ticket}
}

// Reset clears the throttle for a new session.
func (d *Dispatcher) Reset() {
	d.throttle.Reset()
}

// Offer submits a fix for upload, subject to the throttle. It reports whether
// an upload was dispatched.
func (d *Dispatcher) Offer(report Report, fix Fix) bool {
	if !d.throttle.Accept() {
		return false
	}
	go d.send(report, fix)
	return true
}

func (d *Dispatcher) send(report Report, fix Fix) {
	release := d.ticket.Begin()
	defer release()

	if err := d.client.Send(context.Background(), report, fix); err != nil {
		log.Printf("location upload failed: %v", err)
	}
}

func intOrString(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}
