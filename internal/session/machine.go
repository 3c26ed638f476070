package session

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"tracker-kronotrack/internal/course"
	"tracker-kronotrack/internal/notify"
	"tracker-kronotrack/internal/permission"
	"tracker-kronotrack/internal/settings"
	"tracker-kronotrack/internal/stream"
	"tracker-kronotrack/internal/upload"
)

// Provider is the location source feeding the machine. The platform bridge
// implements it with the OS location manager; tests use FuncProvider.
type Provider interface {
	Start() error
	Stop()
}

// FuncProvider adapts start/stop funcs into a Provider.
type FuncProvider struct {
	OnStart func() error
	OnStop  func()
}

func (p FuncProvider) Start() error {
	if p.OnStart != nil {
		return p.OnStart()
	}
	return nil
}

func (p FuncProvider) Stop() {
	if p.OnStop != nil {
		p.OnStop()
	}
}

// NopProvider is a Provider that does nothing, for agents fed exclusively
// through the control API.
type NopProvider struct{}

func (NopProvider) Start() error { return nil }
func (NopProvider) Stop()        {}

// Status is a point-in-time view of the machine for the control API.
type Status struct {
	State       State               `json:"state"`
	SessionID   string              `json:"session_id,omitempty"`
	Identity    Identity            `json:"identity"`
	Participant *course.Participant `json:"participant,omitempty"`
	LastFix     *upload.Fix         `json:"last_fix,omitempty"`
	LastError   string              `json:"last_error,omitempty"`
}

// Machine is the tracking session state machine. All state lives on the Run
// goroutine; callers submit work through the inbox and never touch fields
// directly, so there is no lock.
type Machine struct {
	inbox chan func()
	ctx   context.Context

	settings *settings.Store
	gate     permission.Gate
	courses  *course.Client
	uploads  *upload.Dispatcher
	hub      *stream.Hub
	notifier notify.Port
	provider Provider

	state       State
	epoch       uint64
	sessionID   string
	identity    Identity
	report      upload.Report
	track       course.TrackData
	hasTrack    bool
	participant course.Participant
	lastFix     *upload.Fix
	lastError   string
}

func NewMachine(
	store *settings.Store,
	gate permission.Gate,
	courses *course.Client,
	uploads *upload.Dispatcher,
	hub *stream.Hub,
	notifier notify.Port,
	provider Provider,
) *Machine {
	if provider == nil {
		provider = NopProvider{}
	}
	m := &Machine{
		inbox:    make(chan func(), 16),
		ctx:      context.Background(),
		settings: store,
		gate:     gate,
		courses:  courses,
		uploads:  uploads,
		hub:      hub,
		notifier: notifier,
		provider: provider,
		state:    StateIdle,
	}
	m.restoreGeometry()
	return m
}

// restoreGeometry reloads the persisted course so the route stays visible
// after a restart, whether or not tracking resumes.
func (m *Machine) restoreGeometry() {
	raw := m.settings.Get(settings.KeyTrackData)
	if raw == "" {
		return
	}
	parsed, err := course.ParseTrack([]byte(raw))
	if err != nil {
		log.Printf("discarding persisted track data: %v", err)
		return
	}
	m.track = parsed.Track
	m.hasTrack = true
	m.participant = course.Participant{
		FirstName: m.settings.Get(settings.KeyFirstName),
		LastName:  m.settings.Get(settings.KeyLastName),
		EventName: m.settings.Get(settings.KeyEventName),
	}
}

// Run consumes the inbox and authorization changes until ctx is canceled.
func (m *Machine) Run(ctx context.Context) {
	m.ctx = ctx
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-m.inbox:
			fn()
		case snap := <-m.gate.Changes():
			m.onAuthorizationChanged(snap)
		}
	}
}

// do runs fn on the machine goroutine and waits for it.
func (m *Machine) do(fn func()) {
	done := make(chan struct{})
	m.inbox <- func() {
		fn()
		close(done)
	}
	<-done
}

// post submits fn without waiting. Used by worker goroutines reporting back;
// dropped when the machine has shut down.
func (m *Machine) post(fn func()) {
	select {
	case m.inbox <- fn:
	case <-m.ctx.Done():
	}
}

// Start validates the stored identity and, when it passes, launches the
// permission and validation sequence. The sequence itself is asynchronous;
// its outcome lands in Status and the notifier.
func (m *Machine) Start() error {
	var err error
	m.do(func() { err = m.start() })
	return err
}

func (m *Machine) start() error {
	if m.state != StateIdle {
		return ErrTrackingInProgress
	}

	identity := Identity{
		Event:     m.settings.Get(settings.KeyMainEvent),
		Bib:       m.settings.Get(settings.KeyBib),
		BirthYear: m.settings.Get(settings.KeyBirthYear),
		Code:      m.settings.Get(settings.KeyCode),
	}
	if verr := identity.Validate(); verr != nil {
		return verr
	}

	// Stale participant info from a previous session must not outlive the
	// identity that produced it.
	if err := m.settings.Clear(settings.KeyFirstName, settings.KeyLastName, settings.KeyEventName); err != nil {
		log.Printf("clearing participant settings: %v", err)
	}
	if err := m.settings.SetBool(settings.KeyTrackingPending, true); err != nil {
		log.Printf("persisting pending flag: %v", err)
	}

	m.identity = identity
	m.lastError = ""
	m.state = StatePendingPermission
	m.epoch++
	go m.acquirePermissions(m.epoch)
	return nil
}

// acquirePermissions walks the grant sequence off the machine goroutine:
// services check, notifications, then foreground and background location.
func (m *Machine) acquirePermissions(epoch uint64) {
	if !m.gate.Current().ServicesEnabled {
		m.post(func() { m.failStart(epoch, ErrLocationServicesDisabled) })
		return
	}

	granted, err := m.gate.RequestNotifications(m.ctx)
	if err != nil {
		m.post(func() { m.failStart(epoch, err) })
		return
	}
	if !granted {
		m.post(func() { m.failStart(epoch, &PermissionDeniedError{Permission: PermissionNotifications}) })
		return
	}

	snap, err := m.gate.RequestAlways(m.ctx)
	if err != nil {
		m.post(func() { m.failStart(epoch, err) })
		return
	}
	switch {
	case !snap.ServicesEnabled:
		m.post(func() { m.failStart(epoch, ErrLocationServicesDisabled) })
	case !snap.LocationAlways:
		m.post(func() { m.failStart(epoch, &PermissionDeniedError{Permission: PermissionBackgroundLocation}) })
	case !snap.LocationPrecise:
		m.post(func() { m.failStart(epoch, &PermissionDeniedError{Permission: PermissionPreciseLocation}) })
	default:
		m.post(func() { m.beginValidation(epoch) })
	}
}

func (m *Machine) beginValidation(epoch uint64) {
	if m.state != StatePendingPermission || epoch != m.epoch {
		return
	}
	m.state = StatePendingValidation
	identity := m.identity
	go func() {
		resp, err := m.courses.ValidateAndFetchTrack(m.ctx, identity.Event, identity.Bib, identity.BirthYear, identity.Code)
		m.post(func() { m.onValidation(epoch, resp, err) })
	}()
}

func (m *Machine) onValidation(epoch uint64, resp course.TrackResponse, err error) {
	if m.state != StatePendingValidation || epoch != m.epoch {
		return
	}
	if err != nil {
		m.failStart(epoch, err)
		return
	}

	if werr := m.settings.Set(settings.KeyTrackData, string(resp.Raw)); werr != nil {
		log.Printf("persisting track data: %v", werr)
	}
	if werr := m.settings.Set(settings.KeyFirstName, resp.Participant.FirstName); werr != nil {
		log.Printf("persisting participant: %v", werr)
	}
	if werr := m.settings.Set(settings.KeyLastName, resp.Participant.LastName); werr != nil {
		log.Printf("persisting participant: %v", werr)
	}
	if werr := m.settings.Set(settings.KeyEventName, resp.Participant.EventName); werr != nil {
		log.Printf("persisting event name: %v", werr)
	}
	if werr := m.settings.SetBool(settings.KeyIsTracking, true); werr != nil {
		log.Printf("persisting tracking flag: %v", werr)
	}
	if werr := m.settings.SetBool(settings.KeyTrackingPending, false); werr != nil {
		log.Printf("clearing pending flag: %v", werr)
	}

	m.track = resp.Track
	m.hasTrack = true
	m.participant = resp.Participant
	m.sessionID = uuid.NewString()
	m.report = upload.Report{Bib: m.identity.Bib, MainEvent: m.identity.Event}
	m.lastFix = nil
	m.uploads.Reset()

	if perr := m.provider.Start(); perr != nil {
		m.failStart(epoch, perr)
		return
	}

	m.state = StateActive
	m.notifier.TrackingActive(
		resp.Participant.FirstName+" "+resp.Participant.LastName,
		resp.Participant.EventName,
	)
}

// failStart returns the machine to idle after a start attempt died in flight.
func (m *Machine) failStart(epoch uint64, err error) {
	if m.state == StateIdle || m.state == StateActive || epoch != m.epoch {
		return
	}
	if werr := m.settings.SetBool(settings.KeyIsTracking, false); werr != nil {
		log.Printf("clearing tracking flag: %v", werr)
	}
	if werr := m.settings.SetBool(settings.KeyTrackingPending, false); werr != nil {
		log.Printf("clearing pending flag: %v", werr)
	}
	m.state = StateIdle
	m.lastError = err.Error()
	m.notifier.StartFailed(err)
}

// Stop ends the session. The fetched course stays visible until the next
// start replaces it.
func (m *Machine) Stop() error {
	var err error
	m.do(func() { err = m.stop() })
	return err
}

func (m *Machine) stop() error {
	if m.state == StateIdle {
		return ErrNotTracking
	}
	m.teardown()
	m.notifier.TrackingStopped()
	return nil
}

// teardown is the common path out of a session, voluntary or forced.
func (m *Machine) teardown() {
	wasActive := m.state == StateActive
	m.epoch++
	m.state = StateIdle
	m.sessionID = ""
	m.lastFix = nil

	if wasActive {
		m.provider.Stop()
	}
	if err := m.settings.SetBool(settings.KeyIsTracking, false); err != nil {
		log.Printf("clearing tracking flag: %v", err)
	}
	if err := m.settings.SetBool(settings.KeyTrackingPending, false); err != nil {
		log.Printf("clearing pending flag: %v", err)
	}
	if err := m.settings.Clear(settings.KeyFirstName, settings.KeyLastName, settings.KeyEventName); err != nil {
		log.Printf("clearing participant settings: %v", err)
	}
}

// onAuthorizationChanged force-stops an active session when background
// authorization degrades. Out-of-session changes are only recorded.
func (m *Machine) onAuthorizationChanged(snap permission.Snapshot) {
	if m.state != StateActive || snap.BackgroundReady() {
		return
	}

	var cause notify.Cause
	switch {
	case !snap.ServicesEnabled:
		cause = notify.CauseServicesDisabled
	case !snap.LocationAlways:
		cause = notify.CausePermissionRevoked
	default:
		cause = notify.CausePrecisionRevoked
	}

	m.teardown()
	m.lastError = string(cause)
	m.notifier.ForcedStop(cause)
}

// HandleFix ingests a location fix. Fixes outside an active session are
// dropped.
func (m *Machine) HandleFix(fix upload.Fix) {
	m.do(func() {
		if m.state != StateActive {
			return
		}
		m.lastFix = &fix
		m.publishFix(fix)
		m.uploads.Offer(m.report, fix)
	})
}

type fixEvent struct {
	SessionID string  `json:"session_id"`
	Bib       string  `json:"bib"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `json:"timestamp"`
}

func (m *Machine) publishFix(fix upload.Fix) {
	if m.hub == nil {
		return
	}
	payload, err := json.Marshal(fixEvent{
		SessionID: m.sessionID,
		Bib:       m.report.Bib,
		Lat:       fix.Lat,
		Lon:       fix.Lon,
		Accuracy:  fix.Accuracy,
		Timestamp: fix.Time.UnixMilli(),
	})
	if err != nil {
		return
	}
	m.hub.Broadcast(m.sessionID, payload)
}

// Status reports the machine state for the control API.
func (m *Machine) Status() Status {
	var status Status
	m.do(func() {
		status = Status{
			State:     m.state,
			SessionID: m.sessionID,
			Identity: Identity{
				Event:     m.settings.Get(settings.KeyMainEvent),
				Bib:       m.settings.Get(settings.KeyBib),
				BirthYear: m.settings.Get(settings.KeyBirthYear),
				Code:      m.settings.Get(settings.KeyCode),
			},
			LastError: m.lastError,
		}
		if m.hasTrack {
			participant := m.participant
			status.Participant = &participant
		}
		if m.lastFix != nil {
			fix := *m.lastFix
			status.LastFix = &fix
		}
	})
	return status
}

// Track returns the current course geometry, if any.
func (m *Machine) Track() (course.TrackData, bool) {
	var (
		track course.TrackData
		ok    bool
	)
	m.do(func() {
		track = m.track
		ok = m.hasTrack
	})
	return track, ok
}

// Resume restarts tracking after an agent restart when a session was active
// or a start was interrupted mid-flight.
func (m *Machine) Resume() {
	if !m.settings.GetBool(settings.KeyIsTracking) && !m.settings.GetBool(settings.KeyTrackingPending) {
		return
	}
	log.Printf("resuming interrupted tracking session")
	if err := m.Start(); err != nil {
		log.Printf("resume failed: %v", err)
	}
}
