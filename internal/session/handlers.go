package session

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"tracker-kronotrack/internal/course"
	"tracker-kronotrack/internal/permission"
	"tracker-kronotrack/internal/shared/geo"
	"tracker-kronotrack/internal/upload"
)

// smoothSegments matches the map rendering density used for the course
// polyline.
const smoothSegments = 8

type fixPayload struct {
	Lat      float64    `json:"lat"`
	Lon      float64    `json:"lon"`
	Accuracy float64    `json:"accuracy"`
	Time     *time.Time `json:"time"`
}

type trackView struct {
	Points   []geo.Point     `json:"points"`
	Smoothed []geo.Point     `json:"smoothed"`
	Markers  []course.Marker `json:"markers"`
	Bounds   *geo.Bounds     `json:"bounds,omitempty"`
}

// RegisterRoutes mounts the session control surface. guard protects the
// mutating routes; reads stay open.
func RegisterRoutes(r fiber.Router, m *Machine, bridge *permission.Bridge, guard fiber.Handler) {
	r.Post("/session/start", guard, func(c *fiber.Ctx) error {
		err := m.Start()
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": verr.Reason,
				"field": verr.Field,
			})
		case errors.Is(err, ErrTrackingInProgress):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		case err != nil:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusAccepted).JSON(m.Status())
	})

	r.Post("/session/stop", guard, func(c *fiber.Ctx) error {
		if err := m.Stop(); err != nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(m.Status())
	})

	r.Get("/session", func(c *fiber.Ctx) error {
		return c.JSON(m.Status())
	})

	r.Post("/location", guard, func(c *fiber.Ctx) error {
		var payload fixPayload
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid fix payload"})
		}
		fix := upload.Fix{
			Lat:      payload.Lat,
			Lon:      payload.Lon,
			Accuracy: payload.Accuracy,
			Time:     time.Now(),
		}
		if payload.Time != nil {
			fix.Time = *payload.Time
		}
		m.HandleFix(fix)
		return c.SendStatus(fiber.StatusAccepted)
	})

	r.Get("/track", func(c *fiber.Ctx) error {
		track, ok := m.Track()
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no track loaded"})
		}
		view := trackView{
			Points:   track.Points,
			Smoothed: geo.CatmullRom(track.Points, smoothSegments),
			Markers:  track.Markers,
		}
		if bounds, ok := geo.PaddedBounds(track.Points); ok {
			view.Bounds = &bounds
		}
		return c.JSON(view)
	})

	r.Post("/authorization", guard, func(c *fiber.Ctx) error {
		var snap permission.Snapshot
		if err := c.BodyParser(&snap); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid authorization payload"})
		}
		bridge.Set(snap)
		return c.SendStatus(fiber.StatusNoContent)
	})
}
