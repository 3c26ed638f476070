package server

import (
	"tracker-kronotrack/internal/auth"
	"tracker-kronotrack/internal/config"
	"tracker-kronotrack/internal/course"
	"tracker-kronotrack/internal/notify"
	"tracker-kronotrack/internal/permission"
	"tracker-kronotrack/internal/session"
	"tracker-kronotrack/internal/settings"
	"tracker-kronotrack/internal/stream"
	"tracker-kronotrack/internal/upload"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	Redis    *redis.Client
	Stream   *stream.Hub
	Bridge   *permission.Bridge
	Machine  *session.Machine
	Ticket   *upload.BudgetTicket
	Settings *settings.Store
	Courses  *course.Client
}

// NewServer assembles the tracking agent: the session machine, its
// collaborators, and the control API in front of them. The machine does not
// run until the caller starts its loop.
func NewServer(cfg config.Config, store *settings.Store, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	hub := stream.NewHub(redisClient)

	initial := permission.Snapshot{}
	if cfg.AssumeGranted {
		initial = permission.Snapshot{
			LocationAlways:       true,
			LocationPrecise:      true,
			NotificationsGranted: true,
			ServicesEnabled:      true,
		}
	}
	bridge := permission.NewBridge(initial, cfg.PermissionSettle, nil)

	ticket := upload.NewBudgetTicket(cfg.UploadBudget)
	dispatcher := upload.NewDispatcher(
		upload.NewThrottle(cfg.UploadInterval),
		upload.NewClient(nil, cfg.UploadURL, cfg.UploadToken),
		ticket,
	)

	courses := course.NewClient(nil, cfg.EventsURL, cfg.TrackURL)
	machine := session.NewMachine(
		store,
		bridge,
		courses,
		dispatcher,
		hub,
		notify.New(hub),
		session.NopProvider{},
	)

	s := &Server{
		App:      app,
		Cfg:      cfg,
		Redis:    redisClient,
		Stream:   hub,
		Bridge:   bridge,
		Machine:  machine,
		Ticket:   ticket,
		Settings: store,
		Courses:  courses,
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	guard := auth.Middleware(s.Cfg.JWTSecret)

	course.RegisterRoutes(s.App, s.Courses)
	settings.RegisterRoutes(s.App, s.Settings, guard)
	session.RegisterRoutes(s.App, s.Machine, s.Bridge, guard)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
