package course

import (
	"log"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, client *Client) {
	r.Get("/events", func(c *fiber.Ctx) error {
		events, err := client.ListEvents(c.Context())
		if err != nil {
			log.Printf("list events failed: %v", err)
			events = nil
		}
		if events == nil {
			events = []string{}
		}
		return c.JSON(fiber.Map{"events": events})
	})
}
