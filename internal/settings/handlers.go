package settings

import "github.com/gofiber/fiber/v2"

type identityPayload struct {
	MainEvent string `json:"main_event"`
	Bib       string `json:"bib"`
	BirthYear string `json:"birth_year"`
	Code      string `json:"code"`
}

// RegisterRoutes exposes the participant identity fields the mobile form
// edits. Values persist on every change so a restart resumes with them.
func RegisterRoutes(r fiber.Router, store *Store, authMiddleware fiber.Handler) {
	r.Get("/identity", func(c *fiber.Ctx) error {
		return c.JSON(identityPayload{
			MainEvent: store.Get(KeyMainEvent),
			Bib:       store.Get(KeyBib),
			BirthYear: store.Get(KeyBirthYear),
			Code:      store.Get(KeyCode),
		})
	})

	r.Put("/identity", authMiddleware, func(c *fiber.Ctx) error {
		var req identityPayload
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		pairs := map[string]string{
			KeyMainEvent: req.MainEvent,
			KeyBib:       req.Bib,
			KeyBirthYear: req.BirthYear,
			KeyCode:      req.Code,
		}
		for key, value := range pairs {
			if err := store.Set(key, value); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
		}
		return c.JSON(req)
	})
}
