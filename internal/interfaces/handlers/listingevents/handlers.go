package listingevents

import (
	lesvc "landlease/internal/application/listingevents"
	"landlease/internal/middleware"
	"landlease/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *lesvc.Service
}

// GET /api/v1/listing-events/mine
func (h *Handlers) GetMyListingEvents(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	if actor.UserID == "" {
		return response.Unauthorized(c, "Unauthorized")
	}
	evs, err := h.Service.ListByOwner(c.UserContext(), actor.UserID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing events fetched successfully", fiber.Map{"events": evs}, nil)
}

// GET /api/v1/listing-events/listing/:id
func (h *Handlers) GetListingEvents(c *fiber.Ctx) error {
	evs, err := h.Service.ListByListing(c.UserContext(), c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	// only the owner's own trail is visible
	actor := middleware.GetActor(c)
	for _, ev := range evs {
		if ev.OwnerID != actor.UserID {
			return response.Error(c, "Only the owner can view this listing's events", fiber.StatusForbidden, nil)
		}
	}
	return response.Success(c, "Listing events fetched successfully", fiber.Map{"events": evs}, nil)
}
