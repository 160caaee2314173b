package listings

import (
	"mime/multipart"
	"strconv"
	"strings"

	listsvc "landlease/internal/application/listings"
	uploadsvc "landlease/internal/application/uploads"
	"landlease/internal/domain"
	"landlease/internal/middleware"
	"landlease/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *listsvc.Service
	// Uploads stages incoming files on disk for the duration of the request.
	Uploads *uploadsvc.Service
}

// fileFields reads a multipart file field, accepting the bracketed array spelling too.
func fileFields(form *multipart.Form, name string) []*multipart.FileHeader {
	if form == nil {
		return nil
	}
	out := append([]*multipart.FileHeader{}, form.File[name]...)
	return append(out, form.File[name+"[]"]...)
}

// POST /api/v1/listings: multipart form, 201 with the listing and the refreshed owner view.
func (h *Handlers) CreateListing(c *fiber.Ctx) error {
	var form *multipart.Form
	if strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		f, err := c.MultipartForm()
		if err != nil {
			return response.Error(c, "Invalid multipart body", fiber.StatusBadRequest, nil)
		}
		form = f
	}

	images, err := h.Uploads.Stage(uploadsvc.PartsFromHeaders(fileFields(form, "images")))
	if err != nil {
		return response.FromError(c, err)
	}
	defer images.Release()
	docs, err := h.Uploads.Stage(uploadsvc.PartsFromHeaders(fileFields(form, "documents")))
	if err != nil {
		return response.FromError(c, err)
	}
	defer docs.Release()

	res, err := h.Service.Create(c.UserContext(), middleware.GetActor(c), listsvc.CreateInput{
		Location:         c.FormValue("location"),
		Size:             c.FormValue("size"),
		Price:            c.FormValue("price"),
		SoilType:         c.FormValue("soilType"),
		UsageSuitability: c.FormValue("usageSuitability"),
		PastUsage:        c.FormValue("pastUsage"),
		ContactInfo:      c.FormValue("contactInfo"),
		Images:           images.Files,
		Documents:        docs.Files,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Listing created successfully", res, nil)
}

// GET /api/v1/listings/mine
func (h *Handlers) GetMyListings(c *fiber.Ctx) error {
	mine, err := h.Service.ListMine(c.UserContext(), middleware.GetActor(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listings fetched successfully", fiber.Map{"listings": mine}, fiber.Map{"count": len(mine)})
}

// GET /api/v1/listings/search?location=&soilType=&usageSuitability=&priceMin=&priceMax=
func (h *Handlers) SearchListings(c *fiber.Ctx) error {
	lo, err := priceParam(c, "priceMin")
	if err != nil {
		return response.FromError(c, err)
	}
	hi, err := priceParam(c, "priceMax")
	if err != nil {
		return response.FromError(c, err)
	}
	found, err := h.Service.Search(c.UserContext(), domain.SearchCriteria{
		Location:         strings.TrimSpace(c.Query("location")),
		SoilType:         strings.TrimSpace(c.Query("soilType")),
		UsageSuitability: strings.TrimSpace(c.Query("usageSuitability")),
		PriceMin:         lo,
		PriceMax:         hi,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listings fetched successfully", fiber.Map{"listings": found}, fiber.Map{"count": len(found)})
}

// GET /api/v1/listings/:id
func (h *Handlers) GetListingByID(c *fiber.Ctx) error {
	l, err := h.Service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing fetched successfully", fiber.Map{"listing": l}, nil)
}

// DELETE /api/v1/listings/:id (owner only)
func (h *Handlers) DeleteListing(c *fiber.Ctx) error {
	res, err := h.Service.Delete(c.UserContext(), middleware.GetActor(c), c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing deleted successfully", res, nil)
}

// priceParam parses an optional non-negative price bound. Empty means unbounded.
func priceParam(c *fiber.Ctx, name string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, domain.ValidationError(name + " must be a non-negative number")
	}
	return &v, nil
}
