package uploads

import (
	"mime/multipart"
	"net/url"
	"sort"
	"strings"

	uploadsvc "landlease/internal/application/uploads"
	"landlease/internal/domain"
	"landlease/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers exposes the upload proxy.
type Handlers struct {
	Service *uploadsvc.Service
}

// field names read first, in this order; any other file fields follow sorted by name
var preferredFields = []string{"files", "file", "images", "documents"}

// LegacyRef is the response item of the /upload-cloudinary alias.
type LegacyRef struct {
	SecureURL    string `json:"secure_url"`
	PublicID     string `json:"public_id"`
	ResourceType string `json:"resource_type"`
}

// filesOf returns every file part of the request in a stable order. A request that is not
// multipart carries no files.
func filesOf(c *fiber.Ctx) ([]*multipart.FileHeader, error) {
	if !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, domain.ValidationError("Invalid multipart body")
	}
	seen := make(map[string]bool, len(form.File))
	var out []*multipart.FileHeader
	for _, name := range preferredFields {
		out = append(out, form.File[name]...)
		seen[name] = true
	}
	rest := make([]string, 0, len(form.File))
	for name := range form.File {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, form.File[name]...)
	}
	return out, nil
}

// Upload POST /upload: every file part, stored in order. Responds with a bare array of refs.
func (h *Handlers) Upload(c *fiber.Ctx) error {
	fhs, err := filesOf(c)
	if err != nil {
		return response.FromError(c, err)
	}
	refs, err := h.Service.Upload(c.UserContext(), uploadsvc.PartsFromHeaders(fhs))
	if err != nil {
		return response.FromError(c, err)
	}
	return c.JSON(refs)
}

// DeleteAsset DELETE /asset/:externalId?kind=
func (h *Handlers) DeleteAsset(c *fiber.Ctx) error {
	id, err := url.PathUnescape(c.Params("*"))
	if err != nil {
		return response.Error(c, "Invalid externalId", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.Delete(c.UserContext(), id, domain.ParseAssetKind(c.Query("kind"))); err != nil {
		return response.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// UploadLegacy POST /upload-cloudinary: same proxy, response in the shape older browser code reads.
func (h *Handlers) UploadLegacy(c *fiber.Ctx) error {
	fhs, err := filesOf(c)
	if err != nil {
		return response.FromError(c, err)
	}
	refs, err := h.Service.Upload(c.UserContext(), uploadsvc.PartsFromHeaders(fhs))
	if err != nil {
		return response.FromError(c, err)
	}
	out := make([]LegacyRef, len(refs))
	for i, ref := range refs {
		out[i] = LegacyRef{SecureURL: ref.URL, PublicID: ref.ExternalID, ResourceType: ref.MimeType}
		if out[i].ResourceType == "" {
			out[i].ResourceType = "file"
		}
	}
	return c.JSON(out)
}

// DeleteLegacy DELETE /delete-cloudinary/:publicId?resource_type=
func (h *Handlers) DeleteLegacy(c *fiber.Ctx) error {
	id, err := url.PathUnescape(c.Params("publicId"))
	if err != nil || id == "" {
		return response.Error(c, "Missing publicId", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.Delete(c.UserContext(), id, domain.ParseAssetKind(c.Query("resource_type"))); err != nil {
		return response.FromError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
