package listings

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	listsvc "landlease/internal/application/listings"
	uploadsvc "landlease/internal/application/uploads"
	"landlease/internal/infrastructure/assetstore"
	"landlease/internal/infrastructure/database"
	"landlease/internal/infrastructure/events"
	"landlease/internal/infrastructure/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupListingHandlers(t *testing.T) (*fiber.App, *assetstore.MemoryStore) {
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	store := assetstore.NewMemoryStore()
	h := &Handlers{
		Service: &listsvc.Service{
			Repo:   &repository.SQLListingRepository{DB: db},
			Assets: store,
			Events: &events.GormRecorder{DB: db},
		},
		Uploads: &uploadsvc.Service{Store: store, StagingDir: t.TempDir()},
	}
	app := fiber.New()
	// X-Test-User stands in for the session middleware
	app.Use(func(c *fiber.Ctx) error {
		switch uid := c.Get("X-Test-User"); uid {
		case "":
		case "anon":
			c.Locals("user", map[string]interface{}{"user_id": "anon-1", "anonymous": true})
		default:
			c.Locals("user", map[string]interface{}{"user_id": uid, "email": uid + "@example.com", "anonymous": false})
		}
		return c.Next()
	})
	app.Post("/listings", h.CreateListing)
	app.Get("/listings/mine", h.GetMyListings)
	app.Get("/listings/search", h.SearchListings)
	app.Get("/listings/:id", h.GetListingByID)
	app.Delete("/listings/:id", h.DeleteListing)
	return app, store
}

func listingForm(t *testing.T, fields map[string]string, images ...string) (*bytes.Buffer, string) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, name := range images {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="images"; filename="`+name+`"`)
		hdr.Set("Content-Type", "image/png")
		pw, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, _ = pw.Write([]byte("png-" + name))
	}
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="documents[]"; filename="deed.pdf"`)
	hdr.Set("Content-Type", "application/pdf")
	pw, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = pw.Write([]byte("%PDF"))
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func do(t *testing.T, app *fiber.App, req *http.Request, user string) (*http.Response, map[string]interface{}) {
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp, out
}

func create(t *testing.T, app *fiber.App, user, location, price string) (*http.Response, map[string]interface{}) {
	body, ct := listingForm(t, map[string]string{"location": location, "size": "3", "price": price, "soilType": "Loam"}, "front.png")
	req := httptest.NewRequest("POST", "/listings", body)
	req.Header.Set("Content-Type", ct)
	return do(t, app, req, user)
}

func TestCreateListing_Success(t *testing.T) {
	app, store := setupListingHandlers(t)
	resp, out := create(t, app, "u1", "Riverside", "1200")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, out)

	data := out["data"].(map[string]interface{})
	listing := data["listing"].(map[string]interface{})
	assert.Equal(t, "u1", listing["ownerId"])
	assert.Len(t, listing["images"], 1)
	assert.Len(t, listing["documents"], 1)
	assert.Len(t, data["mine"], 1)
	assert.Equal(t, 2, store.Len())
}

func TestCreateListing_Rejected(t *testing.T) {
	app, store := setupListingHandlers(t)

	resp, _ := create(t, app, "anon", "Riverside", "1200")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = create(t, app, "u1", "Riverside", "cheap")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body, ct := listingForm(t, map[string]string{"location": "Riverside", "size": "3", "price": "10"})
	req := httptest.NewRequest("POST", "/listings", body)
	req.Header.Set("Content-Type", ct)
	resp, out := do(t, app, req, "u1")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", out["error"].(map[string]interface{})["details"].(map[string]interface{})["kind"])

	assert.Equal(t, 0, store.UploadCalls())
}

func TestMineSearchGetDelete(t *testing.T) {
	app, store := setupListingHandlers(t)
	_, a := create(t, app, "u1", "Riverside", "1200")
	create(t, app, "u1", "Hilltop", "400")
	create(t, app, "u2", "River Bend", "800")
	idA := a["data"].(map[string]interface{})["listing"].(map[string]interface{})["id"].(string)

	resp, out := do(t, app, httptest.NewRequest("GET", "/listings/mine", nil), "u1")
	require.Equal(t, 200, resp.StatusCode)
	assert.Len(t, out["data"].(map[string]interface{})["listings"], 2)

	resp, out = do(t, app, httptest.NewRequest("GET", "/listings/search?location=river&priceMax=1000", nil), "anon")
	require.Equal(t, 200, resp.StatusCode)
	found := out["data"].(map[string]interface{})["listings"].([]interface{})
	require.Len(t, found, 1)
	assert.Equal(t, "River Bend", found[0].(map[string]interface{})["location"])

	resp, _ = do(t, app, httptest.NewRequest("GET", "/listings/search?priceMin=abc", nil), "anon")
	assert.Equal(t, 400, resp.StatusCode)

	resp, out = do(t, app, httptest.NewRequest("GET", "/listings/"+idA, nil), "u2")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Riverside", out["data"].(map[string]interface{})["listing"].(map[string]interface{})["location"])

	resp, _ = do(t, app, httptest.NewRequest("DELETE", "/listings/"+idA, nil), "u2")
	assert.Equal(t, 403, resp.StatusCode)

	before := store.Len()
	resp, out = do(t, app, httptest.NewRequest("DELETE", "/listings/"+idA, nil), "u1")
	require.Equal(t, 200, resp.StatusCode)
	data := out["data"].(map[string]interface{})
	assert.Empty(t, data["failedAssets"])
	assert.Len(t, data["mine"], 1)
	assert.Equal(t, before-2, store.Len())

	resp, _ = do(t, app, httptest.NewRequest("GET", "/listings/"+idA, nil), "u1")
	assert.Equal(t, 404, resp.StatusCode)
}
