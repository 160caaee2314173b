package router

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"landlease/internal/config"
	"landlease/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, redisAddr string) *config.Config {
	return &config.Config{
		Env:            "test",
		RedisURL:       "redis://" + redisAddr,
		DatabaseDriver: "sqlite",
		DatabaseURL:    ":memory:",
		ListingStore:   config.ListingStoreSQL,
		AssetStore:     config.AssetStoreConfig{Provider: config.ProviderMemory},
		StagingDir:     t.TempDir(),
		MaxUploadBytes: 10 * 1024 * 1024,
		HealthAdminKey: "admin",
	}
}

type client struct {
	t      *testing.T
	app    *fiber.App
	cookie string
}

func (cl *client) do(req *http.Request) (*http.Response, map[string]interface{}) {
	if cl.cookie != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: cl.cookie})
	}
	resp, err := cl.app.Test(req, 5000)
	require.NoError(cl.t, err)
	for _, ck := range resp.Cookies() {
		if ck.Name == middleware.SessionCookieName {
			cl.cookie = ck.Value
		}
	}
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func (cl *client) json(method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return cl.do(req)
}

func listingRequest(t *testing.T, location, price string) *http.Request {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	require.NoError(t, w.WriteField("location", location))
	require.NoError(t, w.WriteField("size", "2.5"))
	require.NoError(t, w.WriteField("price", price))
	require.NoError(t, w.WriteField("soilType", "Clay"))
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="images"; filename="plot.jpg"`)
	hdr.Set("Content-Type", "image/jpeg")
	pw, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = pw.Write([]byte("jpeg"))
	require.NoError(t, w.Close())
	req := httptest.NewRequest("POST", "/api/v1/listings", buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestCreateApp_EndToEnd(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	app, db, rdb, err := CreateApp(testConfig(t, mr.Addr()))
	require.NoError(t, err)
	require.NotNil(t, db)
	require.NotNil(t, rdb)

	anon := &client{t: t, app: app}
	resp, _ := anon.do(httptest.NewRequest("GET", "/api/v1/listings/mine", nil))
	assert.Equal(t, 401, resp.StatusCode)

	seller := &client{t: t, app: app}
	resp, out := seller.json("POST", "/api/v1/session/navigate", map[string]string{"screen": "auth", "mode": "register"})
	require.Equal(t, 200, resp.StatusCode, out)
	resp, out = seller.json("POST", "/api/v1/auth/register", map[string]string{"email": "seller@example.com", "password": "hunter22"})
	require.Equal(t, 201, resp.StatusCode, out)
	resp, out = seller.json("POST", "/api/v1/session/navigate", map[string]string{"screen": "seller"})
	require.Equal(t, 200, resp.StatusCode, out)

	resp, out = seller.do(listingRequest(t, "Riverside", "1200"))
	require.Equal(t, 201, resp.StatusCode, out)
	id := out["data"].(map[string]interface{})["listing"].(map[string]interface{})["id"].(string)
	seller.do(listingRequest(t, "Hilltop", "300"))

	resp, out = seller.do(httptest.NewRequest("GET", "/api/v1/listings/mine", nil))
	require.Equal(t, 200, resp.StatusCode)
	mine := out["data"].(map[string]interface{})["listings"].([]interface{})
	require.Len(t, mine, 2)
	assert.Equal(t, "Hilltop", mine[0].(map[string]interface{})["location"], "newest first")

	buyer := &client{t: t, app: app}
	resp, _ = buyer.json("POST", "/api/v1/auth/anonymous", nil)
	require.Equal(t, 200, resp.StatusCode)
	resp, out = buyer.do(httptest.NewRequest("GET", "/api/v1/listings/search?soilType=CLAY&priceMin=1000", nil))
	require.Equal(t, 200, resp.StatusCode)
	found := out["data"].(map[string]interface{})["listings"].([]interface{})
	require.Len(t, found, 1)
	assert.Equal(t, id, found[0].(map[string]interface{})["id"])

	resp, _ = buyer.do(listingRequest(t, "Nowhere", "1"))
	assert.Equal(t, 400, resp.StatusCode, "anonymous identities cannot list land")
	resp, _ = buyer.do(httptest.NewRequest("DELETE", "/api/v1/listings/"+id, nil))
	assert.Equal(t, 403, resp.StatusCode)

	resp, out = seller.do(httptest.NewRequest("DELETE", "/api/v1/listings/"+id, nil))
	require.Equal(t, 200, resp.StatusCode, out)
	resp, _ = seller.do(httptest.NewRequest("GET", "/api/v1/listings/"+id, nil))
	assert.Equal(t, 404, resp.StatusCode)

	resp, out = seller.do(httptest.NewRequest("GET", "/api/v1/listing-events/mine", nil))
	require.Equal(t, 200, resp.StatusCode)
	assert.Len(t, out["data"].(map[string]interface{})["events"], 3)

	resp, out = seller.json("POST", "/api/v1/session/navigate", map[string]string{"screen": "welcome"})
	require.Equal(t, 200, resp.StatusCode)
	resp, _ = seller.do(httptest.NewRequest("GET", "/api/v1/listings/mine", nil))
	assert.Equal(t, 401, resp.StatusCode, "leaving the seller screen signs out")

	resp, out = anon.do(httptest.NewRequest("GET", "/health/json", nil))
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Trace-Id"))
}

func TestCreateApp_UploadProxy(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	app, _, _, err := CreateApp(testConfig(t, mr.Addr()))
	require.NoError(t, err)

	cl := &client{t: t, app: app}
	resp, _ := cl.do(httptest.NewRequest("POST", "/upload", nil))
	assert.Equal(t, 401, resp.StatusCode)

	cl.json("POST", "/api/v1/auth/anonymous", nil)
	req := httptest.NewRequest("POST", "/upload", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: cl.cookie})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestCreateApp_PersistenceFailureReachesErrorLog(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	app, db, _, err := CreateApp(testConfig(t, mr.Addr()))
	require.NoError(t, err)

	seller := &client{t: t, app: app}
	resp, out := seller.json("POST", "/api/v1/auth/register", map[string]string{"email": "seller@example.com", "password": "hunter22"})
	require.Equal(t, 201, resp.StatusCode, out)
	require.NoError(t, db.Exec(`DROP TABLE "Listings"`).Error)

	resp, out = seller.do(listingRequest(t, "Riverside", "1200"))
	require.Equal(t, 500, resp.StatusCode, out)
	assert.Equal(t, "persistence", out["error"].(map[string]interface{})["details"].(map[string]interface{})["kind"])

	req := httptest.NewRequest("GET", "/health/errors", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var logged []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &logged))
	require.Len(t, logged, 1)
	assert.Equal(t, "/api/v1/listings", logged[0]["path"])
	assert.EqualValues(t, 500, logged[0]["statusCode"])
}

func TestCreateApp_BadConfig(t *testing.T) {
	cfg := testConfig(t, "127.0.0.1:1")
	cfg.RedisURL = "not a url"
	_, _, _, err := CreateApp(cfg)
	assert.Error(t, err)
}
