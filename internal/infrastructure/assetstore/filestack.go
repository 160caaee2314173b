package assetstore

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"landlease/internal/domain"
)

// FilestackStore talks to the Filestack file API with a server-held API key.
type FilestackStore struct {
	APIKey    string
	AppSecret string // optional; when set every call carries a policy and signature
	BaseURL   string
	CDNURL    string
	Client    *http.Client

	now func() time.Time
}

type filestackUploadResponse struct {
	URL      string `json:"url"`
	Handle   string `json:"handle"`
	Filename string `json:"filename"`
	Mimetype string `json:"mimetype"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
}

func (s *FilestackStore) Provider() string { return "filestack" }

// defaultClient serves stores built without a Client. It is shared and never written to a store.
var defaultClient = &http.Client{Timeout: 60 * time.Second}

func (s *FilestackStore) client() *http.Client {
	if s.Client == nil {
		return defaultClient
	}
	return s.Client
}

func (s *FilestackStore) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// security returns the policy/signature query pair for call, or nil when no app secret is set.
func (s *FilestackStore) security(call, handle string) url.Values {
	if s.AppSecret == "" {
		return nil
	}
	p := map[string]interface{}{
		"expiry": s.clock().Add(time.Hour).Unix(),
		"call":   []string{call},
	}
	if handle != "" {
		p["handle"] = handle
	}
	raw, _ := json.Marshal(p)
	policy := base64.URLEncoding.EncodeToString(raw)
	mac := hmac.New(sha256.New, []byte(s.AppSecret))
	mac.Write([]byte(policy))
	return url.Values{
		"policy":    {policy},
		"signature": {hex.EncodeToString(mac.Sum(nil))},
	}
}

func (s *FilestackStore) endpoint(path, call, handle string) string {
	q := url.Values{"key": {s.APIKey}}
	for k, v := range s.security(call, handle) {
		q[k] = v
	}
	return strings.TrimRight(s.BaseURL, "/") + path + "?" + q.Encode()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Upload streams f as the multipart field "file".
func (s *FilestackStore) Upload(ctx context.Context, f File) (domain.AssetRef, error) {
	contentType := ContentTypeFor(f.ContentType, f.Name)

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(safeName(f.Name))))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, f.Body)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint("/api/file", "store", ""), pr)
	if err != nil {
		return domain.AssetRef{}, domain.UploadError("Upload failed", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client().Do(req)
	if err != nil {
		return domain.AssetRef{}, domain.UploadError("Upload to Filestack failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return domain.AssetRef{}, domain.UploadError("Filestack rejected the credentials", fmt.Errorf("status %d body: %s", resp.StatusCode, body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.AssetRef{}, domain.UploadError("Upload to Filestack failed", fmt.Errorf("status %d body: %s", resp.StatusCode, body))
	}

	var data filestackUploadResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return domain.AssetRef{}, domain.UploadError("Invalid Filestack response", err)
	}
	handle := data.Handle
	if handle == "" && data.URL != "" {
		handle = data.URL[strings.LastIndex(data.URL, "/")+1:]
	}
	fileURL := data.URL
	if fileURL == "" && handle != "" {
		fileURL = strings.TrimRight(s.CDNURL, "/") + "/" + handle
	}
	if fileURL == "" || handle == "" {
		return domain.AssetRef{}, domain.UploadError("No secure URL returned from Filestack", fmt.Errorf("body: %s", body))
	}

	reported := data.Mimetype
	if reported == "" {
		reported = data.Type
	}
	mimetype := reported
	if mimetype == "" {
		mimetype = contentType
	}
	return domain.AssetRef{URL: fileURL, ExternalID: handle, Kind: KindFor(mimetype, f.Name), MimeType: reported}, nil
}

// Delete removes a file by handle. Filestack answers 404 for handles that no longer exist.
func (s *FilestackStore) Delete(ctx context.Context, externalID string, _ domain.AssetKind) error {
	if externalID == "" {
		return domain.ValidationError("Missing externalId")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.endpoint("/api/file/"+url.PathEscape(externalID), "remove", externalID), nil)
	if err != nil {
		return domain.DeleteError("Failed to delete file", err)
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return domain.DeleteError("Failed to delete file", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return nil
	default:
		return domain.DeleteError("Failed to delete file", fmt.Errorf("filestack status %d body: %s", resp.StatusCode, body))
	}
}
