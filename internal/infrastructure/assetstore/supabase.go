package assetstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"landlease/internal/domain"

	"github.com/google/uuid"
)

// SupabaseStore uploads into one Supabase Storage bucket using the service_role key.
// Objects are keyed "<images|documents>/<unix-ms>-<id>-<name>"; that key is the externalId.
type SupabaseStore struct {
	BaseURL   string
	SecretKey string
	Bucket    string
	Client    *http.Client

	now func() time.Time
}

func (s *SupabaseStore) Provider() string { return "supabase" }

func (s *SupabaseStore) client() *http.Client {
	if s.Client == nil {
		return defaultClient
	}
	return s.Client
}

func (s *SupabaseStore) base() string {
	return strings.TrimRight(s.BaseURL, "/")
}

// Match @supabase/supabase-js: both apikey and Authorization Bearer (same key)
func (s *SupabaseStore) authorize(req *http.Request) {
	req.Header.Set("apikey", s.SecretKey)
	req.Header.Set("Authorization", "Bearer "+s.SecretKey)
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// PublicURL is where an uploaded object can be fetched from a public bucket.
func (s *SupabaseStore) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.base(), s.Bucket, escapePath(path))
}

func (s *SupabaseStore) Upload(ctx context.Context, f File) (domain.AssetRef, error) {
	now := time.Now()
	if s.now != nil {
		now = s.now()
	}
	contentType := ContentTypeFor(f.ContentType, f.Name)
	kind := KindFor(contentType, f.Name)
	path := fmt.Sprintf("%s/%d-%s-%s", folder(kind), now.UnixMilli(), uuid.NewString()[:8], safeName(f.Name))

	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.base(), s.Bucket, escapePath(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, f.Body)
	if err != nil {
		return domain.AssetRef{}, domain.UploadError("Upload failed", err)
	}
	if f.Size >= 0 {
		req.ContentLength = f.Size
	}
	s.authorize(req)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")

	resp, err := s.client().Do(req)
	if err != nil {
		return domain.AssetRef{}, domain.UploadError("Upload to Supabase failed", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.AssetRef{}, domain.UploadError("Upload to Supabase failed", supabaseStatusError(resp.StatusCode, respBody))
	}
	return domain.AssetRef{URL: s.PublicURL(path), ExternalID: path, Kind: kind, MimeType: contentType}, nil
}

// Delete removes one object through the bulk-delete endpoint, which answers with the list of
// objects it actually removed; an empty list means the object was already absent.
func (s *SupabaseStore) Delete(ctx context.Context, externalID string, _ domain.AssetKind) error {
	if externalID == "" {
		return domain.ValidationError("Missing externalId")
	}
	bodyBytes, _ := json.Marshal(map[string]interface{}{"prefixes": []string{externalID}})
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s", s.base(), s.Bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return domain.DeleteError("Failed to delete file", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client().Do(req)
	if err != nil {
		return domain.DeleteError("Failed to delete file", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.DeleteError("Failed to delete file", supabaseStatusError(resp.StatusCode, respBody))
	}
	return nil
}

func supabaseStatusError(status int, body []byte) error {
	bodyStr := string(body)
	// 403 Unauthorized / Invalid Compact JWS = wrong API key (anon key sent as Bearer; need service_role)
	if status == http.StatusBadRequest || status == http.StatusForbidden || status == http.StatusUnauthorized {
		if strings.Contains(bodyStr, "Invalid Compact JWS") || strings.Contains(bodyStr, "Unauthorized") {
			return fmt.Errorf("supabase storage requires the service_role key, not the anon key (status %d body: %s)", status, bodyStr)
		}
	}
	return fmt.Errorf("supabase error: status %d body: %s", status, bodyStr)
}
