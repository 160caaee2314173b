package assetstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"landlease/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupabaseUpload_Success(t *testing.T) {
	var gotPath, gotAuth, gotAPIKey, gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAPIKey = r.Header.Get("apikey")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = io.WriteString(w, `{"Key":"listings/x"}`)
	}))
	defer srv.Close()

	s := &SupabaseStore{BaseURL: srv.URL + "/", SecretKey: "service", Bucket: "listings", Client: srv.Client(),
		now: func() time.Time { return time.UnixMilli(1700000000000) }}
	ref, err := s.Upload(context.Background(), File{Name: "my field.jpg", Size: 3, Body: strings.NewReader("abc")})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(gotPath, "/storage/v1/object/listings/images/1700000000000-"), gotPath)
	assert.True(t, strings.HasSuffix(gotPath, "-my_field.jpg"), gotPath)
	assert.Equal(t, "Bearer service", gotAuth)
	assert.Equal(t, "service", gotAPIKey)
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, "abc", gotBody)

	assert.Equal(t, domain.AssetKindImage, ref.Kind)
	assert.True(t, strings.HasPrefix(ref.ExternalID, "images/1700000000000-"))
	assert.Equal(t, srv.URL+"/storage/v1/object/public/listings/"+ref.ExternalID, ref.URL)
}

func TestSupabaseUpload_AnonKeyHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"message":"Invalid Compact JWS"}`)
	}))
	defer srv.Close()

	s := &SupabaseStore{BaseURL: srv.URL, SecretKey: "anon", Bucket: "b", Client: srv.Client()}
	_, err := s.Upload(context.Background(), File{Name: "a.pdf", Size: -1, Body: strings.NewReader("x")})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindUpload))
	assert.Contains(t, err.Error(), "service_role")
}

func TestSupabaseDelete_IdempotentAndPrefixBody(t *testing.T) {
	var bodies []map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/storage/v1/object/b", r.URL.Path)
		var body map[string][]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		if len(bodies) == 1 {
			_, _ = io.WriteString(w, `[{"name":"images/1-a.png"}]`)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	s := &SupabaseStore{BaseURL: srv.URL, SecretKey: "k", Bucket: "b", Client: srv.Client()}
	require.NoError(t, s.Delete(context.Background(), "images/1-a.png", domain.AssetKindImage))
	require.NoError(t, s.Delete(context.Background(), "images/1-a.png", domain.AssetKindImage))
	require.Len(t, bodies, 2)
	assert.Equal(t, []string{"images/1-a.png"}, bodies[0]["prefixes"])
}

func TestSupabaseDelete_Failures(t *testing.T) {
	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	s := &SupabaseStore{BaseURL: srv.URL, SecretKey: "k", Bucket: "b", Client: srv.Client()}
	assert.NoError(t, s.Delete(context.Background(), "gone", ""))

	status = http.StatusBadGateway
	assert.True(t, domain.IsKind(s.Delete(context.Background(), "x", ""), domain.KindDelete))
	assert.True(t, domain.IsKind(s.Delete(context.Background(), "", ""), domain.KindValidation))
}
