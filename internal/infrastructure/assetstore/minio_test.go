//go:build integration
// +build integration

package assetstore

import (
	"context"
	"os"
	"strings"
	"testing"

	"landlease/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with: MINIO_ENDPOINT=localhost:9000 go test -tags=integration ./internal/infrastructure/assetstore/...
func TestMinIOStore_RoundTrip(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set, skipping integration test")
	}
	ctx := context.Background()
	s, err := NewMinIOStore(ctx, endpoint, os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), "landlease-test", false)
	require.NoError(t, err)

	ref, err := s.Upload(ctx, File{Name: "plot.png", ContentType: "image/png", Size: 4, Body: strings.NewReader("\x89PNG")})
	require.NoError(t, err)
	assert.Equal(t, domain.AssetKindImage, ref.Kind)
	assert.True(t, strings.HasPrefix(ref.ExternalID, "images/"))

	require.NoError(t, s.Delete(ctx, ref.ExternalID, ref.Kind))
	require.NoError(t, s.Delete(ctx, ref.ExternalID, ref.Kind))
}
