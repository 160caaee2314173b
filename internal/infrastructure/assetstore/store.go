// Package assetstore uploads and deletes listing binaries on an external object host. Every
// provider returns the same domain.AssetRef so callers never see provider-specific fields.
package assetstore

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"landlease/internal/domain"
)

// File is one binary to upload. Body is read once.
type File struct {
	Name        string
	ContentType string
	Size        int64 // -1 when unknown
	Body        io.Reader
}

// Store is implemented by every provider adapter.
type Store interface {
	// Upload stores f and returns its reference. Failures are domain UploadErrors; callers must
	// not assume anything was stored when an error is returned.
	Upload(ctx context.Context, f File) (domain.AssetRef, error)
	// Delete removes one asset. An asset that is already gone is not an error.
	Delete(ctx context.Context, externalID string, kind domain.AssetKind) error
	// Provider names the backing host ("filestack", "supabase", ...).
	Provider() string
}

// KindFor classifies a file by content type, falling back to its extension.
func KindFor(contentType, name string) domain.AssetKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" || ct == "application/octet-stream" {
		ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	}
	if strings.HasPrefix(ct, "image/") {
		return domain.AssetKindImage
	}
	return domain.AssetKindDocument
}

// ContentTypeFor returns contentType, or a guess from the file name, or octet-stream.
func ContentTypeFor(contentType, name string) string {
	if contentType != "" {
		return contentType
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// folder is the object-key prefix used by providers that file assets by kind.
func folder(kind domain.AssetKind) string {
	if kind == domain.AssetKindImage {
		return "images"
	}
	return "documents"
}

// safeName keeps the base name of an uploaded file and drops characters object keys dislike.
func safeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}
