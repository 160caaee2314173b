package assetstore

import (
	"context"
	"fmt"
	"io"
	"sync"

	"landlease/internal/domain"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for development and tests. It is safe for concurrent use.
// FailUpload and FailDelete, when set, inject failures per file name / external id.
type MemoryStore struct {
	FailUpload func(f File) error
	FailDelete func(externalID string) error

	mu          sync.RWMutex
	objects     map[string][]byte
	uploadCalls int
	deleteCalls []string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Provider() string { return "memory" }

func (m *MemoryStore) Upload(ctx context.Context, f File) (domain.AssetRef, error) {
	m.mu.Lock()
	m.uploadCalls++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.AssetRef{}, domain.UploadError("Upload cancelled", err)
	}
	if m.FailUpload != nil {
		if err := m.FailUpload(f); err != nil {
			return domain.AssetRef{}, domain.UploadError("Upload failed", err)
		}
	}
	data, err := io.ReadAll(f.Body)
	if err != nil {
		return domain.AssetRef{}, domain.UploadError("failed to read content", err)
	}
	if f.Size >= 0 && int64(len(data)) != f.Size {
		return domain.AssetRef{}, domain.UploadError("Upload failed", fmt.Errorf("size mismatch: expected %d bytes, got %d", f.Size, len(data)))
	}

	kind := KindFor(f.ContentType, f.Name)
	id := folder(kind) + "/" + uuid.New().String()

	m.mu.Lock()
	m.objects[id] = data
	m.mu.Unlock()

	return domain.AssetRef{URL: "memory://" + id + "/" + safeName(f.Name), ExternalID: id, Kind: kind, MimeType: ContentTypeFor(f.ContentType, f.Name)}, nil
}

// Delete is idempotent: unknown ids succeed.
func (m *MemoryStore) Delete(ctx context.Context, externalID string, _ domain.AssetKind) error {
	m.mu.Lock()
	m.deleteCalls = append(m.deleteCalls, externalID)
	m.mu.Unlock()

	if m.FailDelete != nil {
		if err := m.FailDelete(externalID); err != nil {
			return domain.DeleteError("Failed to delete file", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, externalID)
	return nil
}

// Has reports whether externalID is currently stored.
func (m *MemoryStore) Has(externalID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[externalID]
	return ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// UploadCalls returns how many uploads were attempted.
func (m *MemoryStore) UploadCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uploadCalls
}

// DeleteCalls returns the external ids passed to Delete, in call order.
func (m *MemoryStore) DeleteCalls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.deleteCalls))
	copy(out, m.deleteCalls)
	return out
}
