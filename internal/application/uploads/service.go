package uploads

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"sync"
	"time"

	"landlease/internal/domain"
	"landlease/internal/infrastructure/assetstore"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Part is one incoming file before staging.
type Part struct {
	Name        string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// PartsFromHeaders adapts multipart file headers as parsed by the HTTP layer.
func PartsFromHeaders(fhs []*multipart.FileHeader) []Part {
	parts := make([]Part, 0, len(fhs))
	for _, fh := range fhs {
		fh := fh
		parts = append(parts, Part{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Open:        func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return parts
}

// Service relays files to the asset store with server-held credentials. It keeps no state
// between requests.
type Service struct {
	Store       assetstore.Store
	StagingDir  string
	CallTimeout time.Duration
}

// Staged holds the request-scoped temp copies of a batch. Release removes them.
type Staged struct {
	Files []assetstore.File

	once  sync.Once
	files []*os.File
}

// Release closes and removes every staged file. It is safe to call more than once.
func (st *Staged) Release() {
	if st == nil {
		return
	}
	st.once.Do(func() {
		for _, f := range st.files {
			name := f.Name()
			_ = f.Close()
			if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Str("path", name).Msg("upload: staged file not removed")
			}
		}
	})
}

// Stage copies every part into StagingDir. On error nothing stays on disk.
func (s *Service) Stage(parts []Part) (*Staged, error) {
	st := &Staged{Files: make([]assetstore.File, 0, len(parts))}
	for _, p := range parts {
		f, err := s.stageOne(p)
		if f != nil {
			st.files = append(st.files, f)
		}
		if err != nil {
			st.Release()
			return nil, domain.UploadError("Failed to receive file", fmt.Errorf("staging %q: %w", p.Name, err))
		}
		info, err := f.Stat()
		if err != nil {
			st.Release()
			return nil, domain.UploadError("Failed to receive file", err)
		}
		st.Files = append(st.Files, assetstore.File{
			Name:        p.Name,
			ContentType: p.ContentType,
			Size:        info.Size(),
			Body:        f,
		})
	}
	return st, nil
}

func (s *Service) stageOne(p Part) (*os.File, error) {
	src, err := p.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst, err := os.CreateTemp(s.StagingDir, "upload-*")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		return dst, err
	}
	if _, err := dst.Seek(0, io.SeekStart); err != nil {
		return dst, err
	}
	return dst, nil
}

// Upload stages the parts, uploads them concurrently and returns their refs in input order.
// No parts yields an empty list. One failure fails the batch; refs already stored stay stored.
func (s *Service) Upload(ctx context.Context, parts []Part) ([]domain.AssetRef, error) {
	refs := make([]domain.AssetRef, len(parts))
	if len(parts) == 0 {
		return refs, nil
	}
	st, err := s.Stage(parts)
	if err != nil {
		return nil, err
	}
	defer st.Release()

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range st.Files {
		i, f := i, f
		g.Go(func() error {
			cctx, cancel := s.callCtx(gctx)
			defer cancel()
			ref, err := s.Store.Upload(cctx, f)
			if err != nil {
				logger(ctx).Error().Err(err).Str("file", f.Name).Str("provider", s.Store.Provider()).Msg("upload: asset store rejected file")
				if domain.KindOf(err) == "" {
					err = domain.UploadError("Upload failed", err)
				}
				return err
			}
			refs[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

func logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// Delete removes one asset. An asset that is already gone counts as deleted.
func (s *Service) Delete(ctx context.Context, externalID string, kind domain.AssetKind) error {
	if externalID == "" {
		return domain.ValidationError("Missing externalId")
	}
	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	if err := s.Store.Delete(cctx, externalID, kind); err != nil {
		logger(ctx).Error().Err(err).Str("external_id", externalID).Str("provider", s.Store.Provider()).Msg("upload: asset delete failed")
		if domain.KindOf(err) == "" {
			err = domain.DeleteError("Failed to delete file", err)
		}
		return err
	}
	return nil
}

func (s *Service) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.CallTimeout > 0 {
		return context.WithTimeout(ctx, s.CallTimeout)
	}
	return context.WithCancel(ctx)
}
