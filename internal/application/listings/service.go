package listings

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"landlease/internal/domain"
	"landlease/internal/infrastructure/assetstore"
	"landlease/internal/infrastructure/events"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Stage is one state of the create or delete flow.
type Stage string

const (
	StageIdle            Stage = "idle"
	StageValidating      Stage = "validating"
	StageUploadingAssets Stage = "uploading_assets"
	StagePersisting      Stage = "persisting"
	StageFetching        Stage = "fetching"
	StageDeletingAssets  Stage = "deleting_assets"
	StageDeletingRecord  Stage = "deleting_record"
	StageDone            Stage = "done"
	StageFailed          Stage = "failed"
)

// Service runs the listing lifecycle: create with multi-asset upload, delete with asset release,
// and the owner and buyer read paths.
type Service struct {
	Repo   domain.ListingRepository
	Assets assetstore.Store
	Events events.Publisher

	// CallTimeout bounds every single asset-store call. Zero means no bound.
	CallTimeout time.Duration
	// CompensateOrphans deletes the assets of a create that failed after some uploads succeeded.
	CompensateOrphans bool
}

// CreateInput is the raw seller form. Size and Price arrive as text and are parsed here.
type CreateInput struct {
	Location         string
	Size             string
	Price            string
	SoilType         string
	UsageSuitability string
	PastUsage        string
	ContactInfo      string
	Images           []assetstore.File
	Documents        []assetstore.File
}

// CreateResult is the stored listing plus the owner's refreshed view.
type CreateResult struct {
	Listing *domain.Listing  `json:"listing"`
	Mine    []domain.Listing `json:"mine"`
}

// DeleteResult reports what the delete flow released. FailedAssets were left at the store.
type DeleteResult struct {
	ListingID    string            `json:"listingId"`
	FailedAssets []domain.AssetRef `json:"failedAssets"`
	Mine         []domain.Listing  `json:"mine"`
}

// logger is the request logger carried by ctx, which includes the trace id.
func logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

func logStage(ctx context.Context, flow string, st Stage, listingID, ownerID string) {
	logger(ctx).Debug().Str("flow", flow).Str("stage", string(st)).Str("listing_id", listingID).Str("owner_id", ownerID).Msg("listing flow")
}

func (s *Service) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.CallTimeout > 0 {
		return context.WithTimeout(ctx, s.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func parseNumber(field, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domain.ValidationError(fmt.Sprintf("%s must be a number", field))
	}
	return v, nil
}

func (s *Service) validate(actor domain.Actor, in CreateInput) (size, price float64, err error) {
	if !actor.Authenticated() {
		return 0, 0, domain.ValidationError("Sign in with an account to create a listing")
	}
	if len(in.Images) == 0 {
		return 0, 0, domain.ValidationError("At least one image is required")
	}
	if size, err = parseNumber("size", in.Size); err != nil {
		return 0, 0, err
	}
	if size < 0 {
		return 0, 0, domain.ValidationError("size must not be negative")
	}
	if price, err = parseNumber("price", in.Price); err != nil {
		return 0, 0, err
	}
	if price < 0 {
		return 0, 0, domain.ValidationError("price must not be negative")
	}
	return size, price, nil
}

// Create validates the form, uploads every file concurrently and then writes one listing that
// references them. Nothing is written unless every upload succeeded.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*CreateResult, error) {
	logStage(ctx, "create", StageValidating, "", actor.UserID)
	size, price, err := s.validate(actor, in)
	if err != nil {
		logStage(ctx, "create", StageFailed, "", actor.UserID)
		return nil, err
	}

	logStage(ctx, "create", StageUploadingAssets, "", actor.UserID)
	images, docs, err := s.uploadAll(ctx, in.Images, in.Documents)
	if err != nil {
		logStage(ctx, "create", StageFailed, "", actor.UserID)
		if s.CompensateOrphans {
			s.releaseOrphans(ctx, append(images, docs...))
		}
		return nil, err
	}

	logStage(ctx, "create", StagePersisting, "", actor.UserID)
	listing := &domain.Listing{
		OwnerID:          actor.UserID,
		Location:         strings.TrimSpace(in.Location),
		SizeAcres:        size,
		MonthlyPrice:     price,
		SoilType:         in.SoilType,
		UsageSuitability: in.UsageSuitability,
		PastUsage:        in.PastUsage,
		ContactInfo:      in.ContactInfo,
		Images:           images,
		Documents:        docs,
	}
	if _, err := s.Repo.Create(ctx, listing); err != nil {
		logStage(ctx, "create", StageFailed, "", actor.UserID)
		if s.CompensateOrphans {
			s.releaseOrphans(ctx, listing.Assets())
		}
		if domain.KindOf(err) == "" {
			err = domain.PersistenceError("Failed to save listing", err)
		}
		return nil, err
	}

	s.publish(ctx, events.NewEvent(domain.ListingEventCreated, listing.ID, listing.OwnerID, map[string]interface{}{
		"images":        len(listing.Images),
		"documents":     len(listing.Documents),
		"monthly_price": listing.MonthlyPrice,
	}))

	logStage(ctx, "create", StageDone, listing.ID, actor.UserID)
	return &CreateResult{Listing: listing, Mine: s.refresh(ctx, actor)}, nil
}

// uploadAll fans out every upload and waits for all of them. On failure it returns the refs that
// did get stored alongside the error, so the caller can decide whether to release them.
func (s *Service) uploadAll(ctx context.Context, images, docs []assetstore.File) (domain.AssetRefs, domain.AssetRefs, error) {
	imgRefs := make([]domain.AssetRef, len(images))
	docRefs := make([]domain.AssetRef, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	spawn := func(f assetstore.File, into *domain.AssetRef, kind domain.AssetKind) {
		g.Go(func() error {
			cctx, cancel := s.callCtx(gctx)
			defer cancel()
			ref, err := s.Assets.Upload(cctx, f)
			if err != nil {
				if domain.KindOf(err) == "" {
					err = domain.UploadError("Upload failed", err)
				}
				return err
			}
			// the listing decides the slot, not the store's guess from the content type
			ref.Kind = kind
			*into = ref
			return nil
		})
	}
	for i := range images {
		spawn(images[i], &imgRefs[i], domain.AssetKindImage)
	}
	for i := range docs {
		spawn(docs[i], &docRefs[i], domain.AssetKindDocument)
	}
	err := g.Wait()
	if err != nil {
		return stored(imgRefs), stored(docRefs), err
	}
	return domain.AssetRefs(imgRefs), domain.AssetRefs(docRefs), nil
}

func stored(refs []domain.AssetRef) domain.AssetRefs {
	out := make(domain.AssetRefs, 0, len(refs))
	for _, r := range refs {
		if r.ExternalID != "" {
			out = append(out, r)
		}
	}
	return out
}

func (s *Service) releaseOrphans(ctx context.Context, refs []domain.AssetRef) {
	if len(refs) == 0 {
		return
	}
	failed := s.deleteAssets(context.WithoutCancel(ctx), "", refs)
	logger(ctx).Info().Int("orphans", len(refs)).Int("failed", len(failed)).Msg("released assets of failed listing create")
}

// deleteAssets removes every ref concurrently. Failures are logged and returned, never raised.
func (s *Service) deleteAssets(ctx context.Context, listingID string, refs []domain.AssetRef) []domain.AssetRef {
	var (
		mu     sync.Mutex
		failed []domain.AssetRef
		g      errgroup.Group
	)
	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			cctx, cancel := s.callCtx(ctx)
			defer cancel()
			if err := s.Assets.Delete(cctx, ref.ExternalID, ref.Kind); err != nil {
				logger(ctx).Warn().Err(err).Str("listing_id", listingID).Str("external_id", ref.ExternalID).Str("kind", string(ref.Kind)).Msg("asset delete failed")
				mu.Lock()
				failed = append(failed, ref)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

// Delete releases every asset of the caller's listing and then removes the record. Asset
// failures do not stop the flow; a record failure does.
func (s *Service) Delete(ctx context.Context, actor domain.Actor, id string) (*DeleteResult, error) {
	logStage(ctx, "delete", StageFetching, id, actor.UserID)
	if strings.TrimSpace(id) == "" {
		logStage(ctx, "delete", StageFailed, id, actor.UserID)
		return nil, domain.ValidationError("Listing id is required")
	}
	listing, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		logStage(ctx, "delete", StageFailed, id, actor.UserID)
		return nil, err
	}
	if actor.UserID == "" || listing.OwnerID != actor.UserID {
		logStage(ctx, "delete", StageFailed, id, actor.UserID)
		return nil, domain.PermissionError("Only the owner can delete this listing")
	}

	logStage(ctx, "delete", StageDeletingAssets, id, actor.UserID)
	failed := s.deleteAssets(ctx, id, listing.Assets())

	logStage(ctx, "delete", StageDeletingRecord, id, actor.UserID)
	if err := s.Repo.Delete(ctx, id); err != nil {
		logStage(ctx, "delete", StageFailed, id, actor.UserID)
		if !domain.IsKind(err, domain.KindNotFound) && !domain.IsKind(err, domain.KindPersistence) {
			err = domain.PersistenceError("Failed to delete listing", err)
		}
		return nil, err
	}

	failedIDs := make([]string, 0, len(failed))
	for _, f := range failed {
		failedIDs = append(failedIDs, f.ExternalID)
	}
	s.publish(ctx, events.NewEvent(domain.ListingEventDeleted, id, listing.OwnerID, map[string]interface{}{
		"assets":        len(listing.Assets()),
		"failed_assets": failedIDs,
	}))

	logStage(ctx, "delete", StageDone, id, actor.UserID)
	if failed == nil {
		failed = []domain.AssetRef{}
	}
	return &DeleteResult{ListingID: id, FailedAssets: failed, Mine: s.refresh(ctx, actor)}, nil
}

// ListMine returns the actor's own listings, newest first.
func (s *Service) ListMine(ctx context.Context, actor domain.Actor) ([]domain.Listing, error) {
	if actor.UserID == "" {
		return nil, domain.ValidationError("Not signed in")
	}
	out, err := s.Repo.ListByOwner(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Listing{}
	}
	return out, nil
}

func (s *Service) Search(ctx context.Context, c domain.SearchCriteria) ([]domain.Listing, error) {
	out, err := s.Repo.Search(ctx, c)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Listing{}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Listing, error) {
	return s.Repo.GetByID(ctx, id)
}

// refresh reloads the owner view after a completed flow. The flow already succeeded, so a
// failure here is logged and yields an empty view.
func (s *Service) refresh(ctx context.Context, actor domain.Actor) []domain.Listing {
	mine, err := s.ListMine(ctx, actor)
	if err != nil {
		logger(ctx).Warn().Err(err).Str("owner_id", actor.UserID).Msg("refresh of owner listings failed")
		return []domain.Listing{}
	}
	return mine
}

func (s *Service) publish(ctx context.Context, ev *domain.ListingEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, ev); err != nil {
		logger(ctx).Warn().Err(err).Str("listing_id", ev.ListingID).Str("event_type", ev.EventType).Msg("listing event not recorded")
	}
}
