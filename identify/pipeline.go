// Package identify implements the identification pipeline: validate
// uploaded photos, run the identification chain and the photo upload
// concurrently, resolve the winning species against the catalog, and
// shape the response.
package identify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/greenleaf-ai/core/apperr"
	"github.com/greenleaf-ai/core/gateway"
	"github.com/greenleaf-ai/core/router"
	"github.com/greenleaf-ai/core/species"
	"github.com/greenleaf-ai/core/storage"
)

// MaxImages is the most images a single identification call accepts.
const MaxImages = 5

// MaxImageBytes is the largest estimated decoded size a single image may
// carry before the whole call is rejected.
const MaxImageBytes = 10 * 1024 * 1024

// lowConfidenceThreshold gates whether similarSpecies is populated: below
// it the top match is uncertain enough that alternatives are worth
// showing.
const lowConfidenceThreshold = 0.70

// maxSimilarSpecies caps how many runner-up suggestions are returned.
const maxSimilarSpecies = 5

// SpeciesResult is one matched or candidate species in the response.
type SpeciesResult struct {
	ID             string
	ScientificName string
	CommonNames    []string
	Family         string
	Confidence     float64
}

// Photo carries the signed URLs for the uploaded original and its
// thumbnail. Both are empty if the upload failed.
type Photo struct {
	URL          string
	ThumbnailURL string
}

// Meta reports which provider answered and how long the pipeline took.
type Meta struct {
	Provider         string
	ProcessingTimeMs int64
}

// Result is the full identify response.
type Result struct {
	Species        *SpeciesResult // nil when no candidate was found at all
	SimilarSpecies []SpeciesResult
	Photo          Photo
	Meta           Meta
}

// Clock lets tests control wall-clock measurements and the timestamp
// embedded in storage keys.
type Clock func() time.Time

// Pipeline wires the identification gateways, storage backend, and
// species resolver together.
type Pipeline struct {
	router         *router.Router
	identifier     gateway.IdentifyGateway
	visionFallback gateway.IdentifyGateway
	store          storage.Storage
	resolver       *species.Resolver
	speciesStore   species.Store
	logger         *zap.Logger
	now            Clock
}

// New creates a Pipeline. store may be nil, in which case photo upload is
// skipped and Photo is always empty (useful for tests or deployments with
// no storage backend configured).
func New(r *router.Router, identifier, visionFallback gateway.IdentifyGateway, store storage.Storage, resolver *species.Resolver, speciesStore species.Store, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		router:         r,
		identifier:     identifier,
		visionFallback: visionFallback,
		store:          store,
		resolver:       resolver,
		speciesStore:   speciesStore,
		logger:         logger,
		now:            time.Now,
	}
}

// Identify validates imagesBase64, then runs provider identification and
// photo upload concurrently, resolves the winning species, and shapes the
// result. The only error it returns is *apperr.Error: IMAGE_TOO_LARGE or
// VALIDATION_ERROR from validation, AI_UNAVAILABLE when the router
// exhausts its chain, INTERNAL_ERROR for any other failure of the
// identification call. Species resolution failure never surfaces as an
// error; it simply leaves Result.Species.ID empty.
func (p *Pipeline) Identify(ctx context.Context, userID string, imagesBase64 []string) (*Result, error) {
	start := p.now()

	if err := validateImages(imagesBase64); err != nil {
		return nil, err
	}

	var identifyResp *router.IdentifyResult
	var photo Photo

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := p.router.Identify(gctx, userID, p.identifier, p.visionFallback, gateway.IdentifyRequest{ImagesBase64: imagesBase64})
		if err != nil {
			return err
		}
		identifyResp = resp
		return nil
	})
	g.Go(func() error {
		photo = p.uploadPhoto(gctx, userID, imagesBase64[0])
		return nil
	})

	if err := g.Wait(); err != nil {
		var routerErr *router.AIRouterError
		if errors.As(err, &routerErr) {
			return nil, apperr.New(apperr.CodeAIUnavailable, "identification service unavailable").
				WithDetails(map[string]any{"attemptedProviders": routerErr.AttemptedProviders}).
				WithCause(err)
		}
		return nil, apperr.New(apperr.CodeInternal, "identification failed").WithCause(err)
	}

	result := &Result{
		Photo: photo,
		Meta: Meta{
			Provider:         identifyResp.Provider,
			ProcessingTimeMs: p.now().Sub(start).Milliseconds(),
		},
	}

	suggestions := identifyResp.Response.Suggestions
	if len(suggestions) == 0 {
		return result, nil
	}

	top := suggestions[0]
	result.Species = p.resolveSuggestion(ctx, top)

	if top.Probability < lowConfidenceThreshold {
		rest := suggestions[1:]
		if len(rest) > maxSimilarSpecies {
			rest = rest[:maxSimilarSpecies]
		}
		for _, s := range rest {
			result.SimilarSpecies = append(result.SimilarSpecies, SpeciesResult{
				ScientificName: s.ScientificName,
				CommonNames:    s.CommonNames,
				Confidence:     s.Probability,
			})
		}
	}

	return result, nil
}

// resolveSuggestion runs species resolution for the top match. Failures
// are logged and non-fatal: the returned result simply has an empty ID.
func (p *Pipeline) resolveSuggestion(ctx context.Context, s gateway.IdentifySuggestion) *SpeciesResult {
	out := &SpeciesResult{
		ScientificName: s.ScientificName,
		CommonNames:    s.CommonNames,
		Confidence:     s.Probability,
	}

	if p.resolver == nil {
		return out
	}

	id, err := p.resolver.Resolve(ctx, species.Result{
		ScientificName:   s.ScientificName,
		CommonNames:      s.CommonNames,
		PlantIDSpeciesID: s.ProviderID,
	})
	if err != nil {
		p.logger.Warn("species resolution failed, returning null species id", zap.Error(err), zap.String("scientificName", s.ScientificName))
		return out
	}
	out.ID = id

	if p.speciesStore == nil || id == "" {
		return out
	}
	if rec, err := p.speciesStore.FindByNormalizedName(ctx, species.Normalize(s.ScientificName)); err == nil && rec != nil {
		out.Family = rec.Family
		out.CommonNames = rec.CommonNames
	}
	return out
}

// uploadPhoto uploads the first submitted image and a generated
// thumbnail under a temp-scoped key. Any failure (decode, put, sign)
// yields empty URLs without failing
// identification.
func (p *Pipeline) uploadPhoto(ctx context.Context, userID, imageBase64 string) Photo {
	if p.store == nil {
		return Photo{}
	}

	body, _ := gateway.StripDataURIPrefix(imageBase64)
	data, err := decodeBase64(body)
	if err != nil {
		p.logger.Warn("photo decode failed, skipping upload", zap.Error(err))
		return Photo{}
	}

	ts := p.now().UnixMilli()
	prefix := fmt.Sprintf("%s/temp-%d", userID, ts)
	originalKey := fmt.Sprintf("%s/identification-%d.jpg", prefix, ts)

	if err := p.store.Put(ctx, originalKey, data, "image/jpeg"); err != nil {
		p.logger.Warn("photo upload failed", zap.Error(err), zap.String("key", originalKey))
		return Photo{}
	}

	url, err := p.store.SignedURL(ctx, originalKey, time.Hour)
	if err != nil {
		p.logger.Warn("photo sign failed", zap.Error(err), zap.String("key", originalKey))
		return Photo{}
	}

	photo := Photo{URL: url}

	thumb, err := storage.Thumbnail(data)
	if err != nil {
		p.logger.Debug("thumbnail generation failed, original URL still returned", zap.Error(err))
		return photo
	}
	thumbKey := fmt.Sprintf("%s/identification-%d-thumb.jpg", prefix, ts)
	if err := p.store.Put(ctx, thumbKey, thumb, "image/jpeg"); err != nil {
		p.logger.Warn("thumbnail upload failed", zap.Error(err), zap.String("key", thumbKey))
		return photo
	}
	if thumbURL, err := p.store.SignedURL(ctx, thumbKey, time.Hour); err == nil {
		photo.ThumbnailURL = thumbURL
	}
	return photo
}

// validateImages enforces the 1..5 count bound and the per-image
// estimated-size ceiling, fail-fast in submission order.
func validateImages(images []string) *apperr.Error {
	if len(images) == 0 || len(images) > MaxImages {
		return apperr.New(apperr.CodeValidation, fmt.Sprintf("expected 1 to %d images, got %d", MaxImages, len(images)))
	}
	for i, img := range images {
		body, _ := gateway.StripDataURIPrefix(img)
		if gateway.EstimateDecodedSize(body) > MaxImageBytes {
			return apperr.New(apperr.CodeImageTooLarge, "image exceeds the maximum upload size").
				WithDetails(map[string]any{"index": i})
		}
	}
	return nil
}

// decodeBase64 accepts both standard padded and raw unpadded base64,
// since vendor and client payloads are not guaranteed to agree on
// padding.
func decodeBase64(s string) ([]byte, error) {
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
