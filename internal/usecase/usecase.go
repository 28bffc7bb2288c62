// Package usecase implements the application logic: link creation and resolution,
// folding visits into link analytics, dispatching visits off the redirect path and
// reading owner dashboards.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vadimbarashkov/linkpulse/internal/entity"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

const maxAliasRetries = 5

type linkRepository interface {
	Save(ctx context.Context, link *entity.ShortLink) (*entity.ShortLink, error)
	RetrieveByAlias(ctx context.Context, alias string) (*entity.ShortLink, error)
	AliasExists(ctx context.Context, alias string) (bool, error)
}

type targetCache interface {
	Get(ctx context.Context, alias string) (string, bool, error)
	Set(ctx context.Context, alias, target string) error
}

type visitTracker interface {
	Track(v entity.Visit) bool
}

// CreateLinkInput holds the parameters of a new link. Alias, Title and OwnerID are optional.
type CreateLinkInput struct {
	TargetURL string
	Alias     string
	Title     string
	OwnerID   *string
}

type LinkUseCase struct {
	shortCodeLength int
	linkRepo        linkRepository
	cache           targetCache
	tracker         visitTracker
	logger          *slog.Logger
	now             func() time.Time
}

// NewLinkUseCase creates a LinkUseCase. cache and tracker may be nil.
func NewLinkUseCase(
	shortCodeLength int,
	linkRepo linkRepository,
	cache targetCache,
	tracker visitTracker,
	logger *slog.Logger,
) *LinkUseCase {
	return &LinkUseCase{
		shortCodeLength: shortCodeLength,
		linkRepo:        linkRepo,
		cache:           cache,
		tracker:         tracker,
		logger:          logger,
		now:             time.Now,
	}
}

func (uc *LinkUseCase) CreateLink(ctx context.Context, in CreateLinkInput) (*entity.ShortLink, error) {
	const op = "usecase.LinkUseCase.CreateLink"

	now := uc.now()

	if in.Alias != "" {
		if !entity.ValidAlias(in.Alias) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrInvalidAlias)
		}

		link, err := uc.linkRepo.Save(ctx, entity.NewShortLink(in.Alias, in.TargetURL, in.Title, in.OwnerID, now))
		if err != nil {
			return nil, fmt.Errorf("%s: failed to save link: %w", op, err)
		}

		return link, nil
	}

	length := uc.shortCodeLength

	for i := 0; i < maxAliasRetries; i++ {
		alias, err := gonanoid.New(length)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate alias: %w", op, err)
		}

		link, err := uc.linkRepo.Save(ctx, entity.NewShortLink(alias, in.TargetURL, in.Title, in.OwnerID, now))
		if err != nil {
			if errors.Is(err, entity.ErrAliasExists) {
				length++
				continue
			}

			return nil, fmt.Errorf("%s: failed to save link: %w", op, err)
		}

		return link, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// CheckAvailability reports whether alias can still be used as a custom alias.
func (uc *LinkUseCase) CheckAvailability(ctx context.Context, alias string) (bool, error) {
	const op = "usecase.LinkUseCase.CheckAvailability"

	if !entity.ValidAlias(alias) {
		return false, fmt.Errorf("%s: %w", op, entity.ErrInvalidAlias)
	}

	exists, err := uc.linkRepo.AliasExists(ctx, alias)
	if err != nil {
		return false, fmt.Errorf("%s: failed to check alias: %w", op, err)
	}

	return !exists, nil
}

// Resolve returns the link registered under alias and hands the visit described by
// meta to the tracker. It never waits for the visit to be recorded. The returned link
// only carries Alias and TargetURL when it was served from the cache.
func (uc *LinkUseCase) Resolve(ctx context.Context, alias string, meta entity.RequestMeta) (*entity.ShortLink, error) {
	const op = "usecase.LinkUseCase.Resolve"

	at := uc.now()

	link, err := uc.lookup(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve alias: %w", op, err)
	}

	if uc.tracker != nil {
		uc.tracker.Track(entity.Visit{Alias: link.Alias, Meta: meta, At: at})
	}

	return link, nil
}

func (uc *LinkUseCase) lookup(ctx context.Context, alias string) (*entity.ShortLink, error) {
	const op = "usecase.LinkUseCase.lookup"

	if uc.cache != nil {
		target, ok, err := uc.cache.Get(ctx, alias)
		if err != nil {
			uc.logger.Warn("failed to read target cache",
				slog.String("op", op),
				slog.String("alias", alias),
				slog.Any("err", err),
			)
		} else if ok {
			return &entity.ShortLink{Alias: alias, TargetURL: target}, nil
		}
	}

	link, err := uc.linkRepo.RetrieveByAlias(ctx, alias)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, alias, link.TargetURL); err != nil {
			uc.logger.Warn("failed to fill target cache",
				slog.String("op", op),
				slog.String("alias", alias),
				slog.Any("err", err),
			)
		}
	}

	return link, nil
}
