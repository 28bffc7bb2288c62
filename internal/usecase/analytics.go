package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vadimbarashkov/linkpulse/internal/entity"
)

const defaultMaxRetries = 5

type visitRepository interface {
	RetrieveByAlias(ctx context.Context, alias string) (*entity.ShortLink, error)
	HasVisitor(ctx context.Context, linkID int64, ip string) (bool, error)
	SaveVisit(ctx context.Context, link *entity.ShortLink, visitorIP string) error
}

type visitClassifier interface {
	Classify(ctx context.Context, alias string, meta entity.RequestMeta) entity.VisitorProfile
}

// AnalyticsUseCase folds visits into the analytics of links. Updates are optimistic:
// a link is reloaded and the visit reapplied when the store reports a version conflict.
type AnalyticsUseCase struct {
	visitRepo  visitRepository
	classifier visitClassifier
	maxRetries int
	loc        *time.Location
	logger     *slog.Logger
}

// NewAnalyticsUseCase creates an AnalyticsUseCase. Hours and dates are computed in loc,
// time.Local when nil.
func NewAnalyticsUseCase(
	visitRepo visitRepository,
	classifier visitClassifier,
	maxRetries int,
	loc *time.Location,
	logger *slog.Logger,
) *AnalyticsUseCase {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if loc == nil {
		loc = time.Local
	}

	return &AnalyticsUseCase{
		visitRepo:  visitRepo,
		classifier: classifier,
		maxRetries: maxRetries,
		loc:        loc,
		logger:     logger,
	}
}

// ApplyVisit classifies v and folds it into the analytics of its link. It returns
// false without error when no link is registered under the alias.
func (uc *AnalyticsUseCase) ApplyVisit(ctx context.Context, v entity.Visit) (bool, error) {
	const op = "usecase.AnalyticsUseCase.ApplyVisit"

	if _, err := uc.visitRepo.RetrieveByAlias(ctx, v.Alias); err != nil {
		if errors.Is(err, entity.ErrLinkNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s: failed to load link: %w", op, err)
	}

	return uc.ApplyProfile(ctx, v, uc.classifier.Classify(ctx, v.Alias, v.Meta))
}

// ApplyProfile folds an already classified visit into the analytics of its link.
func (uc *AnalyticsUseCase) ApplyProfile(ctx context.Context, v entity.Visit, p entity.VisitorProfile) (bool, error) {
	const op = "usecase.AnalyticsUseCase.ApplyProfile"

	at := v.At.In(uc.loc)

	for attempt := 1; attempt <= uc.maxRetries; attempt++ {
		link, err := uc.visitRepo.RetrieveByAlias(ctx, v.Alias)
		if err != nil {
			if errors.Is(err, entity.ErrLinkNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("%s: failed to load link: %w", op, err)
		}

		seen, err := uc.visitRepo.HasVisitor(ctx, link.ID, p.IP)
		if err != nil {
			return false, fmt.Errorf("%s: failed to check visitor: %w", op, err)
		}

		unique := p.IP != "" && !seen

		var visitorIP string
		if unique {
			visitorIP = p.IP
		}

		link.RecordVisit(p, unique, at)

		err = uc.visitRepo.SaveVisit(ctx, link, visitorIP)
		if err == nil {
			return true, nil
		}

		if !errors.Is(err, entity.ErrVersionConflict) {
			return false, fmt.Errorf("%s: failed to save visit: %w", op, err)
		}

		uc.logger.Debug("link changed concurrently, retrying visit",
			slog.String("op", op),
			slog.String("alias", v.Alias),
			slog.Int("attempt", attempt),
		)
	}

	return false, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}
