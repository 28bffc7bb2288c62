package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/vadimbarashkov/linkpulse/internal/entity"
)

type reportRepository interface {
	RetrieveByAlias(ctx context.Context, alias string) (*entity.ShortLink, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*entity.ShortLink, error)
}

type ReportUseCase struct {
	reportRepo reportRepository
}

func NewReportUseCase(reportRepo reportRepository) *ReportUseCase {
	return &ReportUseCase{reportRepo: reportRepo}
}

// Dashboard builds the dashboard of all links owned by ownerID.
func (uc *ReportUseCase) Dashboard(ctx context.Context, ownerID string) (*entity.Dashboard, error) {
	const op = "usecase.ReportUseCase.Dashboard"

	links, err := uc.reportRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list links: %w", op, err)
	}

	sort.SliceStable(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})

	d := &entity.Dashboard{
		Overview: entity.Overview{
			TotalShortURLs: len(links),
			TopLinks:       make([]entity.TopLink, 0, entity.TopLinksLimit),
		},
		Links: make([]entity.LinkSummary, 0, len(links)),
	}

	for _, l := range links {
		d.Overview.TotalRedirects += l.Clicks.Total
		d.Links = append(d.Links, entity.LinkSummary{
			Alias:     l.Alias,
			TargetURL: l.TargetURL,
			Title:     l.Title,
			Clicks:    l.Clicks.Total,
			CreatedAt: l.CreatedAt,
		})
	}

	// Links are newest first, so a stable sort keeps newer links ahead on ties.
	top := append([]*entity.ShortLink(nil), links...)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Clicks.Total > top[j].Clicks.Total
	})

	for _, l := range top {
		if len(d.Overview.TopLinks) == entity.TopLinksLimit {
			break
		}
		d.Overview.TopLinks = append(d.Overview.TopLinks, entity.TopLink{
			Alias:  l.Alias,
			Clicks: l.Clicks.Total,
		})
	}

	return d, nil
}

// LinkAnalytics returns the link registered under alias, including its analytics,
// when requesterID owns it.
func (uc *ReportUseCase) LinkAnalytics(ctx context.Context, alias, requesterID string) (*entity.ShortLink, error) {
	const op = "usecase.ReportUseCase.LinkAnalytics"

	link, err := uc.reportRepo.RetrieveByAlias(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	if !link.OwnedBy(requesterID) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrForbidden)
	}

	return link, nil
}
