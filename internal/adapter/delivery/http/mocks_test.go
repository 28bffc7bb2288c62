package http

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vadimbarashkov/linkpulse/internal/entity"
	"github.com/vadimbarashkov/linkpulse/internal/usecase"
)

type MockLinkUseCase struct {
	mock.Mock
}

func (m *MockLinkUseCase) CreateLink(ctx context.Context, in usecase.CreateLinkInput) (*entity.ShortLink, error) {
	args := m.Called(ctx, in)
	link, _ := args.Get(0).(*entity.ShortLink)
	return link, args.Error(1)
}

func (m *MockLinkUseCase) CheckAvailability(ctx context.Context, alias string) (bool, error) {
	args := m.Called(ctx, alias)
	return args.Bool(0), args.Error(1)
}

func (m *MockLinkUseCase) Resolve(ctx context.Context, alias string, meta entity.RequestMeta) (*entity.ShortLink, error) {
	args := m.Called(ctx, alias, meta)
	link, _ := args.Get(0).(*entity.ShortLink)
	return link, args.Error(1)
}

type MockReportUseCase struct {
	mock.Mock
}

func (m *MockReportUseCase) Dashboard(ctx context.Context, ownerID string) (*entity.Dashboard, error) {
	args := m.Called(ctx, ownerID)
	d, _ := args.Get(0).(*entity.Dashboard)
	return d, args.Error(1)
}

func (m *MockReportUseCase) LinkAnalytics(ctx context.Context, alias, requesterID string) (*entity.ShortLink, error) {
	args := m.Called(ctx, alias, requesterID)
	link, _ := args.Get(0).(*entity.ShortLink)
	return link, args.Error(1)
}
