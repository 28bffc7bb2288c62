package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vadimbarashkov/linkpulse/internal/entity"
)

type MockLinkRepository struct {
	mock.Mock
}

func (m *MockLinkRepository) Save(ctx context.Context, link *entity.ShortLink) (*entity.ShortLink, error) {
	args := m.Called(ctx, link)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ShortLink), args.Error(1)
}

func (m *MockLinkRepository) RetrieveByAlias(ctx context.Context, alias string) (*entity.ShortLink, error) {
	args := m.Called(ctx, alias)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ShortLink), args.Error(1)
}

func (m *MockLinkRepository) AliasExists(ctx context.Context, alias string) (bool, error) {
	args := m.Called(ctx, alias)
	return args.Bool(0), args.Error(1)
}

func (m *MockLinkRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entity.ShortLink, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.ShortLink), args.Error(1)
}

func (m *MockLinkRepository) HasVisitor(ctx context.Context, linkID int64, ip string) (bool, error) {
	args := m.Called(ctx, linkID, ip)
	return args.Bool(0), args.Error(1)
}

func (m *MockLinkRepository) SaveVisit(ctx context.Context, link *entity.ShortLink, visitorIP string) error {
	args := m.Called(ctx, link, visitorIP)
	return args.Error(0)
}

type MockTargetCache struct {
	mock.Mock
}

func (m *MockTargetCache) Get(ctx context.Context, alias string) (string, bool, error) {
	args := m.Called(ctx, alias)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockTargetCache) Set(ctx context.Context, alias, target string) error {
	args := m.Called(ctx, alias, target)
	return args.Error(0)
}

type MockVisitTracker struct {
	mock.Mock
}

func (m *MockVisitTracker) Track(v entity.Visit) bool {
	args := m.Called(v)
	return args.Bool(0)
}

type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, alias string, meta entity.RequestMeta) entity.VisitorProfile {
	args := m.Called(ctx, alias, meta)
	return args.Get(0).(entity.VisitorProfile)
}

type countryLookupFunc func(ctx context.Context, ip string) (string, error)

func (f countryLookupFunc) LookupCountry(ctx context.Context, ip string) (string, error) {
	return f(ctx, ip)
}
