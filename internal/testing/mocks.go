package testing

import (
	"context"

	"github.com/aristath/requestmirror/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockSourceClient is a testify mock of domain.SourceClient.
type MockSourceClient struct {
	mock.Mock
}

func (m *MockSourceClient) ListRequests(ctx context.Context, track string) ([]domain.SourceRequest, error) {
	args := m.Called(ctx, track)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SourceRequest), args.Error(1)
}

func (m *MockSourceClient) ListTracks(ctx context.Context) ([]domain.TrackInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TrackInfo), args.Error(1)
}

// MockMirrorClient is a testify mock of domain.MirrorClient.
type MockMirrorClient struct {
	mock.Mock
}

func (m *MockMirrorClient) SendMessage(ctx context.Context, threadID, content string) (string, error) {
	args := m.Called(ctx, threadID, content)
	return args.String(0), args.Error(1)
}

func (m *MockMirrorClient) DeleteMessage(ctx context.Context, threadID, messageID string) error {
	args := m.Called(ctx, threadID, messageID)
	return args.Error(0)
}

func (m *MockMirrorClient) ListMessages(ctx context.Context, threadID string) ([]domain.MirrorMessage, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MirrorMessage), args.Error(1)
}

func (m *MockMirrorClient) GetOrCreateThread(ctx context.Context, trackSlug string) (string, error) {
	args := m.Called(ctx, trackSlug)
	return args.String(0), args.Error(1)
}
