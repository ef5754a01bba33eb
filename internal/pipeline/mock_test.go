package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/inspection-map/internal/model"
	"github.com/sells-group/inspection-map/internal/portal"
)

// --- Portal Mock ---

type mockPortal struct {
	mock.Mock
}

func (m *mockPortal) Acquire(ctx context.Context) (*portal.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*portal.Session), args.Error(1)
}

func (m *mockPortal) Fetch(ctx context.Context, sess *portal.Session, city string) ([]byte, error) {
	args := m.Called(ctx, sess, city)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// --- Resolver Mock ---

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, address string) (*model.Coordinates, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coordinates), args.Error(1)
}

// --- Writer Mock ---

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) Write(records []model.InspectionRecord, timestamp time.Time, dest string) error {
	args := m.Called(records, timestamp, dest)
	return args.Error(0)
}
