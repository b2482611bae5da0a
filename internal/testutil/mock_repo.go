package testutil

import (
	"context"

	"github.com/poyrazK/zonewriter/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

// MockSource implements ports.TenantSource with testify expectations.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) ListTenantDomains(ctx context.Context) ([]domain.DomainRecord, error) {
	args := m.Called()
	recs, _ := args.Get(0).([]domain.DomainRecord)
	return recs, args.Error(1)
}

// MockZoneStore implements ports.ZoneStore with testify expectations.
type MockZoneStore struct {
	mock.Mock
}

func (m *MockZoneStore) WriteZone(apex string, content []byte) error {
	args := m.Called(apex, content)
	return args.Error(0)
}

func (m *MockZoneStore) ReadZone(apex string) ([]byte, error) {
	args := m.Called(apex)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockZoneStore) RemoveStale(keep []string) ([]string, error) {
	args := m.Called(keep)
	removed, _ := args.Get(0).([]string)
	return removed, args.Error(1)
}

func (m *MockZoneStore) LoadSnapshot() ([]byte, error) {
	args := m.Called()
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockZoneStore) SaveSnapshot(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}
