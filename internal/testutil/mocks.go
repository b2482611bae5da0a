package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/poyrazK/zonewriter/internal/core/domain"
)

// StaticSource is an in-memory tenant source whose contents can be swapped
// between passes.
type StaticSource struct {
	mu      sync.Mutex
	records []domain.DomainRecord
	err     error
	Calls   int

	// Block, when set, is waited on before every list returns.
	Block chan struct{}
	// Entered receives a value each time a list starts, if set.
	Entered chan struct{}
}

func NewStaticSource(records ...domain.DomainRecord) *StaticSource {
	return &StaticSource{records: records}
}

func (s *StaticSource) Set(records ...domain.DomainRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.err = nil
}

func (s *StaticSource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *StaticSource) ListTenantDomains(_ context.Context) ([]domain.DomainRecord, error) {
	s.mu.Lock()
	s.Calls++
	entered, block := s.Entered, s.Block
	s.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.DomainRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *StaticSource) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls
}

// MockNotifier records published zone updates.
type MockNotifier struct {
	mu       sync.Mutex
	Updates  []domain.ZoneUpdate
	FailNext bool
}

func (m *MockNotifier) Notify(_ context.Context, update domain.ZoneUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext {
		m.FailNext = false
		return errors.New("notify failed")
	}
	m.Updates = append(m.Updates, update)
	return nil
}

func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Updates)
}

// MockTrigger hands out a channel tests can fire at will.
type MockTrigger struct {
	C             chan struct{}
	FailSubscribe bool
	// FailTimes makes the first n subscribe attempts fail.
	FailTimes int
	// Block, when set, holds every subscribe until it is closed or ctx ends.
	Block chan struct{}

	mu    sync.Mutex
	calls int
}

func NewMockTrigger() *MockTrigger {
	return &MockTrigger{C: make(chan struct{}, 1)}
}

func (m *MockTrigger) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	m.mu.Lock()
	m.calls++
	attempt := m.calls
	m.mu.Unlock()

	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.FailSubscribe || attempt <= m.FailTimes {
		return nil, errors.New("subscribe failed")
	}
	return m.C, nil
}

func (m *MockTrigger) SubscribeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Fire requests a pass without blocking if one is already pending.
func (m *MockTrigger) Fire() {
	select {
	case m.C <- struct{}{}:
	default:
	}
}
