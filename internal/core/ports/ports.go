package ports

import (
	"context"
	"time"

	"github.com/poyrazK/zonewriter/internal/core/domain"
)

// TenantSource returns a full snapshot of tenant domains. Failures wrap
// domain.ErrSourceUnavailable.
type TenantSource interface {
	ListTenantDomains(ctx context.Context) ([]domain.DomainRecord, error)
}

// Pinger is implemented by backends that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ZoneStore persists rendered zones and the reconciliation snapshot.
type ZoneStore interface {
	WriteZone(apex string, content []byte) error
	// ReadZone returns nil, nil when the zone file does not exist.
	ReadZone(apex string) ([]byte, error)
	RemoveStale(keep []string) ([]string, error)
	LoadSnapshot() ([]byte, error)
	SaveSnapshot(data []byte) error
}

// Trigger delivers out-of-band requests to reconcile before the next tick.
type Trigger interface {
	Subscribe(ctx context.Context) (<-chan struct{}, error)
}

// Notifier announces zone directory changes to consumers such as nameserver
// reload sidecars.
type Notifier interface {
	Notify(ctx context.Context, update domain.ZoneUpdate) error
}

type Metrics interface {
	ObservePass(result string, duration time.Duration)
	ZonesWritten(n int)
	ZonesRemoved(n int)
	Collision(apex string)
	Inventory(apexes, records int)
}
