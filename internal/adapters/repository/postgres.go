package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/poyrazK/zonewriter/internal/core/domain"
)

// PostgresTenantSource implements ports.TenantSource on the tenant_domains table.
type PostgresTenantSource struct {
	db *sql.DB
}

// NewPostgresTenantSource creates and returns a new PostgresTenantSource instance.
func NewPostgresTenantSource(db *sql.DB) *PostgresTenantSource {
	return &PostgresTenantSource{db: db}
}

// ListTenantDomains returns every (tenant_id, domain) row. Rows are ordered so
// that unchanged apexes render identically from one pass to the next.
func (r *PostgresTenantSource) ListTenantDomains(ctx context.Context) ([]domain.DomainRecord, error) {
	query := `SELECT tenant_id, domain FROM tenant_domains ORDER BY tenant_id, domain`
	rows, errQuery := r.db.QueryContext(ctx, query)
	if errQuery != nil {
		return nil, fmt.Errorf("%w: query tenant_domains: %w", domain.ErrSourceUnavailable, errQuery)
	}
	defer func() {
		if errClose := rows.Close(); errClose != nil {
			log.Printf("failed to close rows: %v", errClose)
		}
	}()

	var records []domain.DomainRecord
	for rows.Next() {
		var rec domain.DomainRecord
		if errScan := rows.Scan(&rec.TenantID, &rec.FQDN); errScan != nil {
			return nil, fmt.Errorf("%w: scan tenant_domains: %w", domain.ErrSourceUnavailable, errScan)
		}
		records = append(records, rec)
	}
	if errRows := rows.Err(); errRows != nil {
		return nil, fmt.Errorf("%w: iterate tenant_domains: %w", domain.ErrSourceUnavailable, errRows)
	}
	return records, nil
}

func (r *PostgresTenantSource) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
