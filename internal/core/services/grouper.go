package services

import (
	"github.com/poyrazK/zonewriter/internal/core/domain"
)

// GroupByApex partitions records into per-apex record sets. Records that map
// to an existing (apex, local part) pair overwrite the earlier owner and are
// reported through onCollision when it is non-nil.
func GroupByApex(records []domain.DomainRecord, onCollision func(domain.Collision)) *domain.ApexRecords {
	out := domain.NewApexRecords()
	for _, rec := range records {
		apex := domain.Apex(rec.FQDN)
		local := domain.LocalPart(rec.FQDN, apex)
		previous, replaced := out.Insert(apex, local, rec.TenantID)
		if replaced && onCollision != nil {
			onCollision(domain.Collision{
				Apex:     apex,
				Local:    local,
				Previous: previous,
				Current:  rec.TenantID,
			})
		}
	}
	return out
}
