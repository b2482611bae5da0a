package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/poyrazK/zonewriter/internal/core/domain"
)

// serialLayout is YYYYMMDDHH, so a zone serial moves at most once per hour.
const serialLayout = "2006010215"

// Serial returns the zone serial for t at hour granularity in UTC.
func Serial(t time.Time) string {
	return t.UTC().Format(serialLayout)
}

// ZoneRenderer turns one apex record set into BIND master file text.
type ZoneRenderer struct {
	// ServiceTemplate is an fmt template with a single %s for the tenant id,
	// e.g. "tenant.%s.svc.cluster.local.".
	ServiceTemplate string
}

func NewZoneRenderer(serviceTemplate string) *ZoneRenderer {
	return &ZoneRenderer{ServiceTemplate: serviceTemplate}
}

// ServiceName returns the CNAME target for a tenant.
func (r *ZoneRenderer) ServiceName(tenantID string) string {
	return fmt.Sprintf(r.ServiceTemplate, tenantID)
}

// Render produces the zone file for apex. Names and tenant ids are written
// verbatim; upstream validation guarantees they are plain lowercase labels.
func (r *ZoneRenderer) Render(apex string, set *domain.RecordSet, serial string) []byte {
	origin := apex
	if !strings.HasSuffix(origin, ".") {
		origin += "."
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "$ORIGIN %s\n", origin)
	buf.WriteString("$TTL 60\n")
	fmt.Fprintf(&buf, "@ IN SOA ns1.%s hostmaster.%s (%s 120 60 1209600 60)\n", origin, origin, serial)
	fmt.Fprintf(&buf, "@ IN NS ns1.%s\n", origin)
	buf.WriteString("ns1 IN A 127.0.0.1\n")

	if set != nil {
		for _, local := range set.Locals() {
			tenantID, _ := set.Get(local)
			owner := local
			if owner == "" {
				owner = "@"
			}
			fmt.Fprintf(&buf, "%s IN CNAME %s\n", owner, r.ServiceName(tenantID))
		}
	}
	buf.WriteString("\n")
	return buf.Bytes()
}
