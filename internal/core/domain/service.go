package domain

// ServiceRole selects which internal service a tenant's CNAME points at.
type ServiceRole string

const (
	RoleTenant ServiceRole = "tenant" // tenant nginx in front of the cache
	RoleFront  ServiceRole = "front"  // front proxy of the tenant namespace
)

// ServiceTemplate returns the fmt template used to build a tenant's service
// name, or "" for an unknown role.
func (r ServiceRole) ServiceTemplate() string {
	switch r {
	case RoleTenant:
		return "tenant.%s.svc.cluster.local."
	case RoleFront:
		return "front.%s.svc.cluster.local."
	default:
		return ""
	}
}
