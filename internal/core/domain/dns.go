// Package domain contains the core entities of the zone reconciliation engine.
package domain

import (
	"strings"
)

// DomainRecord is one tenant-owned FQDN as reported by the tenant state source.
type DomainRecord struct {
	TenantID string `json:"tenant_id"`
	FQDN     string `json:"fqdn"`
}

// Apex returns the last two labels of fqdn. Names with fewer than two labels
// are their own apex.
func Apex(fqdn string) string {
	parts := strings.Split(fqdn, ".")
	if len(parts) < 2 {
		return fqdn
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// LocalPart returns fqdn with the apex suffix and any trailing dots removed.
// An empty result means the name is the apex itself.
func LocalPart(fqdn, apex string) string {
	return strings.TrimRight(fqdn[:len(fqdn)-len(apex)], ".")
}

// RecordSet maps the local part of a name to its owning tenant, keeping
// first-insertion order.
type RecordSet struct {
	locals  []string
	tenants map[string]string
}

// NewRecordSet creates an empty RecordSet.
func NewRecordSet() *RecordSet {
	return &RecordSet{tenants: make(map[string]string)}
}

// Set stores tenantID under local. When local is already present the tenant is
// replaced in place and the previous owner is returned with replaced == true.
func (s *RecordSet) Set(local, tenantID string) (previous string, replaced bool) {
	previous, replaced = s.tenants[local]
	if !replaced {
		s.locals = append(s.locals, local)
	}
	s.tenants[local] = tenantID
	return previous, replaced
}

func (s *RecordSet) Get(local string) (string, bool) {
	tenantID, ok := s.tenants[local]
	return tenantID, ok
}

// Locals returns the local parts in insertion order.
func (s *RecordSet) Locals() []string {
	out := make([]string, len(s.locals))
	copy(out, s.locals)
	return out
}

func (s *RecordSet) Len() int {
	return len(s.locals)
}

// ApexRecords groups record sets by apex, ordered by first encounter.
type ApexRecords struct {
	apexes []string
	sets   map[string]*RecordSet
}

// NewApexRecords creates an empty ApexRecords.
func NewApexRecords() *ApexRecords {
	return &ApexRecords{sets: make(map[string]*RecordSet)}
}

// Insert adds local -> tenantID under apex, creating the apex on first use.
func (a *ApexRecords) Insert(apex, local, tenantID string) (previous string, replaced bool) {
	set, ok := a.sets[apex]
	if !ok {
		set = NewRecordSet()
		a.sets[apex] = set
		a.apexes = append(a.apexes, apex)
	}
	return set.Set(local, tenantID)
}

// Apexes returns the apex names in first-encounter order.
func (a *ApexRecords) Apexes() []string {
	out := make([]string, len(a.apexes))
	copy(out, a.apexes)
	return out
}

// RecordSet returns the set for apex, or nil if the apex is unknown.
func (a *ApexRecords) RecordSet(apex string) *RecordSet {
	return a.sets[apex]
}

func (a *ApexRecords) Len() int {
	return len(a.apexes)
}

// RecordCount is the total number of names across all apexes.
func (a *ApexRecords) RecordCount() int {
	n := 0
	for _, set := range a.sets {
		n += set.Len()
	}
	return n
}

// Map returns a plain nested map copy, used for the canonical snapshot form.
func (a *ApexRecords) Map() map[string]map[string]string {
	out := make(map[string]map[string]string, len(a.sets))
	for apex, set := range a.sets {
		inner := make(map[string]string, set.Len())
		for local, tenantID := range set.tenants {
			inner[local] = tenantID
		}
		out[apex] = inner
	}
	return out
}

// Collision describes two source records that normalized to the same
// (apex, local part) pair. The later record wins.
type Collision struct {
	Apex     string
	Local    string
	Previous string
	Current  string
}

// ZoneUpdate is published after a pass that changed the zone directory.
type ZoneUpdate struct {
	Serial  string   `json:"serial"`
	Written []string `json:"written"`
	Removed []string `json:"removed,omitempty"`
}
