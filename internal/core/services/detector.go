package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poyrazK/zonewriter/internal/core/domain"
)

// Canonicalize serializes records as indented JSON with sorted keys at both
// levels. Two equal datasets always produce identical bytes.
func Canonicalize(records *domain.ApexRecords) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	// encoding/json writes map keys in sorted order.
	if err := enc.Encode(records.Map()); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

// Unchanged reports whether the canonical form matches the previously
// persisted snapshot. A missing snapshot always counts as a change.
func Unchanged(previous, canonical []byte) bool {
	if previous == nil {
		return false
	}
	return bytes.Equal(bytes.TrimSpace(previous), canonical)
}

// SameRecords reports whether two rendered zones are equal apart from the SOA
// line, which carries the serial.
func SameRecords(a, b []byte) bool {
	return withoutSOA(a) == withoutSOA(b)
}

func withoutSOA(zone []byte) string {
	lines := strings.Split(strings.TrimSpace(string(zone)), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.Contains(line, " IN SOA ") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
