package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var validLabelRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// sampleTenantID stands in for a tenant id when checking a service template.
const sampleTenantID = "tenant-1"

// ValidateServiceTemplate checks that tmpl has exactly one %s verb and expands
// to a valid FQDN.
func ValidateServiceTemplate(tmpl string) error {
	if tmpl == "" {
		return fmt.Errorf("service template cannot be empty")
	}
	if strings.Count(tmpl, "%") != 1 || strings.Count(tmpl, "%s") != 1 {
		return fmt.Errorf("service template must contain exactly one %%s")
	}
	name := fmt.Sprintf(tmpl, sampleTenantID)
	if !strings.HasSuffix(name, ".") {
		return fmt.Errorf("service template must end with a dot (FQDN)")
	}
	if len(name) > 254 {
		return fmt.Errorf("service name exceeds 253 characters")
	}

	labels := strings.Split(strings.TrimSuffix(name, "."), ".")
	for _, label := range labels {
		if label == "" {
			return fmt.Errorf("service template contains empty label")
		}
		if len(label) > 63 {
			return fmt.Errorf("label '%s' exceeds 63 characters", label)
		}
		if !validLabelRegex.MatchString(label) {
			return fmt.Errorf("label '%s' contains invalid characters or format", label)
		}
	}
	return nil
}
