// Package validator checks ingestion requests and reports per-field errors.
package validator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/ingestion"
)

const (
	MaxNameLength = 255
	MaxBodyLength = 1 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, field := range keys {
		parts[i] = fmt.Sprintf("%s: %s", field, e.Fields[field])
	}
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest requires a name without path separators and a
// non-blank body, each within its length limit.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		errs["name"] = "name is required"
	case len(name) > MaxNameLength:
		errs["name"] = fmt.Sprintf("name must be at most %d characters", MaxNameLength)
	case strings.ContainsAny(name, `/\`):
		errs["name"] = "name must not contain path separators"
	}

	switch {
	case strings.TrimSpace(req.Body) == "":
		errs["body"] = "body is required and must not be blank"
	case len(req.Body) > MaxBodyLength:
		errs["body"] = fmt.Sprintf("body must be at most %d bytes", MaxBodyLength)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
