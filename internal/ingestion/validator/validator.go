// Package validator checks document events before they are published or
// applied, returning per-field details.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
)

const (
	maxRefLength   = 512
	maxFieldName   = 128
	maxFieldLength = 1 << 20
)

// ValidationError holds per-field failure messages. It matches
// ErrInvalidInput under errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid document event: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// ValidateEvent checks the ref, the op and, for upserts, each field name and
// value size. Empty field values are allowed.
func ValidateEvent(ev *ingestion.DocumentEvent) error {
	errs := make(map[string]string)

	switch {
	case strings.TrimSpace(ev.Ref) == "":
		errs["ref"] = "ref is required"
	case len(ev.Ref) > maxRefLength:
		errs["ref"] = fmt.Sprintf("ref must be at most %d bytes", maxRefLength)
	}

	switch ev.Op {
	case ingestion.OpUpsert:
		for name, value := range ev.Fields {
			key := "fields." + name
			switch {
			case name == "":
				errs["fields"] = "field names must not be empty"
			case len(name) > maxFieldName:
				errs[key] = fmt.Sprintf("field name must be at most %d bytes", maxFieldName)
			case len(value) > maxFieldLength:
				errs[key] = fmt.Sprintf("field value must be at most %d bytes", maxFieldLength)
			}
		}
	case ingestion.OpDelete:
		if len(ev.Fields) > 0 {
			errs["fields"] = "delete events carry no fields"
		}
	default:
		errs["op"] = fmt.Sprintf("unknown op %q", ev.Op)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
