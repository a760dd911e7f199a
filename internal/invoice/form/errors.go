package form

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smallbiznis/invoicedesk/internal/invoice/domain"
)

// ValidationError carries per-field messages and a summary for the form.
type ValidationError struct {
	Fields  domain.FieldErrors
	Message string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	if e.Message == "" {
		return fmt.Sprintf("invalid invoice fields: %s", strings.Join(keys, ", "))
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(keys, ", "))
}

// WithMessage returns a copy with the summary set.
func (e *ValidationError) WithMessage(message string) *ValidationError {
	return &ValidationError{Fields: e.Fields, Message: message}
}
