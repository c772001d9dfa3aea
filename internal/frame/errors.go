package frame

import (
	"errors"
	"fmt"
)

// SchemaError reports input that does not match the expected schema.
// It is returned before any fitting begins.
type SchemaError struct {
	Feature string
	Reason  string
}

func (e *SchemaError) Error() string {
	if e.Feature == "" {
		return "schema: " + e.Reason
	}
	return fmt.Sprintf("schema: %s: %s", e.Feature, e.Reason)
}

// IsSchemaError reports whether err (or any error in its chain) is a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
