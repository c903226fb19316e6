package config

import (
	"fmt"
	"strings"
)

// FieldError is one failed field constraint.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (f FieldError) String() string {
	if f.Param != "" {
		return fmt.Sprintf("%s: %s=%s", f.Field, f.Tag, f.Param)
	}
	return fmt.Sprintf("%s: %s", f.Field, f.Tag)
}

// ConfigError collects every field that failed validation.
type ConfigError struct {
	Fields []FieldError
}

func (e *ConfigError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "config: " + strings.Join(parts, "; ")
}

// Has reports whether field (a dotted namespace suffix such as
// "Storage.PostgresDSN") failed.
func (e *ConfigError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field || strings.HasSuffix(f.Field, "."+field) {
			return true
		}
	}
	return false
}
