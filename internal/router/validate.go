package router

import (
	"fmt"
	"strings"
)

const sanitizeMaxLen = 1000

var stripChars = "<>\"'&"

// validate walks schema's fields against data (a decoded JSON object)
// and returns every violation found (spec §4.3 "field-level reasons").
func validate(schema Schema, data map[string]interface{}) []FieldError {
	var errs []FieldError
	for _, f := range schema.Fields {
		v, present := lookupPath(data, f.Path)
		if !present {
			if f.Required {
				errs = append(errs, FieldError{Field: f.Path, Reason: "required"})
			}
			continue
		}
		if err := checkKind(f, v); err != "" {
			errs = append(errs, FieldError{Field: f.Path, Reason: err})
		}
	}
	return errs
}

func checkKind(f Field, v interface{}) string {
	switch f.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return "expected string"
		}
		if f.MaxLen > 0 && len(s) > f.MaxLen {
			return fmt.Sprintf("exceeds max length %d", f.MaxLen)
		}
		if len(f.Enum) > 0 && !contains(f.Enum, s) {
			return fmt.Sprintf("not one of %v", f.Enum)
		}
	case KindNumber:
		n, ok := v.(float64)
		if !ok {
			return "expected number"
		}
		if f.HasRange && (n < f.Min || n > f.Max) {
			return fmt.Sprintf("out of range [%v, %v]", f.Min, f.Max)
		}
	case KindBool:
		if _, ok := v.(bool); !ok {
			return "expected bool"
		}
	case KindObject:
		if _, ok := v.(map[string]interface{}); !ok {
			return "expected object"
		}
	}
	return ""
}

// lookupPath resolves a dot-separated path ("position.x") against a
// decoded JSON object tree (spec §4.3 "nested paths like position.x").
func lookupPath(data map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = data
	for _, p := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[p]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// sanitize trims, strips the disallowed characters, and caps every
// string value found anywhere in data, recursing into nested objects
// (spec §4.3 "sanitizes strings (trim, strip < > \" ' &, cap 1000 chars)").
func sanitize(data map[string]interface{}) {
	for k, v := range data {
		switch t := v.(type) {
		case string:
			data[k] = sanitizeString(t)
		case map[string]interface{}:
			sanitize(t)
		}
	}
}

func sanitizeString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(stripChars, r) {
			return -1
		}
		return r
	}, s)
	if len(s) > sanitizeMaxLen {
		s = s[:sanitizeMaxLen]
	}
	return s
}
