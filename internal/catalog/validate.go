package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopdesk/jobtickets/internal/domain"
)

var patternCache sync.Map // pattern string -> *regexp.Regexp

func compiled(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}

func compilePatterns(t *ServiceType) error {
	for _, f := range t.Fields {
		if f.Pattern == "" {
			continue
		}
		if _, err := compiled(f.Pattern); err != nil {
			return fmt.Errorf("service type %s field %s: invalid pattern: %w", t.Slug, f.Name, err)
		}
	}
	return nil
}

// Validate checks data against the type's field schema. It returns the
// cleaned payload (trimmed values, formatted phones, unknown keys dropped)
// and a map of field name to error message. Any error means the payload must
// not be written.
func (t ServiceType) Validate(data domain.ServiceData) (domain.ServiceData, map[string]string) {
	clean := make(domain.ServiceData, len(t.Fields))
	errs := map[string]string{}

	for _, f := range t.Fields {
		value := Stringify(data[f.Name])
		if value == "" {
			if f.Required {
				errs[f.Name] = fmt.Sprintf("%s is required", f.Label)
			}
			continue
		}
		checked, msg := f.check(value)
		if msg != "" {
			errs[f.Name] = msg
			continue
		}
		clean[f.Name] = checked
	}
	return clean, errs
}

func (f Field) check(value string) (any, string) {
	if len(f.Options) > 0 {
		found := false
		for _, opt := range f.Options {
			if opt.Value == value {
				found = true
				break
			}
		}
		if !found {
			return nil, f.message(fmt.Sprintf("%s has an unsupported value", f.Label))
		}
	}
	if f.Pattern != "" {
		re, err := compiled(f.Pattern)
		if err != nil || !re.MatchString(value) {
			return nil, f.message(fmt.Sprintf("%s has an invalid format", f.Label))
		}
	}
	switch f.Type {
	case FieldPhone:
		formatted, err := domain.FormatPhone(value)
		if err != nil {
			return nil, f.message("Enter 10-digit phone number")
		}
		return formatted, ""
	case FieldNumber:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, f.message(fmt.Sprintf("%s must be a number", f.Label))
		}
		return n, ""
	case FieldDate:
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return nil, f.message(fmt.Sprintf("%s must be YYYY-MM-DD", f.Label))
		}
	case FieldTime:
		if _, err := time.Parse("15:04", value); err != nil {
			return nil, f.message(fmt.Sprintf("%s must be HH:MM", f.Label))
		}
	}
	return value, ""
}

func (f Field) message(fallback string) string {
	if f.ErrorMessage != "" {
		return f.ErrorMessage
	}
	return fallback
}

// Stringify renders a decoded JSON value as trimmed text.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		if val {
			return "yes"
		}
		return "no"
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
