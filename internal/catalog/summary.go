package catalog

import (
	"sort"
	"strings"

	"github.com/shopdesk/jobtickets/internal/domain"
)

// Summarize renders a one-line description of a ticket's service data.
// Known types use their summary template; unknown slugs, and known types
// without a template, list every present key/value pair.
func (c *Catalog) Summarize(slug string, data domain.ServiceData) string {
	t, ok := c.Lookup(slug)
	if !ok || t.Summary == "" {
		return genericSummary(data)
	}
	return renderSummary(t, data)
}

// Summary templates:
//
//	{name}          field value
//	{name|label}    display label of the selected option
//	{name:Default}  value, or Default when empty
//	[ ... ]         optional segment, dropped when any field in it is empty
func renderSummary(t ServiceType, data domain.ServiceData) string {
	var out strings.Builder
	tmpl := t.Summary
	for len(tmpl) > 0 {
		open := strings.IndexByte(tmpl, '[')
		if open < 0 {
			text, _ := expand(tmpl, t, data, false)
			out.WriteString(text)
			break
		}
		text, _ := expand(tmpl[:open], t, data, false)
		out.WriteString(text)
		rest := tmpl[open+1:]
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			text, _ := expand(rest, t, data, false)
			out.WriteString(text)
			break
		}
		if text, ok := expand(rest[:end], t, data, true); ok {
			out.WriteString(text)
		}
		tmpl = rest[end+1:]
	}
	return strings.TrimSpace(out.String())
}

// expand substitutes every {token} in seg. In strict mode an empty value
// without a default fails the whole segment.
func expand(seg string, t ServiceType, data domain.ServiceData, strict bool) (string, bool) {
	var out strings.Builder
	for len(seg) > 0 {
		open := strings.IndexByte(seg, '{')
		if open < 0 {
			out.WriteString(seg)
			break
		}
		out.WriteString(seg[:open])
		end := strings.IndexByte(seg[open:], '}')
		if end < 0 {
			out.WriteString(seg[open:])
			break
		}
		value, ok := resolveToken(seg[open+1:open+end], t, data)
		if !ok && strict {
			return "", false
		}
		out.WriteString(value)
		seg = seg[open+end+1:]
	}
	return out.String(), true
}

func resolveToken(token string, t ServiceType, data domain.ServiceData) (string, bool) {
	name, fallback, hasFallback := strings.Cut(token, ":")
	name, modifier, _ := strings.Cut(name, "|")
	value := Stringify(data[name])
	if value == "" {
		if hasFallback {
			return fallback, true
		}
		return "", false
	}
	if modifier == "label" {
		if f, ok := t.Field(name); ok {
			return f.OptionLabel(value), true
		}
	}
	return value, true
}

func genericSummary(data domain.ServiceData) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		if Stringify(data[k]) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, strings.ReplaceAll(k, "_", " ")+": "+Stringify(data[k]))
	}
	return strings.Join(parts, ", ")
}
