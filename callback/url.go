package callback

import (
	"strings"
)

// A placeholder is a query pair of the form name={name}. The placeholder
// region of a template is the maximal trailing run of such pairs in its
// query string. Edits splice pairs in and out of that region and never
// rewrite any byte outside it, so an unrelated template survives an
// add/remove cycle unchanged.

func splitTemplate(tmpl string) (head, query, fragment string) {
	head = tmpl
	if i := strings.IndexByte(head, '#'); i >= 0 {
		fragment = head[i:]
		head = head[:i]
	}
	if i := strings.IndexByte(head, '?'); i >= 0 {
		query = head[i+1:]
		head = head[:i]
	}
	return head, query, fragment
}

func joinTemplate(head string, pairs []string, fragment string) string {
	if len(pairs) == 0 {
		return head + fragment
	}
	return head + "?" + strings.Join(pairs, "&") + fragment
}

func queryPairs(query string) []string {
	if query == "" {
		return nil
	}
	return strings.Split(query, "&")
}

func placeholderName(pair string) (string, bool) {
	k, v, ok := strings.Cut(pair, "=")
	if !ok || k == "" || v != "{"+k+"}" {
		return "", false
	}
	return k, true
}

// placeholderRegion returns the index of the first pair belonging to the
// trailing placeholder run. Equal to len(pairs) when there is no run.
func placeholderRegion(pairs []string) int {
	i := len(pairs)
	for i > 0 {
		if _, ok := placeholderName(pairs[i-1]); !ok {
			break
		}
		i--
	}
	return i
}

// TemplatePlaceholders returns the placeholder names embedded anywhere in
// the template's query string, in order of appearance.
func TemplatePlaceholders(tmpl string) []string {
	_, query, _ := splitTemplate(tmpl)
	var names []string
	for _, pair := range queryPairs(query) {
		if name, ok := placeholderName(pair); ok {
			names = append(names, name)
		}
	}
	return names
}

// TemplateHasPlaceholder reports whether the named placeholder is present
// in the template.
func TemplateHasPlaceholder(tmpl, name string) bool {
	for _, n := range TemplatePlaceholders(tmpl) {
		if n == name {
			return true
		}
	}
	return false
}

// AddTemplatePlaceholder splices name={name} into the placeholder region,
// keeping the region sorted by name. Adding an already present placeholder
// is a no-op.
func AddTemplatePlaceholder(tmpl, name string) string {
	if TemplateHasPlaceholder(tmpl, name) {
		return tmpl
	}
	head, query, fragment := splitTemplate(tmpl)
	pairs := queryPairs(query)
	at := placeholderRegion(pairs)
	for at < len(pairs) {
		existing, _ := placeholderName(pairs[at])
		if existing > name {
			break
		}
		at++
	}
	spliced := make([]string, 0, len(pairs)+1)
	spliced = append(spliced, pairs[:at]...)
	spliced = append(spliced, name+"={"+name+"}")
	spliced = append(spliced, pairs[at:]...)
	return joinTemplate(head, spliced, fragment)
}

// RemoveTemplatePlaceholder splices the named placeholder pair out of the
// template. Removing an absent placeholder is a no-op.
func RemoveTemplatePlaceholder(tmpl, name string) string {
	head, query, fragment := splitTemplate(tmpl)
	pairs := queryPairs(query)
	for i, pair := range pairs {
		existing, ok := placeholderName(pair)
		if !ok || existing != name {
			continue
		}
		return joinTemplate(head, append(pairs[:i:i], pairs[i+1:]...), fragment)
	}
	return tmpl
}

// templateDomain extracts the host portion of a URL template without going
// through net/url, which rejects the brace characters placeholders use.
func templateDomain(tmpl string) string {
	rest := tmpl
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// templatePath extracts the path portion of a URL template, empty when the
// template has none.
func templatePath(tmpl string) string {
	rest := tmpl
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[i:]
	}
	return ""
}
