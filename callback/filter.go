package callback

import "regexp"

// Spec selects a subset of callback records. Within one predicate the
// values are alternatives: a record passes when any of them matches. Set
// predicates combine with AND, and the zero value selects all records.
type Spec struct {
	// Apps match the app name exactly.
	Apps []string
	// AppTokens match the app token exactly.
	AppTokens []string
	// Events match the custom event name exactly.
	Events []string
	// Domains match the host of the URL template exactly.
	Domains []string
	// Paths match the path of the URL template exactly.
	Paths []string
	// MatchApps match the app name against regular expressions.
	MatchApps []*regexp.Regexp
	// MatchDomains match the host of the URL template.
	MatchDomains []*regexp.Regexp
	// MatchPaths match the path of the URL template.
	MatchPaths []*regexp.Regexp
	// HasPlaceholders require one of the named placeholders to be present
	// in the URL template.
	HasPlaceholders []string
	// MatchPlaceholders require a placeholder matching one of the
	// expressions to be present.
	MatchPlaceholders []*regexp.Regexp
	// MissingPlaceholder requires the named placeholder to be absent.
	MissingPlaceholder string
}

func (s Spec) Matches(r Record) bool {
	if !anyEqual(s.Apps, r.AppName) || !anyMatch(s.MatchApps, r.AppName) {
		return false
	}
	if !anyEqual(s.AppTokens, r.AppToken) || !anyEqual(s.Events, r.Event) {
		return false
	}
	domain := templateDomain(r.URL)
	if !anyEqual(s.Domains, domain) || !anyMatch(s.MatchDomains, domain) {
		return false
	}
	path := templatePath(r.URL)
	if !anyEqual(s.Paths, path) || !anyMatch(s.MatchPaths, path) {
		return false
	}
	names := TemplatePlaceholders(r.URL)
	if len(s.HasPlaceholders) > 0 && !anyNameEqual(names, s.HasPlaceholders) {
		return false
	}
	if len(s.MatchPlaceholders) > 0 && !anyNameMatch(names, s.MatchPlaceholders) {
		return false
	}
	if s.MissingPlaceholder != "" && TemplateHasPlaceholder(r.URL, s.MissingPlaceholder) {
		return false
	}
	return true
}

// anyEqual reports whether value equals one of the wanted values. An empty
// predicate passes everything.
func anyEqual(wanted []string, value string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if w == value {
			return true
		}
	}
	return false
}

func anyMatch(patterns []*regexp.Regexp, value string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

func anyNameEqual(names, wanted []string) bool {
	for _, name := range names {
		for _, w := range wanted {
			if name == w {
				return true
			}
		}
	}
	return false
}

func anyNameMatch(names []string, patterns []*regexp.Regexp) bool {
	for _, name := range names {
		for _, p := range patterns {
			if p.MatchString(name) {
				return true
			}
		}
	}
	return false
}

// Select returns the identities of the records matching the spec, in record
// order. A spec matching nothing yields an empty selection, not an error;
// callers decide whether that deserves a warning.
func Select(records []Record, spec Spec) []Identity {
	ids := make([]Identity, 0, len(records))
	for _, r := range records {
		if spec.Matches(r) {
			ids = append(ids, r.Identity())
		}
	}
	return ids
}
