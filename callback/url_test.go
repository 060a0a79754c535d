package callback

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAddTemplatePlaceholder(t *testing.T) {
	tests := map[string]struct {
		tmpl string
		name string
		want string
	}{
		"no query": {
			tmpl: "https://x/",
			name: "gps_adid",
			want: "https://x/?gps_adid={gps_adid}",
		},
		"appended after regular params": {
			tmpl: "https://x/?a=1&b=2",
			name: "gps_adid",
			want: "https://x/?a=1&b=2&gps_adid={gps_adid}",
		},
		"sorted into the placeholder region": {
			tmpl: "https://x/?a=1&adid={adid}&idfa={idfa}",
			name: "gps_adid",
			want: "https://x/?a=1&adid={adid}&gps_adid={gps_adid}&idfa={idfa}",
		},
		"sorted before the region head": {
			tmpl: "https://x/?idfa={idfa}",
			name: "adid",
			want: "https://x/?adid={adid}&idfa={idfa}",
		},
		"already present": {
			tmpl: "https://x/?gps_adid={gps_adid}",
			name: "gps_adid",
			want: "https://x/?gps_adid={gps_adid}",
		},
		"fragment preserved": {
			tmpl: "https://x/?a=1#section",
			name: "adid",
			want: "https://x/?a=1&adid={adid}#section",
		},
		"regular pair with braces is not a placeholder": {
			tmpl: "https://x/?a={b}",
			name: "adid",
			want: "https://x/?a={b}&adid={adid}",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got := AddTemplatePlaceholder(test.tmpl, test.name)
			if got != test.want {
				t.Errorf("expected %q, got %q", test.want, got)
			}
		})
	}
}

func TestRemoveTemplatePlaceholder(t *testing.T) {
	tests := map[string]struct {
		tmpl string
		name string
		want string
	}{
		"absent is a no-op": {
			tmpl: "https://x/?a=1",
			name: "adid",
			want: "https://x/?a=1",
		},
		"sole placeholder": {
			tmpl: "https://x/?adid={adid}",
			name: "adid",
			want: "https://x/",
		},
		"from the region": {
			tmpl: "https://x/?a=1&adid={adid}&idfa={idfa}",
			name: "adid",
			want: "https://x/?a=1&idfa={idfa}",
		},
		"outside the trailing region": {
			tmpl: "https://x/?adid={adid}&b=2",
			name: "adid",
			want: "https://x/?b=2",
		},
		"fragment preserved": {
			tmpl: "https://x/?adid={adid}#section",
			name: "adid",
			want: "https://x/#section",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got := RemoveTemplatePlaceholder(test.tmpl, test.name)
			if got != test.want {
				t.Errorf("expected %q, got %q", test.want, got)
			}
		})
	}
}

func TestPlaceholderEditsRoundTrip(t *testing.T) {
	templates := []string{
		"https://x/",
		"https://x/?a=1",
		"https://x/?a={a}",
		"https://x/?a=1&adid={adid}&idfa={idfa}",
		"https://x/path?utm_source=adjust&country={country}#frag",
	}

	for _, tmpl := range templates {
		added := AddTemplatePlaceholder(tmpl, "gps_adid")
		if again := AddTemplatePlaceholder(added, "gps_adid"); again != added {
			t.Errorf("add is not idempotent for %q: %q != %q", tmpl, again, added)
		}
		if back := RemoveTemplatePlaceholder(added, "gps_adid"); back != tmpl {
			t.Errorf("remove(add(%q)) = %q, want the original", tmpl, back)
		}
		removed := RemoveTemplatePlaceholder(added, "gps_adid")
		if again := RemoveTemplatePlaceholder(removed, "gps_adid"); again != removed {
			t.Errorf("remove is not idempotent for %q", tmpl)
		}
		if reapplied := AddTemplatePlaceholder(removed, "gps_adid"); reapplied != added {
			t.Errorf("re-adding after removal diverged for %q: %q != %q", tmpl, reapplied, added)
		}
	}
}

func TestTemplatePlaceholders(t *testing.T) {
	got := TemplatePlaceholders("https://x/?idfa={idfa}&a=1&adid={adid}&gps_adid={gps_adid}")
	want := []string{"idfa", "adid", "gps_adid"}
	if !cmp.Equal(want, got) {
		t.Error(cmp.Diff(want, got))
	}

	if names := TemplatePlaceholders("https://x/?a=1"); names != nil {
		t.Errorf("expected no placeholders, got %v", names)
	}
}
