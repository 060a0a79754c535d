package callback

import (
	"sort"
	"strings"
)

// KindEvent marks callbacks attached to a custom in-app event. All other
// kinds are the standard Adjust trigger names (install, session, click...)
// and carry an empty Event in their identity.
const KindEvent = "event"

// StandardKinds is the set of trigger names the dashboard exposes besides
// custom in-app events.
var StandardKinds = []string{
	"ad_revenue",
	"att_consent",
	"attribution_update",
	"click",
	"cost_update",
	"gdpr_forget_device",
	"global",
	"impression",
	"install",
	"reattribution",
	"reattribution_reinstall",
	"reinstall",
	"rejected_install",
	"rejected_reattribution",
	"san_click",
	"san_impression",
	"session",
	"sk_cv_update",
	"sk_event",
	"sk_install",
	"sk_install_direct",
	"sk_qualifier",
	"subscription",
	"subscription_activation",
	"subscription_cancellation",
	"subscription_entered_billing_retry",
	"subscription_first_conversion",
	"subscription_reactivation",
	"subscription_renewal",
	"subscription_renewal_from_billing_retry",
	"uninstall",
}

// Identity is the unique key of a callback within an app's configuration.
// Event is only set when Kind is KindEvent.
type Identity struct {
	AppToken string
	Kind     string
	Event    string
}

func (id Identity) String() string {
	if id.Event == "" {
		return id.AppToken + "/" + id.Kind
	}
	return id.AppToken + "/" + id.Kind + "/" + id.Event
}

// Compare orders identities by app token, then kind, then event name.
func (id Identity) Compare(other Identity) int {
	if c := strings.Compare(id.AppToken, other.AppToken); c != 0 {
		return c
	}
	if c := strings.Compare(id.Kind, other.Kind); c != 0 {
		return c
	}
	return strings.Compare(id.Event, other.Event)
}

// Record is one callback configuration entry. URL holds the raw template
// string exactly as the dashboard returns it; Placeholders lists the active
// placeholder names embedded in the template.
type Record struct {
	AppToken     string   `yaml:"app"`
	AppName      string   `yaml:"appName,omitempty"`
	Kind         string   `yaml:"kind"`
	Event        string   `yaml:"event,omitempty"`
	URL          string   `yaml:"url"`
	Placeholders []string `yaml:"placeholders,omitempty"`
	Enabled      bool     `yaml:"enabled"`
}

func (r Record) Identity() Identity {
	return Identity{AppToken: r.AppToken, Kind: r.Kind, Event: r.Event}
}

// SortRecords orders records by identity in place, so that snapshots
// captured from concurrent fetches are deterministic.
func SortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Identity().Compare(records[j].Identity()) < 0
	})
}
