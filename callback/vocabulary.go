package callback

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownPlaceholder = errors.New("unknown placeholder")

// Vocabulary is the closed set of placeholder names the remote system
// accepts. Placeholder edits validate against it before touching any record.
type Vocabulary map[string]struct{}

func NewVocabulary(names ...string) Vocabulary {
	v := make(Vocabulary, len(names))
	for _, name := range names {
		v[name] = struct{}{}
	}
	return v
}

func (v Vocabulary) Contains(name string) bool {
	_, ok := v[name]
	return ok
}

// Validate fails on the first name outside the vocabulary.
func (v Vocabulary) Validate(names ...string) error {
	for _, name := range names {
		if !v.Contains(name) {
			return fmt.Errorf("%q: %w", name, ErrUnknownPlaceholder)
		}
	}
	return nil
}

func (v Vocabulary) Names() []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultVocabulary is the placeholder list published by Adjust. The live
// list can be fetched instead through the gateway when editing against a
// dashboard that has gained new placeholders.
func DefaultVocabulary() Vocabulary {
	return NewVocabulary(defaultPlaceholders...)
}

var defaultPlaceholders = []string{
	"activity_kind",
	"ad_impressions_count",
	"ad_revenue_network",
	"ad_revenue_placement",
	"ad_revenue_unit",
	"adgroup_name",
	"adid",
	"android_id",
	"api_level",
	"app_id",
	"app_name",
	"app_token",
	"app_version",
	"att_status",
	"campaign_name",
	"city",
	"click_referer",
	"click_time",
	"connection_type",
	"cost_amount",
	"cost_currency",
	"cost_type",
	"country",
	"created_at",
	"creative_name",
	"currency",
	"deeplink",
	"device_name",
	"device_type",
	"engagement_time",
	"environment",
	"event",
	"event_name",
	"fb_campaign_group_id",
	"fb_campaign_group_name",
	"gclid",
	"gps_adid",
	"idfa",
	"idfa_md5",
	"idfv",
	"impression_time",
	"installed_at",
	"ip_address",
	"is_organic",
	"isp",
	"label",
	"language",
	"last_session_time",
	"lifetime_session_count",
	"match_type",
	"mcc",
	"mnc",
	"network_name",
	"nonce",
	"os_name",
	"os_version",
	"partner_parameters",
	"publisher_parameters",
	"push_token",
	"random",
	"reattributed_at",
	"reattribution_attribution_window",
	"referral_time",
	"referrer",
	"region",
	"rejection_reason",
	"reporting_cost",
	"reporting_currency",
	"reporting_revenue",
	"revenue",
	"revenue_float",
	"revenue_usd",
	"sdk_version",
	"search_term",
	"session_count",
	"sk_app_id",
	"sk_campaign_id",
	"sk_conversion_value",
	"sk_did_win",
	"sk_fidelity_type",
	"sk_invalid_signature",
	"sk_network_id",
	"sk_payload",
	"sk_source_app_id",
	"sk_transaction_id",
	"sk_ts",
	"sk_version",
	"store",
	"time_spent",
	"timezone",
	"tracker",
	"tracker_name",
	"tracking_enabled",
	"uninstalled_at",
	"user_agent",
	"win_adid",
	"win_naid",
}
