package dedup

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters stripped during normalization: click
// identifiers and analytics client ids that vary per referral without
// changing the target content.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"msclkid": true,
	"ref":     true,
	"source":  true,
	"_ga":     true,
	"_gl":     true,
	"mc_cid":  true,
	"mc_eid":  true,
}

func isTrackingParam(key string) bool {
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	return trackingParams[key]
}

// NormalizeURL canonicalizes a URL so the same target collected from two
// sources compares equal: lowercase, no www prefix, no tracking params,
// query keys in sorted order, no trailing slash. Scheme and fragment are
// preserved. Input without a parseable host is returned lowercased but
// otherwise unchanged. Deterministic and idempotent.
func NormalizeURL(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))

	u, err := url.Parse(lowered)
	if err != nil || u.Host == "" {
		return lowered
	}

	u.Host = strings.TrimPrefix(u.Host, "www.")

	if u.RawQuery != "" {
		values, err := url.ParseQuery(u.RawQuery)
		if err == nil {
			for key := range values {
				if isTrackingParam(key) {
					values.Del(key)
				}
			}
			u.RawQuery = values.Encode() // Encode sorts by key
		}
	}

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}
