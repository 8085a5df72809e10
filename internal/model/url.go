package model

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// TimeLayout is the sort-key format of StoredDocument.PublishedAt.
const TimeLayout = "2006-01-02T15:04:05Z"

// identityQueryParams lists hosts whose query string carries the document
// identity. On these hosts every other parameter is dropped.
var identityQueryParams = map[string][]string{
	"youtube.com":     {"v"},
	"www.youtube.com": {"v"},
	"m.youtube.com":   {"v"},
}

// trackingParams are dropped from every URL. Keys starting with "utm_" are
// dropped as well.
var trackingParams = map[string]struct{}{
	"fbclid": {}, "gclid": {}, "yclid": {}, "msclkid": {},
	"mc_cid": {}, "mc_eid": {}, "_ga": {},
	"oc": {}, "ref": {}, "ref_src": {}, "feature": {}, "si": {},
}

func isTrackingParam(key string) bool {
	k := strings.ToLower(key)
	if strings.HasPrefix(k, "utm_") {
		return true
	}
	_, ok := trackingParams[k]
	return ok
}

// CanonicalURL lower-cases the scheme and host, drops the fragment and
// tracking parameters, sorts the remaining query and trims a trailing slash.
// Unparseable input is returned trimmed and lower-cased.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}

	host := strings.ToLower(u.Host)
	out := url.URL{
		Scheme: strings.ToLower(u.Scheme),
		Host:   host,
		Path:   strings.TrimRight(u.Path, "/"),
	}
	if keep, ok := identityQueryParams[host]; ok {
		q := u.Query()
		kept := url.Values{}
		for _, k := range keep {
			if v := q.Get(k); v != "" {
				kept.Set(k, v)
			}
		}
		out.RawQuery = kept.Encode()
		return out.String()
	}

	q := u.Query()
	for k := range q {
		if isTrackingParam(k) {
			q.Del(k)
		}
	}
	out.RawQuery = q.Encode()
	return out.String()
}

// DocumentID is the primary key of a stored document: hex sha256 of the
// canonical URL.
func DocumentID(rawURL string) string {
	sum := sha256.Sum256([]byte(CanonicalURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseTime parses the loosely-structured timestamps found in feeds and API
// payloads. The second return is false when nothing matched.
func ParseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// NormalizePublishedAt renders raw as a UTC sort key, using fallback when raw
// is missing or unparseable.
func NormalizePublishedAt(raw string, fallback time.Time) string {
	if t, ok := ParseTime(raw); ok {
		return t.Format(TimeLayout)
	}
	return fallback.UTC().Format(TimeLayout)
}
