package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"strings"
)

// Fingerprint is a stable digest of (text, authorLink) used as a dedup key
// when no upstream id exists. Truncation to 32 hex chars is accepted for this
// use case.
func Fingerprint(text, authorLink string) string {
	sum := sha256.Sum256([]byte(text + "|" + authorLink))
	return hex.EncodeToString(sum[:])[:32]
}

type structuredID struct {
	TopLevelPostID string `json:"top_level_post_id"`
	StoryKey       string `json:"mf_story_key"`
}

// ResolvePostID derives a stable post identifier, in priority order:
// structured id fields, the structured value verbatim, a supplied fallback,
// and finally a fingerprint-derived id.
func ResolvePostID(structured, fallbackID, text, authorLink string) string {
	if s := strings.TrimSpace(structured); s != "" {
		var parsed structuredID
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			if parsed.TopLevelPostID != "" {
				return parsed.TopLevelPostID
			}
			if parsed.StoryKey != "" {
				return parsed.StoryKey
			}
		}
		return s
	}
	if fallbackID != "" {
		return fallbackID
	}
	return "hash_" + Fingerprint(text, authorLink)
}

// PermalinkID extracts the post id embedded in a permalink URL: a
// "story_fbid" query value, or the segment following "/posts/" or
// "/permalink/". Returns ("", false) when the URL carries no such id.
func PermalinkID(permalink string) (string, bool) {
	permalink = strings.TrimSpace(permalink)
	if permalink == "" {
		return "", false
	}

	u, err := url.Parse(permalink)
	if err != nil {
		return "", false
	}

	if v := u.Query().Get("story_fbid"); v != "" {
		return v, true
	}

	segments := splitPath(u.Path)
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == "posts" || segments[i] == "permalink" {
			return segments[i+1], true
		}
	}
	return "", false
}

// trackingParams are stripped from every author href before pattern matching.
// Keys with a "__" prefix (click-tracking blobs) are stripped wholesale.
var trackingParams = map[string]struct{}{
	"ref": {}, "fref": {}, "hc_ref": {}, "comment_id": {},
	"reply_comment_id": {}, "notif_id": {}, "notif_t": {},
	"eav": {}, "paipv": {}, "rdid": {}, "mibextid": {},
}

// nonProfileRoots are first path segments that denote group, page, or photo
// resources rather than a personal profile.
var nonProfileRoots = map[string]struct{}{
	"groups": {}, "pages": {}, "photo": {}, "photos": {},
}

// CanonicalAuthorLink reduces the platform's many profile URL shapes to one
// canonical form rooted at base. The second return is false when no canonical
// link can be derived; parse failures never panic or error.
func CanonicalAuthorLink(href, base string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	baseURL, err := url.Parse(base)
	if err != nil || baseURL.Host == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := baseURL.ResolveReference(ref)

	query := u.Query()
	for key := range query {
		if strings.HasPrefix(key, "__") {
			query.Del(key)
			continue
		}
		if _, tracked := trackingParams[key]; tracked {
			query.Del(key)
		}
	}

	segments := splitPath(u.Path)
	if len(segments) == 0 {
		return "", false
	}

	profile := func(id string) (string, bool) {
		if id == "" {
			return "", false
		}
		return baseURL.Scheme + "://" + baseURL.Host + "/profile.php?id=" + url.QueryEscape(id), true
	}

	switch segments[0] {
	case "stories":
		if len(segments) >= 2 {
			return profile(segments[1])
		}
		return "", false
	case "user":
		if len(segments) >= 2 {
			return profile(segments[1])
		}
		return "", false
	case "profile.php":
		return profile(query.Get("id"))
	case "people":
		if len(segments) >= 3 {
			return profile(segments[2])
		}
		return "", false
	case "groups":
		// /groups/{gid}/user/{id} points at a member profile
		for i := 1; i < len(segments)-1; i++ {
			if segments[i] == "user" {
				return profile(segments[i+1])
			}
		}
		return "", false
	}

	if _, skip := nonProfileRoots[segments[0]]; skip {
		return "", false
	}

	// plain vanity username
	return baseURL.Scheme + "://" + baseURL.Host + "/" + segments[0], true
}

func splitPath(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
