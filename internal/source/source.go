package source

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"dancebreak/internal/services"
)

// Kind classifies how a source is acquired.
type Kind string

const (
	KindObject   Kind = "object"
	KindExternal Kind = "external"
	KindFile     Kind = "file"
)

// ExternalScheme marks opaque external references such as ext://sample-video.
const ExternalScheme = "ext"

// Source is a normalized video reference.
type Source struct {
	// Identity is the cache key. Two references to the same video share it.
	Identity string
	Kind     Kind
	// Locator is what the acquisition strategy consumes: an object key, a URL, or a path.
	Locator string
	// Bucket is set for s3:// references.
	Bucket string
	// Original is the reference as supplied by the caller.
	Original string
}

// Host returns the lowercased host for external URL sources.
func (s Source) Host() string {
	if s.Kind != KindExternal {
		return ""
	}
	u, err := url.Parse(s.Locator)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// IsSynthetic reports whether the source is an opaque ext:// reference.
func (s Source) IsSynthetic() bool {
	return s.Kind == KindExternal && strings.HasPrefix(s.Locator, ExternalScheme+"://")
}

var youtubeIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`shorts/([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`embed/([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`(?:v=|youtu\.be/)([0-9A-Za-z_-]{11})`),
}

var trackingParams = map[string]struct{}{
	"si":      {},
	"feature": {},
	"list":    {},
	"index":   {},
	"igsh":    {},
	"fbclid":  {},
}

// Normalize parses a caller reference into a Source.
//
// s3://bucket/key and bare keys (no scheme, no leading slash or dot) are object
// sources. http(s) URLs and ext:// references are external. Absolute or
// relative filesystem paths that begin with "/" or "." are file sources.
func Normalize(ref string) (Source, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Source{}, services.Wrap(services.ErrValidation, "source", "normalize", "empty source reference", nil)
	}

	if strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "./") || strings.HasPrefix(ref, "../") || strings.HasPrefix(ref, "~") {
		abs, err := filepath.Abs(expandHome(ref))
		if err != nil {
			return Source{}, services.Wrap(services.ErrValidation, "source", "normalize", "resolve path", err)
		}
		return Source{Identity: "file://" + abs, Kind: KindFile, Locator: abs, Original: ref}, nil
	}

	if !strings.Contains(ref, "://") {
		key := strings.TrimLeft(ref, "/")
		return Source{Identity: "object://" + key, Kind: KindObject, Locator: key, Original: ref}, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return Source{}, services.Wrap(services.ErrValidation, "source", "normalize", fmt.Sprintf("parse %q", ref), err)
	}
	switch strings.ToLower(u.Scheme) {
	case "s3":
		key := strings.TrimLeft(u.Path, "/")
		if u.Host == "" || key == "" {
			return Source{}, services.Wrap(services.ErrValidation, "source", "normalize", "s3 reference needs bucket and key", nil)
		}
		return Source{Identity: "s3://" + u.Host + "/" + key, Kind: KindObject, Locator: key, Bucket: u.Host, Original: ref}, nil
	case ExternalScheme:
		opaque := strings.TrimPrefix(ref[len(u.Scheme):], "://")
		opaque = strings.Trim(opaque, "/")
		if opaque == "" {
			return Source{}, services.Wrap(services.ErrValidation, "source", "normalize", "empty ext reference", nil)
		}
		canonical := ExternalScheme + "://" + opaque
		return Source{Identity: canonical, Kind: KindExternal, Locator: canonical, Original: ref}, nil
	case "http", "https":
		canonical, err := CanonicalURL(ref)
		if err != nil {
			return Source{}, err
		}
		return Source{Identity: canonical, Kind: KindExternal, Locator: canonical, Original: ref}, nil
	case "file":
		return Normalize(u.Path)
	default:
		return Source{}, services.Wrap(services.ErrValidation, "source", "normalize", fmt.Sprintf("unsupported scheme %q", u.Scheme), nil)
	}
}

// CanonicalURL reduces YouTube links to watch or shorts URLs keyed by video id.
// Other URLs lose tracking parameters and fragments and get a lowercase host.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "source", "canonicalize", "parse url", err)
	}
	if u.Host == "" {
		return "", services.Wrap(services.ErrValidation, "source", "canonicalize", "url has no host", errors.New(raw))
	}
	host := strings.ToLower(u.Hostname())
	if isYouTubeHost(host) {
		if id, shorts, ok := youtubeVideoID(raw); ok {
			if shorts {
				return "https://www.youtube.com/shorts/" + id, nil
			}
			return "https://www.youtube.com/watch?v=" + id, nil
		}
	}

	query := u.Query()
	for key := range query {
		lower := strings.ToLower(key)
		if _, drop := trackingParams[lower]; drop || strings.HasPrefix(lower, "utm_") {
			query.Del(key)
		}
	}
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		for _, v := range query[key] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = b.String()
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path != "/" {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}
	return u.String(), nil
}

// IsInstagram reports whether host belongs to Instagram.
func IsInstagram(host string) bool {
	host = strings.ToLower(host)
	return host == "instagram.com" || strings.HasSuffix(host, ".instagram.com")
}

func isYouTubeHost(host string) bool {
	switch host {
	case "youtu.be", "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com", "www.youtube-nocookie.com":
		return true
	}
	return false
}

func youtubeVideoID(raw string) (string, bool, bool) {
	for _, pattern := range youtubeIDPatterns {
		if m := pattern.FindStringSubmatch(raw); len(m) == 2 {
			return m[1], strings.Contains(raw, "shorts/"), true
		}
	}
	return "", false, false
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
