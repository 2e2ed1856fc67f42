package platform

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

// rule lists the hostnames a platform is served from and the URL shapes
// that point at a single piece of media on it
type rule struct {
	platform models.Platform
	hosts    []string
	patterns []*regexp.Regexp
}

var rules = []rule{
	{
		platform: models.PlatformYouTube,
		hosts:    []string{"www.youtube.com", "youtube.com", "youtu.be", "m.youtube.com"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(youtu\.be/|youtube\.com/(watch\?(.*&)?v=|(embed|v)/))([^?&"'>]+)`),
			regexp.MustCompile(`youtube\.com/shorts/([^?&"'>]+)`),
		},
	},
	{
		platform: models.PlatformInstagram,
		hosts:    []string{"www.instagram.com", "instagram.com"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`instagram\.com/(?:p|reel)/([^/?]+)`),
			regexp.MustCompile(`instagram\.com/stories/([^/?]+)/([^/?]+)`),
		},
	},
	{
		platform: models.PlatformFacebook,
		hosts:    []string{"www.facebook.com", "facebook.com", "fb.com", "fb.watch", "m.facebook.com"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`facebook\.com/[^/]+/videos/([^/?]+)`),
			regexp.MustCompile(`facebook\.com/watch/?\?v=([^&]+)`),
			regexp.MustCompile(`fb\.watch/([^/?]+)`),
		},
	},
	{
		platform: models.PlatformTwitter,
		hosts:    []string{"www.twitter.com", "twitter.com", "x.com", "www.x.com"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`twitter\.com/[^/]+/status/(\d+)`),
			regexp.MustCompile(`x\.com/[^/]+/status/(\d+)`),
		},
	},
	{
		platform: models.PlatformTikTok,
		hosts:    []string{"www.tiktok.com", "tiktok.com", "vm.tiktok.com"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`tiktok\.com/@([^/]+)/video/(\d+)`),
			regexp.MustCompile(`tiktok\.com/t/([^/?]+)`),
		},
	},
	{
		platform: models.PlatformReddit,
		hosts:    []string{"www.reddit.com", "reddit.com", "v.redd.it"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`reddit\.com/r/[^/]+/comments/([^/]+)`),
			regexp.MustCompile(`v\.redd\.it/([^/?]+)`),
		},
	},
}

// Validate reports whether rawURL points at media on a supported platform.
// The hostname must be on a platform's allow-list and the URL must match
// one of that platform's patterns.
func Validate(rawURL string) bool {
	rawURL = strings.TrimSpace(rawURL)
	host := hostname(rawURL)
	if host == "" {
		return false
	}

	for _, r := range rules {
		if !r.matchesHost(host) {
			continue
		}
		for _, p := range r.patterns {
			if p.MatchString(rawURL) {
				return true
			}
		}
	}

	return false
}

// Classify returns the platform for rawURL based on its hostname alone.
// It does not check the path, so callers must Validate before gating on it.
func Classify(rawURL string) models.Platform {
	host := hostname(rawURL)
	if host == "" {
		return models.PlatformUnknown
	}

	for _, r := range rules {
		if r.matchesHost(host) {
			return r.platform
		}
	}

	return models.PlatformUnknown
}

// SupportedNames lists the platforms for user facing messages
func SupportedNames() string {
	return "YouTube, Instagram, Facebook, Twitter, TikTok, Reddit"
}

func (r rule) matchesHost(host string) bool {
	for _, h := range r.hosts {
		if h == host {
			return true
		}
	}
	return false
}

func hostname(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
