// Package platform maps URLs to known social-video platforms. Matching is a
// pure table lookup: a URL belongs to a platform only if it contains one of
// the platform's domain substrings and matches one of its URL patterns.
package platform

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/mlevkov/clipdock/internal/domain"
)

// Descriptor is the static rule set for one platform. Loaded once at process
// start, never mutated.
type Descriptor struct {
	Name                     string
	Domains                  []string
	Patterns                 []*regexp.Regexp
	MaxQuality               domain.Quality
	SupportsWatermarkRemoval bool
	SupportsAudioDownload    bool
}

var descriptors = []Descriptor{
	{
		Name:    "TikTok",
		Domains: []string{"tiktok.com", "vm.tiktok.com"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)tiktok\.com/@[\w.-]+/video/\d+`),
			regexp.MustCompile(`(?i)tiktok\.com/t/[\w-]+`),
			regexp.MustCompile(`(?i)vm\.tiktok\.com/[\w-]+`),
		},
		MaxQuality:               domain.Quality1080p,
		SupportsWatermarkRemoval: true,
		SupportsAudioDownload:    true,
	},
	{
		Name:    "YouTube",
		Domains: []string{"youtube.com", "youtu.be"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)youtube\.com/watch\?.*v=[\w-]+`),
			regexp.MustCompile(`(?i)youtube\.com/shorts/[\w-]+`),
			regexp.MustCompile(`(?i)youtu\.be/[\w-]+`),
		},
		MaxQuality:            domain.Quality4K,
		SupportsAudioDownload: true,
	},
	{
		Name:    "Instagram",
		Domains: []string{"instagram.com"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)instagram\.com/(p|reel|reels|tv)/[\w-]+`),
		},
		MaxQuality:            domain.Quality1080p,
		SupportsAudioDownload: true,
	},
	{
		Name:    "Twitter",
		Domains: []string{"twitter.com", "x.com"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(twitter|x)\.com/\w+/status/\d+`),
		},
		MaxQuality:            domain.Quality1080p,
		SupportsAudioDownload: true,
	},
	{
		Name:    "Facebook",
		Domains: []string{"facebook.com", "fb.watch"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)facebook\.com/[\w.-]+/videos/\d+`),
			regexp.MustCompile(`(?i)facebook\.com/watch/?\?v=\d+`),
			regexp.MustCompile(`(?i)fb\.watch/[\w-]+`),
		},
		MaxQuality: domain.Quality720p,
	},
}

// Detect returns the descriptor for the platform the URL belongs to, or nil
// when no platform claims it. Safe for concurrent use.
func Detect(rawURL string) *Descriptor {
	lower := strings.ToLower(rawURL)
	for i := range descriptors {
		d := &descriptors[i]
		if !containsAnyDomain(lower, d.Domains) {
			continue
		}
		for _, p := range d.Patterns {
			if p.MatchString(rawURL) {
				return d
			}
		}
	}
	return nil
}

// Validate reports whether the URL is well-formed and belongs to a known
// platform. A missing scheme defaults to https.
func Validate(rawURL string) bool {
	u, err := url.Parse(Normalize(rawURL))
	if err != nil || u.Host == "" {
		return false
	}
	return Detect(rawURL) != nil
}

// Normalize prepends https:// when the URL has no scheme.
func Normalize(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		return "https://" + rawURL
	}
	return rawURL
}

// Descriptors returns the full platform table for informational endpoints.
func Descriptors() []Descriptor {
	return descriptors
}

func containsAnyDomain(lowerURL string, domains []string) bool {
	for _, d := range domains {
		if strings.Contains(lowerURL, d) {
			return true
		}
	}
	return false
}
