package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_CanonicalURLs(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.tiktok.com/@user/video/123456", "TikTok"},
		{"https://vm.tiktok.com/ZMabcdef/", "TikTok"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "YouTube"},
		{"https://youtu.be/dQw4w9WgXcQ", "YouTube"},
		{"https://www.youtube.com/shorts/Abc123-_x", "YouTube"},
		{"https://www.instagram.com/reel/Cabc123/", "Instagram"},
		{"https://www.instagram.com/p/Cabc123/", "Instagram"},
		{"https://twitter.com/user/status/1234567890", "Twitter"},
		{"https://x.com/user/status/1234567890", "Twitter"},
		{"https://www.facebook.com/somepage/videos/123456789", "Facebook"},
		{"https://fb.watch/abc123/", "Facebook"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			d := Detect(tt.url)
			require.NotNil(t, d, "expected %s to be detected", tt.url)
			assert.Equal(t, tt.want, d.Name)
			assert.True(t, Validate(tt.url))
		})
	}
}

func TestDetect_DomainWithoutPattern_IsUnknown(t *testing.T) {
	// Contains a registered domain substring but matches no pattern.
	urls := []string{
		"https://www.tiktok.com/foo",
		"https://www.youtube.com/feed/subscriptions",
		"https://www.instagram.com/someuser/",
		"https://twitter.com/home",
		"https://www.facebook.com/somepage",
	}

	for _, u := range urls {
		assert.Nil(t, Detect(u), u)
		assert.False(t, Validate(u), u)
	}
}

func TestDetect_UnknownDomain(t *testing.T) {
	assert.Nil(t, Detect("https://vimeo.com/12345"))
	assert.Nil(t, Detect("not a url at all"))
}

func TestValidate_SchemeDefaultsToHTTPS(t *testing.T) {
	assert.True(t, Validate("www.tiktok.com/@user/video/123456"))
	assert.Equal(t, "https://www.tiktok.com/x", Normalize("www.tiktok.com/x"))
	assert.Equal(t, "http://a.example/x", Normalize("http://a.example/x"))
}

func TestValidate_Malformed(t *testing.T) {
	assert.False(t, Validate(""))
	assert.False(t, Validate("https://"))
	assert.False(t, Validate("://tiktok.com/@u/video/1"))
}

func TestDescriptors_Capabilities(t *testing.T) {
	byName := map[string]Descriptor{}
	for _, d := range Descriptors() {
		byName[d.Name] = d
	}

	require.Contains(t, byName, "TikTok")
	assert.True(t, byName["TikTok"].SupportsWatermarkRemoval)
	assert.False(t, byName["YouTube"].SupportsWatermarkRemoval)
	assert.Len(t, byName, 5)
}
