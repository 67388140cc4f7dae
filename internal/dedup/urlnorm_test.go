package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercase and strip www",
			in:   "HTTPS://WWW.Example.com/Page",
			want: "https://example.com/page",
		},
		{
			name: "strip utm params and sort query",
			in:   "https://example.com/page/?utm_source=x&b=2&a=1",
			want: "https://example.com/page?a=1&b=2",
		},
		{
			name: "strip click ids",
			in:   "https://example.com/article?fbclid=abc123&gclid=def",
			want: "https://example.com/article",
		},
		{
			name: "strip analytics client ids",
			in:   "https://example.com/a?_ga=1.2&mc_cid=x&mc_eid=y&id=5",
			want: "https://example.com/a?id=5",
		},
		{
			name: "trailing slash removed",
			in:   "https://example.com/section/",
			want: "https://example.com/section",
		},
		{
			name: "root slash kept",
			in:   "https://example.com/",
			want: "https://example.com/",
		},
		{
			name: "no host returned lowercased",
			in:   "Not A URL",
			want: "not a url",
		},
		{
			name: "whitespace trimmed",
			in:   "  https://example.com/x  ",
			want: "https://example.com/x",
		},
		{
			name: "real params survive",
			in:   "https://www.dr.dk/nyheder/indland/artikel?page=2&utm_campaign=social",
			want: "https://dr.dk/nyheder/indland/artikel?page=2",
		},
		{
			name: "ref and source stripped",
			in:   "https://example.com/post?ref=newsletter&source=twitter",
			want: "https://example.com/post",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestNormalizeURL_Idempotent(t *testing.T) {
	inputs := []string{
		"HTTPS://WWW.Example.com/page/?utm_source=x&b=2&a=1",
		"https://example.com/",
		"not a url",
		"https://www.dr.dk/nyheder?gclid=x",
	}
	for _, in := range inputs {
		once := NormalizeURL(in)
		assert.Equal(t, once, NormalizeURL(once), "input %q", in)
	}
}

func TestNormalizeURL_SameTargetDifferentSources(t *testing.T) {
	a := NormalizeURL("https://www.dr.dk/nyheder/artikel?utm_source=reddit")
	b := NormalizeURL("HTTPS://dr.dk/nyheder/artikel/")
	assert.Equal(t, a, b)
}

func TestIsTrackingParam(t *testing.T) {
	assert.True(t, isTrackingParam("utm_source"))
	assert.True(t, isTrackingParam("utm_anything"))
	assert.True(t, isTrackingParam("fbclid"))
	assert.False(t, isTrackingParam("page"))
	assert.False(t, isTrackingParam("q"))
}
