package replay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL_StripsCacheBusters(t *testing.T) {
	got := NormalizeURL("https://api.example.com/v1/items?_=1712345&id=7&cb=99")
	require.Equal(t, "https://api.example.com/v1/items?id=7", got)
}

func TestNormalizeURL_StripsTrackingParams(t *testing.T) {
	got := NormalizeURL("https://shop.example.com/p?utm_source=mail&utm_campaign=x&gclid=abc&sku=42")
	require.Equal(t, "https://shop.example.com/p?sku=42", got)
}

func TestNormalizeURL_SortsQueryKeys(t *testing.T) {
	a := NormalizeURL("https://example.com/s?b=2&a=1")
	b := NormalizeURL("https://example.com/s?a=1&b=2")
	require.Equal(t, a, b)
}

func TestNormalizeURL_DropsFragment(t *testing.T) {
	got := NormalizeURL("https://example.com/page?x=1#section-3")
	require.Equal(t, "https://example.com/page?x=1", got)
}

func TestMatchKey_BodyDistinguishesWrites(t *testing.T) {
	a := MatchKey("POST", "https://example.com/api", []byte(`{"q":"one"}`))
	b := MatchKey("POST", "https://example.com/api", []byte(`{"q":"two"}`))
	require.NotEqual(t, a, b)
}

func TestMatchKey_BodyIgnoredForGET(t *testing.T) {
	a := MatchKey("GET", "https://example.com/api", []byte("x"))
	b := MatchKey("GET", "https://example.com/api", nil)
	require.Equal(t, a, b)
}

func TestMatchKey_CacheBustedURLsCollide(t *testing.T) {
	a := MatchKey("GET", "https://example.com/poll?_=111", nil)
	b := MatchKey("GET", "https://example.com/poll?_=222", nil)
	require.Equal(t, a, b, "cache-busted polls must match the same archived exchange")
}
