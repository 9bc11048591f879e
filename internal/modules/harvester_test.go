package modules

import (
	"context"
	"testing"

	"autoprobe/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linkPage = `<html><head><base href="https://site.test/docs/"></head><body>
<a href="/about">About</a>
<a href="guide.html">Guide</a>
<a href="https://other.test/x">Elsewhere</a>
<a href="/about">About again</a>
<a>No destination</a>
<a href="//cdn.test/lib.js">CDN</a>
</body></html>`

func TestExtractLinks(t *testing.T) {
	links, err := ExtractLinks(linkPage, "https://site.test/index.html", "https://site.test/docs/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://site.test/about",
		"https://site.test/docs/guide.html",
		"https://other.test/x",
		"https://site.test/about",
		"https://cdn.test/lib.js",
	}, links)
}

func TestExtractLinksWithoutAnchors(t *testing.T) {
	links, err := ExtractLinks("<html><body><p>empty</p></body></html>", "https://site.test/", "https://site.test/")
	require.NoError(t, err)
	assert.NotNil(t, links)
	assert.Empty(t, links)
}

func TestPartitionLinks(t *testing.T) {
	inbound, outbound := PartitionLinks([]string{
		"https://site.test/a",
		"https://other.test/",
		"/relative",
		"https://site.test/a",
		"mailto:team@site.test",
		"https://site.test.evil.test/x",
		"https://site.test?tab=1",
		"https://site.test#top",
		"https://site.test",
		"https://site.test:8443/admin",
	}, "https://site.test")

	assert.Equal(t, []string{
		"https://site.test/a",
		"/relative",
		"https://site.test/a",
		"https://site.test?tab=1",
		"https://site.test#top",
		"https://site.test",
	}, inbound)
	assert.Equal(t, []string{
		"https://other.test/",
		"mailto:team@site.test",
		"https://site.test.evil.test/x",
		"https://site.test:8443/admin",
	}, outbound)

	inbound, outbound = PartitionLinks(nil, "https://site.test")
	assert.NotNil(t, inbound)
	assert.NotNil(t, outbound)
	assert.Empty(t, inbound)
	assert.Empty(t, outbound)
}

func TestURLHarvesterModuleRun(t *testing.T) {
	s := testutil.NewSession("https://site.test/index.html")
	s.Document = linkPage
	s.SetEvaluation(`document.baseURI`, "https://site.test/docs/")

	m := NewURLHarvesterModule(Options{})
	m.Run(context.Background(), s)

	r := m.Result()
	assert.Equal(t, URLHarvesterName, r.Name)
	assert.False(t, r.Positive)
	require.IsType(t, HarvestedLinks{}, r.Result)
	links := r.Result.(HarvestedLinks)
	assert.Equal(t, []string{
		"https://site.test/about",
		"https://site.test/docs/guide.html",
		"https://site.test/about",
	}, links.Inbound)
	assert.Equal(t, []string{"https://other.test/x", "https://cdn.test/lib.js"}, links.Outbound)
}

func TestURLHarvesterModuleFallsBackToPageURL(t *testing.T) {
	s := testutil.NewSession("https://site.test/blog/post.html")
	s.Document = `<a href="next.html">next</a>`

	m := NewURLHarvesterModule(Options{})
	m.Run(context.Background(), s)

	links := m.Result().Result.(HarvestedLinks)
	assert.Equal(t, []string{"https://site.test/blog/next.html"}, links.Inbound)
	assert.Empty(t, links.Outbound)
}
