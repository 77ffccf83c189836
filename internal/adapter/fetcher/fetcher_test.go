package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ghostradio/internal/domain"
)

const samplePage = `<!DOCTYPE html>
<html><head><title>Go Memory Model</title>
<style>body { color: red }</style>
<script>trackEverything();</script></head>
<body>
<nav><p>Home | About | This navigation text is long enough to match</p></nav>
<article>
<h1>The Go Memory Model</h1>
<p>The Go memory model specifies the conditions under which reads of a variable in one goroutine can be guaranteed to observe values produced by writes in another goroutine.</p>
<p>Programs that modify data being simultaneously accessed by multiple goroutines must serialize such access with channel operations or other synchronization primitives.</p>
<p>If you must read the rest of this document to understand the behavior of your program, you are being too clever. Do not be clever.</p>
</article>
<footer><p>Copyright footer text that is definitely long enough to count</p></footer>
</body></html>`

func TestFetchExtractsArticle(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	c := New(5 * time.Second)
	got, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Go Memory Model", got.Title)
	assert.Contains(t, got.Content, "memory model specifies")
	assert.Contains(t, got.Content, "Do not be clever")
	// boilerplate regions are stripped
	assert.NotContains(t, got.Content, "navigation text")
	assert.NotContains(t, got.Content, "Copyright footer")
	assert.NotContains(t, got.Content, "trackEverything")
}

func TestFetchRejectsErrorStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(5 * time.Second)
	_, err := c.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestValidateURL(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateURL("https://example.com/a"))
	assert.NoError(t, ValidateURL("http://example.com"))
	assert.ErrorIs(t, ValidateURL("ftp://example.com"), domain.ErrInvalidArgument)
	assert.ErrorIs(t, ValidateURL("not a url"), domain.ErrInvalidArgument)
	assert.ErrorIs(t, ValidateURL("/relative/path"), domain.ErrInvalidArgument)
}

func TestExtractFallsBackToTextContent(t *testing.T) {
	t.Parallel()
	page := `<html><head><title>Sparse</title></head><body>
<div>This sentence is certainly longer than twenty characters. And here is another sentence that clears the bar too.</div>
</body></html>`
	title, content := Extract(page)
	assert.Equal(t, "Sparse", title)
	assert.Contains(t, content, "longer than twenty characters")
}

func TestExtractTitleFallsBackToH1(t *testing.T) {
	t.Parallel()
	page := `<html><body><h1>Heading Only</h1>
<p>` + strings.Repeat("content ", 10) + `</p>
<p>` + strings.Repeat("content ", 10) + `</p>
<p>` + strings.Repeat("content ", 10) + `</p>
</body></html>`
	title, _ := Extract(page)
	assert.Equal(t, "Heading Only", title)
}
