// Package fetcher retrieves article pages and strips them to title plus
// plain text, using the html tokenizer rather than regexes so nested and
// malformed markup does not leak tags into the script.
package fetcher

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/fairyhunter13/ghostradio/internal/domain"
	"github.com/fairyhunter13/ghostradio/pkg/textx"
)

const (
	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	maxBodyBytes    = 8 << 20
	maxContentRunes = 50000
	minParagraph    = 20
)

// skipped elements never contribute text.
var skipElements = map[string]bool{
	"script": true, "style": true, "nav": true,
	"footer": true, "aside": true, "header": true,
	"noscript": true, "iframe": true, "svg": true,
}

// Client implements domain.Fetcher over plain HTTP.
type Client struct {
	http *http.Client
}

// New returns a fetcher with the given request timeout.
func New(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Fetch downloads the page and extracts title and readable content.
func (c *Client) Fetch(ctx domain.Context, rawURL string) (domain.FetchResult, error) {
	if err := ValidateURL(rawURL); err != nil {
		return domain.FetchResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("op=fetcher.Fetch url=%s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("op=fetcher.Fetch url=%s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.FetchResult{}, fmt.Errorf("op=fetcher.Fetch url=%s: status %d: %w", rawURL, resp.StatusCode, domain.ErrUpstreamTimeout)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("op=fetcher.Fetch url=%s: read body: %w", rawURL, err)
	}

	title, content := Extract(string(body))
	if content == "" {
		return domain.FetchResult{}, fmt.Errorf("op=fetcher.Fetch url=%s: could not extract content: %w", rawURL, domain.ErrInvalidArgument)
	}
	return domain.FetchResult{Title: title, Content: content, URL: rawURL}, nil
}

// ValidateURL accepts absolute http/https URLs only.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("op=fetcher.ValidateURL url=%q: %w", rawURL, domain.ErrInvalidArgument)
	}
	return nil
}

// Extract parses the document and returns its title and readable body
// text. Paragraph text is preferred; when the page carries fewer than
// three usable paragraphs the whole text content is split on sentence
// boundaries instead.
func Extract(page string) (title, content string) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", ""
	}

	var titleText, h1Text string
	var paragraphs []string
	var allText strings.Builder

	// prefer article, then main, then body as the content root
	root := findFirst(doc, "article")
	if root == nil {
		root = findFirst(doc, "main")
	}
	if root == nil {
		root = findFirst(doc, "body")
	}
	if root == nil {
		root = doc
	}

	var walk func(n *html.Node, inSkip bool)
	walk = func(n *html.Node, inSkip bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if titleText == "" {
					titleText = collapseSpace(textOf(n))
				}
			case "h1":
				if h1Text == "" {
					h1Text = collapseSpace(textOf(n))
				}
			case "p":
				if !inSkip {
					if t := collapseSpace(textOf(n)); len([]rune(t)) > minParagraph {
						paragraphs = append(paragraphs, t)
					}
				}
			}
			if skipElements[n.Data] {
				inSkip = true
			}
		}
		if n.Type == html.TextNode && !inSkip {
			allText.WriteString(n.Data)
			allText.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inSkip)
		}
	}
	// title and h1 can live outside the content root
	walk(doc, false)

	if len(paragraphs) >= 3 {
		content = strings.Join(paragraphs, "\n\n")
	} else {
		var parts []string
		seen := map[string]bool{}
		for _, s := range splitOnSentences(collapseSpace(allText.String())) {
			s = strings.TrimSpace(s)
			if len([]rune(s)) > minParagraph && !seen[s] {
				parts = append(parts, s)
				seen[s] = true
			}
		}
		content = strings.Join(parts, "\n\n")
	}
	content = textx.SanitizeText(content)
	content = textx.Truncate(content, maxContentRunes)

	title = titleText
	if title == "" {
		title = h1Text
	}
	if title == "" {
		title = "Untitled"
	}
	return title, content
}

func findFirst(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, name); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func splitOnSentences(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case '。', '！', '？', '.', '!', '?':
			return true
		}
		return false
	})
}
