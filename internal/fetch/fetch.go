// Package fetch downloads a web page and extracts its readable text.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/gtalwar12/second-brain-poc/internal/errs"
)

type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

func New(timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}, maxBytes: maxBytes}
}

// Text fetches rawURL and returns its visible text, one chunk per line.
func (f *Fetcher) Text(ctx context.Context, rawURL string) (string, error) {
	const op = "fetch.Text"
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errs.New(errs.KindInvalidInput, op, "not an http(s) URL: %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidInput, op, err, "bad request")
	}
	req.Header.Set("User-Agent", "second-brain/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", errs.Wrap(errs.KindExternalEffectFailure, op, err, "failed to fetch %s", u)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errs.New(errs.KindExternalEffectFailure, op, "fetching %s returned status %d", u, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", errs.Wrap(errs.KindExternalEffectFailure, op, err, "failed to parse %s", u)
	}
	text := Extract(doc)
	if text == "" {
		return "", errs.New(errs.KindInvalidInput, op, "no readable text at %s", u)
	}
	return text, nil
}

var skipped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Nav: true, atom.Footer: true,
	atom.Header: true, atom.Noscript: true, atom.Template: true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Ul: true, atom.Ol: true, atom.Table: true,
	atom.Title: true,
}

// Extract returns the text of doc without script, style and page chrome.
// Lines are trimmed, split on double spaces and blank chunks dropped.
func Extract(doc *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipped[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blocks[n.DataAtom] {
			b.WriteByte('\n')
		}
	}
	walk(doc)

	var chunks []string
	for _, line := range strings.Split(b.String(), "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if p := strings.TrimSpace(phrase); p != "" {
				chunks = append(chunks, p)
			}
		}
	}
	return strings.Join(chunks, "\n")
}

// ExtractString parses s as HTML and extracts its text.
func ExtractString(s string) (string, error) {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	return Extract(doc), nil
}
