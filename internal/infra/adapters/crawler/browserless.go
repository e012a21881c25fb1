package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"dossier/internal/config"
	"dossier/internal/domain"
	"dossier/internal/domain/ports/adapter"
)

var _ adapter.CrawlerAdapter = (*BrowserlessCrawler)(nil)

// BrowserlessCrawler fetches a URL's rendered DOM through a
// browserless/chrome-compatible service (POST /content) and extracts
// plain text from the returned HTML.
type BrowserlessCrawler struct {
	base   string
	token  string
	client *http.Client
}

func NewBrowserlessCrawler(cfg config.CrawlerConfig) *BrowserlessCrawler {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserlessCrawler{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		token:  cfg.Token,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *BrowserlessCrawler) Fetch(ctx context.Context, pageURL string) (*adapter.Page, error) {
	body, _ := json.Marshal(map[string]any{
		"url":    pageURL,
		"gotoOptions": map[string]any{"waitUntil": "networkidle2"},
	})
	endpoint := c.base + "/content"
	if c.token != "" {
		endpoint += "?token=" + c.token
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: render service http %d", domain.ErrFetchFailed, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrFetchFailed, err)
	}

	title, text := extractText(string(raw))
	return &adapter.Page{URL: pageURL, Title: title, Text: text}, nil
}

// extractText walks the HTML tree collecting visible text, skipping
// script/style/noscript subtrees. Block elements become line breaks.
func extractText(rawHTML string) (title, text string) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		// Not parseable as HTML: treat the payload as already-plain text.
		return "", strings.TrimSpace(rawHTML)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			case "title":
				if n.FirstChild != nil && title == "" {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "section", "article":
				sb.WriteString("\n")
			}
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteString(" ")
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	// collapse runs of blank lines
	lines := strings.Split(sb.String(), "\n")
	var out []string
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return title, strings.Join(out, "\n")
}
