package adapter

import "context"

// Page is the rendered result of fetching a URL.
type Page struct {
	URL   string
	Title string
	Text  string // extracted plain text
}

// CrawlerAdapter fetches a URL's rendered content through a headless
// browser service. Implementations carry their own request timeout.
type CrawlerAdapter interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}
