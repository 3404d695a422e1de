package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const (
	DefaultTimeout = 15 * time.Second
	maxPageBytes   = 5 << 20
	userAgent      = "adaptive-reader/1.0 (+text import)"
)

var ErrNoText = errors.New("no readable text found")

// Article is the readable part of a web page.
type Article struct {
	Title string
	Text  string
}

// Fetcher downloads a page and extracts its main text.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Article, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", parsed.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", parsed.Host, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return FromHTML(data, parsed)
}

// FromHTML runs readability first and falls back to paragraph text.
func FromHTML(data []byte, pageURL *url.URL) (*Article, error) {
	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err == nil {
		if text := normalize(article.TextContent); text != "" {
			return &Article{Title: strings.TrimSpace(article.Title), Text: text}, nil
		}
	} else {
		log.Printf("WARN: [extract] readability failed for %s: %v", pageURL.Host, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("header, nav, footer, aside, script, style, noscript, form").Remove()

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return nil, ErrNoText
	}
	return &Article{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Text:  strings.Join(paragraphs, "\n\n"),
	}, nil
}

// normalize collapses runs of spaces inside lines and keeps paragraph
// breaks as a single blank line.
func normalize(s string) string {
	var paragraphs []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
