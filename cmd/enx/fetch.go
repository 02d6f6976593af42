package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/japaniel/enx/pkg/ingest"
)

// maxBodySize bounds HTML read from untrusted URLs.
const maxBodySize = 10 * 1024 * 1024

// fetchPage downloads a page the way a browser would ask for it.
func fetchPage(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// Some sites answer 403 to anything that does not look like a browser.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	if resp.ContentLength > maxBodySize {
		return nil, fmt.Errorf("content-length %d exceeds limit of %d bytes", resp.ContentLength, maxBodySize)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("response body exceeded maximum size limit of %d bytes", maxBodySize)
	}
	return body, nil
}

// readInput returns the markup of a file, stdin ("-") or URL, along with the
// page identity used for the word cache.
func readInput(ctx context.Context, stdin io.Reader, path, rawURL string) ([]byte, *url.URL, error) {
	switch {
	case rawURL != "":
		u, err := url.Parse(rawURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, nil, fmt.Errorf("--url must be an absolute http(s) URL (got %q)", rawURL)
		}
		body, err := fetchPage(ctx, rawURL)
		return body, u, err
	case path == "" || path == "-":
		body, err := io.ReadAll(io.LimitReader(stdin, maxBodySize))
		return body, nil, err
	default:
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, nil, err
		}
		return body, &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}, nil
	}
}

// pageInfo extracts title, byline and site name. Extraction failures only
// cost the metadata.
func (a *app) pageInfo(body []byte, u *url.URL) ingest.Page {
	if u == nil {
		return ingest.Page{}
	}
	page := ingest.Page{URL: u.String()}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		a.log.Warn("failed to extract article metadata", "url", page.URL, "error", err)
		return page
	}
	page.Title = strings.TrimSpace(article.Title)
	page.Byline = strings.TrimSpace(article.Byline)
	page.SiteName = strings.TrimSpace(article.SiteName)
	return page
}

// writeOutput writes to path, or stdout when path is empty or "-".
func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(stdout)
	}
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
