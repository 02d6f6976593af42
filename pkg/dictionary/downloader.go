package dictionary

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// EnsureWordList makes sure a word list exists at path. When it does not and
// url is set, the list is downloaded; gzip payloads are decompressed.
func EnsureWordList(ctx context.Context, path, url string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if url == "" {
		return fmt.Errorf("word list %s not found and no download URL configured", path)
	}

	slog.Info("word list not found, downloading", "path", path, "url", url)
	return download(ctx, url, path)
}

func download(ctx context.Context, url, destPath string) error {
	client := &http.Client{Timeout: 60 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "enx-cli")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	// Sniff the gzip magic instead of trusting the URL suffix.
	br := bufio.NewReader(resp.Body)
	var src io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		src = gz
	}

	// Write next to the destination and rename so a failed download never
	// leaves a truncated list behind.
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".wordlist-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	entries, err := Decode(io.TeeReader(src, tmp))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("downloaded word list is invalid: %w", err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return fmt.Errorf("failed to move word list into place: %w", err)
	}
	slog.Info("word list downloaded", "path", destPath, "entries", len(entries))
	return nil
}
