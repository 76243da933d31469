package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document is one candidate for import.
type Document struct {
	Name string
	Raw  []byte
}

// ListDir returns the paths of *.xml files directly inside dir, in name order.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read import dir: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".xml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadFile loads one document from disk.
func ReadFile(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Document{Name: filepath.Base(path), Raw: raw}, nil
}

// Fetch downloads one document. The body is returned as sent.
func Fetch(ctx context.Context, client *http.Client, url string, maxBytes int64) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Document{}, err
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Document{}, fmt.Errorf("unexpected status %s from %s", resp.Status, url)
	}

	body := io.Reader(resp.Body)
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", url, err)
	}
	if maxBytes > 0 && int64(len(raw)) > maxBytes {
		return Document{}, fmt.Errorf("document at %s exceeds %d bytes", url, maxBytes)
	}
	return Document{Name: url, Raw: raw}, nil
}
