package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"

	appLog "propsync/internal/log"
	"propsync/internal/model"
)

// FeedFetcher returns the raw iCal text behind a feed URL.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FixtureFetcher serves feed bodies from local files instead of the network.
// A URL resolves, in order, to an explicit mapping from files, to the path of
// a file:// URL under dir, or to <dir>/<hash-of-url>.ics.
type FixtureFetcher struct {
	dir   string
	files map[string]string
}

// NewFixtureFetcher creates a fetcher rooted at dir. Relative paths in files
// are resolved against dir.
func NewFixtureFetcher(dir string, files map[string]string) *FixtureFetcher {
	if dir == "" {
		dir = "./var/feeds"
	}
	m := make(map[string]string, len(files))
	for u, p := range files {
		m[u] = p
	}
	return &FixtureFetcher{dir: dir, files: m}
}

// Fetch reads the fixture for url. Every failure is a *model.CollaboratorError.
func (f *FixtureFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, &model.CollaboratorError{Op: "fetch feed", Err: errors.New("source URL is empty")}
	}
	op := "fetch " + appLog.RedactURL(url)
	if err := ctx.Err(); err != nil {
		return nil, &model.CollaboratorError{Op: op, Err: err}
	}

	path, err := f.PathForURL(url)
	if err != nil {
		appLog.Error("ics fetch refused", err, "url", appLog.RedactURL(url))
		return nil, &model.CollaboratorError{Op: op, Err: err}
	}
	body, err := os.ReadFile(path)
	if err != nil {
		appLog.Error("ics fetch failed", err, "url", appLog.RedactURL(url))
		return nil, &model.CollaboratorError{Op: op, Err: err}
	}
	if len(body) == 0 {
		return nil, &model.CollaboratorError{Op: op, Err: errors.New("empty ICS body")}
	}

	appLog.Info("ics fetch success", "url", appLog.RedactURL(url), "bytes", len(body))
	return body, nil
}

// PathForURL reports the fixture file that backs url. A file:// URL that is
// not explicitly mapped must point inside the fixture directory.
func (f *FixtureFetcher) PathForURL(url string) (string, error) {
	if p, ok := f.files[url]; ok {
		if filepath.IsAbs(p) {
			return p, nil
		}
		return filepath.Join(f.dir, p), nil
	}
	if rest, ok := strings.CutPrefix(url, "file://"); ok {
		return f.underDir(filepath.FromSlash(rest))
	}
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:8])+".ics"), nil
}

func (f *FixtureFetcher) underDir(path string) (string, error) {
	root, err := filepath.Abs(f.dir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("path outside fixture directory")
	}
	return abs, nil
}
