package ics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propsync/internal/model"
)

func TestFixtureFetcher_ExplicitMapping(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "airbnb.ics"), []byte("BEGIN:VCALENDAR"), 0o600))

	f := NewFixtureFetcher(dir, map[string]string{
		"https://calendar.airbnb.com/calendar/ical/12345.ics": "airbnb.ics",
	})

	body, err := f.Fetch(context.Background(), "https://calendar.airbnb.com/calendar/ical/12345.ics")
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR", string(body))
}

func TestFixtureFetcher_FetchByHash(t *testing.T) {
	f := NewFixtureFetcher(t.TempDir(), nil)
	url := "https://www.vrbo.com/calendar/ical/67890.ics"

	path, err := f.PathForURL(url)
	require.NoError(t, err)
	assert.Equal(t, ".ics", filepath.Ext(path))
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))

	body, err := f.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestFixtureFetcher_FileURLInsideDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "feed.ics")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	body, err := NewFixtureFetcher(dir, nil).Fetch(context.Background(), "file://"+filepath.ToSlash(path))
	require.NoError(t, err)
	assert.Equal(t, "x", string(body))
}

func TestFixtureFetcher_FileURLOutsideDirIsRefused(t *testing.T) {
	dir := t.TempDir()
	f := NewFixtureFetcher(filepath.Join(dir, "feeds"), nil)

	outside := filepath.Join(dir, "secret.ics")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))

	for _, url := range []string{
		"file:///etc/passwd",
		"file://" + filepath.ToSlash(outside),
		"file://" + filepath.ToSlash(filepath.Join(dir, "feeds")) + "/../secret.ics",
	} {
		body, err := f.Fetch(context.Background(), url)
		var ce *model.CollaboratorError
		require.True(t, errors.As(err, &ce), url)
		assert.Contains(t, err.Error(), "outside fixture directory", url)
		assert.Nil(t, body)
	}
}

func TestFixtureFetcher_MappedFileURLOutsideDir(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(dir, "shared.ics")
	require.NoError(t, os.WriteFile(outside, []byte("mapped"), 0o600))

	url := "file://" + filepath.ToSlash(outside)
	f := NewFixtureFetcher(filepath.Join(dir, "feeds"), map[string]string{url: outside})

	body, err := f.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, "mapped", string(body))
}

func TestFixtureFetcher_Errors(t *testing.T) {
	f := NewFixtureFetcher(t.TempDir(), nil)

	_, err := f.Fetch(context.Background(), "https://missing.example/feed.ics")
	var ce *model.CollaboratorError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Op, "missing.example")
	assert.NotContains(t, ce.Op, "feed.ics")

	_, err = f.Fetch(context.Background(), "")
	assert.True(t, errors.As(err, &ce))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Fetch(ctx, "https://x.example/a.ics")
	assert.ErrorIs(t, err, context.Canceled)
}
