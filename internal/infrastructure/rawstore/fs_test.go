package rawstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegisterSync/internal/domain"
)

func snapshot(date string, records ...string) domain.Snapshot {
	results := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		results = append(results, json.RawMessage(r))
	}
	return domain.Snapshot{Date: date, Count: len(results), Results: results}
}

func TestFSSaveWritesIndentedArtifact(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "raw")
	store, err := NewFS(dir)
	require.NoError(t, err)

	snap := snapshot("2024-03-05", `{"document_number":"a","excerpts":"<span class=\"match\">x</span> & y"}`)
	require.NoError(t, store.Save(context.Background(), snap))

	raw, err := os.ReadFile(filepath.Join(dir, "2024-03-05.json"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "{\n  \"date\": \"2024-03-05\",\n  \"count\": 1,"), string(raw))
	assert.Contains(t, string(raw), `<span class=\"match\">x</span> & y`)

	var decoded struct {
		Date    string           `json:"date"`
		Count   int              `json:"count"`
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "2024-03-05", decoded.Date)
	assert.Equal(t, 1, decoded.Count)
	require.Len(t, decoded.Results, 1)
	assert.Equal(t, "a", decoded.Results[0]["document_number"])
}

func TestFSSaveOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewFS(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, snapshot("2024-03-05", `{"document_number":"a"}`, `{"document_number":"b"}`)))
	require.NoError(t, store.Save(ctx, snapshot("2024-03-05", `{"document_number":"c"}`)))

	raw, err := store.Load(ctx, "2024-03-05.json")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"count": 1`)
	assert.NotContains(t, string(raw), `"a"`)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-05.json"}, names, "no temp files left behind")
}

func TestFSListSortedAndFiltered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFS(dir)
	require.NoError(t, err)

	for _, d := range []string{"2024-03-07", "2024-03-05", "2024-03-06"} {
		require.NoError(t, store.Save(ctx, snapshot(d, `{}`)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".2024-03-08.json.123"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0o755))

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-05.json", "2024-03-06.json", "2024-03-07.json"}, names)
}

func TestFSRejectsBadNames(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewFS(t.TempDir())
	require.NoError(t, err)

	require.ErrorIs(t, store.Save(ctx, snapshot("../etc", `{}`)), ErrInvalidName)

	_, err = store.Load(ctx, "../secret.json")
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestEncodeEmptyResults(t *testing.T) {
	t.Parallel()

	raw, err := Encode(domain.Snapshot{Date: "2024-03-05"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"results": []`)
	assert.NotContains(t, string(raw), "Status")
}

func TestMinioObjectKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "snapshots/2024-03-05.json", (&Minio{prefix: "snapshots"}).objectKey("2024-03-05.json"))
	assert.Equal(t, "2024-03-05.json", (&Minio{}).objectKey("2024-03-05.json"))
}
