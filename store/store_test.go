package store_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/datum-mcp-bridge/internal/utils"
	"github.com/jrsteele09/datum-mcp-bridge/store"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*store.FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "sessions.json")
	return store.NewFileStore(path, store.WithNowFunc(func() time.Time {
		return time.UnixMilli(1700000000000)
	})), path
}

func TestFileStore_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file is an empty document", func(t *testing.T) {
		fs, _ := newStore(t)
		doc, err := fs.Load(ctx)
		require.NoError(t, err)
		require.Empty(t, doc.Sessions)
		require.Empty(t, doc.CliTokens)
		require.NotNil(t, doc.Sessions)
		require.NotNil(t, doc.CliTokens)
	})

	t.Run("corrupt file is moved aside", func(t *testing.T) {
		fs, path := newStore(t)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

		doc, err := fs.Load(ctx)
		require.NoError(t, err)
		require.Empty(t, doc.Sessions)

		_, err = os.Stat(path)
		require.True(t, os.IsNotExist(err))

		preserved, err := os.ReadFile(path + ".corrupt-1700000000000")
		require.NoError(t, err)
		require.Equal(t, "{not json", string(preserved))
	})

	t.Run("null maps are normalized", func(t *testing.T) {
		fs, path := newStore(t)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
		require.NoError(t, os.WriteFile(path, []byte(`{"sessions":null}`), 0600))

		doc, err := fs.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, doc.Sessions)
		require.NotNil(t, doc.CliTokens)
	})
}

func TestFileStore_Save(t *testing.T) {
	ctx := context.Background()
	fs, path := newStore(t)

	doc := store.NewDocument()
	doc.Sessions["s1"] = store.SessionRecord{
		AccessToken:  utils.Ptr("a"),
		RefreshToken: utils.Ptr("r"),
		ExpiresAt:    utils.Ptr(int64(1700000030)),
		UpdatedAt:    1700000000000,
	}
	doc.CliTokens["t1"] = store.CliTokenRecord{SessionID: "s1", ExpiresAt: 1700000600000}
	require.NoError(t, fs.Save(ctx, doc))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var shape map[string]map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &shape))
	require.Equal(t, "a", shape["sessions"]["s1"]["accessToken"])
	require.Nil(t, shape["sessions"]["s1"]["idToken"])
	require.Contains(t, shape["sessions"]["s1"], "userId")
	require.Equal(t, "s1", shape["cliTokens"]["t1"]["sessionId"])

	loaded, err := fs.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, doc, loaded)
}

func TestFileStore_AccessTokenOmittedWhenAbsent(t *testing.T) {
	ctx := context.Background()
	fs, path := newStore(t)

	doc := store.NewDocument()
	doc.Sessions["s1"] = store.SessionRecord{UpdatedAt: 1}
	require.NoError(t, fs.Save(ctx, doc))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "accessToken")
}

func TestFileStore_ConcurrentDisjointUpdates(t *testing.T) {
	ctx := context.Background()
	fs, _ := newStore(t)

	const writers = 25
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := fs.Update(ctx, func(doc *store.Document) error {
				doc.Sessions[fmt.Sprintf("s%d", i)] = store.SessionRecord{UpdatedAt: int64(i)}
				return nil
			})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	doc, err := fs.Load(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Sessions, writers)
	for i := 0; i < writers; i++ {
		require.Equal(t, int64(i), doc.Sessions[fmt.Sprintf("s%d", i)].UpdatedAt)
	}
}

func TestFileStore_UpdateErrorDoesNotSave(t *testing.T) {
	ctx := context.Background()
	fs, path := newStore(t)

	err := fs.Update(ctx, func(doc *store.Document) error {
		doc.Sessions["s1"] = store.SessionRecord{}
		return fmt.Errorf("boom")
	})
	require.EqualError(t, err, "boom")

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestFileStore_SaveHonoursCancelledContext(t *testing.T) {
	fs, _ := newStore(t)

	held := make(chan struct{})
	proceed := make(chan struct{})
	go func() {
		_ = fs.Update(context.Background(), func(doc *store.Document) error {
			close(held)
			<-proceed
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := fs.Save(ctx, store.NewDocument())
	require.ErrorIs(t, err, context.Canceled)

	close(proceed)
}

func TestFileStore_Observer(t *testing.T) {
	ctx := context.Background()
	var results []string
	dir := t.TempDir()
	observe := store.WithObserver(func(result string) { results = append(results, result) })

	fs := store.NewFileStore(filepath.Join(dir, "sessions.json"), observe)
	require.NoError(t, fs.Save(ctx, store.NewDocument()))

	// The parent is a regular file, so the directory cannot be created.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	broken := store.NewFileStore(filepath.Join(blocker, "sessions.json"), observe)
	require.Error(t, broken.Save(ctx, store.NewDocument()))

	require.Equal(t, []string{store.WriteSuccess, store.WriteFailure}, results)
}
