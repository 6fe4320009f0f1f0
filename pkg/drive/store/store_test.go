package store_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/drive/pkg/drive/store"
	"github.com/jamesainslie/drive/pkg/drive/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(nodes []*types.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}

// childrenIn derives a listing straight from a snapshot.
func childrenIn(snapshot map[string]*types.Node, parent *string) []*types.Node {
	var out []*types.Node
	for _, n := range snapshot {
		if types.SameParent(n.ParentID, parent) {
			out = append(out, n)
		}
	}
	store.SortListing(out)
	return out
}

// tiny builds root -> A -> B -> C(file), plus D at root.
func tiny() *fakeAPI {
	return newFakeAPI(
		folderNode("a", "A", nil),
		folderNode("b", "B", types.ID("a")),
		fileNode("c", "c.txt", types.ID("b")),
		folderNode("d", "D", nil),
	)
}

func loadAll(t *testing.T, s *store.Store, parents ...*string) {
	t.Helper()
	for _, p := range parents {
		require.NoError(t, s.Load(context.Background(), p))
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("lists exactly the children and sets the active folder", func(t *testing.T) {
		s := store.New(tiny(), store.Options{})

		require.NoError(t, s.Load(ctx, nil))

		assert.Equal(t, []string{"A", "D"}, names(s.Displayed()))
		assert.Nil(t, s.ActiveFolderID())
		assert.Equal(t, types.RootLabel, s.CurrentFolderName())
		assert.False(t, s.Pending())
	})

	t.Run("keeps other folders cached across navigation", func(t *testing.T) {
		s := store.New(tiny(), store.Options{})
		loadAll(t, s, nil, types.ID("a"), types.ID("b"))

		assert.Equal(t, []string{"c.txt"}, names(s.Displayed()))
		assert.Equal(t, "B", s.CurrentFolderName())
		assert.Equal(t, 4, s.Len(), "A, B, c.txt and D stay cached")
		assert.Len(t, s.AllFolders(), 3)
	})

	t.Run("listing equals the cached children of the folder", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})
		loadAll(t, s, nil, types.ID("a"))

		for _, parent := range []*string{nil, types.ID("a"), types.ID("b")} {
			require.NoError(t, s.Load(ctx, parent))
			want := childrenIn(s.Snapshot(), parent)
			assert.Equal(t, want, s.Displayed(), "parent %s", types.ParentString(parent))
		}
	})

	t.Run("evicts children the server no longer lists", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})
		loadAll(t, s, nil, types.ID("a"), types.ID("b"))

		// Deleted by someone else.
		require.NoError(t, api.Delete(ctx, "a"))
		require.NoError(t, s.Load(ctx, nil))

		_, ok := s.FindByID("a")
		assert.False(t, ok)
		_, ok = s.FindByID("c")
		assert.False(t, ok, "the subtree of an evicted folder goes with it")
		assert.Equal(t, []string{"D"}, names(s.Displayed()))
	})

	t.Run("accepts the root sentinel string", func(t *testing.T) {
		s := store.New(tiny(), store.Options{})
		require.NoError(t, s.Load(ctx, types.ID("root")))
		assert.Nil(t, s.ActiveFolderID())
		assert.Len(t, s.Displayed(), 2)
	})

	t.Run("failure keeps the listing and records the server message", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})
		loadAll(t, s, nil)

		api.fail(&serverError{status: 500, message: "database unavailable"})
		err := s.Load(ctx, types.ID("a"))

		require.Error(t, err)
		assert.Equal(t, "database unavailable", s.LastError())
		assert.Equal(t, []string{"A", "D"}, names(s.Displayed()))
		assert.Nil(t, s.ActiveFolderID())
		assert.False(t, s.Pending())

		require.NoError(t, s.Load(ctx, nil))
		assert.Empty(t, s.LastError(), "a success clears the last error")
	})
}

func TestCreateFolder(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit parent wins", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})
		loadAll(t, s, types.ID("d"))

		require.NoError(t, s.CreateFolder(ctx, "New", types.ID("a")))

		assert.Equal(t, "a", *s.ActiveFolderID(), "the target parent is loaded")
		assert.Contains(t, names(s.Displayed()), "New")
	})

	t.Run("falls back to the active folder", func(t *testing.T) {
		s := store.New(tiny(), store.Options{})
		loadAll(t, s, types.ID("d"))

		require.NoError(t, s.CreateFolder(ctx, "Inside", nil))

		assert.Equal(t, []string{"Inside"}, names(s.Displayed()))
		assert.Equal(t, "d", *s.ActiveFolderID())
	})

	t.Run("falls back to the root", func(t *testing.T) {
		s := store.New(tiny(), store.Options{})
		require.NoError(t, s.CreateFolder(ctx, "Top", nil))
		assert.Equal(t, []string{"A", "D", "Top"}, names(s.Displayed()))
	})

	t.Run("allows duplicate names", func(t *testing.T) {
		s := store.New(tiny(), store.Options{})
		require.NoError(t, s.CreateFolder(ctx, "A", nil))
		assert.Equal(t, []string{"A", "A", "D"}, names(s.Displayed()))
	})

	t.Run("rejects a blank name without a call", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})

		err := s.CreateFolder(ctx, "   ", nil)

		assert.ErrorIs(t, err, types.ErrEmptyName)
		assert.Zero(t, api.total())
		assert.NotEmpty(t, s.LastError())
	})
}

func TestRename(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the entry with the server copy", func(t *testing.T) {
		s := store.New(tiny(), store.Options{})
		loadAll(t, s, nil)

		require.NoError(t, s.Rename(ctx, "d", "  Docs "))

		n, ok := s.FindByID("d")
		require.True(t, ok)
		assert.Equal(t, "Docs", n.Name)
		assert.False(t, n.UpdatedAt.IsZero())
		assert.Equal(t, []string{"A", "Docs"}, names(s.Displayed()))
	})

	t.Run("is idempotent", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})
		loadAll(t, s, nil)

		require.NoError(t, s.Rename(ctx, "d", "Docs"))
		once := s.Snapshot()
		require.NoError(t, s.Rename(ctx, "d", "Docs"))

		assert.Equal(t, once, s.Snapshot())
		assert.Equal(t, 1, api.count("rename"), "same name makes no second call")
	})

	t.Run("rejects blank and unknown", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})
		loadAll(t, s, nil)

		assert.ErrorIs(t, s.Rename(ctx, "d", ""), types.ErrEmptyName)
		assert.ErrorIs(t, s.Rename(ctx, "zz", "x"), types.ErrNotFound)
		assert.Zero(t, api.count("rename"))
	})

	t.Run("failed call changes nothing", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})
		loadAll(t, s, nil)
		before := s.Snapshot()

		api.fail(&serverError{status: 409, message: "name taken"})
		require.Error(t, s.Rename(ctx, "d", "Other"))

		assert.Equal(t, before, s.Snapshot())
		assert.Equal(t, "name taken", s.LastError())
	})
}

func TestMove(t *testing.T) {
	ctx := context.Background()

	t.Run("guard rejects a self move before any call", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})
		loadAll(t, s, nil)
		calls := api.total()

		err := s.Move(ctx, "a", types.ID("a"))

		assert.ErrorIs(t, err, types.ErrSelfMove)
		assert.Equal(t, calls, api.total())
		assert.NotEmpty(t, s.LastError())
	})

	t.Run("guard rejects a descendant move before any call", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})
		loadAll(t, s, nil, types.ID("a"))
		calls := api.total()

		err := s.Move(ctx, "a", types.ID("b"))

		assert.ErrorIs(t, err, types.ErrDescendantMove)
		assert.Equal(t, calls, api.total())
		assert.Zero(t, api.count("move"))
	})

	t.Run("moving out of the active folder updates the listing", func(t *testing.T) {
		s := store.New(tiny(), store.Options{})
		loadAll(t, s, nil, types.ID("a"))

		require.NoError(t, s.Move(ctx, "b", nil))

		assert.Empty(t, s.Displayed())
		n, _ := s.FindByID("b")
		assert.Nil(t, n.ParentID)
		assert.Equal(t, []string{"A", "B", "D"}, names(s.Children(nil)))
	})

	t.Run("moving into the active folder updates the listing", func(t *testing.T) {
		s := store.New(tiny(), store.Options{})
		loadAll(t, s, nil, types.ID("d"))

		require.NoError(t, s.Move(ctx, "a", types.ID("d")))

		assert.Equal(t, []string{"A"}, names(s.Displayed()))
	})

	t.Run("rejects a file destination", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})
		loadAll(t, s, nil, types.ID("a"), types.ID("b"))

		assert.ErrorIs(t, s.Move(ctx, "d", types.ID("c")), types.ErrNotAFolder)
		assert.Zero(t, api.count("move"))
	})
}

func TestCopy(t *testing.T) {
	ctx := context.Background()

	t.Run("copy gets a distinct id and leaves the original", func(t *testing.T) {
		s := store.New(tiny(), store.Options{})
		loadAll(t, s, nil, types.ID("a"), types.ID("b"))
		original, _ := s.FindByID("c")

		require.NoError(t, s.Copy(ctx, "c", nil))
		require.NoError(t, s.Load(ctx, nil))

		var copied *types.Node
		for _, n := range s.Displayed() {
			if n.Name == "c.txt (copy)" {
				copied = n
			}
		}
		require.NotNil(t, copied)
		assert.NotEqual(t, original.ID, copied.ID)
		assert.Nil(t, copied.ParentID)

		still, ok := s.FindByID("c")
		require.True(t, ok)
		assert.Equal(t, original, still)
	})

	t.Run("unknown source is not found", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})
		assert.ErrorIs(t, s.Copy(ctx, "zz", nil), types.ErrNotFound)
		assert.Zero(t, api.count("copy"))
	})

	t.Run("a reused id is rejected", func(t *testing.T) {
		api := tiny()
		api.copySame = true
		s := store.New(api, store.Options{})
		loadAll(t, s, nil)
		before := s.Snapshot()

		assert.ErrorIs(t, s.Copy(ctx, "d", nil), store.ErrCopyIdentity)
		assert.Equal(t, before, s.Snapshot())
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("cascade removes the whole subtree only", func(t *testing.T) {
		s := store.New(tiny(), store.Options{})
		loadAll(t, s, nil, types.ID("a"), types.ID("b"))

		require.NoError(t, s.Delete(ctx, "a"))

		for _, id := range []string{"a", "b", "c"} {
			_, ok := s.FindByID(id)
			assert.False(t, ok, "%s should be gone", id)
		}
		d, ok := s.FindByID("d")
		require.True(t, ok)
		assert.Equal(t, "D", d.Name)
	})

	t.Run("reports a deleted active folder", func(t *testing.T) {
		s := store.New(tiny(), store.Options{})
		loadAll(t, s, nil, types.ID("a"), types.ID("b"))
		sub := s.Subscribe()
		defer s.Unsubscribe(sub.ID)

		require.NoError(t, s.Delete(ctx, "a"))

		assert.Empty(t, s.Displayed())
		ev := <-sub.Events
		assert.Equal(t, store.OpDelete, ev.Op)
		assert.True(t, ev.ActiveDeleted)
		assert.Nil(t, ev.ParentID)
		assert.ElementsMatch(t, []string{"a", "b", "c"}, ev.IDs)
	})

	t.Run("later not found for a deleted node is suppressed", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})
		loadAll(t, s, nil, types.ID("a"), types.ID("b"))
		require.NoError(t, s.Delete(ctx, "b"))

		err := s.Rename(ctx, "c", "renamed.txt")
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.Empty(t, s.LastError())

		_, err = s.Download(ctx, "c")
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.Empty(t, s.LastError())
	})

	t.Run("remote failure keeps the cache", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})
		loadAll(t, s, nil, types.ID("a"))
		before := s.Snapshot()

		api.fail(errors.New("connection reset"))
		require.Error(t, s.Delete(ctx, "a"))

		assert.Equal(t, before, s.Snapshot())
		assert.Equal(t, "connection reset", s.LastError())
	})
}

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("one call, one parent, listing derived after", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})
		loadAll(t, s, nil, types.ID("d"))

		files := []store.UploadFile{
			{Name: "b.txt", MIMEType: "text/plain", Content: strings.NewReader("bbb")},
			{Name: "a.txt", MIMEType: "text/plain", Content: strings.NewReader("a")},
		}
		require.NoError(t, s.Upload(ctx, files, nil))

		assert.Equal(t, 1, api.count("upload"))
		assert.Equal(t, []string{"a.txt", "b.txt"}, names(s.Displayed()))
		for _, n := range s.Displayed() {
			assert.Equal(t, "d", *n.ParentID)
		}
	})

	t.Run("upload elsewhere leaves the listing alone", func(t *testing.T) {
		s := store.New(tiny(), store.Options{})
		loadAll(t, s, nil)

		files := []store.UploadFile{{Name: "x.bin", Content: strings.NewReader("x")}}
		require.NoError(t, s.Upload(ctx, files, types.ID("d")))

		assert.Equal(t, []string{"A", "D"}, names(s.Displayed()))
		assert.Len(t, s.Children(types.ID("d")), 1)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})
		require.NoError(t, s.Upload(ctx, nil, nil))
		assert.Zero(t, api.total())
	})

	t.Run("rejects a file as the target", func(t *testing.T) {
		api := tiny()
		s := store.New(api, store.Options{})
		loadAll(t, s, nil, types.ID("a"), types.ID("b"))

		files := []store.UploadFile{{Name: "x", Content: strings.NewReader("x")}}
		assert.ErrorIs(t, s.Upload(ctx, files, types.ID("c")), types.ErrNotAFolder)
		assert.Zero(t, api.count("upload"))
	})
}

func TestDownload(t *testing.T) {
	ctx := context.Background()
	api := tiny()
	s := store.New(api, store.Options{})
	loadAll(t, s, nil)

	files := []store.UploadFile{{Name: "hello.txt", Content: strings.NewReader("hello")}}
	require.NoError(t, s.Upload(ctx, files, nil))

	var id string
	for _, n := range s.Displayed() {
		if n.Name == "hello.txt" {
			id = n.ID
		}
	}
	require.NotEmpty(t, id)

	rc, err := s.Download(ctx, id)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "hello", string(data))

	_, err = s.Download(ctx, "a")
	assert.ErrorIs(t, err, types.ErrValidation, "folders cannot be downloaded")
}

func TestFetchPath(t *testing.T) {
	api := tiny()
	s := store.New(api, store.Options{})

	require.NoError(t, s.FetchPath(context.Background(), "c"))

	assert.Equal(t, 3, s.Len())
	chain := s.Ancestors("c")
	assert.Equal(t, []string{"A", "B"}, names(chain))

	// With the chain cached the guard can see a descendant move.
	assert.ErrorIs(t, s.Move(context.Background(), "a", types.ID("b")), types.ErrDescendantMove)
}

func TestSupersededLoadIsDropped(t *testing.T) {
	api := tiny()
	s := store.New(api, store.Options{})
	ctx := context.Background()

	release := api.gate("a")
	slow := make(chan error, 1)
	go func() { slow <- s.Load(ctx, types.ID("a")) }()

	// Wait until the slow load is in flight.
	require.Eventually(t, s.Pending, time.Second, time.Millisecond)

	require.NoError(t, s.Load(ctx, types.ID("d")))
	release()

	err := <-slow
	assert.ErrorIs(t, err, store.ErrSuperseded)
	assert.Equal(t, "d", *s.ActiveFolderID())
	assert.Empty(t, s.Displayed())
	assert.Empty(t, s.LastError())
	assert.False(t, s.Pending())
}

func TestFolderTreeFollowsTheCache(t *testing.T) {
	s := store.New(tiny(), store.Options{})
	loadAll(t, s, nil, types.ID("a"))

	forest := s.FolderTree()
	require.Len(t, forest, 2)
	assert.Equal(t, "A", forest[0].Name())
	require.Len(t, forest[0].Children, 1)

	again := s.FolderTree()
	assert.Same(t, forest[0], again[0], "unchanged cache reuses the forest")

	require.NoError(t, s.Delete(context.Background(), "a"))
	forest = s.FolderTree()
	require.Len(t, forest, 1)
	assert.Equal(t, "D", forest[0].Name())
}

func TestSubscribe(t *testing.T) {
	api := tiny()
	s := store.New(api, store.Options{})
	sub := s.Subscribe()
	require.NotNil(t, sub)
	assert.Equal(t, 1, s.SubscriberCount())

	require.NoError(t, s.Load(context.Background(), nil))
	ev := <-sub.Events
	assert.Equal(t, store.OpLoad, ev.Op)
	assert.NoError(t, ev.Err)
	assert.Equal(t, s.Revision(), ev.Revision)

	api.fail(errors.New("boom"))
	_ = s.Load(context.Background(), nil)
	ev = <-sub.Events
	assert.Error(t, ev.Err)

	s.Close()
	_, open := <-sub.Events
	assert.False(t, open)
	assert.Nil(t, s.Subscribe())
}

// Create Docs, upload a.txt into it, move it to the root, then delete Docs.
func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := store.New(newFakeAPI(), store.Options{})

	require.NoError(t, s.Load(ctx, nil))
	require.NoError(t, s.CreateFolder(ctx, "Docs", nil))

	var docs *types.Node
	for _, f := range s.AllFolders() {
		if f.Name == "Docs" {
			docs = f
		}
	}
	require.NotNil(t, docs)

	payload := strings.Repeat("x", 2048)
	files := []store.UploadFile{{Name: "a.txt", MIMEType: "text/plain", Size: 2048, Content: strings.NewReader(payload)}}
	require.NoError(t, s.Upload(ctx, files, types.ID(docs.ID)))

	require.NoError(t, s.NavigateToFolder(ctx, types.ID(docs.ID)))
	listing := s.Displayed()
	require.Equal(t, []string{"a.txt"}, names(listing))
	assert.Equal(t, "Docs", s.CurrentFolderName())

	require.NoError(t, s.Move(ctx, listing[0].ID, nil))
	require.NoError(t, s.NavigateToFolder(ctx, nil))
	assert.Equal(t, []string{"Docs", "a.txt"}, names(s.Displayed()))

	require.NoError(t, s.Delete(ctx, docs.ID))
	assert.Empty(t, s.AllFolders())
	assert.Equal(t, []string{"a.txt"}, names(s.Displayed()))
}
