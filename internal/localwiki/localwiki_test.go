package localwiki

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/ppiankov/wikimirror/internal/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "local.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	codec := model.NewTitleCodec(model.DefaultNamespaces("Project"), func(string) bool { return false })
	store, err := New(db, codec)
	require.NoError(t, err)
	return store
}

func importRevision(t *testing.T, s *Store, rev *Revision) *Page {
	t.Helper()
	var page *Page
	require.NoError(t, s.db.Update(func(tx *bolt.Tx) error {
		var err error
		page, err = s.Import(tx, rev)
		return err
	}))
	return page
}

func TestImport(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	foo := model.NewTitle(0, "Foo")

	exists, err := s.PageExists(ctx, foo)
	require.NoError(t, err)
	assert.False(t, exists)

	first := importRevision(t, s, &Revision{Namespace: 0, Title: "Foo", Content: "Hello", User: "imported>Alice"})
	assert.Equal(t, int64(1), first.ID)

	exists, err = s.PageExists(ctx, foo)
	require.NoError(t, err)
	assert.True(t, exists)

	second := importRevision(t, s, &Revision{Namespace: 0, Title: "Foo", Content: "Hello again"})
	assert.Equal(t, first.ID, second.ID)
	assert.Greater(t, second.Latest, first.Latest)

	rev, err := s.LatestRevision(foo)
	require.NoError(t, err)
	assert.Equal(t, "Hello again", rev.Content)
	assert.Equal(t, int64(11), rev.Size)
	assert.Equal(t, ModelWikitext, rev.Model)
	assert.Len(t, rev.SHA1, 40)
}

func TestImport_Rejects(t *testing.T) {
	s := newStore(t)

	err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := s.Import(tx, &Revision{Title: "Foo", Model: "json", Content: "{}"})
		return err
	})
	assert.ErrorIs(t, err, ErrUnsupportedModel)

	err = s.db.Update(func(tx *bolt.Tx) error {
		_, err := s.Import(tx, &Revision{Content: "x"})
		return err
	})
	assert.ErrorIs(t, err, ErrInvalidRevision)
}

func TestImport_RolledBackWithTransaction(t *testing.T) {
	s := newStore(t)
	boom := errors.New("boom")

	err := s.db.Update(func(tx *bolt.Tx) error {
		if _, err := s.Import(tx, &Revision{Title: "Foo", Content: "x"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := s.PageExists(context.Background(), model.NewTitle(0, "Foo"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedirectTarget(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	importRevision(t, s, &Revision{Title: "Old", Content: "#REDIRECT [[Help:New page#Usage]]"})
	importRevision(t, s, &Revision{Title: "Plain", Content: "Not a redirect"})

	target, err := s.RedirectTarget(ctx, model.NewTitle(0, "Old"))
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, model.Title{Namespace: model.NSHelp, DBKey: "New_page"}, *target)

	target, err = s.RedirectTarget(ctx, model.NewTitle(0, "Plain"))
	require.NoError(t, err)
	assert.Nil(t, target)

	target, err = s.RedirectTarget(ctx, model.NewTitle(0, "Missing"))
	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestWatch(t *testing.T) {
	s := newStore(t)
	foo := model.NewTitle(0, "Foo")

	watched, err := s.IsWatched("Alice", foo)
	require.NoError(t, err)
	assert.False(t, watched)

	require.NoError(t, s.Watch("Alice", foo))
	watched, err = s.IsWatched("Alice", foo)
	require.NoError(t, err)
	assert.True(t, watched)

	watched, err = s.IsWatched("Bob", foo)
	require.NoError(t, err)
	assert.False(t, watched)
}

func TestPage_NotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.Page(model.NewTitle(0, "Nope"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LatestRevision(model.NewTitle(0, "Nope"))
	assert.ErrorIs(t, err, ErrNotFound)
}
