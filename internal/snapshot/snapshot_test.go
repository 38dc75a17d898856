package snapshot

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	// sha1("Main Page") = 29b077bd...
	got := Path("/snap", 0, "Main Page", 42)
	assert.Equal(t, filepath.Join("/snap", "0", "29", "42.json"), got)
}

func TestStore_SaveLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/snap")

	article := &Article{
		Identifier: 42,
		Name:       "Main Page",
		Namespace:  Namespace{Identifier: 0},
		InLanguage: Language{Identifier: "en"},
		ArticleBody: ArticleBody{
			HTML:     "<html><body class=\"x\"><p>Hi</p></body></html>",
			Wikitext: "Hi",
		},
		Version: Version{Identifier: 1001, Size: Size{Value: 2, UnitText: "B"}},
	}
	require.NoError(t, store.Save(article))

	loaded, ok := store.Load(0, "Main Page", 42)
	require.True(t, ok)
	assert.Equal(t, int64(1001), loaded.Version.Identifier)
	assert.Equal(t, "Hi", loaded.ArticleBody.Wikitext)

	_, ok = store.Load(0, "Main Page", 43)
	assert.False(t, ok)
}

func TestStore_CorruptIsMiss(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/snap")

	path := Path("/snap", 0, "Broken", 7)
	require.NoError(t, afero.WriteFile(fs, path, []byte("{not json"), 0644))

	_, ok := store.Load(0, "Broken", 7)
	assert.False(t, ok)
}

func TestStore_Disabled(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "")
	assert.False(t, store.Enabled())
	_, ok := store.Load(0, "Anything", 1)
	assert.False(t, ok)
	assert.Error(t, store.Save(&Article{Identifier: 1, Name: "A"}))
}

func TestStore_Import(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/snap")

	input := strings.Join([]string{
		`{"identifier":1,"name":"Alpha","namespace":{"identifier":0},"version":{"identifier":10}}`,
		`garbage`,
		``,
		`{"identifier":2,"name":"Talk:Beta","namespace":{"identifier":1},"version":{"identifier":20}}`,
		`{"identifier":0,"name":"No id"}`,
	}, "\n")

	count, err := store.Import(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	beta, ok := store.Load(1, "Talk:Beta", 2)
	require.True(t, ok)
	assert.Equal(t, int64(20), beta.Version.Identifier)
}
