package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDBKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"foo bar", "Foo_bar"},
		{"  spaced   out  ", "Spaced_out"},
		{"__under__score__", "Under_score"},
		{"élan vital", "Élan_vital"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDBKey(tt.in))
		})
	}
}

func TestTitleCodec_Parse(t *testing.T) {
	codec := NewTitleCodec(DefaultNamespaces("Wikipedia"), func(prefix string) bool {
		return prefix == "wikt"
	})

	tests := []struct {
		name string
		text string
		want Title
	}{
		{"main", "Main page", Title{Namespace: NSMain, DBKey: "Main_page"}},
		{"talk", "talk:Foo", Title{Namespace: NSTalk, DBKey: "Foo"}},
		{"project name", "Wikipedia:About", Title{Namespace: NSProject, DBKey: "About"}},
		{"project alias", "Project:About", Title{Namespace: NSProject, DBKey: "About"}},
		{"image alias", "Image:X.png", Title{Namespace: NSFile, DBKey: "X.png"}},
		{"fragment", "Foo#Bar baz", Title{Namespace: NSMain, DBKey: "Foo", Fragment: "Bar baz"}},
		{"fragment only", "#Top", Title{Namespace: NSMain, Fragment: "Top"}},
		{"interwiki", "wikt:word", Title{Interwiki: "wikt", DBKey: "Word"}},
		{"unknown prefix", "Foo: bar", Title{Namespace: NSMain, DBKey: "Foo:_bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTitleCodec_ParseInvalid(t *testing.T) {
	codec := NewTitleCodec(DefaultNamespaces(""), nil)

	for _, text := range []string{"", "   ", "Foo[bar]", "a|b", "Talk:"} {
		_, err := codec.Parse(text)
		assert.ErrorIs(t, err, ErrInvalidTitle, text)
	}
}

func TestTitleCodec_Prefixed(t *testing.T) {
	codec := NewTitleCodec(DefaultNamespaces(""), nil)

	title := NewTitle(NSUserTalk, "some user")
	assert.Equal(t, "User_talk:Some_user", codec.PrefixedDBKey(title))
	assert.Equal(t, "User talk:Some user", codec.PrefixedText(title))
	assert.Equal(t, "Foo", codec.PrefixedText(NewTitle(NSMain, "foo")))
	assert.Equal(t, "3:Some_user", title.Key())
}

func TestTitle_IsUserConfigPage(t *testing.T) {
	assert.True(t, NewTitle(NSUser, "Alice/common.js").IsUserConfigPage())
	assert.True(t, NewTitle(NSUser, "Alice/vector.css").IsUserConfigPage())
	assert.True(t, NewTitle(NSUser, "Alice/prefs.json").IsUserConfigPage())
	assert.False(t, NewTitle(NSUser, "Alice").IsUserConfigPage())
	assert.False(t, NewTitle(NSUser, "Alice/notes").IsUserConfigPage())
	assert.False(t, NewTitle(NSMain, "Foo/bar.js").IsUserConfigPage())
}

func TestField(t *testing.T) {
	set := FieldOf("abc")
	v, ok := set.Get()
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	hidden := HiddenField[string]()
	assert.True(t, hidden.IsHidden())
	assert.True(t, hidden.Requested())
	_, ok = hidden.Get()
	assert.False(t, ok)

	var absent Field[string]
	assert.False(t, absent.Requested())
	assert.False(t, absent.IsHidden())

	data, err := hidden.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestSiteInfo_NamespaceMap(t *testing.T) {
	site := &SiteInfo{
		Namespaces: map[int]NamespaceInfo{
			0:  {ID: 0, Name: ""},
			4:  {ID: 4, Name: "Wikipedia", Canonical: "Project"},
			5:  {ID: 5, Name: "Wikipedia talk", Canonical: "Project talk"},
			14: {ID: 14, Name: "Category", Canonical: "Category"},
		},
		NamespaceAliases: []NamespaceAlias{
			{ID: 4, Alias: "WP"},
			{ID: 6, Alias: "Image"},
		},
	}

	m := site.NamespaceMap()
	assert.Equal(t, 4, m["Wikipedia"])
	assert.Equal(t, 4, m["Project"])
	assert.Equal(t, 5, m["Wikipedia_talk"])
	assert.Equal(t, 5, m["Project_talk"])
	assert.Equal(t, 4, m["WP"])
	assert.Equal(t, 6, m["Image"])
}
