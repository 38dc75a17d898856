package shadow

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/wikimirror/internal/model"
	"github.com/ppiankov/wikimirror/internal/registry"
	"github.com/ppiankov/wikimirror/internal/remote"
)

func newRegistry(t *testing.T) *registry.Store {
	t.Helper()
	reg, err := registry.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return reg
}

func newRefresher(t *testing.T, handler http.HandlerFunc) (*Refresher, *registry.Store) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	lookup := remote.NewStaticInterwiki([]model.InterwikiEntry{{Prefix: "remote", API: server.URL + "/w/api.php"}})
	reg := newRegistry(t)
	client := remote.NewClient("remote", lookup, 5*time.Second, "WikiMirrorTest/1.0", 1<<20)
	return NewRefresher(client, reg), reg
}

func TestFromAPI(t *testing.T) {
	r, reg := newRefresher(t, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		switch {
		case q.Get("list") == "allpages" && q.Get("apfilterredir") == "all" && q.Get("apcontinue") == "":
			fmt.Fprint(w, `{"continue":{"apcontinue":"C","continue":"-||"},"query":{"allpages":[`+
				`{"pageid":1,"ns":0,"title":"A"},{"pageid":2,"ns":0,"title":"B page"}]}}`)
		case q.Get("list") == "allpages" && q.Get("apfilterredir") == "all":
			assert.Equal(t, "C", q.Get("apcontinue"))
			fmt.Fprint(w, `{"query":{"allpages":[{"pageid":3,"ns":0,"title":"C"}]}}`)
		case q.Get("list") == "allpages":
			fmt.Fprint(w, `{"query":{"allpages":[{"pageid":2,"ns":0,"title":"B page"}]}}`)
		case q.Get("redirects") != "":
			assert.Equal(t, "2", q.Get("pageids"))
			fmt.Fprint(w, `{"query":{"redirects":[{"from":"B page","to":"Help:Target"}],`+
				`"pages":[{"pageid":9,"ns":12,"title":"Help:Target"}]}}`)
		default:
			t.Errorf("unexpected request %s", req.URL.RawQuery)
		}
	})

	stats, err := r.FromAPI(context.Background(), []int{0})
	require.NoError(t, err)
	assert.Equal(t, &Stats{Pages: 3, Redirects: 1}, stats)

	row, err := reg.RemotePage(model.NewTitle(0, "B page"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), row.ID)
	require.NotNil(t, row.Redirect)
	assert.Equal(t, registry.RemoteRedirect{From: 2, Namespace: 12, Title: "Target"}, *row.Redirect)

	row, err = reg.RemotePage(model.NewTitle(0, "C"))
	require.NoError(t, err)
	assert.Nil(t, row.Redirect)
}

func TestFromAPI_FailureKeepsTables(t *testing.T) {
	r, reg := newRefresher(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	require.NoError(t, reg.ReplaceRemotePages([]registry.RemotePage{{ID: 1, Title: "Kept"}}, nil))

	_, err := r.FromAPI(context.Background(), []int{0})
	assert.ErrorIs(t, err, remote.ErrTransport)

	_, err = reg.RemotePage(model.NewTitle(0, "Kept"))
	assert.NoError(t, err)
}

func gzipped(t *testing.T, text string) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(text))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return &buf
}

func TestFromDump(t *testing.T) {
	reg := newRegistry(t)
	r := NewRefresher(nil, reg)

	dump := "page_id\tnamespace\ttitle\tredirect_namespace\tredirect_title\n" +
		"1\t0\tApple\n" +
		"2\t0\tApple_pie\t\t\n" +
		"3\t0\tPomme\t0\tApple\n" +
		"x\t0\tBroken\n" +
		"4\t12\tContents\n"

	stats, err := r.FromDump(gzipped(t, dump))
	require.NoError(t, err)
	assert.Equal(t, &Stats{Pages: 4, Redirects: 1}, stats)

	row, err := reg.RemotePage(model.NewTitle(0, "Pomme"))
	require.NoError(t, err)
	require.NotNil(t, row.Redirect)
	assert.Equal(t, "Apple", row.Redirect.Title)

	redirects, err := reg.RedirectsTo(model.NewTitle(0, "Apple"))
	require.NoError(t, err)
	require.Len(t, redirects, 1)
	assert.Equal(t, "Pomme", redirects[0].Title)

	_, err = reg.RemotePage(model.NewTitle(0, "Broken"))
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestFromDump_NotGzip(t *testing.T) {
	r := NewRefresher(nil, newRegistry(t))
	_, err := r.FromDump(bytes.NewBufferString("plain text"))
	assert.Error(t, err)
}

func TestParseRow(t *testing.T) {
	tests := []struct {
		row      string
		wantErr  bool
		redirect bool
	}{
		{row: "1\t0\tFoo"},
		{row: "1\t0\tFoo\t0\tBar", redirect: true},
		{row: "1\t0\tFoo\t\t"},
		{row: "1\t0", wantErr: true},
		{row: "0\t0\tFoo", wantErr: true},
		{row: "1\tx\tFoo", wantErr: true},
		{row: "1\t0\t", wantErr: true},
		{row: "1\t0\tFoo\tx\tBar", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.row, func(t *testing.T) {
			_, redirect, err := parseRow(tt.row)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.redirect, redirect != nil)
		})
	}
}

func TestDownloader(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: WikiMirror\nDisallow: /private/\n")
	})
	mux.HandleFunc("/dumps/page.tsv.gz", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "WikiMirror/0.1 (+test)", r.Header.Get("User-Agent"))
		fmt.Fprint(w, "dump")
	})
	mux.HandleFunc("/private/page.tsv.gz", func(w http.ResponseWriter, r *http.Request) {
		t.Error("disallowed path fetched")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	d := NewDownloader(server.Client(), "WikiMirror/0.1 (+test)", nil)

	body, err := d.Open(context.Background(), server.URL+"/dumps/page.tsv.gz")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "dump", string(data))

	_, err = d.Open(context.Background(), server.URL+"/private/page.tsv.gz")
	assert.ErrorIs(t, err, ErrDisallowed)

	_, err = d.Open(context.Background(), server.URL+"/missing.tsv.gz")
	assert.Error(t, err)
}

func TestProductToken(t *testing.T) {
	assert.Equal(t, "WikiMirror", productToken("WikiMirror/0.1 (+https://example.org)"))
	assert.Equal(t, "", productToken(""))
}
