// Package localwiki is the local page store: pages created by forking a
// mirrored title, their redirects and user watchlists. It shares the
// registry database so imports commit atomically with fork rows.
package localwiki

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ppiankov/wikimirror/internal/model"
)

var (
	// Bucket names
	bucketPages     = []byte("local_page")
	bucketRevisions = []byte("local_revision")
	bucketWatchlist = []byte("watchlist")
)

var (
	// ErrNotFound is returned for titles with no local page
	ErrNotFound = errors.New("local page not found")
	// ErrUnsupportedModel is returned when importing content the store cannot hold
	ErrUnsupportedModel = errors.New("unsupported content model")
	// ErrInvalidRevision is returned for revisions missing a title or content
	ErrInvalidRevision = errors.New("invalid revision")
)

const ModelWikitext = "wikitext"

var redirectPattern = regexp.MustCompile(`(?i)^\s*#REDIRECT\s*:?\s*\[\[([^\]|#]+)`)

// Page is a locally stored page
type Page struct {
	ID        int64        `json:"id"`
	Namespace int          `json:"ns"`
	Title     string       `json:"title"`
	Latest    int64        `json:"latest"`
	Redirect  *model.Title `json:"redirect,omitempty"`
	Touched   time.Time    `json:"touched"`
}

// Revision is one stored revision of a local page
type Revision struct {
	ID        int64     `json:"id"`
	PageID    int64     `json:"page_id"`
	Namespace int       `json:"ns"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Model     string    `json:"model"`
	Format    string    `json:"format"`
	Comment   string    `json:"comment"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
	SHA1      string    `json:"sha1"`
}

// Store implements the local wiki on BoltDB
type Store struct {
	db    *bolt.DB
	codec *model.TitleCodec
}

// New wraps an open database, creating the local wiki buckets. codec parses
// redirect targets.
func New(db *bolt.DB, codec *model.TitleCodec) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketPages, bucketRevisions, bucketWatchlist} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, codec: codec}, nil
}

// PageExists reports whether t is stored locally
func (s *Store) PageExists(ctx context.Context, t model.Title) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	exists := false
	err := s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(bucketPages).Get([]byte(t.Key())) != nil
		return nil
	})
	return exists, err
}

// RedirectTarget returns the target of a local redirect page, or nil
func (s *Store) RedirectTarget(ctx context.Context, t model.Title) (*model.Title, error) {
	page, err := s.Page(t)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return page.Redirect, nil
}

// Page returns the local page row for t
func (s *Store) Page(t model.Title) (*Page, error) {
	var page Page
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPages).Get([]byte(t.Key()))
		if data == nil {
			return fmt.Errorf("%s: %w", t.Key(), ErrNotFound)
		}
		return json.Unmarshal(data, &page)
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// LatestRevision returns the current revision of the local page t
func (s *Store) LatestRevision(t model.Title) (*Revision, error) {
	var rev Revision
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPages).Get([]byte(t.Key()))
		if data == nil {
			return fmt.Errorf("%s: %w", t.Key(), ErrNotFound)
		}
		var page Page
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		raw := tx.Bucket(bucketRevisions).Get(idKey(page.Latest))
		if raw == nil {
			return fmt.Errorf("revision %d of %s: %w", page.Latest, t.Key(), ErrNotFound)
		}
		return json.Unmarshal(raw, &rev)
	})
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// Import stores rev as the new latest revision of its page inside tx,
// creating the page if needed. rev.ID, rev.PageID, size and sha1 are
// assigned.
func (s *Store) Import(tx *bolt.Tx, rev *Revision) (*Page, error) {
	if rev.Title == "" {
		return nil, fmt.Errorf("%w: no title", ErrInvalidRevision)
	}
	if rev.Model == "" {
		rev.Model = ModelWikitext
	}
	if rev.Model != ModelWikitext {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, rev.Model)
	}
	if rev.Timestamp.IsZero() {
		rev.Timestamp = time.Now().UTC()
	}

	title := model.Title{Namespace: rev.Namespace, DBKey: rev.Title}
	pages := tx.Bucket(bucketPages)
	revisions := tx.Bucket(bucketRevisions)

	var page Page
	if data := pages.Get([]byte(title.Key())); data != nil {
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, err
		}
	} else {
		id, err := pages.NextSequence()
		if err != nil {
			return nil, err
		}
		page = Page{ID: int64(id), Namespace: title.Namespace, Title: title.DBKey}
	}

	revID, err := revisions.NextSequence()
	if err != nil {
		return nil, err
	}
	sum := sha1.Sum([]byte(rev.Content))
	rev.ID = int64(revID)
	rev.PageID = page.ID
	rev.Size = int64(len(rev.Content))
	rev.SHA1 = hex.EncodeToString(sum[:])

	page.Latest = rev.ID
	page.Touched = rev.Timestamp
	page.Redirect = s.redirectTarget(rev.Content)

	revData, err := json.Marshal(rev)
	if err != nil {
		return nil, err
	}
	if err := revisions.Put(idKey(rev.ID), revData); err != nil {
		return nil, err
	}
	pageData, err := json.Marshal(page)
	if err != nil {
		return nil, err
	}
	if err := pages.Put([]byte(title.Key()), pageData); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *Store) redirectTarget(content string) *model.Title {
	m := redirectPattern.FindStringSubmatch(content)
	if m == nil || s.codec == nil {
		return nil
	}
	target, err := s.codec.Parse(m[1])
	if err != nil {
		return nil
	}
	target.Fragment = ""
	return &target
}

// Watch adds t to user's watchlist
func (s *Store) Watch(user string, t model.Title) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWatchlist).Put(watchKey(user, t), []byte{1})
	})
}

// IsWatched reports whether t is on user's watchlist
func (s *Store) IsWatched(user string, t model.Title) (bool, error) {
	watched := false
	err := s.db.View(func(tx *bolt.Tx) error {
		watched = tx.Bucket(bucketWatchlist).Get(watchKey(user, t)) != nil
		return nil
	})
	return watched, err
}

func watchKey(user string, t model.Title) []byte {
	return []byte(user + "\x00" + t.Key())
}

func idKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}
