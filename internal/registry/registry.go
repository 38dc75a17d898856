// Package registry is the local record of forked titles and of the remote
// wiki's pages and redirects.
package registry

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/ppiankov/wikimirror/internal/model"
)

var (
	// Bucket names
	bucketForkedTitles   = []byte("forked_titles")
	bucketRemotePage     = []byte("remote_page")
	bucketRemotePageID   = []byte("remote_page_id")
	bucketRemoteRedirect = []byte("remote_redirect")
	bucketMirrorLog      = []byte("mirror_log")
)

var (
	// ErrNotFound is returned for point lookups that match no row
	ErrNotFound = errors.New("not found")
	// ErrAlreadyForked is returned when inserting a fork row that exists
	ErrAlreadyForked = errors.New("title already forked")
)

// ForkRecord is a row of forked_titles
type ForkRecord struct {
	Namespace      int       `json:"ns"`
	Title          string    `json:"title"`
	RemotePage     int64     `json:"remote_page"`
	RemoteRevision int64     `json:"remote_revision"`
	Forked         time.Time `json:"forked"`
	Imported       bool      `json:"imported"`
}

// RemotePage is a row of remote_page
type RemotePage struct {
	ID        int64  `json:"id"`
	Namespace int    `json:"ns"`
	Title     string `json:"title"`
}

// TitleValue returns the page's title
func (p RemotePage) TitleValue() model.Title {
	return model.Title{Namespace: p.Namespace, DBKey: p.Title}
}

// RemoteRedirect is a row of remote_redirect
type RemoteRedirect struct {
	From      int64  `json:"from"`
	Namespace int    `json:"ns"`
	Title     string `json:"title"`
}

// PageRow is remote_page left-joined with remote_redirect
type PageRow struct {
	RemotePage
	Redirect *RemoteRedirect `json:"redirect,omitempty"`
}

// LogEntry is an audit record of a fork or unfork
type LogEntry struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Action    string            `json:"action"`
	Namespace int               `json:"ns"`
	Title     string            `json:"title"`
	PageID    int64             `json:"page_id"`
	Performer string            `json:"performer"`
	Comment   string            `json:"comment"`
	Params    map[string]string `json:"params"`
	Timestamp time.Time         `json:"timestamp"`
}

// Store implements the registry on BoltDB
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the registry database at path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create registry dir: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an open database, creating the registry buckets
func New(db *bolt.DB) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{
			bucketForkedTitles,
			bucketRemotePage,
			bucketRemotePageID,
			bucketRemoteRedirect,
			bucketMirrorLog,
		} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// DB exposes the database so other local stores can share transactions
func (s *Store) DB() *bolt.DB {
	return s.db
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Update runs fn in a read-write transaction. Returning an error rolls back
// every write made through tx.
func (s *Store) Update(fn func(tx *Tx) error) error {
	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(&Tx{tx: btx})
	})
}

// View runs fn in a read-only transaction
func (s *Store) View(fn func(tx *Tx) error) error {
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(&Tx{tx: btx})
	})
}

// IsForked reports whether a forked_titles row exists for t
func (s *Store) IsForked(t model.Title) (bool, error) {
	var forked bool
	err := s.View(func(tx *Tx) error {
		forked = tx.IsForked(t)
		return nil
	})
	return forked, err
}

// Fork returns the forked_titles row for t
func (s *Store) Fork(t model.Title) (*ForkRecord, error) {
	var rec ForkRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketForkedTitles).Get([]byte(t.Key()))
		if data == nil {
			return fmt.Errorf("fork %s: %w", t.Key(), ErrNotFound)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RemotePage returns the remote_page row for t joined with its redirect row
func (s *Store) RemotePage(t model.Title) (*PageRow, error) {
	var row PageRow
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRemotePage).Get([]byte(t.Key()))
		if data == nil {
			return fmt.Errorf("remote page %s: %w", t.Key(), ErrNotFound)
		}
		if err := json.Unmarshal(data, &row.RemotePage); err != nil {
			return err
		}
		if rd := tx.Bucket(bucketRemoteRedirect).Get(idKey(row.ID)); rd != nil {
			var redirect RemoteRedirect
			if err := json.Unmarshal(rd, &redirect); err != nil {
				return err
			}
			row.Redirect = &redirect
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// RemotePageCount returns how many remote_page rows match t (0 or 1)
func (s *Store) RemotePageCount(t model.Title) (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketRemotePage).Get([]byte(t.Key())) != nil {
			count = 1
		}
		return nil
	})
	return count, err
}

// RemotePageByID returns the remote_page row with the given remote id
func (s *Store) RemotePageByID(id int64) (*RemotePage, error) {
	var page RemotePage
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketRemotePageID).Get(idKey(id))
		if key == nil {
			return fmt.Errorf("remote page id %d: %w", id, ErrNotFound)
		}
		data := tx.Bucket(bucketRemotePage).Get(key)
		if data == nil {
			return fmt.Errorf("remote page id %d: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &page)
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// RedirectsTo lists remote pages that redirect to t
func (s *Store) RedirectsTo(t model.Title) ([]RemotePage, error) {
	var pages []RemotePage
	err := s.db.View(func(tx *bolt.Tx) error {
		byID := tx.Bucket(bucketRemotePageID)
		pagesBucket := tx.Bucket(bucketRemotePage)
		return tx.Bucket(bucketRemoteRedirect).ForEach(func(k, v []byte) error {
			var redirect RemoteRedirect
			if err := json.Unmarshal(v, &redirect); err != nil {
				return err
			}
			if redirect.Namespace != t.Namespace || redirect.Title != t.DBKey {
				return nil
			}
			key := byID.Get(k)
			if key == nil {
				return nil
			}
			var page RemotePage
			if err := json.Unmarshal(pagesBucket.Get(key), &page); err != nil {
				return err
			}
			pages = append(pages, page)
			return nil
		})
	})
	return pages, err
}

// PrefixSearch lists up to limit remote pages in ns whose DB key starts with prefix
func (s *Store) PrefixSearch(ns int, prefix string, limit int) ([]RemotePage, error) {
	var pages []RemotePage
	seek := []byte(model.Title{Namespace: ns, DBKey: prefix}.Key())

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRemotePage).Cursor()
		for k, v := c.Seek(seek); k != nil && strings.HasPrefix(string(k), string(seek)); k, v = c.Next() {
			if limit > 0 && len(pages) >= limit {
				break
			}
			var page RemotePage
			if err := json.Unmarshal(v, &page); err != nil {
				return err
			}
			pages = append(pages, page)
		}
		return nil
	})
	return pages, err
}

// MarkImported records titles being imported by other means as forked.
// Titles that exist locally, or are already recorded, are skipped.
func (s *Store) MarkImported(titles []model.Title, existsLocally func(model.Title) bool) (int, error) {
	inserted := 0
	err := s.Update(func(tx *Tx) error {
		now := time.Now().UTC()
		for _, t := range titles {
			if existsLocally(t) || tx.IsForked(t) {
				continue
			}
			if err := tx.InsertFork(ForkRecord{
				Namespace: t.Namespace,
				Title:     t.DBKey,
				Forked:    now,
				Imported:  true,
			}); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	return inserted, err
}

// ReplaceRemotePages swaps the shadow tables for a fresh copy in one transaction
func (s *Store) ReplaceRemotePages(pages []RemotePage, redirects []RemoteRedirect) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRemotePage, bucketRemotePageID, bucketRemoteRedirect} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return fmt.Errorf("drop %s: %w", name, err)
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("create %s: %w", name, err)
			}
		}

		pagesBucket := tx.Bucket(bucketRemotePage)
		byID := tx.Bucket(bucketRemotePageID)
		for _, page := range pages {
			data, err := json.Marshal(page)
			if err != nil {
				return err
			}
			key := []byte(page.TitleValue().Key())
			if err := pagesBucket.Put(key, data); err != nil {
				return err
			}
			if err := byID.Put(idKey(page.ID), key); err != nil {
				return err
			}
		}

		redirectBucket := tx.Bucket(bucketRemoteRedirect)
		for _, redirect := range redirects {
			data, err := json.Marshal(redirect)
			if err != nil {
				return err
			}
			if err := redirectBucket.Put(idKey(redirect.From), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LogEntries returns the audit entries recorded for t, oldest first
func (s *Store) LogEntries(t model.Title) ([]LogEntry, error) {
	var entries []LogEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMirrorLog).ForEach(func(k, v []byte) error {
			var entry LogEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			if entry.Namespace == t.Namespace && entry.Title == t.DBKey {
				entries = append(entries, entry)
			}
			return nil
		})
	})
	return entries, err
}

// Tx is a registry transaction
type Tx struct {
	tx *bolt.Tx
}

// Bolt returns the underlying transaction for stores sharing the database
func (t *Tx) Bolt() *bolt.Tx {
	return t.tx
}

// IsForked reports whether a forked_titles row exists for title
func (t *Tx) IsForked(title model.Title) bool {
	return t.tx.Bucket(bucketForkedTitles).Get([]byte(title.Key())) != nil
}

// InsertFork inserts a forked_titles row
func (t *Tx) InsertFork(rec ForkRecord) error {
	b := t.tx.Bucket(bucketForkedTitles)
	key := []byte(model.Title{Namespace: rec.Namespace, DBKey: rec.Title}.Key())
	if b.Get(key) != nil {
		return fmt.Errorf("%s: %w", key, ErrAlreadyForked)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

// DeleteFork removes the forked_titles row for title
func (t *Tx) DeleteFork(title model.Title) error {
	b := t.tx.Bucket(bucketForkedTitles)
	key := []byte(title.Key())
	if b.Get(key) == nil {
		return fmt.Errorf("fork %s: %w", key, ErrNotFound)
	}
	return b.Delete(key)
}

// AppendLog stores an audit entry, assigning its id and timestamp if unset
func (t *Tx) AppendLog(entry *LogEntry) error {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate log id: %w", err)
		}
		entry.ID = id.String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return t.tx.Bucket(bucketMirrorLog).Put([]byte(entry.ID), data)
}

func idKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}
