// Package fork converts mirrored titles into local ones and back. A fork
// either imports the latest remote revision or tombstones the title; both
// record a forked_titles row in the same transaction as the import.
package fork

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/ppiankov/wikimirror/internal/localwiki"
	"github.com/ppiankov/wikimirror/internal/log"
	"github.com/ppiankov/wikimirror/internal/metrics"
	"github.com/ppiankov/wikimirror/internal/mirror"
	"github.com/ppiankov/wikimirror/internal/model"
	"github.com/ppiankov/wikimirror/internal/registry"
)

var (
	// ErrNotMirrorable is returned when forking a title that is not mirrored
	ErrNotMirrorable = errors.New("title is not mirrored")
	// ErrMultiSlot is returned for remote revisions with slots besides main
	ErrMultiSlot = errors.New("only single-slot revisions can be forked")
	// ErrImport is returned when the local wiki rejects the imported revision
	ErrImport = errors.New("import failed")
	// ErrNotForked is returned when restoring a title that was never forked
	ErrNotForked = errors.New("title is not forked")
	// ErrExistsLocally is returned when restoring a title that has a local page
	ErrExistsLocally = errors.New("title exists locally")
)

// Log types and actions
const (
	LogTypeImport = "import"
	LogTypeDelete = "delete"
	ActionFork    = "fork"
	ActionMirror  = "mirror"
)

const unknownUser = "Unknown user"

// Host is the local wiki that receives imported pages
type Host interface {
	PageExists(ctx context.Context, t model.Title) (bool, error)
	Import(tx *bolt.Tx, rev *localwiki.Revision) (*localwiki.Page, error)
	Watch(user string, t model.Title) error
}

// Request describes a fork
type Request struct {
	Title model.Title
	// Import copies the latest remote revision; otherwise the title is
	// tombstoned as deleted
	Import  bool
	Comment string
	Watch   bool
	User    string
}

// Service runs fork and unfork operations
type Service struct {
	mirror     *mirror.Mirror
	registry   *registry.Store
	host       Host
	userPrefix string
	now        func() time.Time
	logger     zerolog.Logger
}

// New creates a fork service. userPrefix is prepended to the names of
// registered remote authors.
func New(m *mirror.Mirror, host Host, userPrefix string) *Service {
	return &Service{
		mirror:     m,
		registry:   m.Registry(),
		host:       host,
		userPrefix: userPrefix,
		now:        time.Now,
		logger:     log.WithComponent("fork"),
	}
}

// Fork stops mirroring req.Title, importing its latest remote revision when
// requested. Nothing is written unless every step succeeds.
func (s *Service) Fork(ctx context.Context, req Request) (*registry.LogEntry, error) {
	t := req.Title
	codec := s.mirror.Codec()

	if !s.mirror.CanMirror(ctx, t, false) {
		return nil, fmt.Errorf("%w: %s", ErrNotMirrorable, codec.PrefixedText(t))
	}

	page, err := s.mirror.GetCachedPage(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("fork %s: %w", codec.PrefixedText(t), err)
	}
	text, err := s.mirror.GetCachedText(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("fork %s: %w", codec.PrefixedText(t), err)
	}

	rev := page.Revision
	if rev == nil {
		return nil, fmt.Errorf("%w: %s has no revision", ErrNotMirrorable, codec.PrefixedText(t))
	}
	main, ok := rev.Slots["main"]
	if len(rev.Slots) != 1 || !ok {
		return nil, fmt.Errorf("%w: %s has %d slots", ErrMultiSlot, codec.PrefixedText(t), len(rev.Slots))
	}

	link, err := s.interwikiLink(t)
	if err != nil {
		return nil, err
	}

	entry := &registry.LogEntry{
		Type:      LogTypeDelete,
		Action:    ActionFork,
		Namespace: t.Namespace,
		Title:     t.DBKey,
		Performer: req.User,
		Comment:   req.Comment,
		Params:    map[string]string{"interwiki": link},
	}

	err = s.registry.Update(func(tx *registry.Tx) error {
		if err := tx.InsertFork(registry.ForkRecord{
			Namespace:      t.Namespace,
			Title:          t.DBKey,
			RemotePage:     page.PageID,
			RemoteRevision: page.LastRevID,
			Forked:         s.now().UTC(),
			Imported:       !req.Import,
		}); err != nil {
			return err
		}

		if req.Import {
			s.mirror.MarkForImport(t)
			local, err := s.host.Import(tx.Bolt(), s.revision(t, rev, main, text))
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrImport, codec.PrefixedText(t), err)
			}
			entry.Type = LogTypeImport
			entry.PageID = local.ID
		}

		return tx.AppendLog(entry)
	})
	s.mirror.Invalidate(t)
	if err != nil {
		return nil, err
	}

	s.publish(entry)

	if req.Watch && req.User != "" {
		if err := s.host.Watch(req.User, t); err != nil {
			s.logger.Warn().Err(err).Str("title", t.Key()).Str("user", req.User).Msg("failed to watch forked page")
		}
	}
	return entry, nil
}

// revision builds the local copy of the latest remote revision
func (s *Service) revision(t model.Title, rev *model.RevisionInfo, main model.SlotInfo, text *model.ParsedText) *localwiki.Revision {
	timestamp, err := rev.TimestampTime()
	if err != nil {
		timestamp = s.now().UTC()
	}
	format, _ := main.ContentFormat.Get()
	comment, _ := rev.Comment.Get()

	return &localwiki.Revision{
		Namespace: t.Namespace,
		Title:     t.DBKey,
		Content:   text.Wikitext,
		Model:     main.ContentModel,
		Format:    format,
		Comment:   comment,
		User:      s.attribute(rev),
		Timestamp: timestamp,
	}
}

// attribute names the author of an imported revision. Registered remote
// users get the external prefix; anonymous editors keep their address.
func (s *Service) attribute(rev *model.RevisionInfo) string {
	name, ok := rev.User.Get()
	if !ok || name == "" {
		return unknownUser
	}
	if id, _ := rev.UserID.Get(); id != 0 && s.userPrefix != "" {
		return s.userPrefix + ">" + name
	}
	return name
}

// Unfork restores mirroring of a tombstoned title
func (s *Service) Unfork(ctx context.Context, t model.Title, user, comment string) (*registry.LogEntry, error) {
	codec := s.mirror.Codec()

	exists, err := s.host.PageExists(ctx, t)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrExistsLocally, codec.PrefixedText(t))
	}

	link, err := s.interwikiLink(t)
	if err != nil {
		return nil, err
	}

	entry := &registry.LogEntry{
		Type:      LogTypeDelete,
		Action:    ActionMirror,
		Namespace: t.Namespace,
		Title:     t.DBKey,
		Performer: user,
		Comment:   comment,
		Params:    map[string]string{"interwiki": link},
	}

	err = s.registry.Update(func(tx *registry.Tx) error {
		if err := tx.DeleteFork(t); err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrNotForked, codec.PrefixedText(t))
			}
			return err
		}
		return tx.AppendLog(entry)
	})
	if err != nil {
		return nil, err
	}

	s.mirror.Invalidate(t)
	s.publish(entry)
	return entry, nil
}

func (s *Service) interwikiLink(t model.Title) (string, error) {
	prefix, err := s.mirror.Interwiki()
	if err != nil {
		return "", err
	}
	return prefix + ":" + s.mirror.Codec().PrefixedText(t), nil
}

// publish announces a committed log entry
func (s *Service) publish(entry *registry.LogEntry) {
	metrics.ForksTotal.WithLabelValues(entry.Type).Inc()
	s.logger.Info().
		Str("log_id", entry.ID).
		Str("type", entry.Type).
		Str("action", entry.Action).
		Str("title", model.Title{Namespace: entry.Namespace, DBKey: entry.Title}.Key()).
		Str("performer", entry.Performer).
		Msg("mirror log entry published")
}
