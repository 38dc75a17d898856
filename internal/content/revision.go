package content

import (
	"errors"
	"sort"
	"time"

	"github.com/ppiankov/wikimirror/internal/model"
)

// ErrNoRevision is returned for page info fetched without its latest revision
var ErrNoRevision = errors.New("remote page has no revision data")

// Revision is the latest remote revision of a mirrored page
type Revision struct {
	page *model.PageInfo
	rev  *model.RevisionInfo
	body *Content
}

// NewRevision wraps the latest revision embedded in page. body supplies the
// content of every slot.
func NewRevision(page *model.PageInfo, body *Content) (*Revision, error) {
	if page.Revision == nil {
		return nil, ErrNoRevision
	}
	return &Revision{page: page, rev: page.Revision, body: body}, nil
}

func (r *Revision) ID() int64       { return r.rev.RevID }
func (r *Revision) ParentID() int64 { return r.rev.ParentID }
func (r *Revision) Size() int64     { return r.rev.Size }
func (r *Revision) IsMinor() bool   { return r.rev.Minor }
func (r *Revision) Tags() []string  { return r.rev.Tags }

// SHA1 returns the revision hash, or false when hidden
func (r *Revision) SHA1() (string, bool) {
	return r.rev.SHA1.Get()
}

// User returns the author name, or false when hidden
func (r *Revision) User() (string, bool) {
	return r.rev.User.Get()
}

// UserID returns the author's remote user id; zero for anonymous authors
func (r *Revision) UserID() int64 {
	return r.rev.UserID.OrZero()
}

// Comment returns the edit summary, or false when hidden
func (r *Revision) Comment() (string, bool) {
	return r.rev.Comment.Get()
}

// Timestamp returns when the revision was saved
func (r *Revision) Timestamp() (time.Time, error) {
	return r.rev.TimestampTime()
}

// Slot is one content slot of a remote revision
type Slot struct {
	RevisionID int64
	Origin     int64
	Role       string
	Size       int64
	SHA1       model.Field[string]
	Model      string

	content *Content
}

// Content returns the slot body. Every slot of a mirrored revision renders
// through the same mirror content.
func (s *Slot) Content() *Content {
	return s.content
}

// Slots returns the revision's slots ordered by role, main first
func (r *Revision) Slots() []*Slot {
	roles := make([]string, 0, len(r.rev.Slots))
	for role := range r.rev.Slots {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool {
		if roles[i] == "main" || roles[j] == "main" {
			return roles[i] == "main"
		}
		return roles[i] < roles[j]
	})

	slots := make([]*Slot, 0, len(roles))
	for _, role := range roles {
		slot, _ := r.Slot(role)
		slots = append(slots, slot)
	}
	return slots
}

// Slot returns the slot with the given role
func (r *Revision) Slot(role string) (*Slot, error) {
	info, err := r.rev.Slot(role)
	if err != nil {
		return nil, err
	}
	return &Slot{
		RevisionID: r.rev.RevID,
		Origin:     r.rev.RevID,
		Role:       role,
		Size:       info.Size,
		SHA1:       info.SHA1,
		Model:      info.ContentModel,
		content:    r.body,
	}, nil
}
