package model

import (
	"errors"
	"fmt"
	"time"
)

// ContentModelMirror tags pages served from the remote wiki
const ContentModelMirror = "mirror"

// ErrSlotMissing is returned when a revision has no slot with the requested role
var ErrSlotMissing = errors.New("slot not found")

// Language describes a page language
type Language struct {
	Code     string `json:"code"`
	HTMLCode string `json:"htmlcode"`
	Dir      string `json:"dir"`
}

// RedirectTarget is the namespace and DB key a redirect resolves to
type RedirectTarget struct {
	Namespace int    `json:"ns"`
	DBKey     string `json:"dbkey"`
}

// Title converts the target into a title
func (r RedirectTarget) Title() Title {
	return Title{Namespace: r.Namespace, DBKey: r.DBKey}
}

// PageInfo is the remote page identity plus its latest revision
type PageInfo struct {
	PageID       int64           `json:"pageid"`
	Namespace    int             `json:"ns"`
	Title        string          `json:"title"`
	ContentModel string          `json:"contentmodel"`
	Language     Language        `json:"language"`
	Touched      string          `json:"touched"`
	LastRevID    int64           `json:"lastrevid"`
	Length       int64           `json:"length"`
	Redirect     *RedirectTarget `json:"redirect,omitempty"`
	DisplayTitle string          `json:"displaytitle"`
	Revision     *RevisionInfo   `json:"revision,omitempty"`
}

// IsRedirect reports whether the remote page is a redirect
func (p *PageInfo) IsRedirect() bool {
	return p.Redirect != nil
}

// TouchedTime parses the touched timestamp
func (p *PageInfo) TouchedTime() (time.Time, error) {
	return time.Parse(time.RFC3339, p.Touched)
}

// SlotInfo describes one content slot of a revision
type SlotInfo struct {
	Role          string        `json:"role"`
	Size          int64         `json:"size"`
	SHA1          Field[string] `json:"sha1"`
	ContentModel  string        `json:"contentmodel"`
	ContentFormat Field[string] `json:"contentformat"`
	Content       Field[string] `json:"content"`
}

// RevisionInfo is the metadata of a remote revision
type RevisionInfo struct {
	RevID         int64               `json:"revid"`
	ParentID      int64               `json:"parentid"`
	User          Field[string]       `json:"user"`
	UserID        Field[int64]        `json:"userid"`
	Timestamp     string              `json:"timestamp"`
	Size          int64               `json:"size"`
	SHA1          Field[string]       `json:"sha1"`
	Comment       Field[string]       `json:"comment"`
	ParsedComment Field[string]       `json:"parsedcomment"`
	Minor         bool                `json:"minor"`
	Tags          []string            `json:"tags"`
	Roles         []string            `json:"roles"`
	Slots         map[string]SlotInfo `json:"slots"`
}

// Slot returns the slot for a role
func (r *RevisionInfo) Slot(role string) (SlotInfo, error) {
	slot, ok := r.Slots[role]
	if !ok {
		return SlotInfo{}, fmt.Errorf("%w: %s on revision %d", ErrSlotMissing, role, r.RevID)
	}
	return slot, nil
}

// TimestampTime parses the revision timestamp
func (r *RevisionInfo) TimestampTime() (time.Time, error) {
	return time.Parse(time.RFC3339, r.Timestamp)
}
