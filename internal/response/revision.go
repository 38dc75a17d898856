package response

import (
	"github.com/ppiankov/wikimirror/internal/model"
)

// NewRevisionInfo converts a raw revision, honouring the *hidden sentinels
func NewRevisionInfo(raw *RawRevision) model.RevisionInfo {
	rev := model.RevisionInfo{
		RevID:     raw.RevID,
		ParentID:  raw.ParentID,
		Timestamp: raw.Timestamp,
		Size:      raw.Size,
		Minor:     raw.Minor,
		Tags:      nonNil(raw.Tags),
		Roles:     nonNil(raw.Roles),
		Slots:     make(map[string]model.SlotInfo, len(raw.Slots)),
	}

	if raw.UserHidden {
		rev.User = model.HiddenField[string]()
		rev.UserID = model.HiddenField[int64]()
	} else {
		rev.User = fieldFrom(raw.User)
		rev.UserID = fieldFrom(raw.UserID)
	}

	if raw.SHA1Hidden {
		rev.SHA1 = model.HiddenField[string]()
	} else {
		rev.SHA1 = fieldFrom(raw.SHA1)
	}

	if raw.CommentHidden {
		rev.Comment = model.HiddenField[string]()
		rev.ParsedComment = model.HiddenField[string]()
	} else {
		rev.Comment = fieldFrom(raw.Comment)
		rev.ParsedComment = fieldFrom(raw.ParsedComment)
	}

	for role, slot := range raw.Slots {
		info := model.SlotInfo{
			Role:         role,
			Size:         slot.Size,
			ContentModel: slot.ContentModel,
		}
		if slot.SHA1Hidden {
			info.SHA1 = model.HiddenField[string]()
		} else {
			info.SHA1 = fieldFrom(slot.SHA1)
		}
		if slot.TextHidden {
			info.ContentFormat = model.HiddenField[string]()
			info.Content = model.HiddenField[string]()
		} else {
			info.ContentFormat = fieldFrom(slot.ContentFormat)
			info.Content = fieldFrom(slot.Content)
		}
		rev.Slots[role] = info
	}

	return rev
}

func fieldFrom[T any](v *T) model.Field[T] {
	if v == nil {
		return model.Field[T]{}
	}
	return model.FieldOf(*v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
