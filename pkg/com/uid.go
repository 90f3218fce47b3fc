package com

import "github.com/rs/xid"

// Uid is a process-unique sortable id.
type Uid struct {
	xid.ID
}

var NilUid = Uid{xid.NilID()}

func NewUid() Uid { return Uid{xid.New()} }

// ParseUid restores an id from its string form.
func ParseUid(s string) (Uid, error) {
	id, err := xid.FromString(s)
	if err != nil {
		return NilUid, err
	}
	return Uid{id}, nil
}

func (u Uid) Short() string { return u.String()[:3] + "." + u.String()[len(u.String())-3:] }
