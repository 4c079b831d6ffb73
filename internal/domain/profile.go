package domain

// ProfileRecord is a remote user's advertised display profile. Records are
// gossiped with a revision counter; merge is last-writer-wins per record,
// revision monotonically non-decreasing.
type ProfileRecord struct {
	UserID        UserID `json:"user_id"`
	DisplayName   string `json:"display_name"`
	SecondaryName string `json:"secondary_name,omitempty"`
	ShowSecondary bool   `json:"show_secondary"`
	Revision      uint64 `json:"rev"`
}

// Merge applies incoming over p and reports whether anything changed.
// Incoming records with an older revision are discarded; an equal revision
// is also discarded so that replayed gossip is a no-op.
func (p *ProfileRecord) Merge(incoming ProfileRecord) bool {
	if incoming.UserID != p.UserID {
		return false
	}
	if incoming.Revision <= p.Revision && p.Revision != 0 {
		return false
	}
	*p = incoming
	return true
}
