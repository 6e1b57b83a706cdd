package model

// Filter selects records by a closed timestamp window plus optional
// per-field predicates. All supplied predicates must match.
type Filter struct {
	// From and To bound ts inclusively, as seconds since epoch.
	From float64 `json:"from"`
	To   float64 `json:"to"`

	UserID     *string `json:"user_id,omitempty"`
	StatusCode *int    `json:"status_code,omitempty"`

	// FileIDs restricts the scan to the named files. Empty means all.
	FileIDs []string `json:"file_ids,omitempty"`
}

// Matches reports whether rec satisfies every predicate in f.
func (f Filter) Matches(rec *LogRecord) bool {
	if rec.TS < f.From || rec.TS > f.To {
		return false
	}
	if f.UserID != nil && rec.UserID != *f.UserID {
		return false
	}
	if f.StatusCode != nil && rec.StatusCode != *f.StatusCode {
		return false
	}
	if len(f.FileIDs) > 0 {
		found := false
		for _, id := range f.FileIDs {
			if id == rec.FileID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
