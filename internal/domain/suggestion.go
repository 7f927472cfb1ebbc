package domain

import "time"

// SuggestionStatus is the moderation state of a tag suggestion.
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "PENDING"
	SuggestionApproved SuggestionStatus = "APPROVED"
	SuggestionDenied   SuggestionStatus = "DENIED"
	SuggestionMerged   SuggestionStatus = "MERGED"
)

// Valid reports whether s is a known suggestion status.
func (s SuggestionStatus) Valid() bool {
	switch s {
	case SuggestionPending, SuggestionApproved, SuggestionDenied, SuggestionMerged:
		return true
	}
	return false
}

// ModerationAction is a moderator's decision on a pending suggestion.
type ModerationAction string

const (
	ActionApprove ModerationAction = "approve"
	ActionDeny    ModerationAction = "deny"
	ActionMerge   ModerationAction = "merge"
)

// ResultStatus maps an action to the suggestion status it produces.
func (a ModerationAction) ResultStatus() (SuggestionStatus, bool) {
	switch a {
	case ActionApprove:
		return SuggestionApproved, true
	case ActionDeny:
		return SuggestionDenied, true
	case ActionMerge:
		return SuggestionMerged, true
	}
	return "", false
}

// TagSuggestion is a user-submitted proposal for a new level-3 tag.
// Once it leaves PENDING it is immutable.
type TagSuggestion struct {
	ID             string           `json:"id"`
	NameEn         string           `json:"name_en"`
	NameLv         string           `json:"name_lv"`
	Level          TagLevel         `json:"level"`
	ParentTagIDs   []string         `json:"parent_tag_ids"` // Ordered; the first becomes the primary parent
	SubmitterID    string           `json:"submitter_id"`
	Status         SuggestionStatus `json:"status"`
	ModeratorID    string           `json:"moderator_id,omitempty"`
	ModeratedAt    *time.Time       `json:"moderated_at,omitempty"`
	ModeratorNotes string           `json:"moderator_notes,omitempty"`
	MergedIntoID   string           `json:"merged_into_tag_id,omitempty"`
	CreatedTagID   string           `json:"created_tag_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsPending returns true if the suggestion still awaits a decision.
func (s *TagSuggestion) IsPending() bool {
	return s.Status == SuggestionPending
}

// PrimaryParentID returns the parent the approved tag will hang under.
func (s *TagSuggestion) PrimaryParentID() string {
	if len(s.ParentTagIDs) == 0 {
		return ""
	}
	return s.ParentTagIDs[0]
}

// Resolution describes the terminal transition applied to a suggestion.
type Resolution struct {
	Status         SuggestionStatus
	ModeratorID    string
	ModeratorNotes string
	MergedIntoID   string
	CreatedTagID   string
	ModeratedAt    time.Time
}
