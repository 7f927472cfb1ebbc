package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_CanModerate(t *testing.T) {
	tests := []struct {
		role     Role
		expected bool
	}{
		{RoleAdmin, true},
		{RoleModerator, true},
		{RoleMember, false},
		{Role(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			user := &User{Role: tt.role}
			assert.Equal(t, tt.expected, user.CanModerate())
		})
	}
}

func TestUser_Name(t *testing.T) {
	assert.Equal(t, "Anna", (&User{DisplayName: "Anna", Email: "anna@example.com"}).Name())
	assert.Equal(t, "anna@example.com", (&User{Email: "anna@example.com"}).Name())
}

func TestModerationAction_ResultStatus(t *testing.T) {
	tests := []struct {
		action ModerationAction
		want   SuggestionStatus
		ok     bool
	}{
		{ActionApprove, SuggestionApproved, true},
		{ActionDeny, SuggestionDenied, true},
		{ActionMerge, SuggestionMerged, true},
		{ModerationAction("archive"), "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			got, ok := tt.action.ResultStatus()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTagSuggestion_PrimaryParentID(t *testing.T) {
	s := &TagSuggestion{ParentTagIDs: []string{"tag-a", "tag-b"}}
	assert.Equal(t, "tag-a", s.PrimaryParentID())

	empty := &TagSuggestion{}
	assert.Empty(t, empty.PrimaryParentID())
}

func TestSameName(t *testing.T) {
	assert.True(t, SameName("Basketball", "  basketBALL "))
	assert.False(t, SameName("Basketball", "Baseball"))
}

func TestTagLevel_Valid(t *testing.T) {
	assert.False(t, TagLevel(0).Valid())
	assert.True(t, LevelCategory.Valid())
	assert.True(t, LevelSpecific.Valid())
	assert.False(t, TagLevel(4).Valid())
}

func TestNameKey_FoldsLatvian(t *testing.T) {
	assert.Equal(t, NameKey("šahs"), NameKey(" ŠAHS "))
	assert.NotEqual(t, NameKey("šahs"), NameKey("sahs"))
}
