package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryTableCoversEveryType(t *testing.T) {
	for _, typ := range knownTypes {
		c, ok := CategoryOf(typ)
		assert.True(t, ok, typ)
		assert.Contains(t, categories, c)
	}
}

func TestValidateCategoryTable(t *testing.T) {
	assert.NoError(t, validateCategoryTable(knownTypes, categories, typeCategories))

	missing := map[Type]Category{TypeLike: CategoryLike}
	assert.ErrorContains(t, validateCategoryTable([]Type{TypeLike, TypeFollow}, categories, missing), "FOLLOW")

	undeclared := map[Type]Category{TypeLike: Category("reactions")}
	assert.ErrorContains(t, validateCategoryTable([]Type{TypeLike}, categories, undeclared), "undeclared")
}

func TestPreferenceSnapshotAllows(t *testing.T) {
	noLikes := PreferenceSnapshot{All: true, Categories: map[Category]bool{CategoryLike: false, CategoryComment: true}}

	tests := []struct {
		name string
		snap PreferenceSnapshot
		typ  Type
		want bool
	}{
		{name: "default allows everything", snap: DefaultSnapshot(), typ: TypeMention, want: true},
		{name: "muted category drops", snap: noLikes, typ: TypeLike, want: false},
		{name: "enabled category kept", snap: noLikes, typ: TypeReply, want: true},
		{name: "unset category kept", snap: noLikes, typ: TypeFollow, want: true},
		{name: "global off drops", snap: PreferenceSnapshot{All: false}, typ: TypeComment, want: false},
		{name: "unknown type kept", snap: noLikes, typ: Type("ANNOUNCEMENT"), want: true},
		{name: "tag types share a switch", snap: PreferenceSnapshot{All: true, Categories: map[Category]bool{CategoryTag: false}}, typ: TypePlaylistTagged, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.snap.Allows(tt.typ))
		})
	}
}

func TestNotificationPreferenceSnapshot(t *testing.T) {
	p := NotificationPreference{All: true, NewContent: true, Comment: true, Like: false, Follow: true, Mention: true, Tag: true}
	snap := p.Snapshot()

	assert.True(t, snap.Allows(TypeNewAlbum))
	assert.False(t, snap.Allows(TypeLike))
}
