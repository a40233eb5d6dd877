package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginationNormalize(t *testing.T) {
	tests := []struct {
		name     string
		in       PaginationMeta
		wantNext bool
		wantPrev bool
	}{
		{"first of many", PaginationMeta{CurrentPage: 1, TotalPages: 3, HasPrevious: true}, true, false},
		{"middle", PaginationMeta{CurrentPage: 2, TotalPages: 3}, true, true},
		{"last", PaginationMeta{CurrentPage: 3, TotalPages: 3, HasNext: true}, false, true},
		{"empty", PaginationMeta{CurrentPage: 0, TotalPages: 0}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.wantNext, got.HasNext)
			assert.Equal(t, tt.wantPrev, got.HasPrevious)
		})
	}
}

func TestUserMerge(t *testing.T) {
	first := "Ada"
	u := User{ID: "1", FirstName: "A", LastName: "Lovelace"}
	merged := u.Merge(UserPatch{FirstName: &first})

	assert.Equal(t, "Ada", merged.FirstName)
	assert.Equal(t, "Lovelace", merged.LastName)
	assert.Equal(t, "A", u.FirstName, "original must be untouched")
}

func TestUniqueBooks(t *testing.T) {
	books := []Book{{ID: "1", Title: "a"}, {ID: "2"}, {ID: "1", Title: "b"}}
	got := UniqueBooks(books)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Title)
	assert.Nil(t, UniqueBooks(nil))
	assert.Equal(t, 1, IndexOfBook(got, "2"))
	assert.Equal(t, -1, IndexOfBook(got, "3"))
}

func TestNotificationAcceptsMessageAlias(t *testing.T) {
	var n Notification
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","title":"t","message":"hello","type":"SYSTEM","isRead":false}`), &n))
	assert.Equal(t, "hello", n.Body)
	assert.Equal(t, NotificationSystem, n.Type)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"2","body":"from body","message":"ignored"}`), &n))
	assert.Equal(t, "from body", n.Body)
	assert.Equal(t, "2", n.ID)
}

func TestEnumsValid(t *testing.T) {
	assert.True(t, FormatEPUB.Valid())
	assert.False(t, BookFormat("DOCX").Valid())
	assert.True(t, NotificationReadingReminder.Valid())
	assert.False(t, NotificationType("PROMO").Valid())
}
