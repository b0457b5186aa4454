package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLimitClamps(t *testing.T) {
	require.Equal(t, DefaultPageSize, Pagination{}.Limit())
	require.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	require.Equal(t, 5, Pagination{PageSize: 5}.Limit())
}

func TestTrimProducesCursor(t *testing.T) {
	rows := []int{5, 4, 3}
	page, info, err := Trim(rows, 2, func(v int) Cursor {
		return Cursor{ID: string(rune('0' + v))}
	})
	require.NoError(t, err)
	require.Equal(t, []int{5, 4}, page)
	require.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	require.Equal(t, "4", cursor.ID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("!!!")
	require.ErrorIs(t, err, ErrInvalidPageToken)

	cursor, err := DecodeCursor("")
	require.NoError(t, err)
	require.Nil(t, cursor)
}
