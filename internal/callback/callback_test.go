package callback

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	id := uuid.NewString()

	d, err := Decode("select_user", id)
	require.NoError(t, err)
	assert.Equal(t, SelectUser, d.Action)
	assert.Equal(t, id, d.ID)

	d, err = Decode("confirm_expense", "")
	require.NoError(t, err)
	assert.Equal(t, New(ConfirmExpense, ""), d)

	_, err = Decode("select_group", "")
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = Decode("au_bob_Trip", "")
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = Decode("join_group", strings.Repeat("x", 60))
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestParseEncode(t *testing.T) {
	id := uuid.NewString()
	for _, a := range Actions {
		d := New(a, "")
		if a.needsID() {
			d.ID = id
		}
		require.NoError(t, d.Validate(), a)

		got, err := Parse("\f" + d.Encode())
		require.NoError(t, err, a)
		assert.Equal(t, d, got)
	}
}
