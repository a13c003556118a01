package model

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, Category("complaint").Valid())
	assert.False(t, Category("").Valid())
}

func TestCategoryTitle(t *testing.T) {
	assert.Equal(t, "Question", CategoryQuestion.Title())
	assert.Equal(t, "Initiative", CategoryInitiative.Title())
	assert.Equal(t, "Unspecified", Category("").Title())
}

func TestAuthorDisplayName(t *testing.T) {
	assert.Equal(t, "Jane Doe", Author{FirstName: "Jane", LastName: "Doe"}.FullName())
	assert.Equal(t, "@jane", Author{ID: 1, Username: "jane", FirstName: "Jane"}.DisplayName())
	assert.Equal(t, "Jane Doe", Author{ID: 1, FirstName: "Jane", LastName: "Doe"}.DisplayName())
	assert.Equal(t, "Doe", Author{ID: 1, LastName: "Doe"}.DisplayName())
	assert.Equal(t, "id 77", Author{ID: 77}.DisplayName())
}

func TestAdministratorSelfGranted(t *testing.T) {
	assert.True(t, Administrator{UserID: 5}.SelfGranted())
	assert.True(t, Administrator{UserID: 5, AddedBy: sql.NullInt64{Int64: 5, Valid: true}}.SelfGranted())
	assert.False(t, Administrator{UserID: 5, AddedBy: sql.NullInt64{Int64: 9, Valid: true}}.SelfGranted())
}

func TestInquiryJSONKeepsAuthorID(t *testing.T) {
	raw, err := json.Marshal(Inquiry{ID: 3, Author: Author{ID: 42}, Category: CategoryProblem, Body: "x"})
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.EqualValues(t, 3, out["id"])
	assert.EqualValues(t, 42, out["author_id"])
}
