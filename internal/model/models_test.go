package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotEnsure(t *testing.T) {
	snap := Snapshot{}
	rec := snap.Ensure("42")
	assert.Equal(t, &UserRecord{UserID: "42"}, rec)

	rec.Balance = 10
	assert.Same(t, rec, snap.Ensure("42"))
	assert.Len(t, snap, 1)
}

func TestSnapshotClone(t *testing.T) {
	snap := Snapshot{"42": {LastDrawDate: "2024-01-01", Balance: 3}, "nil": nil}
	cp := snap.Clone()

	cp["42"].Balance = 99
	assert.Equal(t, int64(3), snap["42"].Balance)
	assert.Equal(t, "42", cp["42"].UserID)
	assert.NotContains(t, cp, "nil")
}

func TestHasDrawnOn(t *testing.T) {
	rec := &UserRecord{}
	assert.False(t, rec.HasDrawnOn(""))
	assert.False(t, rec.HasDrawnOn("2024-01-01"))

	rec.LastDrawDate = "2024-01-01"
	assert.True(t, rec.HasDrawnOn("2024-01-01"))
	assert.False(t, rec.HasDrawnOn("2024-01-02"))
}
