package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusValid(t *testing.T) {
	for _, s := range AllStatuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, StatusUnanalyzed.Valid())
	assert.False(t, StatusUnregistered.Valid())
	assert.False(t, Status("processing").Valid())
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("in_progress")
	assert.True(t, ok)
	assert.Equal(t, StatusInProgress, s)

	_, ok = ParseStatus("done")
	assert.False(t, ok)
}
