package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppID_Deterministic(t *testing.T) {
	assert.Equal(t, AppID(7), AppID(7))
	assert.NotEqual(t, AppID(7), AppID(8))
	assert.Equal(t, "00000000-0000-0000-0000-00000000000a", AppID(10).String())
}

func TestAppIDs(t *testing.T) {
	ids := AppIDs(3)
	assert.Len(t, ids, 3)
	assert.Equal(t, AppID(1), ids[0])
	assert.Equal(t, AppID(3), ids[2])
}
