package testutil

import (
	"fmt"

	"github.com/google/uuid"
)

// AppID returns a deterministic app ID for test n.
//
// The same n always yields the same UUID, so compiled selector values are
// stable in golden files:
//
//	AppID(1) == 00000000-0000-0000-0000-000000000001
func AppID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012x", n))
}

// AppIDs returns AppID(1) through AppID(count).
func AppIDs(count int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, count)
	for i := 1; i <= count; i++ {
		ids = append(ids, AppID(i))
	}
	return ids
}
