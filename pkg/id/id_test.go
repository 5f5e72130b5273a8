package id

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsUniqueAndSorted(t *testing.T) {
	t.Parallel()

	ids := make([]string, 200)
	for i := range ids {
		ids[i] = New()
	}

	assert.True(t, sort.StringsAreSorted(ids), "ids must sort in mint order")
	for i := 1; i < len(ids); i++ {
		assert.NotEqual(t, ids[i-1], ids[i])
	}
	assert.Len(t, ids[0], 26)
}
