package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	c, ok := Resolve("pantry")
	assert.True(t, ok)
	assert.Equal(t, Pantry, c)

	c, ok = Resolve("  PRODUCE ")
	assert.True(t, ok)
	assert.Equal(t, Produce, c)

	_, ok = Resolve("garden center")
	assert.False(t, ok)
}

func TestAssign(t *testing.T) {
	a := NewAssigner(map[string]string{"gochujang": "condiments", "mystery": "not a category"})

	assert.Equal(t, Produce, a.Assign("tomato", "", ""))
	assert.Equal(t, Pantry, a.Assign("pasta", "dry goods", ""))
	assert.Equal(t, DairyEggs, a.Assign("pasta", "", "Dairy & Eggs"), "stored category wins over guess")
	assert.Equal(t, Condiments, a.Assign("gochujang", "", ""))
	assert.Equal(t, Produce, a.Assign("cherry tomato", "", ""))
	assert.Equal(t, Uncategorized, a.Assign("mystery", "", ""))
}

func TestRank(t *testing.T) {
	assert.Less(t, Rank(Produce), Rank(Pantry))
	assert.Equal(t, len(All), Rank("Garden"))
}
