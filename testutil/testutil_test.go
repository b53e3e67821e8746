package testutil

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestRNG_Reproducible(t *testing.T) {
	a := NewRNG(4711)
	b := NewRNG(4711)
	assert.Equal(t, a.Text(32), b.Text(32))

	first := a.Intn(1000)
	a.Reset()
	a.Text(32)
	assert.Equal(t, first, a.Intn(1000))
}

func TestText(t *testing.T) {
	rng := NewRNG(1)
	s := rng.Text(40)
	assert.Equal(t, 40, utf8.RuneCountInString(s))
}

func TestSubset(t *testing.T) {
	rng := NewRNG(2)
	all := []string{"a", "b", "c", "d"}

	sub := rng.Subset(all, 2)
	assert.Len(t, sub, 2)
	assert.NotEqual(t, sub[0], sub[1])
	assert.Subset(t, all, sub)

	assert.ElementsMatch(t, all, rng.Subset(all, 10))
	assert.Equal(t, []string{"a", "b", "c", "d"}, all)
}

func TestDuration(t *testing.T) {
	rng := NewRNG(3)
	for i := 0; i < 100; i++ {
		d := rng.Duration(time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, time.Millisecond)
	}
	assert.Equal(t, time.Duration(0), rng.Duration(0))
}
