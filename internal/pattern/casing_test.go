package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCasingApply(t *testing.T) {
	cases := []struct {
		casing Casing
		in     string
		want   string
	}{
		{CasingOriginal, "New York", "New York"},
		{CasingLower, "New York", "new york"},
		{CasingUpper, "New York", "NEW YORK"},
		{CasingTitle, "new york city", "New York City"},
		{CasingPascal, "new york city", "NewYorkCity"},
		{CasingCamel, "new york city", "newYorkCity"},
		{CasingSnake, "New York City", "new_york_city"},
		{CasingKebab, "New York City", "new-york-city"},
		{CasingScreamingSnake, "New York City", "NEW_YORK_CITY"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.casing.Apply(c.in), "casing %d on %q", c.casing, c.in)
	}
}

func TestCasingPreservesDiacritics(t *testing.T) {
	assert.Equal(t, "são paulo", CasingLower.Apply("São Paulo"))
	assert.Equal(t, "SÃO PAULO", CasingUpper.Apply("São Paulo"))
	assert.Equal(t, "SaoPaulo", CasingPascal.Apply("Sao Paulo"))
	assert.Contains(t, CasingTitle.Apply("são paulo"), "ã")
}

func TestCasingHandlesAlreadyDelimitedInput(t *testing.T) {
	assert.Equal(t, "new-york", CasingKebab.Apply("new_york"))
	assert.Equal(t, "NewYork", CasingPascal.Apply("new-york"))
}

func TestCasingOnEmptyString(t *testing.T) {
	assert.Equal(t, "", CasingSnake.Apply(""))
	assert.Equal(t, "", CasingPascal.Apply(""))
}
