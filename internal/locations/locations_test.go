package locations

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllIncludesDistrictsAndVenues(t *testing.T) {
	all := All()
	assert.Contains(t, all, "Арбат")
	assert.Contains(t, all, "Стадион Лужники")
	assert.Greater(t, len(all), 100)
}

func TestSearchEmptyQuery(t *testing.T) {
	assert.Nil(t, Search(""))
	assert.Nil(t, Search("   "))
}

func TestSearchPrefixBeatsSubstring(t *testing.T) {
	results := Search("Сокол")
	assert.NotEmpty(t, results)
	// "Сокол" itself is an exact match and must come before venues that
	// merely contain the word.
	assert.Equal(t, "Сокол", results[0])
	assert.Contains(t, results, "Сокольники")
}

func TestSearchFoldsYo(t *testing.T) {
	results := Search("теплый стан")
	assert.Contains(t, results, "Тёплый Стан")

	results = Search("Тёплый")
	assert.Contains(t, results, "Тёплый Стан")
}

func TestSearchCaseInsensitive(t *testing.T) {
	assert.Contains(t, Search("арбат"), "Арбат")
	assert.Contains(t, Search("АРБАТ"), "Арбат")
}

func TestSearchWordPrefix(t *testing.T) {
	results := Search("Лужники")
	assert.Contains(t, results, "Стадион Лужники")
}

func TestSearchToleratesEdgeTypo(t *testing.T) {
	// "Арбатт" is no substring, but dropping the trailing character finds it.
	assert.Contains(t, Search("Арбатт"), "Арбат")
}

func TestSearchNoDuplicates(t *testing.T) {
	results := Search("о")
	seen := map[string]bool{}
	for _, r := range results {
		assert.False(t, seen[r], "duplicate result %q", r)
		seen[r] = true
	}
}
