package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"storefront/internal/domain"
	"storefront/internal/validate"
)

func TestPage(t *testing.T) {
	assert.Equal(t, 1, validate.Page(""))
	assert.Equal(t, 1, validate.Page("-3"))
	assert.Equal(t, 1, validate.Page("abc"))
	assert.Equal(t, 4, validate.Page(" 4 "))
	assert.Equal(t, domain.MaxPage, validate.Page("9223372036854775807"))
}

func TestURLs(t *testing.T) {
	out, ok := validate.URLs([]string{" https://cdn.example/a.png", "/img/b.jpg"})
	assert.True(t, ok)
	assert.Equal(t, []string{"https://cdn.example/a.png", "/img/b.jpg"}, out)

	_, ok = validate.URLs([]string{"/img/has space.jpg"})
	assert.False(t, ok)
	_, ok = validate.URLs([]string{"ftp://x"})
	assert.False(t, ok)

	out, ok = validate.URLs(nil)
	assert.True(t, ok)
	assert.Empty(t, out)
}
