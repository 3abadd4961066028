package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func paramsFor(query string) Params {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return Parse(c)
}

func TestParseDefaults(t *testing.T) {
	p := paramsFor("")
	assert.Equal(t, DefaultPage, p.Page)
	assert.Equal(t, DefaultLimit, p.Limit)
	assert.Equal(t, 0, p.Offset)
}

func TestParseClamping(t *testing.T) {
	p := paramsFor("page=-3&limit=0")
	assert.Equal(t, DefaultPage, p.Page)
	assert.Equal(t, DefaultLimit, p.Limit)

	p = paramsFor("page=2&limit=500")
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, MaxLimit, p.Limit)
	assert.Equal(t, MaxLimit, p.Offset)
}

func TestNewPaged(t *testing.T) {
	p := Params{Page: 2, Limit: 10}
	paged := NewPaged([]string{"a"}, p, 25)
	assert.Equal(t, 2, paged.Page)
	assert.EqualValues(t, 25, paged.Total)
	assert.EqualValues(t, 3, paged.TotalPages)

	paged = NewPaged(nil, Params{Page: 1, Limit: 10}, 30)
	assert.EqualValues(t, 3, paged.TotalPages)
}
