package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("bad name")))
	assert.Equal(t, KindConflict, KindOf(Conflict("taken")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("missing")))
	assert.Equal(t, KindInvariant, KindOf(Invariant("protected")))
	assert.Equal(t, KindStorage, KindOf(Storage(errors.New("io"), "query failed")))
	assert.Equal(t, KindStorage, KindOf(errors.New("plain")), "unclassified errors default to storage")
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("while saving: %w", Conflict("group 'STAFF' already exists"))
	assert.True(t, IsKind(err, KindConflict))
}

func TestStorageUnwrapsToCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Storage(cause, "failed to fetch users")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to fetch users")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Validation("x")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Conflict("x")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("x")))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(Invariant("x")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Storage(nil, "x")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}
