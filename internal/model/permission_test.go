package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionCode(t *testing.T) {
	p := testPerm("USERS", "READ")
	assert.Equal(t, "USERS_READ", p.Code())

	// Codes follow a resource rename on the next computation.
	p.Resource.Name = "ACCOUNTS"
	assert.Equal(t, "ACCOUNTS_READ", p.Code())

	orphan := Permission{Action: "READ"}
	assert.Equal(t, "", orphan.Code())
}

func TestSplitPermissionCode(t *testing.T) {
	resource, action, ok := SplitPermissionCode("USERS_READ")
	assert.True(t, ok)
	assert.Equal(t, "USERS", resource)
	assert.Equal(t, "READ", action)

	// Resource names containing underscores round-trip.
	resource, action, ok = SplitPermissionCode("AUDIT_LOGS_MANAGE")
	assert.True(t, ok)
	assert.Equal(t, "AUDIT_LOGS", resource)
	assert.Equal(t, "MANAGE", action)

	_, _, ok = SplitPermissionCode("USERS_FLY")
	assert.False(t, ok, "unknown action suffix")

	_, _, ok = SplitPermissionCode("READ")
	assert.False(t, ok)

	_, _, ok = SplitPermissionCode("")
	assert.False(t, ok)
}

func TestValidAction(t *testing.T) {
	for _, action := range Actions() {
		assert.True(t, ValidAction(action))
	}
	assert.False(t, ValidAction("read"))
	assert.False(t, ValidAction("EXECUTE"))
}
