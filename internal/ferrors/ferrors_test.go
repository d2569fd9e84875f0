package ferrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategory(t *testing.T) {
	assert.Equal(t, CategoryConfig, New(ErrCodeConfigInvalid, "m", nil).Category)
	assert.Equal(t, CategoryIO, New(ErrCodeFileNotFound, "m", nil).Category)
	assert.Equal(t, CategoryWatch, New(ErrCodeWatchActive, "m", nil).Category)
	assert.Equal(t, CategoryValidation, New(ErrCodeInvalidInput, "m", nil).Category)
	assert.Equal(t, CategoryInternal, New(ErrCodeInternal, "m", nil).Category)
}

func TestError_FormatsCodeAndMessage(t *testing.T) {
	err := New(ErrCodeWatchActive, "watcher is already running", nil)
	assert.Equal(t, "[ERR_301_WATCH_ACTIVE] watcher is already running", err.Error())
}

func TestError_IsMatchesByCode(t *testing.T) {
	sentinel := New(ErrCodeWatchActive, "watcher is already running", nil)
	other := New(ErrCodeWatchActive, "different message", nil)

	assert.True(t, errors.Is(other, sentinel))
	assert.False(t, errors.Is(New(ErrCodeInternal, "x", nil), sentinel))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := Wrap(ErrCodeConfigInvalid, cause)

	require.NotNil(t, err)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Equal(t, "underlying failure", err.Message)
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWithDetail_Chains(t *testing.T) {
	err := New(ErrCodeFileNotFound, "missing", nil).
		WithDetail("path", "/a").
		WithDetail("op", "index")

	assert.Equal(t, "/a", err.Details["path"])
	assert.Equal(t, "index", err.Details["op"])
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, GetCode(New(ErrCodeInternal, "x", nil)))
	assert.Equal(t, "", GetCode(fmt.Errorf("plain")))
}
