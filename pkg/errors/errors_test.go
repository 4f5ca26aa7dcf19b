package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCode(t *testing.T) {
	base := errors.New("boom")
	wrapped := Wrap(base, ErrDecode, "failed to decode")
	require.Equal(t, ErrDecode, Code(wrapped))
	require.ErrorIs(t, wrapped, base)
}

func TestWrapNilReturnsNil(t *testing.T) {
	require.Nil(t, Wrap(nil, ErrInternal, "unused"))
}

func TestCodeDefaultsToInternalForForeignErrors(t *testing.T) {
	require.Equal(t, ErrInternal, Code(errors.New("plain")))
}

func TestIsRetryableOnSQLiteBusy(t *testing.T) {
	appErr := Wrap(errors.New("database is locked"), ErrInternal, "staging insert failed")
	require.True(t, appErr.IsRetryable())
}

func TestIsRetryableFalseOnOrdinaryError(t *testing.T) {
	appErr := Wrap(errors.New("no such table"), ErrInternal, "query failed")
	require.False(t, appErr.IsRetryable())
}
