// Package errors_test covers the AppError type, factory functions, and
// error-chain helpers defined in pkg/errors/errors.go.
package errors_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// TestNew
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"assignment", errors.ErrCodeAssignment, "could not find charges for atoms 3"},
		{"invalid param", errors.CodeInvalidParam, "shell must be non-negative"},
		{"solver timeout", errors.ErrCodeSolverTimeout, "budget of 5s exceeded"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail, "Detail should be empty for bare New()")
			assert.Nil(t, ae.Cause, "Cause should be nil for bare New()")
		})
	}
}

func TestNew_StackIsPopulated(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.CodeInternal, "test")
	require.NotNil(t, ae)
	assert.Contains(t, ae.Stack, "errors_test.go")
}

// ─────────────────────────────────────────────────────────────────────────────
// TestWrap
// ─────────────────────────────────────────────────────────────────────────────

func TestWrap_NilErrReturnsNil(t *testing.T) {
	t.Parallel()

	result := errors.Wrap(nil, errors.CodeInternal, "should not matter")
	assert.Nil(t, result)
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	t.Parallel()

	root := stderrors.New("root DB error")
	wrapped := errors.Wrap(root, errors.CodeDatabaseError, "connection failed")

	require.NotNil(t, wrapped)
	assert.Equal(t, errors.CodeDatabaseError, wrapped.Code)
	assert.Equal(t, "connection failed", wrapped.Message)
	assert.Equal(t, root, wrapped.Cause)
	assert.Equal(t, root, stderrors.Unwrap(wrapped))
}

func TestWrap_PreservesOriginalCodeWhenCodeUnknown(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeSolverInfeasible, "infeasible")
	outer := errors.Wrap(inner, errors.CodeUnknown, "adding context")

	require.NotNil(t, outer)
	assert.Equal(t, errors.ErrCodeSolverInfeasible, outer.Code)
}

func TestWrap_OverridesCodeWhenExplicit(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeSolverInfeasible, "infeasible")
	outer := errors.Wrap(inner, errors.CodeInternal, "unexpected state")

	assert.Equal(t, errors.CodeInternal, outer.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// TestError_Method
// ─────────────────────────────────────────────────────────────────────────────

func TestError_FormatWithoutDetail(t *testing.T) {
	t.Parallel()

	s := errors.New(errors.ErrCodeAssignment, "no charges").Error()

	assert.Equal(t, "[CHG_001] no charges", s)
	assert.Equal(t, 0, strings.Count(s, ": "))
}

func TestError_FormatWithDetail(t *testing.T) {
	t.Parallel()

	ae := errors.InvalidParam("bad shell").WithDetail("shell=-2")
	assert.Equal(t, "[COMMON_002] bad shell: shell=-2", ae.Error())
}

func TestError_EmptyMessageDoesNotPanic(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.CodeOK, "")
	assert.NotPanics(t, func() { _ = ae.Error() })
}

// ─────────────────────────────────────────────────────────────────────────────
// TestWithDetail / TestWithCause
// ─────────────────────────────────────────────────────────────────────────────

func TestWithDetail_SetsDetailOnCopy(t *testing.T) {
	t.Parallel()

	original := errors.New(errors.CodeNotFound, "resource missing")
	detailed := original.WithDetail("shell=2")

	assert.Empty(t, original.Detail, "WithDetail must not mutate the original")
	assert.Equal(t, "shell=2", detailed.Detail)
	assert.Equal(t, original.Code, detailed.Code)
}

func TestWithDetail_NilReceiverReturnsNil(t *testing.T) {
	t.Parallel()

	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(stderrors.New("x")))
}

func TestWithCause_DoesNotMutateOriginal(t *testing.T) {
	t.Parallel()

	original := errors.New(errors.CodeInternal, "failure")
	cause := stderrors.New("cause")
	withCause := original.WithCause(cause)

	assert.Nil(t, original.Cause)
	assert.Equal(t, cause, withCause.Cause)
	assert.True(t, stderrors.Is(withCause, cause))
}

// ─────────────────────────────────────────────────────────────────────────────
// TestIsCode / TestGetCode
// ─────────────────────────────────────────────────────────────────────────────

func TestIsCode_ThreeLevelChain(t *testing.T) {
	t.Parallel()

	level0 := errors.New(errors.ErrCodeDegenerateConfidence, "zero scores")
	level1 := errors.Wrap(level0, errors.CodeInvalidParam, "redistribution failed")
	level2 := fmt.Errorf("charger: %w", level1)

	assert.True(t, errors.IsCode(level2, errors.ErrCodeDegenerateConfidence))
	assert.True(t, errors.IsCode(level2, errors.CodeInvalidParam))
	assert.False(t, errors.IsCode(level2, errors.CodeInternal))
	assert.False(t, errors.IsCode(nil, errors.CodeInternal))
	assert.False(t, errors.IsCode(stderrors.New("plain"), errors.CodeInternal))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsNotFound(errors.NotFound("not found")))
	assert.True(t, errors.IsNotFound(fmt.Errorf("wrap: %w", errors.New(errors.ErrCodeAtomNotFound, "atom 9"))))
	assert.False(t, errors.IsNotFound(errors.Internal("boom")))
	assert.False(t, errors.IsNotFound(nil))
}

func TestIsValidation(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsValidation(errors.InvalidParam("x")))
	assert.True(t, errors.IsValidation(errors.New(errors.ErrCodeValidation, "x")))
	assert.False(t, errors.IsValidation(errors.Internal("x")))
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeSolverTimeout, "slow")
	outer := errors.Wrap(inner, errors.CodeInternal, "service failed")

	assert.Equal(t, errors.CodeInternal, errors.GetCode(outer))
	assert.Equal(t, errors.ErrCodeSolverTimeout, errors.GetCode(inner))
	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(fmt.Errorf("context: %w", stderrors.New("cause"))))
}

// ─────────────────────────────────────────────────────────────────────────────
// TestConvenienceFactories
// ─────────────────────────────────────────────────────────────────────────────

func TestConvenienceFactories_ReturnCorrectCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      *errors.AppError
		wantCode errors.ErrorCode
	}{
		{"NotFound", errors.NotFound("not found"), errors.CodeNotFound},
		{"InvalidParam", errors.InvalidParam("bad input"), errors.CodeInvalidParam},
		{"InvalidState", errors.InvalidState("not solved"), errors.CodeConflict},
		{"Internal", errors.Internal("server error"), errors.CodeInternal},
		{"Conflict", errors.Conflict("duplicate resource"), errors.CodeConflict},
		{"Timeout", errors.Timeout("too slow"), errors.ErrCodeTimeout},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.NotNil(t, tc.err)
			assert.Equal(t, tc.wantCode, tc.err.Code)
			assert.NotEmpty(t, tc.err.Error())
		})
	}
}

func TestStdlib_ErrorsAs_DeepChain(t *testing.T) {
	t.Parallel()

	root := errors.New(errors.CodeStorageError, "minio unavailable")
	l1 := errors.Wrap(root, errors.ErrCodeRepositoryUnavailable, "snapshot download failed")
	l2 := fmt.Errorf("charge service: %w", l1)

	var ae *errors.AppError
	require.True(t, stderrors.As(l2, &ae))
	assert.Equal(t, errors.ErrCodeRepositoryUnavailable, ae.Code)
	assert.True(t, stderrors.Is(l2, root))
}

// ─────────────────────────────────────────────────────────────────────────────
// TestIsTransient
// ─────────────────────────────────────────────────────────────────────────────

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"database", errors.New(errors.CodeDatabaseError, "x"), true},
		{"repository", errors.New(errors.ErrCodeRepositoryUnavailable, "x"), true},
		{"queue", errors.New(errors.CodeMessageQueueError, "x"), true},
		{"deadline under another code", errors.Wrap(context.DeadlineExceeded, errors.ErrCodeCanonizationFailed, "no canonizer"), true},
		{"assignment", errors.New(errors.ErrCodeAssignment, "x"), false},
		{"variant", errors.New(errors.ErrCodeVariantUnsupported, "x"), false},
		{"plain", stderrors.New("x"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, errors.IsTransient(tc.err))
		})
	}
}

//Personal.AI order the ending
