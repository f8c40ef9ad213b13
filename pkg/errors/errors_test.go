package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("row not found")
	err := Wrap(CodeNotFound, cause, "payment missing")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeNotFound, err.Code())
	assert.Equal(t, "payment missing", err.Message())
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	inner := New(CodeStateConflict, "invoice already finalized")
	wrapped := fmt.Errorf("processing payment: %w", inner)

	typed := As(wrapped)
	require.NotNil(t, typed)
	assert.Equal(t, CodeStateConflict, typed.Code())
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
	assert.False(t, meta.DetailsAllowed)
}

func TestWithDetailsRoundTrip(t *testing.T) {
	err := New(CodeValidation, "bad cart").WithDetails(map[string]string{"subtotal": "does not match line items"})
	details, ok := err.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "does not match line items", details["subtotal"])
}
