package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesWrappedCodes(t *testing.T) {
	err := fmt.Errorf("load trade: %w", ConcurrentModification("trade", 3))

	assert.True(t, Is(err, CodeConcurrentModification))
	assert.False(t, Is(err, CodeNotFound))
	assert.Equal(t, CodeConcurrentModification, CodeOf(err))
}

func TestAsWrapsUnknownErrors(t *testing.T) {
	appErr := As(fmt.Errorf("boom"))

	assert.Equal(t, CodeInternal, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.EqualError(t, appErr.Unwrap(), "boom")
}

func TestStatusPerCode(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		status int
	}{
		{"invalid argument", InvalidArgument("empty"), http.StatusBadRequest},
		{"forbidden", Forbidden("not a participant"), http.StatusForbidden},
		{"not found", NotFound("room", nil), http.StatusNotFound},
		{"illegal transition", IllegalStateTransition("terminal"), http.StatusConflict},
		{"self approval", SelfApprovalForbidden("own request"), http.StatusConflict},
		{"too many requests", TooManyRequests("slow down"), http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
		})
	}
}
