package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewAppErrorWithDetails(ErrConfig, "failed to save config", "/etc/pdft.yaml", cause)

	assert.Equal(t, "failed to save config: /etc/pdft.yaml: permission denied", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestHasCode(t *testing.T) {
	inner := NewAppError(ErrEncoding, "cannot encode", nil)
	outer := NewAppError(ErrPipeline, "extract failed", fmt.Errorf("write translate file: %w", inner))

	assert.True(t, HasCode(outer, ErrPipeline))
	assert.True(t, HasCode(outer, ErrEncoding))
	assert.False(t, HasCode(outer, ErrAPICall))
	assert.False(t, HasCode(nil, ErrAPICall))
}
