package models

import (
	"errors"
	"testing"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	for _, c := range Categories {
		got, err := ParseCategory(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := ParseCategory("banner")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))

	_, err = ParseCategory("")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}
