package main

import (
	"errors"
	"testing"

	"github.com/berfenger/eosconnect/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFailsOnConfigurationError(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("EOSCONNECT_EOS_SERVER", "")
	t.Setenv("EOSCONNECT_BATTERY_CAPACITY_WH", "10000")

	err := run()
	require.Error(t, err)
	var cfgErr domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "eos.server", cfgErr.Key)
}
