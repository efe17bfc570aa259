package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCmd_Use(t *testing.T) {
	assert.Equal(t, "serve", serveCmd.Use)
}

func TestServeCmd_Short(t *testing.T) {
	assert.Equal(t, "Start the HTTP API server", serveCmd.Short)
}

func TestServeCmd_HasAddrFlag(t *testing.T) {
	flag := serveCmd.Flags().Lookup("addr")
	require.NotNil(t, flag, "addr flag should exist")
	assert.Equal(t, "", flag.DefValue)
}

func TestServeCmd_HasWatchFlag(t *testing.T) {
	flag := serveCmd.Flags().Lookup("watch")
	require.NotNil(t, flag, "watch flag should exist")
	assert.Equal(t, "", flag.DefValue)
}

func TestServeCmd_ServicesNotConfigured(t *testing.T) {
	oldAsk := askService
	oldIngest := ingestService
	askService = nil
	ingestService = nil
	defer func() {
		askService = oldAsk
		ingestService = oldIngest
	}()

	err := runServe(serveCmd, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "services not configured")
}
