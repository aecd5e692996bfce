package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSharedFlags(t *testing.T) {
	shared := []string{
		"chunk", "from", "to", "team", "source",
		"skip-existing", "dry-run", "resume", "reset", "timeout", "sync",
	}
	for _, name := range shared {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing shared flag --%s", name)
	}
	assert.NotNil(t, runCmd.Flags().Lookup("step"))
}

func TestSyncDefaultsToForeground(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("sync")
	require.NotNil(t, flag)
	assert.Equal(t, "true", flag.DefValue)
}

func TestRunStagesRejectsBackgroundDispatch(t *testing.T) {
	orig := flagSync
	defer func() { flagSync = orig }()

	flagSync = false
	err := runStages("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "background dispatch is not supported")
}
