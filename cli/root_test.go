package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd(t *testing.T) {
	t.Run("Should expose the db command tree", func(t *testing.T) {
		root := RootCmd()
		db, _, err := root.Find([]string{"db"})
		require.NoError(t, err)
		assert.Equal(t, "db", db.Name())

		provision, _, err := root.Find([]string{"db", "provision"})
		require.NoError(t, err)
		assert.Equal(t, "provision", provision.Name())

		ping, _, err := root.Find([]string{"db", "ping"})
		require.NoError(t, err)
		assert.Equal(t, "ping", ping.Name())
	})

	t.Run("Should register logging flags", func(t *testing.T) {
		root := RootCmd()
		assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))
		assert.NotNil(t, root.PersistentFlags().Lookup("log-json"))
	})
}
