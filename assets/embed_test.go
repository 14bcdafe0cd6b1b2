package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	for _, dialect := range []string{"sqlite", "postgres"} {
		m, err := Migrations(dialect)
		require.NoError(t, err, dialect)
		require.NotEmpty(t, m, dialect)
		assert.Equal(t, "001_init.sql", m[0].Name)
		assert.Contains(t, m[0].SQL, "CREATE TABLE IF NOT EXISTS round")
	}

	_, err := Migrations("mysql")
	assert.Error(t, err)
}
