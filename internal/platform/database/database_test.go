package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNamesAreOrdered(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	assert.Equal(t, "0001_admin_users.sql", names[0])
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}

func TestCertificatesMigrationDeclaresActiveUniqueness(t *testing.T) {
	body, err := migrationFiles.ReadFile("migrations/0002_certificates.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "(dni, course) WHERE is_active")
}
