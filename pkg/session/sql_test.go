package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLStore_RebindPostgres(t *testing.T) {
	s := &SQLStore{dialect: dialectPostgres}

	got := s.rebind(`UPDATE sessions SET status = ?, failure_reason = ?, updated_at = ? WHERE id = ?`)
	assert.Equal(t, `UPDATE sessions SET status = $1, failure_reason = $2, updated_at = $3 WHERE id = $4`, got)

	assert.Equal(t, `SELECT 1`, s.rebind(`SELECT 1`))
}

func TestSQLStore_RebindLeavesOtherDialectsAlone(t *testing.T) {
	query := `SELECT id FROM sessions WHERE user_id = ?`

	for _, dialect := range []string{dialectSQLite, dialectMySQL} {
		s := &SQLStore{dialect: dialect}
		assert.Equal(t, query, s.rebind(query), dialect)
	}
}

func TestSQLStore_SchemaPerDialect(t *testing.T) {
	sqlite := &SQLStore{dialect: dialectSQLite}
	statements := sqlite.schemaStatements()
	require.NotEmpty(t, statements)
	assert.Contains(t, statements[1], "AUTOINCREMENT")

	postgres := &SQLStore{dialect: dialectPostgres}
	statements = postgres.schemaStatements()
	assert.Contains(t, statements[1], "SERIAL")

	mysql := &SQLStore{dialect: dialectMySQL}
	statements = mysql.schemaStatements()
	assert.Contains(t, statements[1], "AUTO_INCREMENT")
	for _, stmt := range statements {
		assert.False(t, strings.HasPrefix(strings.TrimSpace(stmt), "CREATE INDEX"),
			"mysql cannot use CREATE INDEX IF NOT EXISTS")
	}
}

func TestNewSQLStore_RequiresConnection(t *testing.T) {
	_, err := NewSQLStore(nil, dialectSQLite)
	require.Error(t, err)
}

func TestMarshalArtifacts(t *testing.T) {
	payload, err := marshalArtifacts(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", payload)
}
