package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	input := `-- header comment
CREATE TABLE a (x Int64);

-- second
CREATE TABLE b (
    y String
);
`
	stmts := splitStatements(input)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x Int64)", stmts[0])
	assert.Contains(t, stmts[1], "y String")
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings(`SELECT 'it''s fine';`))
	assert.Error(t, validateNoSemicolonInStrings(`SELECT 'a;b';`))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/stocks")
	require.NoError(t, err)
	assert.Equal(t, "stocks", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	for name, fsys := range map[string]fs.FS{
		"postgres":   PostgresFS,
		"clickhouse": ClickhouseFS,
		"sqlite":     SQLiteFS,
	} {
		entries, err := fs.ReadDir(fsys, name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, entries, name)

		for _, e := range entries {
			data, err := fs.ReadFile(fsys, name+"/"+e.Name())
			require.NoError(t, err)
			assert.NoError(t, validateNoSemicolonInStrings(string(data)), e.Name())
			assert.NotEmpty(t, splitStatements(string(data)), e.Name())
		}
	}
}
