package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/assessly/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAutoMigrateCreatesEveryTable(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(conn))

	for _, table := range []string{
		"companies",
		"company_members",
		"license_reservations",
		"projects",
		"invites",
		"assessment_results",
		"project_candidates",
		"invite_transition_marks",
		"lifecycle_events",
	} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}

	require.NoError(t, AutoMigrate(conn))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestEmbeddedSchemaCoversModels(t *testing.T) {
	raw, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.up.sql")
	require.NoError(t, err)
	schema := string(raw)

	conn, err := db.NewTest()
	require.NoError(t, err)
	for _, model := range Models() {
		stmt := &gorm.Statement{DB: conn}
		require.NoError(t, stmt.Parse(model))
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+stmt.Schema.Table+" (")
		for _, field := range stmt.Schema.DBNames {
			assert.Contains(t, schema, "    "+field+" ", "%s.%s", stmt.Schema.Table, field)
		}
	}
}

func TestRawAnswersKeepSubmittedBytes(t *testing.T) {
	raw, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.up.sql")
	require.NoError(t, err)

	var columns []string
	for _, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "raw_answers" {
			columns = append(columns, fields[1])
		}
	}
	assert.Equal(t, []string{"JSON", "JSON"}, columns)
}
