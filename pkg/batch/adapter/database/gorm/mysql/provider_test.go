package mysql_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dbconfig "github.com/tigerroll/datagen/pkg/batch/adapter/database/config"
	"github.com/tigerroll/datagen/pkg/batch/adapter/database/gorm/mysql"
)

func TestConnectionString(t *testing.T) {
	dsn := mysql.ConnectionString(dbconfig.DatabaseConfig{
		Host: "db", Port: 3307, User: "gen", Password: "pw", Database: "datagen",
	})
	assert.Contains(t, dsn, "gen:pw@tcp(db:3307)/datagen")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "multiStatements=true")

	dsn = mysql.ConnectionString(dbconfig.DatabaseConfig{Host: "db", User: "gen", Database: "datagen"})
	assert.Contains(t, dsn, "tcp(db:3306)")
}
