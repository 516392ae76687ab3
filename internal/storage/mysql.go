package storage

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

type mysqlDialect struct{}

func (mysqlDialect) Kind() Kind         { return KindMySQL }
func (mysqlDialect) DriverName() string { return "mysql" }

func (mysqlDialect) DataSourceName(spec ConnSpec) string {
	cfg := mysql.NewConfig()
	cfg.User = spec.User
	cfg.Passwd = spec.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(spec.Host, strconv.Itoa(spec.Port))
	cfg.DBName = spec.Database
	// parseTime makes the driver hand back time.Time; the timeouts keep a
	// wedged server from stalling the writer.
	cfg.ParseTime = true
	cfg.Timeout = 10 * time.Second
	cfg.ReadTimeout = 30 * time.Second
	cfg.WriteTimeout = 30 * time.Second
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

func (mysqlDialect) CreateTableSQL(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s` (\n"+
		"  `id` BIGINT NOT NULL AUTO_INCREMENT,\n"+
		"  `network` VARCHAR(128) COLLATE utf8mb4_unicode_ci DEFAULT NULL,\n"+
		"  `buffer` VARCHAR(255) COLLATE utf8mb4_unicode_ci NOT NULL,\n"+
		"  `nick` VARCHAR(128) COLLATE utf8mb4_unicode_ci DEFAULT NULL,\n"+
		"  `timestamp` DATETIME(6) NOT NULL,\n"+
		"  `line` TEXT COLLATE utf8mb4_unicode_ci,\n"+
		"  PRIMARY KEY (`id`),\n"+
		"  KEY `timestamp` (`timestamp`),\n"+
		"  KEY `buffer` (`buffer`)\n"+
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci", table)
}

func (mysqlDialect) InsertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO `%s` (`network`, `buffer`, `nick`, `timestamp`, `line`) VALUES (?, ?, ?, ?, ?)", table)
}

func (mysqlDialect) ListTablesSQL(prefix string) (string, []any) {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name LIKE ? ESCAPE '!'",
		[]any{likePrefix(prefix)}
}

func (mysqlDialect) PruneSQL(table string) string {
	return fmt.Sprintf("DELETE FROM `%s` WHERE `timestamp` < ?", table)
}

// MySQL has no timezone-aware column type; normalize to UTC before binding.
func (mysqlDialect) BindTime(t time.Time) any { return t.UTC() }
