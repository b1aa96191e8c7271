// Package capture persists session pairs the radio has accepted, so later
// connection attempts can seed capture-derived handshake candidates instead
// of starting from time-based guesses.
package capture

import (
	"database/sql"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Config holds capture store configuration.
type Config struct {
	Path string // path to the SQLite database file
}

// DB wraps the GORM database instance.
type DB struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewDB opens the capture store with the pure Go SQLite driver and migrates
// the schema.
func NewDB(config Config, log zerolog.Logger) (*DB, error) {
	dialector := sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        config.Path,
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := configureSQLite(sqlDB); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&SessionCapture{}); err != nil {
		return nil, err
	}

	log.Debug().Str("path", config.Path).Msg("capture store initialized")
	return &DB{db: db, log: log}, nil
}

func configureSQLite(sqlDB *sql.DB) error {
	pragmaSettings := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmaSettings {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
