package db

import (
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/suPer8Hu/swaif-depths/pkg/logger"
)

type options struct {
	log *logger.Logger
}

type Option func(*options)

// WithLogger routes gorm's slow-query and error lines through log.
func WithLogger(log *logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// Connect opens the relational store. driver is "sqlite" or "mysql".
func Connect(driver, dsn string, opts ...Option) (*gorm.DB, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "", "sqlite":
		if dsn == "" {
			return nil, fmt.Errorf("db: empty sqlite dsn")
		}
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		dialector = gormsqlite.Open(sqliteDSN(dsn))
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(gormWriter(o.log)),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", driver, err)
	}
	return gdb, nil
}

// newGormLogger logs warnings and slow queries. Lookups that miss are a
// normal outcome here (every new conversation starts with one) and stay quiet.
func newGormLogger(w gormlogger.Writer) gormlogger.Interface {
	return gormlogger.New(w, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func gormWriter(log *logger.Logger) gormlogger.Writer {
	if log == nil {
		return stdlog.New(os.Stdout, "", stdlog.LstdFlags)
	}
	w, err := zap.NewStdLogAt(log.With(zap.String("component", "gorm")).Logger, zap.WarnLevel)
	if err != nil {
		return stdlog.New(os.Stdout, "", stdlog.LstdFlags)
	}
	return w
}

// sqlitePragmas are appended to sqlite DSNs unless already present. Foreign
// keys back the history table; immediate transactions plus a busy timeout
// make concurrent grouping passes queue at BEGIN instead of failing at COMMIT.
var sqlitePragmas = []struct{ key, param string }{
	{"_pragma=foreign_keys", "_pragma=foreign_keys(1)"},
	{"_pragma=busy_timeout", "_pragma=busy_timeout(5000)"},
	{"_txlock=", "_txlock=immediate"},
}

func sqliteDSN(dsn string) string {
	for _, p := range sqlitePragmas {
		if strings.Contains(dsn, p.key) {
			continue
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + p.param
	}
	return dsn
}

func ensureDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return nil
	}
	path := dsn
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("db: create %s: %w", dir, err)
	}
	return nil
}
