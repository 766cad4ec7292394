package resource

import (
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"manim-service/pkg/assert"
	"manim-service/pkg/config"
	"manim-service/pkg/logger"
	"manim-service/pkg/manager"
)

var (
	mysqlResourceOnce sync.Once
	mysqlSingleton    *MysqlResource
)

// MysqlResource holds the gorm handle of the job database.
type MysqlResource struct {
	db *gorm.DB
}

func DefaultMysqlResource() *MysqlResource {
	assert.NotCircular()
	mysqlResourceOnce.Do(func() {
		mysqlSingleton = &MysqlResource{}
	})
	assert.NotNil(mysqlSingleton)
	return mysqlSingleton
}

func (r *MysqlResource) MustOpen() {
	if r.db != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before MysqlResource")
	}

	db, err := gorm.Open(mysql.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		panic("failed to connect mysql: " + err.Error())
	}
	sqlDB, err := db.DB()
	if err != nil {
		panic("failed to get mysql pool: " + err.Error())
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	lifetime := cfg.Database.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	sqlDB.SetConnMaxLifetime(lifetime)

	r.db = db
	logger.Info("MySQL resource initialized", map[string]interface{}{
		"host":     cfg.Database.Host,
		"database": cfg.Database.Database,
	})
}

// MainDB returns the gorm handle, nil before MustOpen.
func (r *MysqlResource) MainDB() *gorm.DB {
	return r.db
}

func (r *MysqlResource) Close() {
	if r.db == nil {
		return
	}
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

type MySqlResourcePlugin struct{}

func (p *MySqlResourcePlugin) Name() string { return "mysqlResource" }

// Enabled only when jobs are stored in MySQL.
func (p *MySqlResourcePlugin) Enabled(cfg *config.Config) bool {
	return cfg != nil && cfg.Store.Backend == "mysql"
}

func (p *MySqlResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultMysqlResource()
}
