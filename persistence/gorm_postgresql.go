// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/runeserver/logger"
	"github.com/wfunc/runeserver/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// zapWriter routes gorm's printf-style output into the process logger.
type zapWriter struct{}

func (zapWriter) Printf(format string, args ...interface{}) {
	logger.Log.Warnf(format, args...)
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := gormlogger.New(
		zapWriter{},
		gormlogger.Config{
			SlowThreshold:             time.Second,     // 慢SQL阈值
			LogLevel:                  gormlogger.Warn, // 日志级别
			IgnoreRecordNotFoundError: true,
			Colorful:                  false, // 禁用彩色打印
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormLedgerEntry{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func (g *GormPostgreSQL) Append(ctx context.Context, entries ...models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]models.GormLedgerEntry, 0, len(entries))
	for _, e := range entries {
		at := e.CreatedAt
		if at.IsZero() {
			at = time.Now()
		}
		rows = append(rows, models.GormLedgerEntry{Player: e.Player, Runes: e.Runes, Lobby: e.Lobby, CreatedAt: at})
	}
	return g.db.WithContext(ctx).Create(&rows).Error
}

func (g *GormPostgreSQL) Load(ctx context.Context, player string) ([]models.LedgerEntry, error) {
	q := g.db.WithContext(ctx).Order("id")
	if player != "" {
		q = q.Where("player = ?", player)
	}
	var rows []models.GormLedgerEntry
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Entry())
	}
	return out, nil
}

func (g *GormPostgreSQL) Top(ctx context.Context, n int) ([]models.Score, error) {
	if n <= 0 {
		return nil, nil
	}
	var rows []models.GormScore
	err := g.db.WithContext(ctx).
		Model(&models.GormLedgerEntry{}).
		Select("player, SUM(runes) AS total, COUNT(*) AS games, MAX(runes) AS best").
		Group("player").
		Order("total DESC, player ASC").
		Limit(n).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Score, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Score{Player: r.Player, Total: r.Total, Games: r.Games, Best: r.Best})
	}
	return out, nil
}

// Close 关闭数据库连接
func (g *GormPostgreSQL) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
