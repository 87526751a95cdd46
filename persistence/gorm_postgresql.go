// persistence/gorm_postgresql.go
package persistence

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/meeplelab/tileserver/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormGame{},
		&models.GormGameRecord{},
	)
}

// UpdateGameStatus 更新对局状态（UPSERT）
func (p *GormPostgreSQL) UpdateGameStatus(gameID, status string) error {
	var row models.GormGame
	result := p.db.Where("game_id = ?", gameID).First(&row)

	if result.Error == gorm.ErrRecordNotFound {
		row = models.GormGame{
			GameID: gameID,
			Status: status,
		}
		return p.db.Create(&row).Error
	} else if result.Error != nil {
		return result.Error
	}

	return p.db.Model(&row).Update("status", status).Error
}

// FindByGameID 查询对局状态
func (p *GormPostgreSQL) FindByGameID(gameID string) (*models.GameState, error) {
	var row models.GormGame
	if err := p.db.Where("game_id = ?", gameID).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	state := &models.GameState{
		GameID:    row.GameID,
		Status:    row.Status,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	for playerID := range row.Players {
		state.Players = append(state.Players, playerID)
	}
	return state, nil
}

// SaveGameRecord 保存对局结算记录
func (p *GormPostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	players := make(map[string]interface{}, len(record.Players))
	for _, result := range record.Players {
		players[result.PlayerID] = map[string]interface{}{
			"score":   result.Score,
			"outcome": result.Outcome,
		}
	}

	row := models.GormGameRecord{
		GameID:  record.GameID,
		Winner:  record.Winner,
		Players: players,
		Moves:   record.Moves,
	}

	// 结算记录与对局状态一起落库
	return p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Model(&models.GormGame{}).
			Where("game_id = ?", record.GameID).
			Update("status", "FINISHED").Error
	})
}

// GetPlayerStats 玩家统计，按结算记录汇总
func (p *GormPostgreSQL) GetPlayerStats(playerID string) (map[string]interface{}, error) {
	var stats map[string]interface{}

	err := p.db.Raw(
		`
        SELECT
            COUNT(*) as total_games,
            SUM(CASE WHEN winner = ? THEN 1 ELSE 0 END) as wins,
            SUM(CASE WHEN winner <> ? THEN 1 ELSE 0 END) as losses
        FROM gorm_game_records
        WHERE jsonb_exists(players, ?)`,
		playerID, playerID, playerID,
	).Scan(&stats).Error

	return stats, err
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
