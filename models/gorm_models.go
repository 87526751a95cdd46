// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormGame 对局状态表
type GormGame struct {
	gorm.Model
	GameID  string                 `gorm:"uniqueIndex;not null"`
	Status  string                 `gorm:"not null"`
	Players map[string]interface{} `gorm:"type:jsonb;serializer:json"`
}

// GormGameRecord 对局结算记录表
type GormGameRecord struct {
	gorm.Model
	GameID  string                 `gorm:"index;not null"`
	Winner  string                 `gorm:"not null"`
	Players map[string]interface{} `gorm:"type:jsonb;not null;serializer:json"`
	Moves   int                    `gorm:"default:0"`
}

// PlayerStats 玩家统计信息
type PlayerStats struct {
	TotalGames int `json:"total_games"`
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`
}
