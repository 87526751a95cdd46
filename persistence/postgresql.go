// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/meeplelab/tileserver/models"
)

// PostgreSQL 裸 database/sql 实现，不依赖 GORM
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS games (
            id SERIAL PRIMARY KEY,
            game_id TEXT UNIQUE NOT NULL,
            status TEXT NOT NULL,
            players JSONB,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            game_id TEXT NOT NULL,
            winner TEXT NOT NULL,
            players JSONB NOT NULL,
            moves INT DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	return err
}

// UpdateGameStatus 更新对局状态
func (p *PostgreSQL) UpdateGameStatus(gameID, status string) error {
	_, err := p.db.Exec(`
        INSERT INTO games (game_id, status) VALUES ($1, $2)
        ON CONFLICT (game_id)
        DO UPDATE SET status = $2, updated_at = CURRENT_TIMESTAMP`,
		gameID, status)
	return err
}

// FindByGameID 查询对局状态
func (p *PostgreSQL) FindByGameID(gameID string) (*models.GameState, error) {
	var state models.GameState
	var players []byte

	err := p.db.QueryRow(`
        SELECT game_id, status, COALESCE(players, '[]'::jsonb), created_at, updated_at
        FROM games WHERE game_id = $1`, gameID).
		Scan(&state.GameID, &state.Status, &players, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(players, &state.Players); err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveGameRecord 保存对局结算记录
func (p *PostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
        INSERT INTO game_records (game_id, winner, players, moves)
        VALUES ($1, $2, $3, $4)`,
		record.GameID, record.Winner, players, record.Moves); err != nil {
		return err
	}

	if _, err := tx.Exec(`
        UPDATE games SET status = 'FINISHED', updated_at = CURRENT_TIMESTAMP
        WHERE game_id = $1`, record.GameID); err != nil {
		return err
	}

	return tx.Commit()
}

// GetPlayerStats 玩家统计
func (p *PostgreSQL) GetPlayerStats(playerID string) (map[string]interface{}, error) {
	var totalGames, wins, losses int

	err := p.db.QueryRow(`
        SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN winner = $1 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN winner <> $1 THEN 1 ELSE 0 END), 0)
        FROM game_records
        WHERE players @> $2`,
		playerID,
		fmt.Sprintf(`[{"player_id": %q}]`, playerID)).
		Scan(&totalGames, &wins, &losses)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"total_games": totalGames,
		"wins":        wins,
		"losses":      losses,
	}, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
