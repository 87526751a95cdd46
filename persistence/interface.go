// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/meeplelab/tileserver/models"
)

// Database 数据库接口。对引擎而言全部调用都是 best-effort 的记账：
// 内存中的对局状态才是实时对局的事实来源
type Database interface {
	UpdateGameStatus(gameID, status string) error
	FindByGameID(gameID string) (*models.GameState, error)
	SaveGameRecord(record *models.GameRecord) error
	GetPlayerStats(playerID string) (map[string]interface{}, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
