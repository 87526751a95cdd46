package game

// TerrainType 表示板块边缘的地形类别
type TerrainType string

const (
	TerrainCity      TerrainType = "CITY"
	TerrainRoad      TerrainType = "ROAD"
	TerrainField     TerrainType = "FIELD"
	TerrainMonastery TerrainType = "MONASTERY"
)

// TerrainTypes is the closed set of edge terrains; deck size is derived
// from its length.
var TerrainTypes = []TerrainType{
	TerrainCity,
	TerrainRoad,
	TerrainField,
	TerrainMonastery,
}

// Rotation is the clockwise rotation of a placed tile in degrees.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

func (r Rotation) Valid() bool {
	switch r {
	case Rotation0, Rotation90, Rotation180, Rotation270:
		return true
	}
	return false
}

// TileTemplate 描述一张板块四条边的地形，不可变
type TileTemplate struct {
	North TerrainType `json:"north"`
	East  TerrainType `json:"east"`
	South TerrainType `json:"south"`
	West  TerrainType `json:"west"`
}

// Position is a board coordinate. The board holds at most one tile per
// position.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PlacedTile 是已放置在棋盘上的板块
type PlacedTile struct {
	ID string `json:"id"`
	TileTemplate
	Position Position `json:"position"`
	Rotation Rotation `json:"rotation"`
}

// MeepleType 米宝类型
type MeepleType string

const (
	MeepleKnight MeepleType = "KNIGHT"
	MeepleThief  MeepleType = "THIEF"
	MeepleMonk   MeepleType = "MONK"
)

func (m MeepleType) Valid() bool {
	switch m {
	case MeepleKnight, MeepleThief, MeepleMonk:
		return true
	}
	return false
}

// EdgePosition is where on a tile a meeple stands: an edge or the center.
type EdgePosition string

const (
	EdgeNorth  EdgePosition = "N"
	EdgeEast   EdgePosition = "E"
	EdgeSouth  EdgePosition = "S"
	EdgeWest   EdgePosition = "W"
	EdgeCenter EdgePosition = "C"
)

func (e EdgePosition) Valid() bool {
	switch e {
	case EdgeNorth, EdgeEast, EdgeSouth, EdgeWest, EdgeCenter:
		return true
	}
	return false
}

// Meeple 米宝。未放置时 TileID 和 Edge 为空
type Meeple struct {
	ID            string       `json:"id"`
	OwnerPlayerID string       `json:"ownerPlayerId"`
	Type          MeepleType   `json:"type"`
	TileID        string       `json:"tileId,omitempty"`
	Edge          EdgePosition `json:"edgePosition,omitempty"`
}
