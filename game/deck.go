package game

import (
	"hash/fnv"
	"math/rand"
)

// TilesPerTerrain 每种地形的板块数量
const TilesPerTerrain = 5

// NewShuffledDeck builds the draw pile for one game: TilesPerTerrain uniform
// tiles per terrain type, shuffled by a PRNG seeded with the given value.
// The same seed always yields the same order. Pure, no shared state.
func NewShuffledDeck(seed int64) []TileTemplate {
	deck := make([]TileTemplate, 0, len(TerrainTypes)*TilesPerTerrain)
	for _, terrain := range TerrainTypes {
		for i := 0; i < TilesPerTerrain; i++ {
			deck = append(deck, TileTemplate{
				North: terrain,
				East:  terrain,
				South: terrain,
				West:  terrain,
			})
		}
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// DeckSeed derives a per-game seed from the configured base seed and the
// game ID, so distinct games get distinct (but reproducible) deck orders.
func DeckSeed(base int64, gameID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(gameID))
	return base ^ int64(h.Sum64())
}
