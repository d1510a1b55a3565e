package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/living-world/internal/clock"
)

func newGen(t *testing.T, seed uint64) *Generator {
	t.Helper()
	g, err := NewGenerator(seed, nil)
	require.NoError(t, err)
	return g
}

func TestDefaultCatalogParses(t *testing.T) {
	cat, err := DefaultCatalog()
	require.NoError(t, err)
	assert.NotEmpty(t, cat.Professions)
	for _, p := range cat.Professions {
		for _, r := range p.Recipes {
			_, ok := cat.item(r)
			assert.True(t, ok, "profession %s references unknown recipe %s", p.Name, r)
		}
	}
}

func TestParseCatalogRejectsIncomplete(t *testing.T) {
	_, err := ParseCatalog([]byte("professions: []"))
	assert.Error(t, err)
	_, err = ParseCatalog([]byte(":::"))
	assert.Error(t, err)
}

func TestSpawnNPC(t *testing.T) {
	g := newGen(t, 7)
	rec, err := g.SpawnNPC([]string{"blacksmith"}, "Anvil Yard")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, []string{"blacksmith"}, rec.Professions)
	assert.Equal(t, 7, rec.WorkStart)
	assert.Equal(t, 16, rec.WorkEnd)
	assert.Contains(t, rec.Recipes, "dagger")
	assert.True(t, rec.WorksAt(10))
	assert.False(t, rec.WorksAt(20))

	random, err := g.SpawnNPC(nil, "")
	require.NoError(t, err)
	assert.Len(t, random.Professions, 1)

	_, err = g.SpawnNPC([]string{"astronaut"}, "")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestSpawnItem(t *testing.T) {
	g := newGen(t, 7)
	item, err := g.SpawnItem("dagger", map[string]string{"maker": "Edwin Cole"})
	require.NoError(t, err)
	assert.Equal(t, "dagger", item.Template)
	assert.GreaterOrEqual(t, item.Value, 8)
	assert.LessOrEqual(t, item.Value, 20)
	assert.Equal(t, "Edwin Cole", item.Extra["maker"])

	_, err = g.SpawnItem("unobtainium", nil)
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestSpawnLocation(t *testing.T) {
	g := newGen(t, 7)
	loc, err := g.SpawnLocation("market", "")
	require.NoError(t, err)
	assert.True(t, loc.HasHours)
	assert.True(t, loc.NoticeBoard)
	assert.Contains(t, []string{"plains", "river"}, loc.Biome)

	loc, err = g.SpawnLocation("tavern", "swamp")
	require.NoError(t, err)
	assert.Equal(t, "swamp", loc.Biome)

	_, err = g.SpawnLocation("moonbase", "")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestSpawnQuest(t *testing.T) {
	g := newGen(t, 7)
	q, err := g.SpawnQuest("Hilde Marsh", "Market Square")
	require.NoError(t, err)
	assert.NotContains(t, q.Title, "{")
	assert.NotEmpty(t, q.RewardItem)
}

func TestSpawnWeatherKinds(t *testing.T) {
	g := newGen(t, 11)
	valid := []string{WeatherClear, WeatherCloud, WeatherFog, WeatherRain, WeatherSnow, WeatherStorm}
	for i := 0; i < 200; i++ {
		w, err := g.SpawnWeather(clock.Season(i % 4))
		require.NoError(t, err)
		assert.Contains(t, valid, w.Kind)
		assert.GreaterOrEqual(t, w.TravelPenalty(), 1.0)
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a := newGen(t, 99)
	b := newGen(t, 99)
	for i := 0; i < 20; i++ {
		ra, err := a.SpawnNPC(nil, "x")
		require.NoError(t, err)
		rb, err := b.SpawnNPC(nil, "x")
		require.NoError(t, err)
		assert.Equal(t, ra, rb)
	}
}

func TestGeneratorStateRoundTrip(t *testing.T) {
	a := newGen(t, 5)
	for i := 0; i < 3; i++ {
		_, _ = a.SpawnNPC(nil, "")
		_, _ = a.SpawnWeather(clock.Summer)
	}
	state, err := a.MarshalBinary()
	require.NoError(t, err)

	b := newGen(t, 1)
	require.NoError(t, b.UnmarshalBinary(state))

	for i := 0; i < 5; i++ {
		wa, _ := a.SpawnWeather(clock.Autumn)
		wb, _ := b.SpawnWeather(clock.Autumn)
		assert.Equal(t, wa, wb)
		ia, _ := a.SpawnItem("bread", nil)
		ib, _ := b.SpawnItem("bread", nil)
		assert.Equal(t, ia, ib)
	}
}
