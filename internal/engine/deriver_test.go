package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawRow struct {
	region  string
	date    int32
	c, d, r int64
}

// buildStore assembles a ColumnStore literal in input order, the way the
// loader would after dictionary encoding.
func buildStore(rows []rawRow) *ColumnStore {
	cs := &ColumnStore{}
	idx := make(map[string]int32)
	for _, row := range rows {
		id, ok := idx[row.region]
		if !ok {
			id = int32(len(cs.RegionDict))
			cs.RegionDict = append(cs.RegionDict, row.region)
			idx[row.region] = id
		}
		cs.RegionIDs = append(cs.RegionIDs, id)
		cs.Dates = append(cs.Dates, row.date)
		cs.Confirmed = append(cs.Confirmed, row.c)
		cs.Deaths = append(cs.Deaths, row.d)
		cs.Recovered = append(cs.Recovered, row.r)
	}
	return cs
}

func TestDeriveDuplicateDates(t *testing.T) {
	// Duplicate (region, date) rows collapse to one, keeping the last
	cs := buildStore([]rawRow{
		{"Kerala", 20200301, 3, 0, 0},
		{"Kerala", 20200302, 5, 0, 0},
		{"Kerala", 20200302, 5, 0, 0},
	})

	pts := cs.Derive("Kerala")
	require.Len(t, pts, 2)
	assert.Equal(t, "2020-03-01", pts[0].Date)
	assert.Equal(t, int64(3), pts[0].NewConfirmed)
	assert.Equal(t, "2020-03-02", pts[1].Date)
	assert.Equal(t, int64(2), pts[1].NewConfirmed)
}

func TestDeriveNegativeDipFloored(t *testing.T) {
	// A data-correction dip must not produce a negative delta or carry debt
	cs := buildStore([]rawRow{
		{"Goa", 20200401, 10, 0, 0},
		{"Goa", 20200402, 8, 0, 0},
		{"Goa", 20200403, 15, 0, 0},
	})

	pts := cs.Derive("Goa")
	require.Len(t, pts, 3)
	assert.Equal(t, []int64{10, 0, 7}, []int64{pts[0].NewConfirmed, pts[1].NewConfirmed, pts[2].NewConfirmed})
}

func TestDeriveUnknownRegion(t *testing.T) {
	cs := buildStore([]rawRow{{"Kerala", 20200301, 3, 0, 0}})
	assert.Empty(t, cs.Derive("Atlantis"))

	_, ok := cs.Summary("Atlantis")
	assert.False(t, ok)
}

func TestDeriveSortsOutOfOrderInput(t *testing.T) {
	cs := buildStore([]rawRow{
		{"Delhi", 20200303, 9, 1, 2},
		{"Delhi", 20200301, 4, 0, 0},
		{"Delhi", 20200302, 7, 1, 1},
	})

	pts := cs.Derive("Delhi")
	require.Len(t, pts, 3)
	for i := 1; i < len(pts); i++ {
		assert.Less(t, pts[i-1].Date, pts[i].Date)
	}
	assert.Equal(t, int64(4), pts[0].NewConfirmed)
	assert.Equal(t, int64(3), pts[1].NewConfirmed)
	assert.Equal(t, int64(2), pts[2].NewConfirmed)
}

func TestMovingAverageWindows(t *testing.T) {
	// Cumulative 3,5,6,10,10,12,20,24 -> deltas 3,2,1,4,0,2,8,4
	cum := []int64{3, 5, 6, 10, 10, 12, 20, 24}
	rows := make([]rawRow, len(cum))
	for i, c := range cum {
		rows[i] = rawRow{"Kerala", 20200301 + int32(i), c, 0, 0}
	}
	pts := buildStore(rows).Derive("Kerala")
	require.Len(t, pts, 8)

	// Head of the series averages over however many rows exist
	assert.InDelta(t, 3.0, pts[0].ConfirmedMA7, 1e-9)
	assert.InDelta(t, 2.5, pts[1].ConfirmedMA7, 1e-9)

	// Full trailing window of 7
	assert.InDelta(t, 20.0/7.0, pts[6].ConfirmedMA7, 1e-9)

	// Window slides: day 0 drops out
	assert.InDelta(t, 21.0/7.0, pts[7].ConfirmedMA7, 1e-9)
}

func TestDeriveAllForwardFills(t *testing.T) {
	// B reports only on the middle date; its last known cumulative value
	// must pad the surrounding dates before summing
	cs := buildStore([]rawRow{
		{"A", 20200301, 10, 1, 2},
		{"A", 20200302, 20, 2, 4},
		{"A", 20200303, 30, 3, 6},
		{"B", 20200302, 5, 1, 1},
	})

	pts := cs.Derive(AllRegions)
	require.Len(t, pts, 3)
	assert.Equal(t, []int64{10, 25, 35}, []int64{pts[0].Confirmed, pts[1].Confirmed, pts[2].Confirmed})
	assert.Equal(t, []int64{10, 15, 10}, []int64{pts[0].NewConfirmed, pts[1].NewConfirmed, pts[2].NewConfirmed})
	assert.Equal(t, int64(1), pts[2].NewDeaths) // 3+1 - (2+1)
	assert.Equal(t, int64(2), pts[2].NewRecovered)
}

func TestDeriveNonNegativeAndIdempotent(t *testing.T) {
	cs := buildStore([]rawRow{
		{"A", 20200301, 10, 3, 5},
		{"A", 20200302, 8, 2, 4}, // corrections in every column
		{"B", 20200301, 7, 1, 1},
		{"B", 20200303, 9, 1, 3},
	})

	first := cs.Derive(AllRegions)
	second := cs.Derive(AllRegions)
	assert.Equal(t, first, second)

	for _, p := range first {
		assert.GreaterOrEqual(t, p.NewConfirmed, int64(0))
		assert.GreaterOrEqual(t, p.NewDeaths, int64(0))
		assert.GreaterOrEqual(t, p.NewRecovered, int64(0))
		assert.GreaterOrEqual(t, p.ConfirmedMA7, 0.0)
		assert.GreaterOrEqual(t, p.DeathsMA7, 0.0)
		assert.GreaterOrEqual(t, p.RecoveredMA7, 0.0)
	}
}

func TestDeriveEmptyStore(t *testing.T) {
	cs := &ColumnStore{}
	assert.Empty(t, cs.Derive(AllRegions))
	assert.Empty(t, cs.Derive("Kerala"))
}

func TestSummary(t *testing.T) {
	cs := buildStore([]rawRow{
		{"Kerala", 20200301, 100, 2, 30},
		{"Kerala", 20200302, 150, 3, 60},
		{"Delhi", 20200302, 40, 1, 10},
	})

	t.Run("single region", func(t *testing.T) {
		s, ok := cs.Summary("Kerala")
		require.True(t, ok)
		assert.Equal(t, "2020-03-02", s.AsOf)
		assert.Equal(t, int64(150), s.Confirmed)
		assert.Equal(t, int64(3), s.Deaths)
		assert.Equal(t, int64(60), s.Recovered)
		assert.Equal(t, int64(87), s.Active)
	})

	t.Run("aggregate", func(t *testing.T) {
		s, ok := cs.Summary(AllRegions)
		require.True(t, ok)
		assert.Equal(t, int64(190), s.Confirmed)
		assert.Equal(t, int64(116), s.Active) // 190 - 4 - 70
	})
}

func TestRegions(t *testing.T) {
	cs := buildStore([]rawRow{
		{"Kerala", 20200301, 1, 0, 0},
		{"Delhi", 20200301, 1, 0, 0},
		{"Kerala", 20200302, 2, 0, 0},
	})
	assert.Equal(t, []string{"Delhi", "Kerala"}, cs.Regions())
}
