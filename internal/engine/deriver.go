package engine

import (
	"fmt"
	"sort"

	"covidash/internal/models"
)

// AllRegions selects the aggregate over every region.
const AllRegions = "ALL"

// caseRow is one cumulative observation after dedupe/collapse.
type caseRow struct {
	date      int32
	confirmed int64
	deaths    int64
	recovered int64
}

// Derive computes the cleaned time series for one region, or for the
// all-regions aggregate: deduplicated, sorted ascending by date, day-over-day
// deltas floored at zero, and trailing 7-day means. Pure function of the
// store; an unknown region yields an empty slice, not an error.
func (cs *ColumnStore) Derive(regionFilter string) []models.SeriesPoint {
	return derive(cs.collapse(regionFilter))
}

// Summary returns the latest cumulative figures for the metric cards.
// ok is false when the filter matches no rows.
func (cs *ColumnStore) Summary(regionFilter string) (models.Summary, bool) {
	rows := cs.collapse(regionFilter)
	if len(rows) == 0 {
		return models.Summary{}, false
	}
	last := rows[len(rows)-1]
	return models.Summary{
		Region:    regionFilter,
		AsOf:      formatDate(last.date),
		Confirmed: last.confirmed,
		Deaths:    last.deaths,
		Recovered: last.recovered,
		Active:    last.confirmed - last.deaths - last.recovered,
	}, true
}

// collapse produces one cumulative row per date for the filter, sorted
// ascending. Duplicate (region, date) rows keep the last occurrence in input
// order, matching how the upstream dataset publishes corrections.
func (cs *ColumnStore) collapse(regionFilter string) []caseRow {
	if regionFilter == AllRegions {
		return cs.collapseAll()
	}
	rid := int32(-1)
	for i, name := range cs.RegionDict {
		if name == regionFilter {
			rid = int32(i)
			break
		}
	}
	if rid < 0 {
		return nil
	}
	byDate := make(map[int32]caseRow)
	for i, d := range cs.Dates {
		if cs.RegionIDs[i] != rid {
			continue
		}
		byDate[d] = caseRow{date: d, confirmed: cs.Confirmed[i], deaths: cs.Deaths[i], recovered: cs.Recovered[i]}
	}
	return sortRows(byDate)
}

// collapseAll sums cumulative counts across regions per date. A region with
// no row on a date contributes its last known cumulative value (zero before
// its first row), so the aggregate never dips when a region skips a day.
func (cs *ColumnStore) collapseAll() []caseRow {
	if len(cs.RegionDict) == 0 {
		return nil
	}

	perRegion := make([]map[int32]caseRow, len(cs.RegionDict))
	dateSet := make(map[int32]struct{})
	for i, d := range cs.Dates {
		rid := cs.RegionIDs[i]
		m := perRegion[rid]
		if m == nil {
			m = make(map[int32]caseRow)
			perRegion[rid] = m
		}
		m[d] = caseRow{date: d, confirmed: cs.Confirmed[i], deaths: cs.Deaths[i], recovered: cs.Recovered[i]}
		dateSet[d] = struct{}{}
	}

	all := make([]int32, 0, len(dateSet))
	for d := range dateSet {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	out := make([]caseRow, len(all))
	for i, d := range all {
		out[i].date = d
	}
	for _, m := range perRegion {
		if m == nil {
			continue
		}
		dates := make([]int32, 0, len(m))
		for d := range m {
			dates = append(dates, d)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })

		// Forward-fill this region's cumulative values over the global dates
		j := 0
		var carry caseRow
		seen := false
		for i, d := range all {
			for j < len(dates) && dates[j] <= d {
				carry = m[dates[j]]
				seen = true
				j++
			}
			if seen {
				out[i].confirmed += carry.confirmed
				out[i].deaths += carry.deaths
				out[i].recovered += carry.recovered
			}
		}
	}
	return out
}

func sortRows(byDate map[int32]caseRow) []caseRow {
	rows := make([]caseRow, 0, len(byDate))
	for _, r := range byDate {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].date < rows[j].date })
	return rows
}

// derive runs the differencing and rolling-mean pass over collapsed rows.
func derive(rows []caseRow) []models.SeriesPoint {
	pts := make([]models.SeriesPoint, len(rows))
	for i, r := range rows {
		nc, nd, nr := r.confirmed, r.deaths, r.recovered
		if i > 0 {
			prev := rows[i-1]
			nc = floorZero(r.confirmed - prev.confirmed)
			nd = floorZero(r.deaths - prev.deaths)
			nr = floorZero(r.recovered - prev.recovered)
		}
		pts[i] = models.SeriesPoint{
			Date:         formatDate(r.date),
			NewConfirmed: nc,
			NewDeaths:    nd,
			NewRecovered: nr,
			Confirmed:    r.confirmed,
		}
	}

	// Trailing 7-row window; shorter at the head of the series
	var sc, sd, sr int64
	for i := range pts {
		sc += pts[i].NewConfirmed
		sd += pts[i].NewDeaths
		sr += pts[i].NewRecovered
		if i >= 7 {
			sc -= pts[i-7].NewConfirmed
			sd -= pts[i-7].NewDeaths
			sr -= pts[i-7].NewRecovered
		}
		n := i + 1
		if n > 7 {
			n = 7
		}
		pts[i].ConfirmedMA7 = float64(sc) / float64(n)
		pts[i].DeathsMA7 = float64(sd) / float64(n)
		pts[i].RecoveredMA7 = float64(sr) / float64(n)
	}
	return pts
}

func floorZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func formatDate(d int32) string {
	return fmt.Sprintf("%04d-%02d-%02d", d/10000, d/100%100, d%100)
}
