package models

// SeriesPoint is one derived row of a region's time series (or of the
// all-regions aggregate): zero-floored daily deltas, their trailing 7-day
// means, and the cumulative confirmed count the dashboard charts directly.
type SeriesPoint struct {
	Date         string  `json:"date"`
	NewConfirmed int64   `json:"new_confirmed"`
	NewDeaths    int64   `json:"new_deaths"`
	NewRecovered int64   `json:"new_recovered"`
	ConfirmedMA7 float64 `json:"confirmed_ma7"`
	DeathsMA7    float64 `json:"deaths_ma7"`
	RecoveredMA7 float64 `json:"recovered_ma7"`
	Confirmed    int64   `json:"confirmed"`
}

// Summary backs the four metric cards.
type Summary struct {
	Region    string `json:"region"`
	AsOf      string `json:"as_of"`
	Confirmed int64  `json:"confirmed"`
	Deaths    int64  `json:"deaths"`
	Recovered int64  `json:"recovered"`
	Active    int64  `json:"active"`
}

type SeriesResponse struct {
	Region string        `json:"region"`
	Points []SeriesPoint `json:"points"`
	Total  int           `json:"total"`
}

type StatusResponse struct {
	Ready       bool `json:"ready"`
	Rows        int  `json:"rows"`
	Regions     int  `json:"regions"`
	DroppedRows int  `json:"dropped_rows"`
}
