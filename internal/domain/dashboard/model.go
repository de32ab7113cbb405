package dashboard

// PlatformStats is the landing-page counter row.
type PlatformStats struct {
	Cases              int     `json:"cases"`
	Projects           int     `json:"projects"`
	Cohorts            int     `json:"cohorts"`
	Users              int     `json:"users"`
	MeanDataCompletion float64 `json:"meanDataCompletion"`
}

// SiteCount is one bar of the primary-site histogram, keyed by topography
// group where the terminology resolves one.
type SiteCount struct {
	Site  string `json:"site"`
	Count int    `json:"count"`
}

// MonthCount is one month of case registrations.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// CompletionStats summarizes documentation completeness across all cases.
type CompletionStats struct {
	Mean float64 `json:"mean"`
	// Histogram counts cases per 10%-wide completion bucket, "0-10" through
	// "90-100".
	Histogram []RateCount `json:"histogram"`
}

type RateCount struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}
