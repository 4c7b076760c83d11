package packages

type Registry string

const (
	RegistryNpm    Registry = "npm"
	RegistryPypi   Registry = "pypi"
	RegistryCrates Registry = "crates"
)

type DailyDownloads struct {
	Date      string `json:"date"`
	Downloads int    `json:"downloads"`
}

// PackageDownloads is the normalized per-package payload. WeeklyDownloads
// and MonthlyDownloads are sums over the last 7/30 entries of DailyDownloads
// as fetched, i.e. tails of the queried range rather than calendar windows.
type PackageDownloads struct {
	Name             string           `json:"name"`
	Registry         Registry         `json:"registry"`
	TotalDownloads   int              `json:"totalDownloads"`
	WeeklyDownloads  int              `json:"weeklyDownloads"`
	MonthlyDownloads int              `json:"monthlyDownloads"`
	DailyDownloads   []DailyDownloads `json:"dailyDownloads"`
	URL              string           `json:"url"`
	CreatedAt        string           `json:"createdAt,omitempty"`
}

type FetchError struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// FetchResult isolates per-package failures: one bad package never aborts
// the batch.
type FetchResult struct {
	Successful []PackageDownloads
	Errors     []FetchError
}

type Metrics struct {
	TotalDownloads  int `json:"totalDownloads"`
	WeeklyDownloads int `json:"weeklyDownloads"`
	PackageCount    int `json:"packageCount"`
	WeeklyTrend     int `json:"weeklyTrend"`
}

type SeriesPoint struct {
	Date   string `json:"date"`
	Npm    int    `json:"npm"`
	Pypi   int    `json:"pypi"`
	Crates int    `json:"crates"`
}

type TopPackage struct {
	Name            string   `json:"name"`
	Registry        Registry `json:"registry"`
	WeeklyDownloads int      `json:"weeklyDownloads"`
}

type AnalyticsData struct {
	Metrics    Metrics            `json:"metrics"`
	Packages   []PackageDownloads `json:"packages"`
	TimeSeries []SeriesPoint      `json:"timeSeries"`
	TopPackage *TopPackage        `json:"topPackage"`
}
