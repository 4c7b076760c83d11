package github

// LanguageBreakdown is bytes per language normalized to a percentage of the
// repository total. Percentages carry one decimal and sum to 100 across all
// languages with nonzero bytes, up to rounding.
type LanguageBreakdown struct {
	Language   string  `json:"language"`
	Bytes      int64   `json:"bytes"`
	Percentage float64 `json:"percentage"`
}

type Repository struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	FullName    string              `json:"fullName"`
	Description string              `json:"description,omitempty"`
	URL         string              `json:"url"`
	Stars       int                 `json:"stars"`
	Forks       int                 `json:"forks"`
	Watchers    int                 `json:"watchers"`
	Language    string              `json:"language,omitempty"`
	Languages   []LanguageBreakdown `json:"languages"`
	IsArchived  bool                `json:"isArchived"`
	IsFork      bool                `json:"isFork"`
	IsPrivate   bool                `json:"isPrivate"`
	CreatedAt   string              `json:"createdAt"`
	UpdatedAt   string              `json:"updatedAt"`
	PushedAt    string              `json:"pushedAt"`
}

type StarHistoryPoint struct {
	Date       string `json:"date"`
	TotalStars int    `json:"totalStars"`
	NewStars   int    `json:"newStars"`
}

type Metrics struct {
	TotalStars       int `json:"totalStars"`
	TotalForks       int `json:"totalForks"`
	TotalWatchers    int `json:"totalWatchers"`
	RepoCount        int `json:"repoCount"`
	NewStarsThisWeek int `json:"newStarsThisWeek"`
	StarsTrend       int `json:"starsTrend"`
}

type AnalyticsData struct {
	Metrics      Metrics            `json:"metrics"`
	Repositories []Repository       `json:"repositories"`
	StarHistory  []StarHistoryPoint `json:"starHistory"`
}

// apiRepo is the upstream response shape; only the consumed fields are
// declared.
type apiRepo struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	FullName    string  `json:"full_name"`
	Description *string `json:"description"`
	HTMLURL     string  `json:"html_url"`
	Stars       int     `json:"stargazers_count"`
	Forks       int     `json:"forks_count"`
	Watchers    int     `json:"watchers_count"`
	Language    *string `json:"language"`
	Archived    bool    `json:"archived"`
	Fork        bool    `json:"fork"`
	Private     bool    `json:"private"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	PushedAt    string  `json:"pushed_at"`
}
