package youtube

type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
	PublishedAt  string `json:"publishedAt"`
	ViewCount    int    `json:"viewCount"`
	LikeCount    int    `json:"likeCount"`
	CommentCount int    `json:"commentCount"`
}

type ViewsByMonthPoint struct {
	Month      string `json:"month"`
	Views      int    `json:"views"`
	VideoCount int    `json:"videoCount"`
}

type Metrics struct {
	TotalViews   int    `json:"totalViews"`
	Subscribers  int    `json:"subscribers"`
	TotalVideos  int    `json:"totalVideos"`
	ChannelTitle string `json:"channelTitle"`
	ChannelURL   string `json:"channelUrl"`
}

type AnalyticsData struct {
	Metrics      Metrics             `json:"metrics"`
	Videos       []Video             `json:"videos"`
	ViewsByMonth []ViewsByMonthPoint `json:"viewsByMonth"`
}

// Data API v3 wire shapes. Statistics counters arrive as strings.

type thumbnail struct {
	URL string `json:"url"`
}

type channelResponse struct {
	Items []struct {
		Snippet struct {
			Title     string `json:"title"`
			CustomURL string `json:"customUrl"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount       string `json:"viewCount"`
			SubscriberCount string `json:"subscriberCount"`
			VideoCount      string `json:"videoCount"`
		} `json:"statistics"`
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type playlistItemsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
			Thumbnails  struct {
				Medium  *thumbnail `json:"medium"`
				Default *thumbnail `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}
