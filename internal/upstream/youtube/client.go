// Package youtube reads channel and per-video statistics from the YouTube
// Data API v3. The whole uploads playlist is walked, so the payload reflects
// channel lifetime numbers rather than a query window.
package youtube

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"vanity/internal/cache"
	"vanity/internal/httpx"
	"vanity/internal/providers"
	"vanity/internal/structures"
	"vanity/internal/upstreamerr"
)

const (
	source   = "youtube"
	apiBase  = "https://www.googleapis.com/youtube/v3"
	pageSize = 50
)

type Interface interface {
	FetchAnalytics(ctx context.Context) (*AnalyticsData, error)
}

type Client struct {
	conf    structures.YouTubeConfig
	http    *httpx.Client
	api     string
	data    *cache.Store[*AnalyticsData]
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
}

func NewClient(conf *structures.Config, hc *httpx.Client, logger providers.Logger, metrics providers.MetricsProviderInterface) *Client {
	ttl := conf.Cache.ClientTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Client{
		conf:    conf.YouTube,
		http:    hc,
		api:     apiBase,
		data:    cache.New[*AnalyticsData](ttl),
		logger:  logger,
		metrics: metrics,
	}
}

// get calls one API endpoint with the key attached. A 403 nearly always
// means the daily quota ran out, so it maps to a rate limit failure.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	params.Set("key", c.conf.APIKey)
	reqURL := c.api + "/" + endpoint + "?" + params.Encode()

	status, err := c.http.GetJSON(ctx, reqURL, map[string]string{"Accept": "application/json"}, out)
	if err != nil {
		c.metrics.IncUpstreamRequests(source, "error")
		return err
	}
	if status < 200 || status >= 300 {
		c.metrics.IncUpstreamRequests(source, "error")
		switch status {
		case http.StatusUnauthorized:
			return &upstreamerr.AuthError{Source: source}
		case http.StatusForbidden:
			return &upstreamerr.RateLimitError{Source: source}
		case http.StatusNotFound:
			return &upstreamerr.NotFoundError{Source: source, Entity: "channel '" + c.conf.ChannelID + "'"}
		default:
			return &upstreamerr.UpstreamError{Source: source, Status: status}
		}
	}
	c.metrics.IncUpstreamRequests(source, "ok")
	return nil
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

type channelInfo struct {
	title             string
	customURL         string
	viewCount         int
	subscriberCount   int
	videoCount        int
	uploadsPlaylistID string
}

func (c *Client) fetchChannelInfo(ctx context.Context) (channelInfo, error) {
	var resp channelResponse
	err := c.get(ctx, "channels", url.Values{
		"part": {"snippet,statistics,contentDetails"},
		"id":   {c.conf.ChannelID},
	}, &resp)
	if err != nil {
		return channelInfo{}, err
	}
	if len(resp.Items) == 0 {
		return channelInfo{}, &upstreamerr.NotFoundError{Source: source, Entity: "channel '" + c.conf.ChannelID + "'"}
	}

	ch := resp.Items[0]
	return channelInfo{
		title:             ch.Snippet.Title,
		customURL:         ch.Snippet.CustomURL,
		viewCount:         atoi(ch.Statistics.ViewCount),
		subscriberCount:   atoi(ch.Statistics.SubscriberCount),
		videoCount:        atoi(ch.Statistics.VideoCount),
		uploadsPlaylistID: ch.ContentDetails.RelatedPlaylists.Uploads,
	}, nil
}

func (c *Client) fetchAllVideoIDs(ctx context.Context, playlistID string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		params := url.Values{
			"part":       {"contentDetails"},
			"playlistId": {playlistID},
			"maxResults": {strconv.Itoa(pageSize)},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var resp playlistItemsResponse
		if err := c.get(ctx, "playlistItems", params, &resp); err != nil {
			return nil, err
		}
		for _, item := range resp.Items {
			ids = append(ids, item.ContentDetails.VideoID)
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (c *Client) fetchVideoDetails(ctx context.Context, ids []string) ([]Video, error) {
	videos := make([]Video, 0, len(ids))
	for start := 0; start < len(ids); start += pageSize {
		end := start + pageSize
		if end > len(ids) {
			end = len(ids)
		}

		var resp videosResponse
		err := c.get(ctx, "videos", url.Values{
			"part": {"snippet,statistics"},
			"id":   {strings.Join(ids[start:end], ",")},
		}, &resp)
		if err != nil {
			return nil, err
		}

		for _, item := range resp.Items {
			thumb := ""
			if item.Snippet.Thumbnails.Medium != nil {
				thumb = item.Snippet.Thumbnails.Medium.URL
			} else if item.Snippet.Thumbnails.Default != nil {
				thumb = item.Snippet.Thumbnails.Default.URL
			}
			videos = append(videos, Video{
				ID:           item.ID,
				Title:        item.Snippet.Title,
				URL:          "https://www.youtube.com/watch?v=" + item.ID,
				ThumbnailURL: thumb,
				PublishedAt:  item.Snippet.PublishedAt,
				ViewCount:    atoi(item.Statistics.ViewCount),
				LikeCount:    atoi(item.Statistics.LikeCount),
				CommentCount: atoi(item.Statistics.CommentCount),
			})
		}
	}
	return videos, nil
}

// viewsByMonth buckets lifetime video views by publish month (YYYY-MM).
func viewsByMonth(videos []Video) []ViewsByMonthPoint {
	byMonth := make(map[string]*ViewsByMonthPoint)
	for _, v := range videos {
		t, err := time.Parse(time.RFC3339, v.PublishedAt)
		if err != nil {
			continue
		}
		month := t.Format("2006-01")
		p, ok := byMonth[month]
		if !ok {
			p = &ViewsByMonthPoint{Month: month}
			byMonth[month] = p
		}
		p.Views += v.ViewCount
		p.VideoCount++
	}

	points := make([]ViewsByMonthPoint, 0, len(byMonth))
	for _, p := range byMonth {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Month < points[j].Month })
	return points
}

// FetchAnalytics loads channel statistics, walks the uploads playlist and
// assembles per-video details sorted by views.
func (c *Client) FetchAnalytics(ctx context.Context) (*AnalyticsData, error) {
	if c.conf.APIKey == "" {
		return nil, &upstreamerr.ConfigError{Var: "YOUTUBE_API_KEY", Reason: "not set"}
	}
	if c.conf.ChannelID == "" {
		return nil, &upstreamerr.ConfigError{Var: "YOUTUBE_CHANNEL_ID", Reason: "not set"}
	}

	cacheKey := "youtube:" + c.conf.ChannelID
	if cached, ok := c.data.Get(cacheKey); ok {
		c.metrics.IncCacheHits()
		return cached, nil
	}
	c.metrics.IncCacheMisses()

	channel, err := c.fetchChannelInfo(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := c.fetchAllVideoIDs(ctx, channel.uploadsPlaylistID)
	if err != nil {
		return nil, err
	}
	videos, err := c.fetchVideoDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	sort.Slice(videos, func(i, j int) bool { return videos[i].ViewCount > videos[j].ViewCount })

	channelURL := "https://www.youtube.com/channel/" + c.conf.ChannelID
	if channel.customURL != "" {
		channelURL = "https://www.youtube.com/" + channel.customURL
	}

	data := &AnalyticsData{
		Metrics: Metrics{
			TotalViews:   channel.viewCount,
			Subscribers:  channel.subscriberCount,
			TotalVideos:  channel.videoCount,
			ChannelTitle: channel.title,
			ChannelURL:   channelURL,
		},
		Videos:       videos,
		ViewsByMonth: viewsByMonth(videos),
	}

	c.data.Set(cacheKey, data)
	return data, nil
}
