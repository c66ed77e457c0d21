package ingest

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"thirdcoast.systems/inflow/internal/provider"
)

// Defaults substituted for absent payload fields.
const (
	UntitledItemTitle  = "Untitled"
	UnknownCreatorName = "Unknown"
)

// TransformFunc converts one raw provider payload into a draft. Implementations
// are pure: no I/O, no storage access.
type TransformFunc func(raw any) (ItemDraft, error)

// ProviderIDFunc extracts the provider item id from a raw payload. It is used
// only to label errors and dead letters when transformation itself fails.
type ProviderIDFunc func(raw any) string

// YouTubeVideo is the raw shape of a video payload from the YouTube data API,
// reduced to the fields ingestion reads.
type YouTubeVideo struct {
	VideoID         string `json:"videoId"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	ChannelID       string `json:"channelId"`
	ChannelTitle    string `json:"channelTitle"`
	PublishedAt     string `json:"publishedAt"`
	ThumbnailURL    string `json:"thumbnailUrl"`
	DurationSeconds int64  `json:"durationSeconds"`
}

// SpotifyEpisode is the raw shape of a podcast episode payload from the
// Spotify API, reduced to the fields ingestion reads.
type SpotifyEpisode struct {
	EpisodeID            string `json:"id"`
	Name                 string `json:"name"`
	Description          string `json:"description"`
	ReleaseDate          string `json:"release_date"`
	ReleaseDatePrecision string `json:"release_date_precision"`
	DurationMillis       int64  `json:"duration_ms"`
	ExternalURL          string `json:"external_url"`
	ImageURL             string `json:"image_url"`
	ShowID               string `json:"show_id"`
	ShowName             string `json:"show_name"`
	ShowImageURL         string `json:"show_image_url"`
}

// TransformYouTubeVideo builds a draft from a YouTube video payload.
func TransformYouTubeVideo(raw any) (ItemDraft, error) {
	v, ok := asYouTubeVideo(raw)
	if !ok {
		return ItemDraft{}, &TransformError{Field: "payload", Message: fmt.Sprintf("expected YouTubeVideo, got %T", raw)}
	}
	if strings.TrimSpace(v.VideoID) == "" {
		return ItemDraft{}, &TransformError{Field: "videoId"}
	}

	duration := v.DurationSeconds
	return ItemDraft{
		ID:              CanonicalItemID(provider.YouTube, v.VideoID),
		Provider:        provider.YouTube,
		ProviderItemID:  v.VideoID,
		Title:           orDefault(v.Title, UntitledItemTitle),
		Description:     v.Description,
		CanonicalURL:    "https://youtube.com/watch?v=" + v.VideoID,
		ContentType:     ContentTypeVideo,
		CreatorName:     orDefault(v.ChannelTitle, UnknownCreatorName),
		ThumbnailURL:    v.ThumbnailURL,
		DurationSeconds: &duration,
		PublishedAt:     parseTimestampMillis(v.PublishedAt),
		CreatedAt:       time.Now().UnixMilli(),
	}, nil
}

// YouTubeVideoID extracts the video id for error labeling.
func YouTubeVideoID(raw any) string {
	if v, ok := asYouTubeVideo(raw); ok {
		return v.VideoID
	}
	return ""
}

// TransformSpotifyEpisode builds a draft from a Spotify episode payload.
// Release dates come with a precision marker: year and month precision
// normalize to the first instant of that period at UTC. The millisecond
// duration is floor-divided into whole seconds.
func TransformSpotifyEpisode(raw any) (ItemDraft, error) {
	e, ok := asSpotifyEpisode(raw)
	if !ok {
		return ItemDraft{}, &TransformError{Field: "payload", Message: fmt.Sprintf("expected SpotifyEpisode, got %T", raw)}
	}
	if strings.TrimSpace(e.EpisodeID) == "" {
		return ItemDraft{}, &TransformError{Field: "id"}
	}

	duration := e.DurationMillis / 1000
	return ItemDraft{
		ID:              CanonicalItemID(provider.Spotify, e.EpisodeID),
		Provider:        provider.Spotify,
		ProviderItemID:  e.EpisodeID,
		Title:           orDefault(e.Name, UntitledItemTitle),
		Description:     e.Description,
		CanonicalURL:    orDefault(e.ExternalURL, "https://open.spotify.com/episode/"+e.EpisodeID),
		ContentType:     ContentTypeEpisode,
		CreatorName:     orDefault(e.ShowName, UnknownCreatorName),
		ThumbnailURL:    e.ImageURL,
		DurationSeconds: &duration,
		PublishedAt:     parseTimestampMillis(e.ReleaseDate),
		CreatedAt:       time.Now().UnixMilli(),
	}, nil
}

// SpotifyEpisodeID extracts the episode id for error labeling.
func SpotifyEpisodeID(raw any) string {
	if e, ok := asSpotifyEpisode(raw); ok {
		return e.EpisodeID
	}
	return ""
}

// TransformFeedItem builds a draft from a syndication feed entry
// (*gofeed.Item). Feed descriptions routinely carry markup and HTML entities,
// so they are tag-stripped and entity-decoded here.
func TransformFeedItem(raw any) (ItemDraft, error) {
	item, ok := raw.(*gofeed.Item)
	if !ok || item == nil {
		return ItemDraft{}, &TransformError{Field: "payload", Message: fmt.Sprintf("expected *gofeed.Item, got %T", raw)}
	}

	guid := strings.TrimSpace(item.GUID)
	if guid == "" {
		guid = strings.TrimSpace(item.Link)
	}
	if guid == "" {
		return ItemDraft{}, &TransformError{Field: "guid"}
	}

	creator := UnknownCreatorName
	if item.Author != nil && strings.TrimSpace(item.Author.Name) != "" {
		creator = strings.TrimSpace(item.Author.Name)
	} else if len(item.Authors) > 0 && strings.TrimSpace(item.Authors[0].Name) != "" {
		creator = strings.TrimSpace(item.Authors[0].Name)
	}

	published := int64(0)
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UnixMilli()
	} else {
		published = parseTimestampMillis(item.Published)
	}

	thumbnail := ""
	if item.Image != nil {
		thumbnail = item.Image.URL
	}

	return ItemDraft{
		ID:             CanonicalItemID(provider.RSS, guid),
		Provider:       provider.RSS,
		ProviderItemID: guid,
		Title:          orDefault(strings.TrimSpace(item.Title), UntitledItemTitle),
		Description:    StripHTML(item.Description),
		CanonicalURL:   item.Link,
		ContentType:    ContentTypeArticle,
		CreatorName:    creator,
		ThumbnailURL:   thumbnail,
		PublishedAt:    published,
		CreatedAt:      time.Now().UnixMilli(),
	}, nil
}

// FeedItemID extracts the entry guid (or link) for error labeling.
func FeedItemID(raw any) string {
	item, ok := raw.(*gofeed.Item)
	if !ok || item == nil {
		return ""
	}
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link
}

// TransformerFor returns the built-in transformer pair for a provider.
func TransformerFor(p provider.Provider) (TransformFunc, ProviderIDFunc, bool) {
	switch p {
	case provider.YouTube:
		return TransformYouTubeVideo, YouTubeVideoID, true
	case provider.Spotify:
		return TransformSpotifyEpisode, SpotifyEpisodeID, true
	case provider.RSS:
		return TransformFeedItem, FeedItemID, true
	}
	return nil, nil, false
}

var stripPolicy = bluemonday.StrictPolicy()

// StripHTML removes all markup and decodes HTML entities, leaving plain text.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	// The sanitizer re-escapes entities in its output, so decode afterwards.
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}

// timestampLayouts covers full ISO-8601 timestamps plus the partial dates some
// providers emit. Partial dates resolve to the first instant of the period.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

func parseTimestampMillis(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func asYouTubeVideo(raw any) (YouTubeVideo, bool) {
	switch v := raw.(type) {
	case YouTubeVideo:
		return v, true
	case *YouTubeVideo:
		if v != nil {
			return *v, true
		}
	}
	return YouTubeVideo{}, false
}

func asSpotifyEpisode(raw any) (SpotifyEpisode, bool) {
	switch v := raw.(type) {
	case SpotifyEpisode:
		return v, true
	case *SpotifyEpisode:
		if v != nil {
			return *v, true
		}
	}
	return SpotifyEpisode{}, false
}
