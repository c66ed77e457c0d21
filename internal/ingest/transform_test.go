package ingest

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/require"
	"thirdcoast.systems/inflow/internal/provider"
)

func TestTransformYouTubeVideo(t *testing.T) {
	draft, err := TransformYouTubeVideo(YouTubeVideo{
		VideoID:         "ggLajT7aMMk",
		Title:           "Launch Day",
		Description:     "notes",
		ChannelID:       "UC123",
		ChannelTitle:    "Third Coast",
		PublishedAt:     "2024-03-01T12:30:00Z",
		DurationSeconds: 630,
	})
	require.NoError(t, err)
	require.Equal(t, provider.YouTube, draft.Provider)
	require.Equal(t, "ggLajT7aMMk", draft.ProviderItemID)
	require.Equal(t, "https://youtube.com/watch?v=ggLajT7aMMk", draft.CanonicalURL)
	require.Equal(t, ContentTypeVideo, draft.ContentType)
	require.Equal(t, "Third Coast", draft.CreatorName)
	require.Equal(t, CanonicalItemID(provider.YouTube, "ggLajT7aMMk"), draft.ID)

	want := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC).UnixMilli()
	require.Equal(t, want, draft.PublishedAt)
	require.NotNil(t, draft.DurationSeconds)
	require.Equal(t, int64(630), *draft.DurationSeconds)
}

func TestTransformYouTubeVideo_Defaults(t *testing.T) {
	draft, err := TransformYouTubeVideo(YouTubeVideo{
		VideoID:     "abc123",
		PublishedAt: "2024-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	require.Equal(t, UntitledItemTitle, draft.Title)
	require.Equal(t, UnknownCreatorName, draft.CreatorName)
}

func TestTransformYouTubeVideo_MissingID(t *testing.T) {
	_, err := TransformYouTubeVideo(YouTubeVideo{Title: "No ID"})
	require.Error(t, err)

	var te *TransformError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "videoId", te.Field)
}

func TestTransformYouTubeVideo_WrongPayloadType(t *testing.T) {
	_, err := TransformYouTubeVideo(42)
	var te *TransformError
	require.ErrorAs(t, err, &te)
}

func TestTransformSpotifyEpisode_DurationFloorDivided(t *testing.T) {
	draft, err := TransformSpotifyEpisode(SpotifyEpisode{
		EpisodeID:            "ep-1",
		Name:                 "Episode One",
		ReleaseDate:          "2024-05-20",
		ReleaseDatePrecision: "day",
		DurationMillis:       1999,
		ShowID:               "show-1",
		ShowName:             "The Show",
	})
	require.NoError(t, err)
	require.NotNil(t, draft.DurationSeconds)
	require.Equal(t, int64(1), *draft.DurationSeconds)
	require.Equal(t, ContentTypeEpisode, draft.ContentType)
	require.Equal(t, "The Show", draft.CreatorName)
}

func TestTransformSpotifyEpisode_PartialReleaseDates(t *testing.T) {
	cases := []struct {
		name      string
		date      string
		precision string
		want      time.Time
	}{
		{"year only", "2021", "year", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"year and month", "2021-07", "month", time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"full day", "2021-07-15", "day", time.Date(2021, 7, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			draft, err := TransformSpotifyEpisode(SpotifyEpisode{
				EpisodeID:            "ep-1",
				Name:                 "E",
				ReleaseDate:          tc.date,
				ReleaseDatePrecision: tc.precision,
				DurationMillis:       60000,
			})
			require.NoError(t, err)
			require.Equal(t, tc.want.UnixMilli(), draft.PublishedAt)
		})
	}
}

func TestTransformSpotifyEpisode_MissingID(t *testing.T) {
	_, err := TransformSpotifyEpisode(SpotifyEpisode{Name: "No ID"})
	var te *TransformError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "id", te.Field)
}

func TestTransformFeedItem_StripsMarkupAndEntities(t *testing.T) {
	published := time.Date(2024, 2, 2, 8, 0, 0, 0, time.UTC)
	draft, err := TransformFeedItem(&gofeed.Item{
		GUID:            "https://blog.example.com/post-1",
		Title:           "Hello",
		Link:            "https://blog.example.com/post-1",
		Description:     "<p>Ben &amp; Jerry say <b>hi</b></p>",
		PublishedParsed: &published,
		Author:          &gofeed.Person{Name: "RSS Blog Author"},
	})
	require.NoError(t, err)
	require.Equal(t, "Ben & Jerry say hi", draft.Description)
	require.Equal(t, "RSS Blog Author", draft.CreatorName)
	require.Equal(t, ContentTypeArticle, draft.ContentType)
	require.Equal(t, published.UnixMilli(), draft.PublishedAt)
}

func TestTransformFeedItem_FallsBackToLinkGUID(t *testing.T) {
	draft, err := TransformFeedItem(&gofeed.Item{
		Link:      "https://blog.example.com/post-2",
		Title:     "Post Two",
		Published: "2024-02-03",
	})
	require.NoError(t, err)
	require.Equal(t, "https://blog.example.com/post-2", draft.ProviderItemID)
	require.Equal(t, UnknownCreatorName, draft.CreatorName)
}

func TestTransformFeedItem_MissingGUIDAndLink(t *testing.T) {
	_, err := TransformFeedItem(&gofeed.Item{Title: "Nothing identifies me"})
	var te *TransformError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "guid", te.Field)
}

func TestStripHTML(t *testing.T) {
	require.Equal(t, "plain", StripHTML("plain"))
	require.Equal(t, "a < b", StripHTML("a &lt; b"))
	require.Equal(t, "linked text", StripHTML(`<a href="https://x.test">linked</a> text`))
	require.Equal(t, "", StripHTML(""))
}

func TestTransformerFor(t *testing.T) {
	for _, p := range []provider.Provider{provider.YouTube, provider.Spotify, provider.RSS} {
		transform, providerID, ok := TransformerFor(p)
		require.True(t, ok, p)
		require.NotNil(t, transform)
		require.NotNil(t, providerID)
	}

	_, _, ok := TransformerFor(provider.Provider("myspace"))
	require.False(t, ok)
}
