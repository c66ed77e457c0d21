package provider

// Provider identifies the upstream content source a payload came from.
type Provider string

const (
	YouTube Provider = "youtube"
	Spotify Provider = "spotify"
	RSS     Provider = "rss"
)

// nativeCreatorID lists providers whose payloads carry a stable creator
// identifier of their own. Everything else derives a deterministic id from the
// creator's display name.
//
// Keep this intentionally conservative: a provider only belongs here when its
// creator ids survive renames.
var nativeCreatorID = map[Provider]bool{
	YouTube: true,
	Spotify: true,
}

// HasNativeCreatorID reports whether p issues its own creator/channel ids.
func (p Provider) HasNativeCreatorID() bool {
	return nativeCreatorID[p]
}

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case YouTube, Spotify, RSS:
		return true
	}
	return false
}

func (p Provider) String() string {
	return string(p)
}
