package models

type PlatformName string

const (
	PlatformBeatport     PlatformName = "beatport"
	PlatformTraxsource   PlatformName = "traxsource"
	PlatformSoundcloud   PlatformName = "soundcloud"
	PlatformBandcamp     PlatformName = "bandcamp"
	PlatformUnrecognized PlatformName = "unrecognized"
)

// KnownPlatforms is ordered by classification priority.
var KnownPlatforms = []PlatformName{
	PlatformBeatport,
	PlatformTraxsource,
	PlatformSoundcloud,
	PlatformBandcamp,
}

func (p PlatformName) Known() bool {
	for _, k := range KnownPlatforms {
		if p == k {
			return true
		}
	}
	return false
}

// ArtistRef points at a stored artist by ID, or carries a raw name/url pair
// that still has to be resolved to one.
type ArtistRef struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

type TrackRecord struct {
	ID       int64       `json:"id,omitempty"`
	Title    string      `json:"title"`
	Version  string      `json:"version,omitempty"`
	URL      string      `json:"url"`
	Label    string      `json:"label,omitempty"`
	Genre    string      `json:"genre,omitempty"`
	Key      string      `json:"key,omitempty"`
	BPM      *float64    `json:"bpm,omitempty"`
	Length   string      `json:"length,omitempty"`
	Released string      `json:"released,omitempty"`
	Artists  []ArtistRef `json:"artists"`
	Comments string      `json:"comments,omitempty"`
	Tags     []string    `json:"tags,omitempty"`
}

// ArtistIDs returns the IDs of the resolved artist references in order.
func (t TrackRecord) ArtistIDs() []int64 {
	ids := make([]int64, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a.ID > 0 {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

type ArtistRecord struct {
	ID         int64  `json:"id,omitempty"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	PlatformID int64  `json:"platform_id"`
}

type PlatformRecord struct {
	ID   int64        `json:"id,omitempty"`
	Name PlatformName `json:"name"`
	URL  string       `json:"url"`
}

// Components holds the per-field similarity scores behind a ScoredMatch.
type Components struct {
	Title   float64 `json:"title"`
	Artist  float64 `json:"artist"`
	Version float64 `json:"version"`
	Label   float64 `json:"label"`
	Genre   float64 `json:"genre"`
	Key     float64 `json:"key"`
	BPM     float64 `json:"bpm"`
}

type ScoredMatch struct {
	TrackRecord
	Score      float64    `json:"similarity_score"`
	Components Components `json:"components"`
}

func Float(v float64) *float64 {
	return &v
}
