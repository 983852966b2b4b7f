package extract

import (
	"fmt"
	"strings"

	"djutils-srv/internal/models"
)

// ClassifyPlatform returns the first known platform whose name appears in the
// URL. Unknown URLs yield PlatformUnrecognized and false.
func ClassifyPlatform(url string) (models.PlatformName, bool) {
	lower := strings.ToLower(url)
	for _, p := range models.KnownPlatforms {
		if strings.Contains(lower, string(p)) {
			return p, true
		}
	}
	return models.PlatformUnrecognized, false
}

// ResolvePlatform is ClassifyPlatform for callers that reject unknown URLs.
func ResolvePlatform(url string) (models.PlatformName, error) {
	p, ok := ClassifyPlatform(url)
	if !ok {
		return p, fmt.Errorf("%w: %q", models.ErrUnrecognizedPlatform, url)
	}
	return p, nil
}

// PlatformHome is the canonical site URL stored alongside a platform row.
func PlatformHome(p models.PlatformName) string {
	switch p {
	case models.PlatformBeatport:
		return "https://www.beatport.com"
	case models.PlatformTraxsource:
		return "https://www.traxsource.com"
	case models.PlatformSoundcloud:
		return "https://soundcloud.com"
	case models.PlatformBandcamp:
		return "https://bandcamp.com"
	}
	return ""
}
