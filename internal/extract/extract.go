package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/k3a/html2text"
	"golang.org/x/text/cases"

	"djutils-srv/internal/models"
)

type alias struct {
	key, field string
}

// fieldAliases maps scraped keys onto TrackRecord fields. When a record
// carries several keys for one field, the earliest entry wins, so every
// field lists its canonical key first.
var fieldAliases = []alias{
	{"title", "title"},
	{"track", "title"},
	{"name", "title"},
	{"track_title", "title"},

	{"version", "version"},
	{"mix", "version"},
	{"mixdata", "version"},
	{"mix_data", "version"},
	{"mixmetadata", "version"},
	{"mixmatadata", "version"},

	{"artists", "artists"},
	{"artist", "artists"},

	{"bpm", "bpm"},

	{"key", "key"},

	{"genre", "genre"},

	{"label", "label"},
	{"labels", "label"},

	{"length", "length"},
	{"duration", "length"},

	{"released", "released"},
	{"release date", "released"},
	{"release_date", "released"},

	{"url", "url"},
	{"link", "url"},

	{"comments", "comments"},
	{"comment", "comments"},

	{"tags", "tags"},
	{"keywords", "tags"},
}

// fieldOrder is the order fields are decoded in, which fixes which error is
// reported when several fields are malformed.
var fieldOrder = []string{
	"title", "version", "artists", "bpm", "key", "genre",
	"label", "length", "released", "url", "comments", "tags",
}

// resolveFields picks one value per field from raw. Among keys that
// normalize to the same alias, an exact match wins over case or spacing
// variants, then the lexically smallest key. Nil values are ignored.
func resolveFields(raw map[string]any) map[string]any {
	byAlias := make(map[string][]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		nk := normalizeKey(k)
		byAlias[nk] = append(byAlias[nk], k)
	}
	for nk, keys := range byAlias {
		sort.Slice(keys, func(i, j int) bool {
			if exactI, exactJ := keys[i] == nk, keys[j] == nk; exactI != exactJ {
				return exactI
			}
			return keys[i] < keys[j]
		})
	}

	fields := make(map[string]any, len(fieldOrder))
	for _, a := range fieldAliases {
		if _, done := fields[a.field]; done {
			continue
		}
		if keys := byAlias[a.key]; len(keys) > 0 {
			fields[a.field] = raw[keys[0]]
		}
	}
	return fields
}

func normalizeKey(s string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ":")
}

// Fold trims s and applies Unicode case folding, so "Straße" and "STRASSE"
// fold to the same string. Stored titles are searched in this form.
func Fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// clean trims the value and collapses inner whitespace runs left by HTML text.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Normalize maps a raw scraped field set onto a TrackRecord. Keys not in the
// alias table are dropped. A top-level version overrides one nested under
// title.
func Normalize(raw map[string]any) (models.TrackRecord, error) {
	t := models.TrackRecord{Artists: []models.ArtistRef{}}
	fields := resolveFields(raw)

	for _, field := range fieldOrder {
		v, ok := fields[field]
		if !ok {
			continue
		}

		switch field {
		case "title":
			// Beatport scraper nests {"title": ..., "mixData": ...}
			if nested, ok := v.(map[string]any); ok {
				inner := resolveFields(nested)
				t.Title = stringValue(inner["title"])
				if version, ok := inner["version"]; ok {
					t.Version = stringValue(version)
				}
				continue
			}
			t.Title = stringValue(v)
		case "version":
			t.Version = stringValue(v)
		case "artists":
			artists, err := ParseArtists(v)
			if err != nil {
				return models.TrackRecord{}, err
			}
			t.Artists = artists
		case "bpm":
			bpm, err := ParseBPM(v)
			if err != nil {
				return models.TrackRecord{}, err
			}
			t.BPM = bpm
		case "key":
			t.Key = stringValue(v)
		case "genre":
			t.Genre = stringValue(v)
		case "label":
			t.Label = stringValue(v)
		case "length":
			t.Length = stringValue(v)
		case "released":
			t.Released = stringValue(v)
		case "url":
			t.URL = stringValue(v)
		case "comments":
			t.Comments = Comments(stringValue(v))
		case "tags":
			t.Tags = parseTags(v)
		}
	}

	return t, nil
}

// Comments reduces a free-text note, which browser clients may send as an
// HTML fragment, to plain text.
func Comments(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	return clean(html2text.HTML2Text(s))
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return clean(s)
	case fmt.Stringer:
		return clean(s.String())
	case nil:
		return ""
	default:
		return clean(fmt.Sprint(s))
	}
}

// ParseBPM accepts numbers or numeric strings. Blank input means no BPM.
func ParseBPM(v any) (*float64, error) {
	var f float64
	switch n := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil, models.InvalidField("bpm", v, err)
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, models.InvalidField("bpm", v, err)
		}
		f = parsed
	default:
		return nil, models.InvalidField("bpm", v, fmt.Errorf("unsupported type %T", v))
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil, models.InvalidField("bpm", v, nil)
	}
	return &f, nil
}

// ParseArtists accepts a list of names, a list of {name, url} objects or a
// single name. The result is never nil.
func ParseArtists(v any) ([]models.ArtistRef, error) {
	artists := []models.ArtistRef{}

	switch list := v.(type) {
	case nil:
		return artists, nil
	case string:
		if name := clean(list); name != "" {
			artists = append(artists, models.ArtistRef{Name: name})
		}
		return artists, nil
	case []string:
		for _, name := range list {
			if name = clean(name); name != "" {
				artists = append(artists, models.ArtistRef{Name: name})
			}
		}
		return artists, nil
	case []models.ArtistRef:
		for _, a := range list {
			a.Name, a.URL = clean(a.Name), strings.TrimSpace(a.URL)
			artists = append(artists, a)
		}
		return artists, nil
	case []map[string]string:
		for _, m := range list {
			if ref, ok := refFromMap(m["name"], m["url"]); ok {
				artists = append(artists, ref)
			}
		}
		return artists, nil
	case []map[string]any:
		for _, m := range list {
			if ref, ok := refFromMap(stringValue(m["name"]), stringValue(m["url"])); ok {
				artists = append(artists, ref)
			}
		}
		return artists, nil
	case []any:
		for _, item := range list {
			switch a := item.(type) {
			case string:
				if name := clean(a); name != "" {
					artists = append(artists, models.ArtistRef{Name: name})
				}
			case map[string]any:
				if id, ok := a["id"]; ok && id != nil {
					ref, err := refFromID(id)
					if err != nil {
						return nil, err
					}
					ref.Name, ref.URL = stringValue(a["name"]), strings.TrimSpace(stringValue(a["url"]))
					artists = append(artists, ref)
					continue
				}
				if ref, ok := refFromMap(stringValue(a["name"]), stringValue(a["url"])); ok {
					artists = append(artists, ref)
				}
			case json.Number, float64, int, int64:
				ref, err := refFromID(a)
				if err != nil {
					return nil, err
				}
				artists = append(artists, ref)
			case map[string]string:
				if ref, ok := refFromMap(a["name"], a["url"]); ok {
					artists = append(artists, ref)
				}
			default:
				return nil, models.InvalidField("artists", item, fmt.Errorf("unsupported artist entry %T", item))
			}
		}
		return artists, nil
	default:
		return nil, models.InvalidField("artists", v, fmt.Errorf("unsupported type %T", v))
	}
}

// refFromID reads a stored artist id, as sent by clients that already know it.
func refFromID(v any) (models.ArtistRef, error) {
	var id int64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return models.ArtistRef{}, models.InvalidField("artists", v, err)
		}
		id = parsed
	case float64:
		if n != math.Trunc(n) {
			return models.ArtistRef{}, models.InvalidField("artists", v, fmt.Errorf("artist id is not an integer"))
		}
		id = int64(n)
	case int:
		id = int64(n)
	case int64:
		id = n
	default:
		return models.ArtistRef{}, models.InvalidField("artists", v, fmt.Errorf("unsupported artist id %T", v))
	}
	if id <= 0 {
		return models.ArtistRef{}, models.InvalidField("artists", v, fmt.Errorf("artist id must be positive"))
	}
	return models.ArtistRef{ID: id}, nil
}

func refFromMap(name, url string) (models.ArtistRef, bool) {
	name = clean(name)
	if name == "" {
		return models.ArtistRef{}, false
	}
	return models.ArtistRef{Name: name, URL: strings.TrimSpace(url)}, true
}

func parseTags(v any) []string {
	var tags []string
	switch list := v.(type) {
	case string:
		for _, t := range strings.Split(list, ",") {
			if t = clean(t); t != "" {
				tags = append(tags, t)
			}
		}
	case []string:
		for _, t := range list {
			if t = clean(t); t != "" {
				tags = append(tags, t)
			}
		}
	case []any:
		for _, item := range list {
			if t := stringValue(item); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// ArtistNames returns the names of the given references in order.
func ArtistNames(refs []models.ArtistRef) []string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		if r.Name != "" {
			names = append(names, r.Name)
		}
	}
	return names
}
