package scraper

import (
	"context"

	"golang.org/x/net/html"
)

const BeatportBase = "https://www.beatport.com"

var beatportDetails = []string{"length", "released", "bpm", "key", "genre", "labels"}

type Beatport struct {
	Fetcher *Fetcher
	Base    string
}

func NewBeatport(f *Fetcher) *Beatport {
	return &Beatport{Fetcher: f, Base: BeatportBase}
}

func (b *Beatport) Scrape(ctx context.Context, url string) (map[string]any, error) {
	doc, err := b.Fetcher.Page(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParseBeatport(doc, b.Base), nil
}

// ParseBeatport reads a Beatport track page. The title and mix name come back
// nested under "title", the shape extract.Normalize flattens.
func ParseBeatport(doc *html.Node, base string) map[string]any {
	data := map[string]any{}

	for _, list := range findAll(doc, "ul", "interior-track-content-list") {
		for _, suffix := range beatportDetails {
			item := find(list, "li", "interior-track-content-item", "interior-track-"+suffix)
			if item == nil {
				continue
			}
			if v := find(item, "span", "value"); v != nil {
				data[suffix] = textOf(v)
			}
		}
	}

	title := map[string]any{}
	for _, div := range findAll(doc, "div", "interior-title") {
		if h1 := find(div, "h1"); h1 != nil {
			title["title"] = textOf(h1)
		}
		if mix := find(div, "h1", "remixed"); mix != nil {
			title["mixData"] = textOf(mix)
		}
	}
	if len(title) > 0 {
		data["title"] = title
	}

	for _, content := range findAll(doc, "div", "interior-track-content") {
		box := find(content, "div", "interior-track-artists")
		if box == nil {
			continue
		}
		value := find(box, "span", "value")
		if value == nil {
			continue
		}
		if anchors := findAll(value, "a"); len(anchors) > 0 {
			data["artist"] = artistLinks(base, anchors)
		} else {
			data["artist"] = []string{textOf(value)}
		}
	}

	return data
}
