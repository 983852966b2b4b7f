package scraper

import (
	"context"
	"fmt"

	"golang.org/x/net/html"
)

const TraxsourceBase = "https://www.traxsource.com"

type Traxsource struct {
	Fetcher *Fetcher
	Base    string
}

func NewTraxsource(f *Fetcher) *Traxsource {
	return &Traxsource{Fetcher: f, Base: TraxsourceBase}
}

func (t *Traxsource) Scrape(ctx context.Context, url string) (map[string]any, error) {
	doc, err := t.Fetcher.Page(ctx, url)
	if err != nil {
		return nil, err
	}
	data, err := ParseTraxsource(doc, t.Base)
	if err != nil {
		return nil, fmt.Errorf("traxsource %s: %w", url, err)
	}
	return data, nil
}

// ParseTraxsource reads a Traxsource track page. The detail table's first row
// names the columns of the rows after it; every cell becomes a field keyed by
// its column name.
func ParseTraxsource(doc *html.Node, base string) (map[string]any, error) {
	data := map[string]any{}

	heads := findAll(doc, "div", "page-head")
	if len(heads) != 1 {
		return nil, fmt.Errorf("expected one page head, found %d", len(heads))
	}
	head := heads[0]

	titles := findAll(head, "h1", "title")
	if len(titles) > 1 {
		return nil, fmt.Errorf("expected one title, found %d", len(titles))
	}
	if len(titles) == 1 {
		data["title"] = textOf(titles[0])
	}

	versions := findAll(head, "h1", "version")
	if len(versions) > 1 {
		return nil, fmt.Errorf("expected one mix version, found %d", len(versions))
	}
	if len(versions) == 1 {
		data["mixData"] = textOf(versions[0])
	}

	if anchors := findAll(head, "a", "com-artists"); len(anchors) > 0 {
		data["artist"] = artistLinks(base, anchors)
	}

	tables := findAll(doc, "table", "tr-det-tbl", "horiz")
	if len(tables) != 1 {
		return nil, fmt.Errorf("expected one detail table, found %d", len(tables))
	}

	var columns []string
	for i, row := range findAll(tables[0], "tr") {
		cells := findAll(row, "td")
		if i == 0 {
			for _, c := range cells {
				columns = append(columns, textOf(c))
			}
			continue
		}
		if len(cells) > len(columns) {
			return nil, fmt.Errorf("detail row %d has %d cells for %d columns", i, len(cells), len(columns))
		}
		for j, c := range cells {
			data[columns[j]] = textOf(c)
		}
	}

	return data, nil
}
