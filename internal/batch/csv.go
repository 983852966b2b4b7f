package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"djutils-srv/internal/extract"
	"djutils-srv/internal/models"
)

// canonical header mapping for the input sheet
var headerAliases = map[string]string{
	"link":  "link",
	"url":   "link",
	"track": "link",

	"category": "category",

	"downloadpreference":  "downloadPreference",
	"download_preference": "downloadPreference",

	"personallikenessfactor":   "personalLikenessFactor",
	"personal_likeness_factor": "personalLikenessFactor",

	"vocalspresent":  "vocalsPresent",
	"vocals_present": "vocalsPresent",

	"notes": "notes",

	"keywords": "keywords",
}

// OutputHeader is the column order of the enriched sheet.
var OutputHeader = []string{
	"url",
	"title",
	"mixMetadata",
	"artists",
	"bpm",
	"genre",
	"key",
	"category",
	"downloadPreference",
	"personalLikenessFactor",
	"vocalsPresent",
	"notes",
	"keywords",
	"downloadStatus",
	"soulseekUser",
	"soulseekFolder",
	"fileType",
}

// Row is one input line: the link to scrape and the columns copied through.
type Row struct {
	Line                   int
	Link                   string
	Category               string
	DownloadPreference     string
	PersonalLikenessFactor string
	VocalsPresent          string
	Notes                  string
	Keywords               string
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
}

// ReadRows parses the input sheet. The Link column is required; rows with a
// blank link are skipped.
func ReadRows(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rawHeaders, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columnMap := make(map[int]string)
	hasLink := false
	for i, h := range rawHeaders {
		if canonical, ok := headerAliases[normalize(h)]; ok {
			columnMap[i] = canonical
			hasLink = hasLink || canonical == "link"
		}
	}
	if !hasLink {
		return nil, errors.New("CSV has no Link column")
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		row := Row{Line: line}
		for i, v := range record {
			field, ok := columnMap[i]
			if !ok {
				continue
			}
			val := strings.TrimSpace(v)
			switch field {
			case "link":
				row.Link = val
			case "category":
				row.Category = val
			case "downloadPreference":
				row.DownloadPreference = val
			case "personalLikenessFactor":
				row.PersonalLikenessFactor = val
			case "vocalsPresent":
				row.VocalsPresent = val
			case "notes":
				row.Notes = val
			case "keywords":
				row.Keywords = val
			}
		}

		if row.Link == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Record renders the enriched output line for a row and its scraped track.
// The download bookkeeping columns start empty.
func Record(row Row, t models.TrackRecord) []string {
	bpm := ""
	if t.BPM != nil {
		bpm = strconv.FormatFloat(*t.BPM, 'f', -1, 64)
	}
	return []string{
		row.Link,
		t.Title,
		t.Version,
		strings.Join(extract.ArtistNames(t.Artists), ", "),
		bpm,
		t.Genre,
		t.Key,
		row.Category,
		row.DownloadPreference,
		row.PersonalLikenessFactor,
		row.VocalsPresent,
		row.Notes,
		row.Keywords,
		"", "", "", "",
	}
}
