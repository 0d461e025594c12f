// Package report renders a filtered rogue report as HTML, plain text and markdown.
// Rendering never reads the clock: every timestamp comes from the Report value.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/ternarybob/central-rogues/internal/models"
)

//go:embed templates/*.tmpl
var fs embed.FS

// NoRoguesMarker is the text shown when a report has no records
const NoRoguesMarker = "No rogues found"

const displayTimeLayout = "Mon, 02 Jan 2006 15:04:05 MST"

var htmlTemplate = template.Must(template.ParseFS(fs, "templates/report.html.tmpl"))

type htmlRow struct {
	BSSID          string
	SSID           string
	APDetecting    string
	FirstSeen      string
	LastSeen       string
	Classification string
}

type htmlAllRow struct {
	htmlRow
	ListType  string
	MACVendor string
	Signal    string
}

type htmlView struct {
	Title       string
	RunID       string
	GeneratedAt string
	Count       int
	Inspected   int
	Rows        []htmlRow
	IncludeAll  bool
	AllRows     []htmlAllRow
}

// HiddenSSID is shown in place of an empty SSID
const HiddenSSID = "(hidden)"

// Render produces a self-contained HTML document for the report
func Render(r models.Report) (string, error) {
	view := htmlView{
		Title:       r.Title,
		RunID:       r.RunID,
		GeneratedAt: FormatTime(r.GeneratedAt),
		Count:       r.Count(),
		Inspected:   r.Inspected,
		Rows:        make([]htmlRow, 0, len(r.Records)),
		IncludeAll:  r.All != nil,
	}
	if view.Title == "" {
		view.Title = "Wireless Rogue AP Report"
	}

	for _, rec := range r.Records {
		view.Rows = append(view.Rows, newHTMLRow(rec))
	}
	for _, rec := range r.All {
		row := htmlAllRow{
			htmlRow:   newHTMLRow(rec),
			ListType:  string(rec.ListType),
			MACVendor: rec.MACVendor,
		}
		if rec.Signal != 0 {
			row.Signal = strconv.Itoa(rec.Signal)
		}
		view.AllRows = append(view.AllRows, row)
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

func newHTMLRow(rec models.RogueRecord) htmlRow {
	ssid := rec.SSID
	if ssid == "" {
		ssid = HiddenSSID
	}
	return htmlRow{
		BSSID:          rec.BSSID,
		SSID:           ssid,
		APDetecting:    rec.APDetecting,
		FirstSeen:      FormatTime(rec.FirstSeen),
		LastSeen:       FormatTime(rec.LastSeen),
		Classification: rec.Classification,
	}
}

// FormatTime renders t in UTC, or "-" for the zero time
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(displayTimeLayout)
}
