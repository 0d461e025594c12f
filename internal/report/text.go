package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"

	"github.com/ternarybob/central-rogues/internal/models"
)

// RenderText produces an aligned plain-text table, used by the show command.
func RenderText(title string, records []models.RogueRecord) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %s\n\n", len(records), title)

	if len(records) == 0 {
		buf.WriteString(NoRoguesMarker)
		buf.WriteString("\n")
		return buf.String()
	}

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tSSID\tBSSID\tVENDOR\tSIGNAL\tLAST SEEN\tSEEN BY")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			orDash(rec.Classification),
			orDash(rec.SSID),
			rec.BSSID,
			orDash(vendor(rec)),
			signal(rec.Signal),
			FormatTime(rec.LastSeen),
			orDash(rec.APDetecting),
		)
	}
	w.Flush()

	return buf.String()
}

// RenderMarkdown converts the HTML report into markdown for the plain-text email part
func RenderMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.Remove("style", "title")

	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert report to markdown: %w", err)
	}
	return strings.TrimSpace(markdown) + "\n", nil
}

func vendor(rec models.RogueRecord) string {
	if rec.Name != "" {
		return rec.Name
	}
	return rec.MACVendor
}

func signal(v int) string {
	if v == 0 {
		return "-"
	}
	return strconv.Itoa(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
