// Package rogues decides which fetched access points belong in the report.
package rogues

import (
	"github.com/ternarybob/central-rogues/internal/models"
)

// AllowList is the set of SSIDs considered legitimate
type AllowList map[string]struct{}

// NewAllowList builds an allow-list from configured SSIDs. Values are kept verbatim.
func NewAllowList(ssids []string) AllowList {
	allow := make(AllowList, len(ssids))
	for _, ssid := range ssids {
		allow[ssid] = struct{}{}
	}
	return allow
}

// Contains reports an exact, case-sensitive match
func (a AllowList) Contains(ssid string) bool {
	_, ok := a[ssid]
	return ok
}

// Filter returns, in input order, every record whose SSID is not on the allow-list.
// An empty allow-list reports everything.
func Filter(records []models.RogueRecord, allow AllowList) []models.RogueRecord {
	result := make([]models.RogueRecord, 0, len(records))
	for _, record := range records {
		if allow.Contains(record.SSID) {
			continue
		}
		result = append(result, record)
	}
	return result
}
