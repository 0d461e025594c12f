package models

import (
	"time"
)

// ListType identifies which RAPIDS list a record came from
type ListType string

const (
	ListTypeRogue   ListType = "rogue"
	ListTypeSuspect ListType = "suspect"
)

// RogueRecord is one access point reported by Central RAPIDS
type RogueRecord struct {
	BSSID          string    `json:"bssid"`
	SSID           string    `json:"ssid"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	APDetecting    string    `json:"ap_detecting"`
	Classification string    `json:"classification"`

	// Supplemental RAPIDS attributes, display only
	Name       string   `json:"name,omitempty"`
	MACVendor  string   `json:"mac_vendor,omitempty"`
	Signal     int      `json:"signal,omitempty"`
	Encryption string   `json:"encryption,omitempty"`
	GroupName  string   `json:"group_name,omitempty"`
	ListType   ListType `json:"list_type,omitempty"`
}

// Report is the filtered result of one run
type Report struct {
	RunID       string
	Title       string
	GeneratedAt time.Time
	Inspected   int // Records fetched before filtering
	Records     []RogueRecord
	All         []RogueRecord // Every fetched record; nil omits the section
}

// Count returns the number of reported records
func (r Report) Count() int {
	return len(r.Records)
}
