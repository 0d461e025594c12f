package central

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/central-rogues/internal/models"
)

const (
	// RoguesPath lists access points classified as rogue.
	RoguesPath = "/rapids/v1/rogue_aps"
	// SuspectsPath lists access points classified as suspected rogue.
	SuspectsPath = "/rapids/v1/suspect_aps"
)

// pageMeta holds the pagination fields common to every RAPIDS listing
type pageMeta struct {
	Count  int `json:"count"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// FetchRogues returns every rogue AP known to Central, in server order.
func (c *Client) FetchRogues(ctx context.Context, accessToken, customerID string) ([]models.RogueRecord, error) {
	return c.fetchList(ctx, accessToken, customerID, RoguesPath, "rogue_aps", models.ListTypeRogue)
}

// FetchSuspects returns every suspected rogue AP known to Central, in server order.
func (c *Client) FetchSuspects(ctx context.Context, accessToken, customerID string) ([]models.RogueRecord, error) {
	return c.fetchList(ctx, accessToken, customerID, SuspectsPath, "suspect_aps", models.ListTypeSuspect)
}

// fetchList follows offset pagination until total is reached or a page comes back empty.
func (c *Client) fetchList(ctx context.Context, accessToken, customerID, path, listKey string, listType models.ListType) ([]models.RogueRecord, error) {
	records := []models.RogueRecord{}
	offset := 0
	skipped := 0
	pages := 0

	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(c.pageLimit))
		params.Set("offset", strconv.Itoa(offset))
		if customerID != "" {
			params.Set("cust_id", customerID)
		}

		body, err := c.get(ctx, accessToken, path, params)
		if err != nil {
			return nil, err
		}
		pages++

		meta, items, err := decodePage(body, listKey)
		if err != nil {
			return nil, &APIError{StatusCode: 200, Body: err.Error(), Endpoint: path}
		}

		for _, raw := range items {
			record, ok := parseRecord(raw, listType)
			if !ok {
				skipped++
				continue
			}
			records = append(records, record)
		}

		if len(items) == 0 {
			break
		}
		offset += len(items)

		if meta.Total > 0 {
			if offset >= meta.Total {
				break
			}
		} else if len(items) < c.pageLimit {
			// No total reported: a short page is the last one
			break
		}
	}

	c.logger.Debug().
		Str("endpoint", path).
		Int("pages", pages).
		Int("records", len(records)).
		Int("skipped", skipped).
		Msg("Fetched RAPIDS listing")

	return records, nil
}

// decodePage splits a RAPIDS page into metadata and undecoded items so one bad
// record cannot fail the whole page.
func decodePage(body []byte, listKey string) (pageMeta, []json.RawMessage, error) {
	var meta pageMeta
	if err := json.Unmarshal(body, &meta); err != nil {
		return meta, nil, fmt.Errorf("failed to decode page: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return meta, nil, fmt.Errorf("failed to decode page: %w", err)
	}

	rawList, ok := fields[listKey]
	if !ok || string(rawList) == "null" {
		return meta, nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(rawList, &items); err != nil {
		return meta, nil, fmt.Errorf("field %q is not a list: %w", listKey, err)
	}
	return meta, items, nil
}

// parseRecord converts one wire record. The BSSID (id) must be a non-empty
// string and ssid must be present as a string; an empty ssid is a hidden network
// and is kept. Every other attribute is display only and decoded leniently: a value
// of the wrong type leaves the field empty rather than dropping the record.
func parseRecord(raw json.RawMessage, listType models.ListType) (models.RogueRecord, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.RogueRecord{}, false
	}

	id, ok := strictString(fields, "id")
	if !ok || id == "" {
		return models.RogueRecord{}, false
	}
	ssid, ok := strictString(fields, "ssid")
	if !ok {
		return models.RogueRecord{}, false
	}

	detecting := looseString(fields, "last_det_device_name")
	if detecting == "" {
		detecting = looseString(fields, "last_det_device")
	}

	return models.RogueRecord{
		BSSID:          id,
		SSID:           ssid,
		FirstSeen:      parseTimestamp(looseString(fields, "first_seen")),
		LastSeen:       parseTimestamp(looseString(fields, "last_seen")),
		APDetecting:    detecting,
		Classification: looseString(fields, "classification"),
		Name:           looseString(fields, "name"),
		MACVendor:      looseString(fields, "mac_vendor"),
		Signal:         looseInt(fields, "signal"),
		Encryption:     looseString(fields, "encryption"),
		GroupName:      looseString(fields, "group_name"),
		ListType:       listType,
	}, true
}

// strictString reports false when key is absent, null or not a JSON string
func strictString(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var value *string
	if err := json.Unmarshal(raw, &value); err != nil || value == nil {
		return "", false
	}
	return *value, true
}

// looseString accepts a JSON string or number; anything else is empty
func looseString(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err == nil {
		return value
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		return number.String()
	}
	return ""
}

// looseInt accepts a JSON number or numeric string, rounding fractions; anything else is 0
func looseInt(fields map[string]json.RawMessage, key string) int {
	text := strings.TrimSpace(looseString(fields, key))
	if text == "" {
		return 0
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return int(math.Round(value))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02 15:04:05",
}

// parseTimestamp returns the zero time for empty or unrecognised values
func parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	if epoch, err := strconv.ParseInt(value, 10, 64); err == nil {
		if epoch > 1e12 {
			return time.UnixMilli(epoch).UTC()
		}
		return time.Unix(epoch, 0).UTC()
	}
	return time.Time{}
}
