package domain

import (
	"encoding/json"
	"fmt"
)

// PageContext holds the page fields a tracker attaches to an event.
// Decoded from the nested properties payload; every field is optional.
type PageContext struct {
	URL                    string `json:"url"`
	Path                   string `json:"path"`
	Title                  string `json:"title"`
	Search                 string `json:"search"`
	Referrer               string `json:"referrer"`
	ReferringDomain        string `json:"referring_domain"`
	InitialReferrer        string `json:"initial_referrer"`
	InitialReferringDomain string `json:"initial_referring_domain"`
}

// CampaignContext mirrors the campaign object trackers send alongside UTM
// query parameters. Used as a fallback when the query string carries no UTMs.
type CampaignContext struct {
	Source         string `json:"source"`
	Medium         string `json:"medium"`
	Name           string `json:"name"`
	Term           string `json:"term"`
	Content        string `json:"content"`
	ID             string `json:"id"`
	SourcePlatform string `json:"source_platform"`
	ContentType    string `json:"content_type"`
}

// EventContext is the classifier input decoded from a raw event's properties.
// Extras carries the remaining flat string properties so click ids passed as
// context fields (rather than query parameters) are still visible.
type EventContext struct {
	Page     PageContext       `json:"page"`
	Campaign CampaignContext   `json:"campaign"`
	Extras   map[string]string `json:"-"`

	Revenue  float64 `json:"revenue"`
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
	OrderID  string  `json:"order_id"`
}

// ParseEventContext decodes a raw properties JSON blob into an EventContext.
// Unknown keys with scalar string values land in Extras.
func ParseEventContext(properties string) (EventContext, error) {
	var ec EventContext
	if properties == "" {
		return ec, nil
	}

	if err := json.Unmarshal([]byte(properties), &ec); err != nil {
		return ec, fmt.Errorf("failed to decode event properties: %w", err)
	}

	var flat map[string]interface{}
	if err := json.Unmarshal([]byte(properties), &flat); err != nil {
		return ec, fmt.Errorf("failed to decode event properties: %w", err)
	}

	for k, v := range flat {
		if k == "page" || k == "campaign" {
			continue
		}
		if s, ok := v.(string); ok {
			if ec.Extras == nil {
				ec.Extras = make(map[string]string)
			}
			ec.Extras[k] = s
		}
	}

	return ec, nil
}
