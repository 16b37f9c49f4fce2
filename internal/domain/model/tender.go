package model

import (
	"strings"
	"time"
)

// Display defaults.
const (
	DefaultCurrency  = "GBP"
	UntitledTender   = "Untitled Tender"
	NoticeURLPrefix  = "https://www.find-tender.service.gov.uk/Notice/"
	maxDisplayedOrgs = 3
)

// Tender is one procurement notice after conversion from a Release.
type Tender struct {
	ID          string      `json:"id"`
	OCID        string      `json:"ocid,omitempty"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	BuyerName   string      `json:"buyer"`
	PublishedAt time.Time   `json:"published_at"`
	Deadline    *time.Time  `json:"deadline,omitempty"`
	Value       *Value      `json:"value,omitempty"`
	Status      string      `json:"status,omitempty"`
	Parties     []PartyInfo `json:"parties,omitempty"`
}

// Value is an estimated contract value.
type Value struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// PartyInfo is a party name with its address fields flattened.
type PartyInfo struct {
	Name          string `json:"name"`
	StreetAddress string `json:"street_address,omitempty"`
	Locality      string `json:"locality,omitempty"`
	Region        string `json:"region,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	CountryName   string `json:"country_name,omitempty"`
}

// DisplayTitle returns the title or the placeholder when it is blank.
func (t Tender) DisplayTitle() string {
	if strings.TrimSpace(t.Title) == "" {
		return UntitledTender
	}
	return t.Title
}

// Link returns the public notice page for the tender.
func (t Tender) Link() string {
	return NoticeURLPrefix + t.ID
}

// ValueAmount returns the amount and whether a value is present.
func (t Tender) ValueAmount() (float64, bool) {
	if t.Value == nil {
		return 0, false
	}
	return t.Value.Amount, true
}

// TopParties returns at most the first three party names.
func (t Tender) TopParties() []string {
	n := len(t.Parties)
	if n > maxDisplayedOrgs {
		n = maxDisplayedOrgs
	}
	out := make([]string, 0, n)
	for _, p := range t.Parties[:n] {
		out = append(out, p.Name)
	}
	return out
}

// SearchFields returns the text fields keyword matching runs over, in order:
// title, description, buyer, every party name, then every non-empty address field.
func (t Tender) SearchFields() []string {
	fields := make([]string, 0, 3+len(t.Parties)*6)
	fields = append(fields, t.Title, t.Description, t.BuyerName)
	for _, p := range t.Parties {
		fields = append(fields, p.Name)
	}
	for _, p := range t.Parties {
		for _, f := range []string{p.StreetAddress, p.Locality, p.Region, p.PostalCode, p.CountryName} {
			if f != "" {
				fields = append(fields, f)
			}
		}
	}
	return fields
}
