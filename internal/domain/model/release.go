// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// ReleasePackage is one page of the procurement API response.
// Releases is a pointer so a missing array can be told apart from an empty one.
type ReleasePackage struct {
	Releases *[]Release `json:"releases"`
	Links    Links      `json:"links"`
}

// Links carries pagination links. Next may be a full URL or a bare cursor.
type Links struct {
	Next string `json:"next,omitempty"`
}

// Release is a single OCDS release as received from the API.
type Release struct {
	ID      string        `json:"id"`
	OCID    string        `json:"ocid"`
	Date    string        `json:"date"`
	Tag     []string      `json:"tag,omitempty"`
	Buyer   *Organization `json:"buyer,omitempty"`
	Parties []Party       `json:"parties,omitempty"`
	Tender  *TenderInfo   `json:"tender,omitempty"`
}

// Organization references a party by id and name.
type Organization struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Party is an organization involved in the release.
type Party struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name"`
	Roles   []string `json:"roles,omitempty"`
	Address *Address `json:"address,omitempty"`
}

// Address is an OCDS postal address.
type Address struct {
	StreetAddress string `json:"streetAddress,omitempty"`
	Locality      string `json:"locality,omitempty"`
	Region        string `json:"region,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	CountryName   string `json:"countryName,omitempty"`
}

// TenderInfo is the tender sub-object of a release.
type TenderInfo struct {
	ID           string  `json:"id,omitempty"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Status       string  `json:"status,omitempty"`
	Value        *Amount `json:"value,omitempty"`
	TenderPeriod *Period `json:"tenderPeriod,omitempty"`
}

// Amount is a monetary value with its currency code.
type Amount struct {
	Amount   *float64 `json:"amount,omitempty"`
	Currency string   `json:"currency,omitempty"`
}

// Period is an OCDS date range.
type Period struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// timeLayouts are tried in order when parsing API timestamps.
var timeLayouts = []string{ //nolint:gochecknoglobals // read-only
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses an OCDS timestamp. ok is false for empty or malformed input.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// BuyerName returns buyer.name, falling back to the first party with the buyer role.
func (r Release) BuyerName() string {
	if r.Buyer != nil && strings.TrimSpace(r.Buyer.Name) != "" {
		return r.Buyer.Name
	}
	for _, p := range r.Parties {
		for _, role := range p.Roles {
			if strings.EqualFold(role, "buyer") {
				return p.Name
			}
		}
	}
	return ""
}

// ToTender converts the release into a Tender. ok is false when the release
// has no tender sub-object.
func (r Release) ToTender() (Tender, bool) {
	if r.Tender == nil {
		return Tender{}, false
	}
	t := Tender{
		ID:          r.ID,
		OCID:        r.OCID,
		Title:       r.Tender.Title,
		Description: r.Tender.Description,
		BuyerName:   r.BuyerName(),
		Status:      r.Tender.Status,
	}
	if published, ok := ParseTime(r.Date); ok {
		t.PublishedAt = published
	}
	if r.Tender.TenderPeriod != nil {
		if end, ok := ParseTime(r.Tender.TenderPeriod.EndDate); ok {
			t.Deadline = &end
		}
	}
	if v := r.Tender.Value; v != nil && v.Amount != nil {
		currency := v.Currency
		if currency == "" {
			currency = DefaultCurrency
		}
		t.Value = &Value{Amount: *v.Amount, Currency: currency}
	}
	if len(r.Parties) > 0 {
		t.Parties = make([]PartyInfo, 0, len(r.Parties))
		for _, p := range r.Parties {
			pi := PartyInfo{Name: p.Name}
			if a := p.Address; a != nil {
				pi.StreetAddress = a.StreetAddress
				pi.Locality = a.Locality
				pi.Region = a.Region
				pi.PostalCode = a.PostalCode
				pi.CountryName = a.CountryName
			}
			t.Parties = append(t.Parties, pi)
		}
	}
	return t, true
}
