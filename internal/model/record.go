// Package model defines the company directory record and the lenient JSON
// value types its fields are built from.
package model

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/rotisserie/eris"
)

// Record is a company document as stored in the directory. Keys without a
// typed field are carried in Extra and written back on marshal.
type Record struct {
	// Identity
	ID               Text `json:"id,omitempty"`
	NormalizedDomain Text `json:"normalized_domain,omitempty"`

	// Descriptive strings
	CompanyName        Text `json:"company_name,omitempty"`
	Name               Text `json:"name,omitempty"`
	URL                Text `json:"url,omitempty"`
	WebsiteURL         Text `json:"website_url,omitempty"`
	Tagline            Text `json:"tagline,omitempty"`
	ProductKeywords    Text `json:"product_keywords,omitempty"`
	AmazonURL          Text `json:"amazon_url,omitempty"`
	RedFlagReason      Text `json:"red_flag_reason,omitempty"`
	LocationConfidence Text `json:"location_confidence,omitempty"`
	RatingIconType     Text `json:"rating_icon_type,omitempty"`

	// Logo
	LogoURL            Text `json:"logo_url,omitempty"`
	LogoSourceURL      Text `json:"logo_source_url,omitempty"`
	LogoSourceLocation Text `json:"logo_source_location,omitempty"`
	LogoSourceDomain   Text `json:"logo_source_domain,omitempty"`
	LogoSourceType     Text `json:"logo_source_type,omitempty"`
	LogoStatus         Text `json:"logo_status,omitempty"`
	LogoImportStatus   Text `json:"logo_import_status,omitempty"`
	LogoError          Text `json:"logo_error,omitempty"`

	// Lists
	Industries            List `json:"industries,omitzero"`
	Keywords              List `json:"keywords,omitzero"`
	LocationSources       List `json:"location_sources,omitzero"`
	HeadquartersLocations List `json:"headquarters_locations,omitzero"`
	Headquarters          List `json:"headquarters,omitzero"`

	// Headquarters
	HeadquartersLocation Text   `json:"headquarters_location,omitempty"`
	HQUnknown            Flag   `json:"hq_unknown,omitzero"`
	HQUnknownReason      Text   `json:"hq_unknown_reason"`
	HQLat                Number `json:"hq_lat,omitzero"`
	HQLng                Number `json:"hq_lng,omitzero"`

	// Manufacturing
	ManufacturingLocations List `json:"manufacturing_locations,omitzero"`
	ManufacturingGeocodes  List `json:"manufacturing_geocodes,omitzero"`
	MfgUnknown             Flag `json:"mfg_unknown,omitzero"`
	MfgUnknownReason       Text `json:"mfg_unknown_reason"`

	// Reviews
	CuratedReviews       List       `json:"curated_reviews,omitzero"`
	// HasCuratedReviewsKey is set when a decoded document carried the
	// curated_reviews key, whatever its value.
	HasCuratedReviewsKey bool `json:"-"`
	ReviewCount          Number     `json:"review_count,omitzero"`
	ReviewsLastUpdatedAt Text       `json:"reviews_last_updated_at,omitempty"`
	ReviewCursor         Object     `json:"review_cursor,omitzero"`
	ReviewsStarSource    StarSource `json:"reviews_star_source"`
	ReviewsStarValue     Number     `json:"reviews_star_value"`

	// Legacy review counters
	Reviews              List   `json:"reviews,omitzero"`
	ReviewCountApproved  Number `json:"review_count_approved,omitzero"`
	EditorialReviewCount Number `json:"editorial_review_count,omitzero"`
	AmazonReviewCount    Number `json:"amazon_review_count,omitzero"`
	PublicReviewCount    Number `json:"public_review_count,omitzero"`
	PrivateReviewCount   Number `json:"private_review_count,omitzero"`

	// Rating is keyed star1..star5; each slot is an object with at least "value".
	Rating Object `json:"rating,omitzero"`

	// Admin star inputs
	StarOverrides    Object `json:"star_overrides,omitzero"`
	AdminManualExtra Number `json:"admin_manual_extra,omitzero"`
	StarNotes        List   `json:"star_notes,omitzero"`

	RedFlag                    Flag `json:"red_flag,omitzero"`
	ShowLocationSourcesToUsers Flag `json:"show_location_sources_to_users,omitzero"`

	CreatedAt Text `json:"created_at,omitempty"`
	UpdatedAt Text `json:"updated_at,omitempty"`

	Social                     Object `json:"social,omitzero"`
	ProfileCompleteness        Number `json:"profile_completeness,omitzero"`
	ProfileCompletenessVersion Number `json:"profile_completeness_version,omitzero"`
	ProfileCompletenessMeta    Object `json:"profile_completeness_meta,omitzero"`

	Extra map[string]json.RawMessage `json:"-"`
}

// recordFields has no methods, so encoding/json uses the struct tags directly.
type recordFields Record

// knownKeys is the set of JSON keys that map onto typed Record fields.
var knownKeys = func() map[string]struct{} {
	t := reflect.TypeOf(Record{})
	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[name] = struct{}{}
		}
	}
	return keys
}()

// IsKnownKey reports whether key maps onto a typed Record field.
func IsKnownKey(key string) bool {
	_, ok := knownKeys[key]
	return ok
}

// UnmarshalJSON decodes typed fields and stashes the rest in Extra.
func (r *Record) UnmarshalJSON(b []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return eris.Wrap(err, "model: decode record")
	}
	var f recordFields
	if err := json.Unmarshal(b, &f); err != nil {
		return eris.Wrap(err, "model: decode record fields")
	}
	*r = Record(f)
	_, r.HasCuratedReviewsKey = all["curated_reviews"]
	r.Extra = nil
	for k, v := range all {
		if IsKnownKey(k) {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]json.RawMessage)
		}
		r.Extra[k] = v
	}
	return nil
}

// MarshalJSON encodes typed fields plus Extra. Typed fields win on key clashes.
func (r Record) MarshalJSON() ([]byte, error) {
	typed, err := json.Marshal(recordFields(r))
	if err != nil {
		return nil, eris.Wrap(err, "model: encode record")
	}
	keepNullReviews := r.HasCuratedReviewsKey && r.CuratedReviews == nil
	if len(r.Extra) == 0 && !keepNullReviews {
		return typed, nil
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(typed, &out); err != nil {
		return nil, eris.Wrap(err, "model: re-decode record")
	}
	if keepNullReviews {
		out["curated_reviews"] = json.RawMessage("null")
	}
	for k, v := range r.Extra {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	b, err := json.Marshal(out)
	return b, eris.Wrap(err, "model: encode record extra")
}

// Clone returns a deep copy of the record's containers.
func (r *Record) Clone() *Record {
	if r == nil {
		return &Record{}
	}
	c := *r
	c.Industries = r.Industries.Clone()
	c.Keywords = r.Keywords.Clone()
	c.LocationSources = r.LocationSources.Clone()
	c.HeadquartersLocations = r.HeadquartersLocations.Clone()
	c.Headquarters = r.Headquarters.Clone()
	c.ManufacturingLocations = r.ManufacturingLocations.Clone()
	c.ManufacturingGeocodes = r.ManufacturingGeocodes.Clone()
	c.CuratedReviews = r.CuratedReviews.Clone()
	c.ReviewCursor = r.ReviewCursor.Clone()
	c.Reviews = r.Reviews.Clone()
	c.Rating = r.Rating.Clone()
	c.StarOverrides = r.StarOverrides.Clone()
	c.StarNotes = r.StarNotes.Clone()
	c.Social = r.Social.Clone()
	c.ProfileCompletenessMeta = r.ProfileCompletenessMeta.Clone()
	if r.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// HasHeadquarters reports whether any headquarters signal is present.
func (r *Record) HasHeadquarters() bool {
	if r == nil {
		return false
	}
	return len(r.HeadquartersLocations) > 0 ||
		len(r.Headquarters) > 0 ||
		r.HeadquartersLocation.Trim() != ""
}

// HasManufacturing reports whether any manufacturing location or geocode is present.
func (r *Record) HasManufacturing() bool {
	if r == nil {
		return false
	}
	return len(r.ManufacturingGeocodes) > 0 || len(r.ManufacturingLocations) > 0
}
