// Package reconcile decides, field by field, what survives when a freshly
// enriched company record is merged into the stored one.
package reconcile

import (
	"encoding/json"

	"github.com/sells-group/company-directory/internal/model"
)

// Defaults applied when neither side carries a value.
const (
	DefaultLocationConfidence = "medium"
	DefaultRatingIconType     = "star"
)

// Merge combines the stored record with an incoming enriched record and
// returns a new record. Neither input is modified. A nil record is treated
// as empty. fallbackDomain is used only when neither side has a domain.
func Merge(existing, incoming *model.Record, fallbackDomain string) *model.Record {
	ex := existing.Clone()
	in := incoming.Clone()

	m := baseline(ex, in)

	m.ID = ex.ID
	m.NormalizedDomain = domainOf(ex, in, fallbackDomain)

	mergeStrings(m, ex, in)
	mergeLists(m, ex, in)
	mergeHeadquarters(m, ex, in)
	mergeManufacturing(m, ex, in)
	mergeReviews(m, ex, in)
	mergeReviewsStar(m, ex, in)
	m.Rating = mergeRating(ex, in)

	if ex.CreatedAt.Trim() != "" {
		m.CreatedAt = model.Text(ex.CreatedAt.Trim())
	} else {
		m.CreatedAt = in.CreatedAt
	}
	m.UpdatedAt = in.UpdatedAt

	m.ProfileCompleteness = firstValid(in.ProfileCompleteness, ex.ProfileCompleteness)
	m.ProfileCompletenessVersion = firstValid(in.ProfileCompletenessVersion, ex.ProfileCompletenessVersion)
	m.ProfileCompletenessMeta = firstObject(in.ProfileCompletenessMeta, ex.ProfileCompletenessMeta)

	m.RedFlag = flagOr(in.RedFlag, ex.RedFlag)
	m.ShowLocationSourcesToUsers = flagOr(in.ShowLocationSourcesToUsers, ex.ShowLocationSourcesToUsers)
	m.Social = firstObject(in.Social, ex.Social)
	if m.Social == nil {
		m.Social = model.Object{}
	}

	return m
}

// baseline is the shallow union of both records: extra keys and the typed
// fields with no dedicated policy, incoming winning wherever it is set.
func baseline(ex, in *model.Record) *model.Record {
	m := &model.Record{}

	if len(ex.Extra)+len(in.Extra) > 0 {
		m.Extra = make(map[string]json.RawMessage, len(ex.Extra)+len(in.Extra))
	}
	for k, v := range ex.Extra {
		m.Extra[k] = v
	}
	for k, v := range in.Extra {
		m.Extra[k] = v
	}

	m.Reviews = firstList(in.Reviews, ex.Reviews)
	m.ReviewCountApproved = firstValid(in.ReviewCountApproved, ex.ReviewCountApproved)
	m.EditorialReviewCount = firstValid(in.EditorialReviewCount, ex.EditorialReviewCount)
	m.AmazonReviewCount = firstValid(in.AmazonReviewCount, ex.AmazonReviewCount)
	m.PublicReviewCount = firstValid(in.PublicReviewCount, ex.PublicReviewCount)
	m.PrivateReviewCount = firstValid(in.PrivateReviewCount, ex.PrivateReviewCount)
	m.StarOverrides = firstObject(in.StarOverrides, ex.StarOverrides)
	m.AdminManualExtra = firstValid(in.AdminManualExtra, ex.AdminManualExtra)
	m.StarNotes = firstList(in.StarNotes, ex.StarNotes)
	return m
}

// domainOf keeps the stored domain; identity does not move across merges.
func domainOf(ex, in *model.Record, fallback string) model.Text {
	if d := PreferString(ex.NormalizedDomain, in.NormalizedDomain); d != "" {
		return d
	}
	return model.Text(fallback)
}

func mergeStrings(m, ex, in *model.Record) {
	m.CompanyName = PreferString(in.CompanyName, ex.CompanyName)
	m.Name = PreferString(in.Name, ex.Name)
	m.URL = PreferString(in.URL, ex.URL)
	m.WebsiteURL = PreferString(in.WebsiteURL, ex.WebsiteURL)
	m.Tagline = PreferString(in.Tagline, ex.Tagline)
	m.ProductKeywords = PreferString(in.ProductKeywords, ex.ProductKeywords)
	m.AmazonURL = PreferString(in.AmazonURL, ex.AmazonURL)
	m.RedFlagReason = PreferString(in.RedFlagReason, ex.RedFlagReason)

	m.LocationConfidence = PreferString(in.LocationConfidence, ex.LocationConfidence)
	if m.LocationConfidence == "" {
		m.LocationConfidence = DefaultLocationConfidence
	}
	m.RatingIconType = PreferString(in.RatingIconType, ex.RatingIconType)
	if m.RatingIconType == "" {
		m.RatingIconType = DefaultRatingIconType
	}

	m.LogoURL = PreferString(in.LogoURL, ex.LogoURL)
	m.LogoSourceURL = PreferString(in.LogoSourceURL, ex.LogoSourceURL)
	m.LogoSourceLocation = PreferString(in.LogoSourceLocation, ex.LogoSourceLocation)
	m.LogoSourceDomain = PreferString(in.LogoSourceDomain, ex.LogoSourceDomain)
	m.LogoSourceType = PreferString(in.LogoSourceType, ex.LogoSourceType)
	m.LogoStatus = PreferString(in.LogoStatus, ex.LogoStatus)
	m.LogoImportStatus = PreferString(in.LogoImportStatus, ex.LogoImportStatus)
	m.LogoError = PreferString(in.LogoError, ex.LogoError)
}

func mergeLists(m, ex, in *model.Record) {
	m.Industries = PreferArray(in.Industries, ex.Industries)
	m.Keywords = PreferArray(in.Keywords, ex.Keywords)
	m.LocationSources = PreferArray(in.LocationSources, ex.LocationSources)
	m.HeadquartersLocations = PreferArray(in.HeadquartersLocations, ex.HeadquartersLocations)
	m.Headquarters = PreferArray(in.Headquarters, ex.Headquarters)
	m.ManufacturingLocations = PreferArray(in.ManufacturingLocations, ex.ManufacturingLocations)
	m.ManufacturingGeocodes = PreferArray(in.ManufacturingGeocodes, ex.ManufacturingGeocodes)
}

// mergeHeadquarters lets a known location clear any "unknown" state, even
// when the incoming write flagged it unknown.
func mergeHeadquarters(m, ex, in *model.Record) {
	m.HeadquartersLocation = PreferString(in.HeadquartersLocation, ex.HeadquartersLocation)
	if m.HeadquartersLocation.Trim() != "" {
		m.HQUnknown = model.Bool(false)
		m.HQUnknownReason = ""
	} else {
		m.HQUnknown = model.Bool(ex.HQUnknown.True() || in.HQUnknown.True())
		m.HQUnknownReason = PreferString(in.HQUnknownReason, ex.HQUnknownReason)
	}
	m.HQLat = PreferFinite(in.HQLat, ex.HQLat)
	m.HQLng = PreferFinite(in.HQLng, ex.HQLng)
}

// mergeManufacturing is keyed on the merged manufacturing_locations list.
func mergeManufacturing(m, ex, in *model.Record) {
	if len(m.ManufacturingLocations) > 0 {
		m.MfgUnknown = model.Bool(false)
		m.MfgUnknownReason = ""
		return
	}
	m.MfgUnknown = model.Bool(ex.MfgUnknown.True() || in.MfgUnknown.True())
	m.MfgUnknownReason = PreferString(in.MfgUnknownReason, ex.MfgUnknownReason)
}

// mergeReviews treats a fresher incoming reviews refresh as authoritative,
// including one that found nothing. Anything else falls back to non-empty wins.
func mergeReviews(m, ex, in *model.Record) {
	inTS := parseMillis(string(in.ReviewsLastUpdatedAt))
	exTS := parseMillis(string(ex.ReviewsLastUpdatedAt))

	inHasKey := in.HasCuratedReviewsKey || in.CuratedReviews != nil
	if inHasKey && inTS > 0 && inTS >= exTS {
		// A present key that is null or not an array still clears the list.
		m.CuratedReviews = in.CuratedReviews.Clone()
		if m.CuratedReviews == nil {
			m.CuratedReviews = model.List{}
		}
		if in.ReviewCount.Valid() {
			m.ReviewCount = in.ReviewCount
		} else {
			m.ReviewCount = model.Num(float64(len(m.CuratedReviews)))
		}
	} else {
		m.CuratedReviews = PreferArray(in.CuratedReviews, ex.CuratedReviews)
		m.ReviewCount = PreferNonZeroNumber(in.ReviewCount, ex.ReviewCount)
	}
	m.ReviewsLastUpdatedAt = PreferString(in.ReviewsLastUpdatedAt, ex.ReviewsLastUpdatedAt)
	m.ReviewCursor = PreferObjectByRecency(in.ReviewCursor, ex.ReviewCursor)
}

// mergeReviewsStar keeps a manual pin from the stored record; imports cannot
// downgrade it.
func mergeReviewsStar(m, ex, in *model.Record) {
	switch {
	case ex.ReviewsStarSource == model.StarSourceManual:
		m.ReviewsStarSource = model.StarSourceManual
	case in.ReviewsStarSource != model.StarSourceNone:
		m.ReviewsStarSource = in.ReviewsStarSource
	default:
		m.ReviewsStarSource = ex.ReviewsStarSource
	}

	if m.ReviewsStarSource == model.StarSourceManual {
		switch {
		case ex.ReviewsStarValue.Valid():
			m.ReviewsStarValue = ex.ReviewsStarValue
		case ex.Rating.Object("star3").Number("value").Valid():
			m.ReviewsStarValue = ex.Rating.Object("star3").Number("value")
		default:
			m.ReviewsStarValue = model.Num(0)
		}
		return
	}
	m.ReviewsStarValue = firstValid(in.ReviewsStarValue, ex.ReviewsStarValue)
}

// mergeRating unions the two rating maps, then restores the admin-only slots
// (star4, star5) and a manually pinned star3 from the stored record.
func mergeRating(ex, in *model.Record) model.Object {
	switch {
	case ex.Rating == nil:
		return in.Rating.Clone()
	case in.Rating == nil:
		return ex.Rating.Clone()
	}

	next := ex.Rating.Clone()
	for k, v := range in.Rating {
		next[k] = v
	}
	for _, slot := range []string{"star4", "star5"} {
		if ex.Rating.Object(slot) != nil {
			next[slot] = ex.Rating[slot]
		}
	}
	if ex.ReviewsStarSource == model.StarSourceManual && ex.Rating.Object("star3") != nil {
		next["star3"] = ex.Rating["star3"]
	}
	return next
}

func firstValid(a, b model.Number) model.Number {
	if a.Valid() {
		return a
	}
	return b
}

func firstObject(a, b model.Object) model.Object {
	if a != nil {
		return a.Clone()
	}
	return b.Clone()
}

func firstList(a, b model.List) model.List {
	if a != nil {
		return a.Clone()
	}
	return b.Clone()
}

// flagOr returns a when it carried a boolean, else b coerced to a boolean.
func flagOr(a, b model.Flag) model.Flag {
	if a.IsSet() {
		return a
	}
	return model.Bool(b.True())
}
