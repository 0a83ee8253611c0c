package reconcile

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sells-group/company-directory/internal/model"
)

// CompletenessVersion identifies the scoring rules below.
const CompletenessVersion = 1

// Completeness is a 0-100 profile score with the signals behind it.
type Completeness struct {
	Score         int  `json:"profile_completeness"`
	Version       int  `json:"profile_completeness_version"`
	HasTagline    bool `json:"has_tagline"`
	IndustryCount int  `json:"industries_count"`
	KeywordCount  int  `json:"keywords_count"`
	HasHQ         bool `json:"has_hq"`
	HasMfg        bool `json:"has_mfg"`
	HasReviews    bool `json:"has_reviews"`
}

var keywordSplit = regexp.MustCompile(`\s*[,;|]\s*`)

// ComputeCompleteness scores how filled-in a company profile is.
func ComputeCompleteness(doc *model.Record) Completeness {
	if doc == nil {
		doc = &model.Record{}
	}
	c := Completeness{
		Version:       CompletenessVersion,
		HasTagline:    doc.Tagline.Trim() != "",
		IndustryCount: countTruthy(doc.Industries),
		KeywordCount:  len(keywordList(doc)),
		HasHQ:         doc.HasHeadquarters(),
		HasMfg:        doc.HasManufacturing(),
		HasReviews:    hasReviewsForProfile(doc),
	}

	score := 0
	if c.HasTagline {
		score += 20
	}
	if c.IndustryCount > 0 {
		score += 15
	}
	switch {
	case c.KeywordCount >= 15:
		score += 20
	case c.KeywordCount >= 8:
		score += 15
	case c.KeywordCount >= 3:
		score += 8
	}
	if c.HasHQ {
		score += 15
	}
	if c.HasMfg {
		score += 15
	}
	if c.HasReviews {
		score += 15
	}
	c.Score = min(max(score, 0), 100)
	return c
}

// ApplyCompleteness returns a copy of doc with the completeness fields set.
func ApplyCompleteness(doc *model.Record) *model.Record {
	out := doc.Clone()
	c := ComputeCompleteness(out)
	out.ProfileCompleteness = model.Num(float64(c.Score))
	out.ProfileCompletenessVersion = model.Num(float64(c.Version))
	out.ProfileCompletenessMeta = model.Object{}.
		With("has_tagline", c.HasTagline).
		With("industries_count", c.IndustryCount).
		With("keywords_count", c.KeywordCount).
		With("has_hq", c.HasHQ).
		With("has_mfg", c.HasMfg).
		With("has_reviews", c.HasReviews)
	return out
}

// keywordList prefers the keywords array and falls back to splitting the
// free-text product_keywords field.
func keywordList(doc *model.Record) []string {
	var out []string
	if doc.Keywords != nil {
		for _, el := range doc.Keywords {
			if s := elementText(el); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	for _, part := range keywordSplit.Split(doc.ProductKeywords.Trim(), -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// hasReviewsForProfile is looser than ComputeHasAnyReviews: it only looks at
// the review arrays and the editorial/total counts.
func hasReviewsForProfile(doc *model.Record) bool {
	if len(doc.CuratedReviews) > 0 || len(doc.Reviews) > 0 {
		return true
	}
	n := doc.EditorialReviewCount.Or(0)
	if n == 0 {
		n = doc.ReviewCount.Or(0)
	}
	return n > 0
}

// elementText renders a list element as trimmed text. Strings are unquoted,
// null is empty, anything else keeps its JSON form.
func elementText(el json.RawMessage) string {
	var s string
	if err := json.Unmarshal(el, &s); err == nil {
		return strings.TrimSpace(s)
	}
	el = bytes.TrimSpace(el)
	if bytes.Equal(el, []byte("null")) {
		return ""
	}
	return string(el)
}

func countTruthy(l model.List) int {
	n := 0
	for _, el := range l {
		switch string(bytes.TrimSpace(el)) {
		case "", "null", "false", "0", `""`:
		default:
			n++
		}
	}
	return n
}
