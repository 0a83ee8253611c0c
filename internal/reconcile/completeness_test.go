package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeCompleteness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		doc      string
		score    int
		keywords int
	}{
		{"empty", `{}`, 0, 0},
		{"tagline only", `{"tagline":"Tools for makers"}`, 20, 0},
		{"industries", `{"industries":["tools", "", null]}`, 15, 0},
		{"three keywords", `{"keywords":["a","b"," c "]}`, 8, 3},
		{"eight keywords from text", `{"product_keywords":"a, b; c|d,e,f,g,h"}`, 15, 8},
		{"keyword list beats text", `{"keywords":["a"],"product_keywords":"a,b,c,d"}`, 0, 1},
		{"fifteen keywords", `{"keywords":["1","2","3","4","5","6","7","8","9","10","11","12","13","14","15"]}`, 20, 15},
		{"hq", `{"headquarters_location":"Austin"}`, 15, 0},
		{"mfg", `{"manufacturing_geocodes":[{"lat":1}]}`, 15, 0},
		{"reviews", `{"editorial_review_count":2}`, 15, 0},
		{
			"everything",
			`{"tagline":"t","industries":["i"],"keywords":["1","2","3","4","5","6","7","8","9","10","11","12","13","14","15"],
			  "headquarters":["h"],"manufacturing_locations":["m"],"curated_reviews":[{}]}`,
			100, 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := ComputeCompleteness(decode(t, tt.doc))
			assert.Equal(t, tt.score, c.Score)
			assert.Equal(t, tt.keywords, c.KeywordCount)
			assert.Equal(t, CompletenessVersion, c.Version)
		})
	}
}

func TestApplyCompleteness(t *testing.T) {
	t.Parallel()

	doc := decode(t, `{"id":"c1","tagline":"t","industries":["a","b"],"headquarters_location":"Austin"}`)
	out := ApplyCompleteness(doc)

	assert.Equal(t, 50.0, out.ProfileCompleteness.Or(-1))
	assert.Equal(t, 1.0, out.ProfileCompletenessVersion.Or(-1))
	assert.JSONEq(t,
		`{"has_tagline":true,"industries_count":2,"keywords_count":0,"has_hq":true,"has_mfg":false,"has_reviews":false}`,
		encodeObject(t, out.ProfileCompletenessMeta),
	)
	assert.False(t, doc.ProfileCompleteness.Valid())
}
