package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_UnmarshalLenient(t *testing.T) {
	t.Parallel()

	in := `{
		"id": "c1",
		"normalized_domain": "acme.com",
		"company_name": 42,
		"industries": "not-a-list",
		"keywords": [],
		"hq_unknown": "yes",
		"hq_lat": "30.27",
		"hq_lng": null,
		"review_count": "abc",
		"reviews_star_source": " MANUAL ",
		"social": ["x"],
		"rating": {"star3": {"value": 0.5, "notes": ["pinned"]}},
		"crm_owner": "dana"
	}`

	var r Record
	require.NoError(t, json.Unmarshal([]byte(in), &r))

	assert.Equal(t, Text("c1"), r.ID)
	assert.Equal(t, Text(""), r.CompanyName)
	assert.Nil(t, r.Industries)
	assert.NotNil(t, r.Keywords)
	assert.Empty(t, r.Keywords)
	assert.False(t, r.HQUnknown.IsSet())

	lat, ok := r.HQLat.Float()
	assert.True(t, ok)
	assert.InDelta(t, 30.27, lat, 1e-9)
	assert.False(t, r.HQLng.Valid())
	assert.False(t, r.ReviewCount.Valid())

	assert.Equal(t, StarSourceManual, r.ReviewsStarSource)
	assert.Nil(t, r.Social)
	assert.InDelta(t, 0.5, r.Rating.Object("star3").Number("value").Or(-1), 1e-9)

	require.Contains(t, r.Extra, "crm_owner")
	assert.JSONEq(t, `"dana"`, string(r.Extra["crm_owner"]))
}

func TestRecord_UnmarshalMalformed(t *testing.T) {
	t.Parallel()

	var r Record
	err := json.Unmarshal([]byte(`[1,2]`), &r)
	assert.Error(t, err)
}

func TestRecord_MarshalRoundTripKeepsExtra(t *testing.T) {
	t.Parallel()

	r := Record{
		ID:               "c1",
		NormalizedDomain: "acme.com",
		Industries:       Strings("tools"),
		HQUnknown:        Bool(false),
		HQLat:            Num(30.2),
		Extra: map[string]json.RawMessage{
			"crm_owner": json.RawMessage(`"dana"`),
			"id":        json.RawMessage(`"shadowed"`),
		},
	}

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "c1", got["id"])
	assert.Equal(t, "dana", got["crm_owner"])
	assert.Equal(t, false, got["hq_unknown"])
	assert.Equal(t, []any{"tools"}, got["industries"])
	assert.Nil(t, got["reviews_star_source"])
	assert.Nil(t, got["reviews_star_value"])
	assert.Contains(t, got, "hq_unknown_reason")
	assert.NotContains(t, got, "hq_lng")
	assert.NotContains(t, got, "keywords")
}

func TestRecord_CuratedReviewsKeyPresence(t *testing.T) {
	t.Parallel()

	var absent Record
	require.NoError(t, json.Unmarshal([]byte(`{"id": "c1"}`), &absent))
	assert.False(t, absent.HasCuratedReviewsKey)

	var null Record
	require.NoError(t, json.Unmarshal([]byte(`{"id": "c1", "curated_reviews": null}`), &null))
	assert.True(t, null.HasCuratedReviewsKey)
	assert.Nil(t, null.CuratedReviews)

	b, err := json.Marshal(&null)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "c1", "curated_reviews": null, "hq_unknown_reason": "", "mfg_unknown_reason": "", "reviews_star_source": null, "reviews_star_value": null}`, string(b))

	var again Record
	require.NoError(t, json.Unmarshal(b, &again))
	assert.True(t, again.HasCuratedReviewsKey)
}

func TestRecord_Clone(t *testing.T) {
	t.Parallel()

	r := &Record{
		Industries: Strings("a"),
		Rating:     Object{"star4": json.RawMessage(`{"value":1}`)},
		Extra:      map[string]json.RawMessage{"k": json.RawMessage(`1`)},
	}
	c := r.Clone()
	c.Industries[0] = json.RawMessage(`"b"`)
	c.Rating["star4"] = json.RawMessage(`{"value":0}`)
	c.Extra["k"] = json.RawMessage(`2`)

	assert.JSONEq(t, `"a"`, string(r.Industries[0]))
	assert.JSONEq(t, `{"value":1}`, string(r.Rating["star4"]))
	assert.JSONEq(t, `1`, string(r.Extra["k"]))

	var nilRecord *Record
	assert.NotNil(t, nilRecord.Clone())
}

func TestRecord_LocationSignals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		record  *Record
		wantHQ  bool
		wantMfg bool
	}{
		{"nil", nil, false, false},
		{"empty", &Record{}, false, false},
		{"hq string", &Record{HeadquartersLocation: " Austin, TX "}, true, false},
		{"hq blank string", &Record{HeadquartersLocation: "   "}, false, false},
		{"hq list", &Record{HeadquartersLocations: Values(map[string]string{"city": "Austin"})}, true, false},
		{"legacy hq list", &Record{Headquarters: Strings("Austin")}, true, false},
		{"mfg locations", &Record{ManufacturingLocations: Strings("Shenzhen")}, false, true},
		{"mfg geocodes", &Record{ManufacturingGeocodes: Values(map[string]float64{"lat": 1})}, false, true},
		{"empty lists", &Record{Headquarters: List{}, ManufacturingLocations: List{}}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantHQ, tt.record.HasHeadquarters())
			assert.Equal(t, tt.wantMfg, tt.record.HasManufacturing())
		})
	}
}

func TestIsKnownKey(t *testing.T) {
	t.Parallel()

	assert.True(t, IsKnownKey("curated_reviews"))
	assert.True(t, IsKnownKey("hq_unknown_reason"))
	assert.False(t, IsKnownKey("Extra"))
	assert.False(t, IsKnownKey("crm_owner"))
}
