package stars

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-directory/internal/model"
)

func TestCalc_Basic(t *testing.T) {
	t.Parallel()

	b := Calc(Signals{
		HQEligible:            true,
		ManufacturingEligible: true,
		ApprovedUserReviews:   1,
		ManualExtra:           model.Num(1),
	})

	assert.Equal(t, 3.0, b.AutoSubtotal)
	assert.Equal(t, 1.0, b.ManualExtra)
	assert.Equal(t, 4.0, b.Final)
	assert.Equal(t, []string{"hq", "manufacturing", "review"}, b.Reasons)
}

func TestCalc_ReviewEligibility(t *testing.T) {
	t.Parallel()

	assert.NotContains(t, Calc(Signals{ApprovedUserReviews: 0.5}).Reasons, ReasonReview)
	assert.Contains(t, Calc(Signals{ApprovedUserReviews: 0.5, ApprovedEditorialReviews: 0.5}).Reasons, ReasonReview)
	assert.Contains(t, Calc(Signals{ApprovedEditorialReviews: 2}).Reasons, ReasonReview)
}

func TestCalc_OverridePrecedence(t *testing.T) {
	t.Parallel()

	forced := Calc(Signals{HQEligible: false, Overrides: Overrides{HQ: OverrideForce}})
	assert.Contains(t, forced.Reasons, ReasonHQ)
	assert.Equal(t, 1.0, forced.AutoSubtotal)

	suppressed := Calc(Signals{HQEligible: true, Overrides: Overrides{HQ: OverrideSuppress}})
	assert.NotContains(t, suppressed.Reasons, ReasonHQ)
	assert.Equal(t, 0.0, suppressed.AutoSubtotal)

	review := Calc(Signals{ApprovedUserReviews: 10, Overrides: Overrides{Review: OverrideSuppress, Manufacturing: OverrideForce}})
	assert.Equal(t, []string{"manufacturing"}, review.Reasons)
}

func TestCalc_Bounds(t *testing.T) {
	t.Parallel()

	modes := []OverrideMode{OverrideNone, OverrideForce, OverrideSuppress}
	extras := []model.Number{
		{}, model.Num(-3), model.Num(0), model.Num(0.5), model.Num(1.99), model.Num(2), model.Num(7),
		model.Num(math.NaN()), model.Num(math.Inf(1)),
	}
	reviews := []float64{0, 0.3, 1, 100, -5}

	for _, hq := range []bool{false, true} {
		for _, mfg := range []bool{false, true} {
			for _, r := range reviews {
				for _, mode := range modes {
					for _, extra := range extras {
						b := Calc(Signals{
							HQEligible:            hq,
							ManufacturingEligible: mfg,
							ApprovedUserReviews:   r,
							Overrides:             Overrides{HQ: mode, Manufacturing: mode, Review: mode},
							ManualExtra:           extra,
						})
						assert.GreaterOrEqual(t, b.AutoSubtotal, 0.0)
						assert.LessOrEqual(t, b.AutoSubtotal, 3.0)
						assert.GreaterOrEqual(t, b.ManualExtra, 0.0)
						assert.LessOrEqual(t, b.ManualExtra, 2.0)
						assert.GreaterOrEqual(t, b.Final, 0.0)
						assert.LessOrEqual(t, b.Final, 5.0)
						assert.Equal(t, clamp(b.AutoSubtotal+b.ManualExtra, 0, 5), b.Final)
					}
				}
			}
		}
	}
}

func TestCalc_AdminNotes(t *testing.T) {
	t.Parallel()

	b := Calc(Signals{Notes: []Note{
		{Text: "  Verified factory visit ", Public: true},
		{Text: "internal: supplier dispute", Public: false},
		{Text: "   "},
	}})
	assert.Equal(t, []string{"admin: Verified factory visit", "admin: internal: supplier dispute"}, b.Reasons)
}

func TestBundle_JSON(t *testing.T) {
	t.Parallel()

	b := Calc(Signals{HQEligible: true, Overrides: Overrides{Manufacturing: OverrideSuppress}})
	out, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"autoSubtotal": 1,
		"manualExtra": 0,
		"final": 1,
		"reasons": ["hq"],
		"overrides": {"hq": null, "manufacturing": "suppress", "review": null}
	}`, string(out))

	empty, err := json.Marshal(Calc(Signals{}))
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"reasons":[]`)
}

func TestSignals_UnmarshalLenient(t *testing.T) {
	t.Parallel()

	var s Signals
	require.NoError(t, json.Unmarshal([]byte(`{
		"hqEligible": true,
		"approvedUserReviews": 2,
		"overrides": {"hq": "FORCE", "manufacturing": "bogus"},
		"manualExtra": null,
		"notes": [{"text": "hi", "public": true, "by": "ops@acme.com", "at": "2025-01-01T00:00:00Z"}]
	}`), &s))

	assert.Equal(t, OverrideForce, s.Overrides.HQ)
	assert.Equal(t, OverrideNone, s.Overrides.Manufacturing)
	assert.Equal(t, OverrideNone, s.Overrides.Review)
	assert.False(t, s.ManualExtra.Valid())
	require.Len(t, s.Notes, 1)
	assert.Equal(t, "ops@acme.com", s.Notes[0].By)
}

func TestBuildTooltipLines(t *testing.T) {
	t.Parallel()

	notes := []Note{
		{Text: " Visited plant in 2024 ", Public: true},
		{Text: "Pending legal review", Public: false},
		{Text: "  ", Public: true},
	}
	b := Calc(Signals{HQEligible: true, ApprovedEditorialReviews: 1, Notes: notes})

	lines := BuildTooltipLines(b, notes)
	assert.Equal(t, []string{
		"✓ HQ",
		"✗ Manufacturing",
		"✓ Reviews",
		"Visited plant in 2024",
	}, lines)
}

func TestParseOverrideMode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, OverrideForce, ParseOverrideMode(" force"))
	assert.Equal(t, OverrideSuppress, ParseOverrideMode("Suppress"))
	assert.Equal(t, OverrideNone, ParseOverrideMode(""))
	assert.Equal(t, OverrideNone, ParseOverrideMode("off"))
	assert.Equal(t, "", OverrideNone.String())
}
