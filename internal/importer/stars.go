package importer

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-directory/internal/stars"
)

// StarReport is the star bundle for a stored company.
type StarReport struct {
	Domain  string       `json:"domain"`
	Version int64        `json:"version"`
	Bundle  stars.Bundle `json:"bundle"`
	Tooltip []string     `json:"tooltip"`
	Total   float64      `json:"rating_total"`
}

// Stars computes the star bundle for the stored company at domain.
func (s *Service) Stars(ctx context.Context, domain string) (*StarReport, error) {
	c, err := s.store.GetCompany(ctx, domain)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: stars %s", domain)
	}

	signals := stars.SignalsFromRecord(c.Record)
	bundle := stars.Calc(signals)
	s.metrics.IncrementStarCalculations()

	return &StarReport{
		Domain:  string(c.Record.NormalizedDomain),
		Version: c.Version,
		Bundle:  bundle,
		Tooltip: stars.BuildTooltipLines(bundle, signals.Notes),
		Total:   stars.TotalScore(c.Record.Rating),
	}, nil
}
