package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/company-directory/internal/importer"
	"github.com/sells-group/company-directory/internal/model"
	"github.com/sells-group/company-directory/internal/reconcile"
	"github.com/sells-group/company-directory/internal/stars"
	"github.com/sells-group/company-directory/internal/store"
)

type mergeRequest struct {
	Existing       *model.Record `json:"existing"`
	Incoming       *model.Record `json:"incoming" validate:"required"`
	FallbackDomain string        `json:"fallback_domain" validate:"omitempty,max=253"`
}

type starsResponse struct {
	stars.Bundle
	Tooltip []string `json:"tooltip"`
}

type importResponse struct {
	Result  *importer.Result `json:"result"`
	Company *model.Record    `json:"company"`
}

type batchRequest struct {
	Documents []*model.Record `json:"documents" validate:"required,min=1,max=500,dive,required"`
}

type batchResponse struct {
	Results []batchItem `json:"results"`
}

type batchItem struct {
	Result *importer.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

type listQuery struct {
	Prefix string `validate:"omitempty,max=253"`
	Limit  int    `validate:"gte=0,lte=1000"`
	Offset int    `validate:"gte=0"`
}

type listResponse struct {
	Companies []companyResponse `json:"companies"`
	Total     int               `json:"total"`
}

type companyResponse struct {
	Version int64         `json:"version"`
	Company *model.Record `json:"company"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMerge previews a merge without touching the store.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reconcile.Merge(req.Existing, req.Incoming, req.FallbackDomain))
}

func (s *Server) handleCalcStars(w http.ResponseWriter, r *http.Request) {
	var sig stars.Signals
	if err := decodeJSON(w, r, &sig); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(sig); err != nil {
		writeError(w, r, err)
		return
	}
	b := stars.Calc(sig)
	s.metrics.IncrementStarCalculations()
	writeJSON(w, http.StatusOK, starsResponse{Bundle: b, Tooltip: stars.BuildTooltipLines(b, sig.Notes)})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var doc model.Record
	if err := decodeJSON(w, r, &doc); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.importer.Import(r.Context(), &doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Action == importer.ActionCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, importResponse{Result: res, Company: res.Company})
}

func (s *Server) handleImportBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	outcomes, err := s.importer.ImportAll(r.Context(), req.Documents)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]batchItem, len(outcomes))
	for i, o := range outcomes {
		items[i] = batchItem{Result: o.Result}
		if o.Err != nil {
			items[i].Error = o.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, batchResponse{Results: items})
}

func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCompany(r.Context(), store.NormalizeDomain(chi.URLParam(r, "domain")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, companyResponse{Version: c.Version, Company: c.Record})
}

func (s *Server) handleDeleteCompany(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCompany(r.Context(), store.NormalizeDomain(chi.URLParam(r, "domain"))); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCompanyStars(w http.ResponseWriter, r *http.Request) {
	rep, err := s.importer.Stars(r.Context(), store.NormalizeDomain(chi.URLParam(r, "domain")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(q); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	companies, err := s.store.ListCompanies(ctx, store.CompanyFilter{
		DomainPrefix: store.NormalizeDomain(q.Prefix),
		Limit:        q.Limit,
		Offset:       q.Offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	total, err := s.store.CountCompanies(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := listResponse{Companies: make([]companyResponse, len(companies)), Total: total}
	for i, c := range companies {
		resp.Companies[i] = companyResponse{Version: c.Version, Company: c.Record}
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseListQuery(r *http.Request) (listQuery, error) {
	v := r.URL.Query()
	q := listQuery{Prefix: v.Get("prefix")}
	for name, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		raw := v.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, eris.Wrapf(errBadRequest, "%s must be an integer", name)
		}
		*dst = n
	}
	return q, nil
}
