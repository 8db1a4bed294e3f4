package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/perdiem/internal/perdiem"
)

type perDiemRequest struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Date    string `json:"date"`
	ZipCode string `json:"zipCode"`
}

// rateData is the wire form of a NormalizedRate. Amounts are JSON numbers.
type rateData struct {
	City           string  `json:"city"`
	State          string  `json:"state"`
	County         string  `json:"county,omitempty"`
	Lodging        float64 `json:"lodging"`
	Meals          float64 `json:"meals"`
	Incidentals    float64 `json:"incidentals"`
	Total          float64 `json:"total"`
	EffectiveDate  string  `json:"effectiveDate"`
	ExpirationDate string  `json:"expirationDate"`
	StandardRate   bool    `json:"standardRate,omitempty"`
}

type perDiemResponse struct {
	Success bool           `json:"success"`
	Method  perdiem.Method `json:"method,omitempty"`
	ZipCode string         `json:"zipCode,omitempty"`
	Data    *rateData      `json:"data,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func toRateData(r *perdiem.NormalizedRate) *rateData {
	return &rateData{
		City:           r.City,
		State:          r.State,
		County:         r.County,
		Lodging:        r.Lodging.InexactFloat64(),
		Meals:          r.Meals.InexactFloat64(),
		Incidentals:    r.Incidentals.InexactFloat64(),
		Total:          r.Total.InexactFloat64(),
		EffectiveDate:  r.EffectiveDate.Format(perdiem.DateLayout),
		ExpirationDate: r.ExpirationDate.Format(perdiem.DateLayout),
		StandardRate:   r.StandardRate,
	}
}

func (s *Server) handlePerDiem(w http.ResponseWriter, r *http.Request) {
	var body perDiemRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := perdiem.ParseDate(body.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Resolver.Resolve(r.Context(), perdiem.LookupRequest{
		City:    body.City,
		State:   body.State,
		Date:    date,
		ZipCode: body.ZipCode,
	})
	switch {
	case errors.Is(err, perdiem.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		zap.L().Error("server: resolve per diem", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch per diem rates")
		return
	}

	if !res.Success {
		writeJSON(w, http.StatusNotFound, perDiemResponse{
			Reason: res.Reason,
			Error:  "No per diem rate found for the specified location and date",
		})
		return
	}

	writeJSON(w, http.StatusOK, perDiemResponse{
		Success: true,
		Method:  res.Method,
		ZipCode: res.ZipCode,
		Data:    toRateData(res.Rate),
	})
}

func (s *Server) handleSearchCities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cities := s.deps.Suggester.Suggest(r.Context(), q.Get("query"), q.Get("state"))
	writeJSON(w, http.StatusOK, map[string][]perdiem.CitySuggestion{"cities": cities})
}
