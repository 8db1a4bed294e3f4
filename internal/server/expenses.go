package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/perdiem/internal/expense"
	"github.com/sells-group/perdiem/internal/perdiem"
)

const (
	exportFilePrefix = "per-diem-expenses-"
	csvContentType   = "text/csv; charset=utf-8"
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	warnNoRate = "No per diem rate found for this location and date; allowance set to 0"
)

type expenseRequest struct {
	Type          expense.Type        `json:"type"`
	Date          string              `json:"date"`
	Establishment string              `json:"establishment"`
	ReceiptAmount decimal.Decimal     `json:"receiptAmount"`
	PerDiemAmount decimal.NullDecimal `json:"perDiemAmount"`
	City          string              `json:"city"`
	State         string              `json:"state"`
	ZipCode       string              `json:"zipCode"`
	Note          string              `json:"note"`
}

type expenseResponse struct {
	Expense *expense.Expense `json:"expense"`
	Method  perdiem.Method   `json:"method,omitempty"`
	Warning string           `json:"warning,omitempty"`
}

type expenseListResponse struct {
	Expenses []expense.Expense `json:"expenses"`
	Summary  expense.Summary   `json:"summary"`
}

// filterFromQuery reads type, from, to and limit. Dates are YYYY-MM-DD.
func filterFromQuery(q url.Values) (expense.Filter, error) {
	var f expense.Filter
	if t := q.Get("type"); t != "" {
		f.Type = expense.Type(t)
		if !f.Type.Valid() {
			return f, eris.Errorf("unknown expense type %q", t)
		}
	}
	if v := q.Get("from"); v != "" {
		d, err := perdiem.ParseDate(v)
		if err != nil {
			return f, eris.Wrap(err, "from")
		}
		f.From = d
	}
	if v := q.Get("to"); v != "" {
		d, err := perdiem.ParseDate(v)
		if err != nil {
			return f, eris.Wrap(err, "to")
		}
		f.To = d
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return f, eris.New("limit must be a non-negative integer")
		}
		f.Limit = n
	}
	return f, nil
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.deps.Store.List(r.Context(), f)
	if err != nil {
		zap.L().Error("server: list expenses", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list expenses")
		return
	}
	if list == nil {
		list = []expense.Expense{}
	}
	writeJSON(w, http.StatusOK, expenseListResponse{Expenses: list, Summary: expense.Summarize(list)})
}

// handleCreateExpense stores an expense. Without a perDiemAmount the
// allowance comes from the resolver; a location with no rate keeps 0 and
// the response carries a warning.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var body expenseRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := perdiem.ParseDate(body.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	e := &expense.Expense{
		Type:          body.Type,
		Date:          date,
		Establishment: body.Establishment,
		ReceiptAmount: body.ReceiptAmount,
		PerDiemAmount: body.PerDiemAmount.Decimal,
		City:          body.City,
		State:         body.State,
		ZipCode:       body.ZipCode,
		Note:          body.Note,
	}
	if err := e.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := expenseResponse{Expense: e}
	if !body.PerDiemAmount.Valid {
		res, err := s.deps.Resolver.Resolve(r.Context(), e.LookupRequest())
		switch {
		case err != nil:
			respondError(w, http.StatusBadRequest, err.Error())
			return
		case res.Success:
			e.PerDiemAmount = expense.PerDiemFor(e.Type, res.Rate)
			resp.Method = res.Method
		default:
			resp.Warning = warnNoRate
		}
	}

	if err := s.deps.Store.Create(r.Context(), e); err != nil {
		if errors.Is(err, expense.ErrInvalid) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		zap.L().Error("server: create expense", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to save expense")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Store.Delete(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, expense.ErrNotFound):
		respondError(w, http.StatusNotFound, "expense not found")
	case err != nil:
		zap.L().Error("server: delete expense", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete expense")
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func (s *Server) handleDeleteAllExpenses(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Store.DeleteAll(r.Context())
	if err != nil {
		zap.L().Error("server: delete all expenses", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete expenses")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": n})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "csv", csvContentType, expense.WriteCSV)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "xlsx", xlsxContentType, expense.WriteXLSX)
}

// export renders the filtered expenses into a buffer, then sends it as an
// attachment named after today's date.
func (s *Server) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(w io.Writer, list []expense.Expense) error) {
	f, err := filterFromQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.deps.Store.List(r.Context(), f)
	if err != nil {
		zap.L().Error("server: export expenses", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to export expenses")
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, list); err != nil {
		zap.L().Error("server: render export", zap.String("format", ext), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to export expenses")
		return
	}

	filename := exportFilePrefix + s.now().Format(perdiem.DateLayout) + "." + ext
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
