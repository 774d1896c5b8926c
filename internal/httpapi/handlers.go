package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jthornhill/finagent/internal/finance"
	"github.com/jthornhill/finagent/internal/forecast"
	"github.com/jthornhill/finagent/internal/receipt"
)

// maxUploadBytes caps receipt image uploads.
const maxUploadBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.PathValue("days"))
	if err != nil || !forecast.ValidHorizon(days) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Days parameter must be 30, 90, or 180",
		})
		return
	}

	result, err := s.forecaster.Forecast(r.Context(), days)
	if err != nil {
		if errors.Is(err, forecast.ErrInvalidHorizon) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleForecastAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.forecaster.ForecastPeriods(r.Context()))
}

func (s *Server) handleExtractReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, receipt.Result{
			Status: "error", Message: "No file part in the request",
		})
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeJSON(w, http.StatusBadRequest, receipt.Result{
			Status: "error", Message: "No file selected",
		})
		return
	}
	if !receipt.AllowedFile(header.Filename) {
		writeJSON(w, http.StatusBadRequest, receipt.Result{
			Status: "error", Message: "Invalid file type. Allowed types: jpg, jpeg, png",
		})
		return
	}

	image, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, receipt.Result{
			Status: "error", Message: "Failed to read uploaded file",
		})
		return
	}

	res := s.extractor.Extract(r.Context(), image, header.Filename)
	if res.Status != "success" {
		writeJSON(w, http.StatusInternalServerError, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	txs, err := s.lister.GetTransactions(r.Context(), q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if txs == nil {
		txs = []finance.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}
