// Package httpapi exposes the forecasting and receipt-extraction
// services over HTTP. Thin boundary: it validates requests, delegates,
// and shapes JSON responses.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jthornhill/finagent/internal/finance"
	"github.com/jthornhill/finagent/internal/forecast"
	"github.com/jthornhill/finagent/internal/receipt"
)

// Forecaster is the forecast surface the server consumes.
type Forecaster interface {
	Forecast(ctx context.Context, days int) (finance.ForecastResult, error)
	ForecastPeriods(ctx context.Context) map[string]forecast.PeriodResult
}

// ReceiptExtractor is the receipt surface the server consumes.
type ReceiptExtractor interface {
	Extract(ctx context.Context, image []byte, filename string) receipt.Result
}

// TransactionLister lists the account's transaction history.
type TransactionLister interface {
	GetTransactions(ctx context.Context, startDate, endDate string) ([]finance.Transaction, error)
}

type Server struct {
	forecaster Forecaster
	extractor  ReceiptExtractor
	lister     TransactionLister
	started    time.Time
}

// NewServer builds the configured *http.Server. uploadRoot is the
// directory receipt images are served from under /static/uploads/.
func NewServer(addr string, f Forecaster, e ReceiptExtractor, l TransactionLister, uploadRoot string) *http.Server {
	s := &Server{forecaster: f, extractor: e, lister: l, started: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/forecast/all", s.handleForecastAll)
	mux.HandleFunc("GET /api/forecast/{days}", s.handleForecast)
	mux.HandleFunc("POST /api/extract-receipt-details", s.handleExtractReceipt)
	mux.HandleFunc("GET /api/transactions", s.handleTransactions)
	mux.Handle("GET /static/uploads/",
		http.StripPrefix("/static/uploads/", http.FileServer(http.Dir(uploadRoot))))

	srv := &http.Server{
		Addr:           addr,
		Handler:        requestLogger(mux),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   10 * time.Minute, // forecasts hold the connection while the model works
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	return srv
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.InfoContext(r.Context(), "Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
