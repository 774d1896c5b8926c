package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jthornhill/finagent/internal/finance"
	"github.com/jthornhill/finagent/internal/forecast"
	"github.com/jthornhill/finagent/internal/httpapi"
	"github.com/jthornhill/finagent/internal/receipt"
)

type fakeForecaster struct {
	result  finance.ForecastResult
	err     error
	periods map[string]forecast.PeriodResult
	gotDays int
}

func (f *fakeForecaster) Forecast(ctx context.Context, days int) (finance.ForecastResult, error) {
	f.gotDays = days
	return f.result, f.err
}

func (f *fakeForecaster) ForecastPeriods(ctx context.Context) map[string]forecast.PeriodResult {
	return f.periods
}

type fakeExtractor struct {
	result      receipt.Result
	gotFilename string
	gotImage    []byte
}

func (f *fakeExtractor) Extract(ctx context.Context, image []byte, filename string) receipt.Result {
	f.gotImage = image
	f.gotFilename = filename
	return f.result
}

type fakeLister struct {
	txs      []finance.Transaction
	err      error
	gotStart string
	gotEnd   string
}

func (f *fakeLister) GetTransactions(ctx context.Context, start, end string) ([]finance.Transaction, error) {
	f.gotStart, f.gotEnd = start, end
	return f.txs, f.err
}

func newTestServer(t *testing.T, f *fakeForecaster, e *fakeExtractor, l *fakeLister) http.Handler {
	t.Helper()
	if f == nil {
		f = &fakeForecaster{}
	}
	if e == nil {
		e = &fakeExtractor{}
	}
	if l == nil {
		l = &fakeLister{}
	}
	return httpapi.NewServer(":0", f, e, l, t.TempDir()).Handler
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil, nil, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	decodeBody(t, rr, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestForecast_ValidHorizon(t *testing.T) {
	f := &fakeForecaster{result: finance.ForecastResult{
		ForecastText: "all good",
		Metadata:     finance.ForecastMetadata{ForecastDays: 90, CurrentBalance: 42},
	}}
	h := newTestServer(t, f, nil, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/forecast/90", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	if f.gotDays != 90 {
		t.Errorf("forecaster called with %d days", f.gotDays)
	}
	var body finance.ForecastResult
	decodeBody(t, rr, &body)
	if body.ForecastText != "all good" || body.Metadata.CurrentBalance != 42 {
		t.Errorf("body = %+v", body)
	}
}

func TestForecast_InvalidHorizonRejectedAtBoundary(t *testing.T) {
	for _, path := range []string{"/api/forecast/45", "/api/forecast/0", "/api/forecast/-30", "/api/forecast/week"} {
		f := &fakeForecaster{}
		h := newTestServer(t, f, nil, nil)

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", path, rr.Code)
		}
		if f.gotDays != 0 {
			t.Errorf("%s: forecaster invoked for invalid horizon", path)
		}
		var body map[string]string
		decodeBody(t, rr, &body)
		if body["error"] != "Days parameter must be 30, 90, or 180" {
			t.Errorf("%s: error = %q", path, body["error"])
		}
	}
}

func TestForecast_UpstreamFailure(t *testing.T) {
	f := &fakeForecaster{err: errors.New("model overloaded")}
	h := newTestServer(t, f, nil, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/forecast/30", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestForecastAll_ReturnsPerHorizonEntries(t *testing.T) {
	f := &fakeForecaster{periods: map[string]forecast.PeriodResult{
		"30d":  {Forecast: &finance.ForecastResult{ForecastText: "a"}},
		"90d":  {Error: "model overloaded"},
		"180d": {Forecast: &finance.ForecastResult{ForecastText: "c"}},
	}}
	h := newTestServer(t, f, nil, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/forecast/all", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]forecast.PeriodResult
	decodeBody(t, rr, &body)
	if len(body) != 3 || body["90d"].Error != "model overloaded" {
		t.Errorf("body = %+v", body)
	}
}

func multipartUpload(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/extract-receipt-details", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestExtractReceipt_Success(t *testing.T) {
	e := &fakeExtractor{result: receipt.Result{
		Status: "success",
		Data: &finance.SavedReceipt{
			ID:               1,
			ExtractedReceipt: finance.ExtractedReceipt{VendorName: "Test Store", Total: 18.48},
			ImageURL:         "/static/uploads/abc.jpg",
		},
	}}
	h := newTestServer(t, nil, e, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartUpload(t, "file", "scan.jpg", []byte("imagebytes")))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	if e.gotFilename != "scan.jpg" || string(e.gotImage) != "imagebytes" {
		t.Errorf("extractor got filename=%q image=%q", e.gotFilename, e.gotImage)
	}
	var body receipt.Result
	decodeBody(t, rr, &body)
	if body.Status != "success" || body.Data == nil || body.Data.VendorName != "Test Store" {
		t.Errorf("body = %+v", body)
	}
}

func TestExtractReceipt_MissingFilePart(t *testing.T) {
	h := newTestServer(t, nil, nil, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartUpload(t, "attachment", "scan.jpg", []byte("x")))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	var body receipt.Result
	decodeBody(t, rr, &body)
	if body.Message != "No file part in the request" {
		t.Errorf("message = %q", body.Message)
	}
}

func TestExtractReceipt_DisallowedExtension(t *testing.T) {
	e := &fakeExtractor{}
	h := newTestServer(t, nil, e, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartUpload(t, "file", "scan.pdf", []byte("x")))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if e.gotFilename != "" {
		t.Errorf("extractor invoked for disallowed extension")
	}
	var body receipt.Result
	decodeBody(t, rr, &body)
	if !strings.Contains(body.Message, "Invalid file type") {
		t.Errorf("message = %q", body.Message)
	}
}

func TestExtractReceipt_PipelineErrorIs500(t *testing.T) {
	e := &fakeExtractor{result: receipt.Result{Status: "error", Message: "Extraction failed: api unreachable"}}
	h := newTestServer(t, nil, e, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartUpload(t, "file", "scan.png", []byte("x")))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestTransactions_PassesBoundsAndWrapsList(t *testing.T) {
	l := &fakeLister{txs: []finance.Transaction{
		{ID: 1, Date: "2023-01-05", Description: "Salary", Amount: 5000, Type: "income"},
	}}
	h := newTestServer(t, nil, nil, l)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet,
		"/api/transactions?start_date=2023-01-01&end_date=2023-01-31", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if l.gotStart != "2023-01-01" || l.gotEnd != "2023-01-31" {
		t.Errorf("bounds = %q..%q", l.gotStart, l.gotEnd)
	}
	var body struct {
		Transactions []finance.Transaction `json:"transactions"`
	}
	decodeBody(t, rr, &body)
	if len(body.Transactions) != 1 || body.Transactions[0].Description != "Salary" {
		t.Errorf("body = %+v", body)
	}
}

func TestTransactions_EmptyHistoryIsEmptyArray(t *testing.T) {
	h := newTestServer(t, nil, nil, &fakeLister{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"transactions":[]`) {
		t.Errorf("expected empty array, body = %s", rr.Body)
	}
}
