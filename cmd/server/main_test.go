package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rulebacktest/services/backtest"
	"rulebacktest/services/config"
)

func testRouter() (*server, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	srv := newServer(config.Default(), zap.NewNop())
	router := gin.New()
	srv.routes(router)
	return srv, router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func inlineBars(closes ...float64) []barJSON {
	bars := make([]barJSON, len(closes))
	for i, c := range closes {
		bars[i] = barJSON{
			Date: fmt.Sprintf("2024-01-%02d", i+1),
			Open: c, High: c, Low: c, Close: c, Volume: 1000,
		}
	}
	return bars
}

func TestScreenBatchInlineFrames(t *testing.T) {
	_, router := testRouter()
	w := postJSON(t, router, "/api/v1/screen/batch", gin.H{
		"rule": "close > 100",
		"frames": gin.H{
			"AAA": inlineBars(90, 110),
			"BBB": inlineBars(50, 60),
			"CCC": inlineBars(200, 210),
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Results map[string]struct {
			Total   int `json:"total_bars"`
			Matches []struct {
				Index int `json:"index"`
			} `json:"matches"`
		} `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(resp.Results))
	}
	if len(resp.Results["AAA"].Matches) != 1 || len(resp.Results["BBB"].Matches) != 0 || len(resp.Results["CCC"].Matches) != 2 {
		t.Fatalf("matches = %d/%d/%d", len(resp.Results["AAA"].Matches),
			len(resp.Results["BBB"].Matches), len(resp.Results["CCC"].Matches))
	}
}

func TestScreenBatchBadRule(t *testing.T) {
	_, router := testRouter()
	w := postJSON(t, router, "/api/v1/screen/batch", gin.H{
		"rule":   "close >",
		"frames": gin.H{"AAA": inlineBars(100)},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestScreenBatchNoStoreNoFrames(t *testing.T) {
	_, router := testRouter()
	w := postJSON(t, router, "/api/v1/screen/batch", gin.H{"rule": "close > 100"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestRecentOutcomesBounded(t *testing.T) {
	srv, _ := testRouter()
	for i := 0; i < maxRecent+10; i++ {
		srv.remember(fmt.Sprintf("job-%d", i), &backtest.Outcome{})
	}
	if len(srv.recent) != maxRecent || len(srv.order) != maxRecent {
		t.Fatalf("kept %d outcomes (%d ids), want %d", len(srv.recent), len(srv.order), maxRecent)
	}
	if _, ok := srv.lookup("job-0"); ok {
		t.Fatal("oldest job should have been evicted")
	}
	if _, ok := srv.lookup(fmt.Sprintf("job-%d", maxRecent+9)); !ok {
		t.Fatal("newest job missing")
	}
}
