package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clony/backend/config"
	"github.com/clony/backend/internal/domain"
	"github.com/clony/backend/internal/infrastructure/registry"
	"github.com/clony/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"chrome-extension://*", "http://localhost:3000"},
		},
		Cache: config.CacheConfig{
			Type: "memory",
		},
		RateLimit: config.RateLimitConfig{
			PerIP: 1000,
		},
	}
}

// setupTestRouter creates a router without services; pipeline endpoints answer 503
func setupTestRouter() *gin.Engine {
	handler := NewHandler(nil, nil, nil)
	return SetupRouter(testConfig(), handler, nil)
}

// setupTestRouterWithServices wires the real pipeline over the embedded registry.
// A nil lookup keeps everything local.
func setupTestRouterWithServices(t *testing.T, lookup domain.IngredientLookup) *gin.Engine {
	t.Helper()
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("failed to load registry: %v", err)
	}

	logger := zap.NewNop()
	analyzer := usecase.NewAnalyzer(
		usecase.NewSegmenter(usecase.DefaultOCRMinConfidence, logger),
		usecase.NewCorrector(reg, lookup, usecase.CorrectorConfig{}, logger),
		usecase.NewScorer(reg),
		4,
		logger,
	)
	search := usecase.NewIngredientSearch(reg, lookup, logger)

	return SetupRouter(testConfig(), NewHandler(analyzer, search, logger), logger)
}

func doJSON(router *gin.Engine, method, path, payload string) *httptest.ResponseRecorder {
	var req *http.Request
	if payload == "" {
		req, _ = http.NewRequest(method, path, nil)
	} else {
		req, _ = http.NewRequest(method, path, strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body %s)", err, w.Body.String())
	}
}

// TestHealthCheckEndpoint tests the health check endpoint
func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router := setupTestRouter()

		w := doJSON(router, "GET", "/health", "")

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var response map[string]interface{}
		decode(t, w, &response)

		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "clony-backend" {
			t.Errorf("service = %v, want clony-backend", response["service"])
		}
		version, ok := response["version"].(string)
		if !ok || strings.TrimSpace(version) == "" {
			t.Errorf("version = %v, want non-empty string", response["version"])
		}
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter()

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			w := doJSON(router, method, "/health", "")
			if w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupTestRouterWithServices(t, nil)

	// Generate at least one observation
	doJSON(router, "GET", "/health", "")
	w := doJSON(router, "GET", "/metrics", "")

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "clony_http_request_duration_seconds") {
		t.Error("metrics output is missing the request duration histogram")
	}
}

func TestServicesNotConfigured(t *testing.T) {
	router := setupTestRouter()

	endpoints := []struct {
		method, path, payload string
	}{
		{"POST", "/api/v1/ingredients/segment", `{"text":"정제수"}`},
		{"POST", "/api/v1/ingredients/correct", `{"tokens":["정제수"]}`},
		{"POST", "/api/v1/analysis/text", `{"text":"정제수","skinType":"OSNW"}`},
		{"POST", "/api/v1/analysis/blocks", `{"blocks":[{"text":"정제수","confidence":0.9}],"skinType":"OSNW"}`},
		{"GET", "/api/v1/ingredients/search?query=정제수", ""},
	}

	for _, e := range endpoints {
		t.Run(e.method+" "+e.path, func(t *testing.T) {
			w := doJSON(router, e.method, e.path, e.payload)

			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("Status = %d, want %d", w.Code, http.StatusServiceUnavailable)
			}
			var response map[string]interface{}
			decode(t, w, &response)
			if msg, _ := response["error"].(string); !strings.Contains(msg, "not configured") {
				t.Errorf("error = %q, want to contain 'not configured'", msg)
			}
		})
	}
}

func TestSegmentEndpoint(t *testing.T) {
	router := setupTestRouterWithServices(t, nil)

	t.Run("returns cleaned tokens", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/ingredients/segment",
			`{"text":"전성분: 정제수, 글리세린\n사용 시 주의사항, 판테놀"}`)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		var response struct {
			Tokens []string `json:"tokens"`
		}
		decode(t, w, &response)

		want := []string{"정제수", "글리세린", "판테놀"}
		if strings.Join(response.Tokens, "|") != strings.Join(want, "|") {
			t.Errorf("tokens = %v, want %v", response.Tokens, want)
		}
	})

	t.Run("noise-only text yields an empty list", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/ingredients/segment", `{"text":"www.clony.co.kr"}`)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if !strings.Contains(w.Body.String(), `"tokens":[]`) {
			t.Errorf("body = %s, want an empty token list", w.Body.String())
		}
	})

	t.Run("returns 400 for missing text", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/ingredients/segment", `{}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestCorrectEndpoint(t *testing.T) {
	router := setupTestRouterWithServices(t, nil)

	t.Run("corrects tokens in order", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/ingredients/correct", `{"tokens":["판데놀","정제수","zqx"]}`)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		var response struct {
			Ingredients []domain.CorrectedIngredient `json:"ingredients"`
		}
		decode(t, w, &response)

		if len(response.Ingredients) != 3 {
			t.Fatalf("got %d ingredients, want 3", len(response.Ingredients))
		}
		if response.Ingredients[0].Name != "판테놀" || response.Ingredients[0].Source != domain.SourceFuzzy {
			t.Errorf("ingredients[0] = %+v, want fuzzy 판테놀", response.Ingredients[0])
		}
		if response.Ingredients[1].Source != domain.SourceExact {
			t.Errorf("ingredients[1] = %+v, want exact", response.Ingredients[1])
		}
		if response.Ingredients[2].Matched {
			t.Errorf("ingredients[2] = %+v, want unmatched", response.Ingredients[2])
		}
	})

	t.Run("rejects oversized batches", func(t *testing.T) {
		tokens := make([]string, maxTokensPerRequest+1)
		for i := range tokens {
			tokens[i] = "정제수"
		}
		body, _ := json.Marshal(CorrectRequest{Tokens: tokens})

		w := doJSON(router, "POST", "/api/v1/ingredients/correct", string(body))
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("returns 400 for invalid JSON", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/ingredients/correct", `{"tokens":`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestAnalyzeTextEndpoint(t *testing.T) {
	router := setupTestRouterWithServices(t, nil)

	t.Run("returns a full report", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/analysis/text",
			`{"text":"정제수, 글리세린, 나이아신아마이드, 레티놀","skinType":"osnw"}`)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
		}
		var report domain.AnalysisReport
		decode(t, w, &report)

		if len(report.Tokens) != 4 {
			t.Errorf("tokens = %v, want 4", report.Tokens)
		}
		if report.Result.SkinType != "OSNW" {
			t.Errorf("skinType = %q, want normalized OSNW", report.Result.SkinType)
		}
		if report.Result.Score < 60 || report.Result.Score > 100 {
			t.Errorf("score = %d, want within [60, 100]", report.Result.Score)
		}
		if report.Result.UsageGuide.Time != domain.TimeNight {
			t.Errorf("usage time = %q, want Night", report.Result.UsageGuide.Time)
		}
	})

	invalid := []struct {
		name    string
		payload string
	}{
		{"missing skin type", `{"text":"정제수"}`},
		{"short skin type", `{"text":"정제수","skinType":"OS"}`},
		{"letter on the wrong axis", `{"text":"정제수","skinType":"SONW"}`},
		{"missing text", `{"skinType":"OSNW"}`},
	}
	for _, tt := range invalid {
		t.Run("returns 400 for "+tt.name, func(t *testing.T) {
			w := doJSON(router, "POST", "/api/v1/analysis/text", tt.payload)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			var response map[string]interface{}
			decode(t, w, &response)
			if response["error"] == nil {
				t.Error("expected error field in response")
			}
		})
	}
}

func TestAnalyzeBlocksEndpoint(t *testing.T) {
	router := setupTestRouterWithServices(t, nil)

	t.Run("drops low-confidence blocks", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/analysis/blocks", `{
			"skinType": "DRNT",
			"blocks": [
				{"text": "정제수 · 글리세린", "confidence": 0.92},
				{"text": "레티놀", "confidence": 0.35},
				{"text": "판테놀/알란토인", "confidence": 0.8}
			]}`)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
		}
		var report domain.AnalysisReport
		decode(t, w, &report)

		want := []string{"정제수", "글리세린", "판테놀", "알란토인"}
		if strings.Join(report.Tokens, "|") != strings.Join(want, "|") {
			t.Errorf("tokens = %v, want %v", report.Tokens, want)
		}
		if report.Result.UsageGuide.Time == domain.TimeNight {
			t.Error("usage time is Night although the retinol block was dropped")
		}
	})

	t.Run("returns 400 for a block without text", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/analysis/blocks",
			`{"skinType":"DRNT","blocks":[{"confidence":0.9}]}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// stubLookup answers every query with the same record
type stubLookup struct {
	record *domain.CanonicalRecord
}

func (s stubLookup) Lookup(ctx context.Context, name string) (*domain.CanonicalRecord, error) {
	if s.record == nil {
		return nil, domain.ErrIngredientNotFound
	}
	return s.record, nil
}

func TestSearchEndpoint(t *testing.T) {
	t.Run("local fuzzy results", func(t *testing.T) {
		router := setupTestRouterWithServices(t, stubLookup{})

		w := doJSON(router, "GET", "/api/v1/ingredients/search?query=판데놀", "")

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		var response struct {
			Query   string             `json:"query"`
			Count   int                `json:"count"`
			Results []domain.SearchHit `json:"results"`
		}
		decode(t, w, &response)

		if response.Count == 0 || response.Results[0].Name != "판테놀" {
			t.Fatalf("results = %+v, want 판테놀 first", response.Results)
		}
		if response.Results[0].Source != usecase.SearchSourceLocal {
			t.Errorf("source = %q, want local", response.Results[0].Source)
		}
	})

	t.Run("remote record wins", func(t *testing.T) {
		router := setupTestRouterWithServices(t, stubLookup{record: &domain.CanonicalRecord{
			IngdName:    "카보머",
			IngdEngName: "Carbomer",
		}})

		w := doJSON(router, "GET", "/api/v1/ingredients/search?query=카보머", "")

		var response struct {
			Results []domain.SearchHit `json:"results"`
		}
		decode(t, w, &response)
		if len(response.Results) != 1 || response.Results[0].Source != usecase.SearchSourceRemote {
			t.Errorf("results = %+v, want one remote hit", response.Results)
		}
	})

	t.Run("returns 400 for an empty query", func(t *testing.T) {
		router := setupTestRouterWithServices(t, nil)

		w := doJSON(router, "GET", "/api/v1/ingredients/search?query=%20", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestCORSIntegration(t *testing.T) {
	router := setupTestRouter()

	t.Run("health endpoint has CORS for Chrome extension", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/health", nil)
		req.Header.Set("Origin", "chrome-extension://abcdefg")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Header().Get("Access-Control-Allow-Origin") != "chrome-extension://abcdefg" {
			t.Errorf("Access-Control-Allow-Origin = %q", w.Header().Get("Access-Control-Allow-Origin"))
		}
	})

	t.Run("preflight on analysis endpoint", func(t *testing.T) {
		req, _ := http.NewRequest("OPTIONS", "/api/v1/analysis/text", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNoContent)
		}
	})
}

func TestAPIRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.PerIP = 1
	router := SetupRouter(cfg, NewHandler(nil, nil, nil), nil)

	doJSON(router, "GET", "/api/v1/ingredients/search?query=x", "")
	w := doJSON(router, "GET", "/api/v1/ingredients/search?query=x", "")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	// Health checks bypass the limiter
	if w := doJSON(router, "GET", "/health", ""); w.Code != http.StatusOK {
		t.Errorf("health Status = %d, want %d", w.Code, http.StatusOK)
	}
}
