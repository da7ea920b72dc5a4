package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/banquet-labs/banquet/featurestore"
	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/jsonutil"
	"github.com/banquet-labs/banquet/lib/telemetry/metrics"
	"github.com/banquet-labs/banquet/lib/typing"
	"github.com/banquet-labs/banquet/models"
	"github.com/banquet-labs/banquet/registry"
	"github.com/banquet-labs/banquet/stores/offline/file"
	"github.com/banquet-labs/banquet/stores/online/memory"
)

const driverStatsCSV = `driver_id,conv_rate,trips,event_timestamp
1001,0.80,10,2024-01-01T00:00:00Z
1002,0.40,3,2024-01-01T06:00:00Z
`

func testContents() models.RepoContents {
	batchSource := models.DataSource{
		Name:           "driver_stats_source",
		Type:           models.FileSource,
		TimestampField: "event_timestamp",
		Path:           "driver_stats.csv",
	}
	pushSource := models.DataSource{
		Name:        "driver_stats_push",
		Type:        models.PushSource,
		BatchSource: &batchSource,
	}

	return models.RepoContents{
		Project: "rideshare",
		Entities: []models.Entity{
			{Name: "driver", JoinKey: "driver_id", ValueType: typing.String},
		},
		DataSources: []models.DataSource{batchSource, pushSource},
		FeatureViews: []models.FeatureView{
			{
				Name:     "driver_hourly_stats",
				Entities: []string{"driver"},
				Features: []models.Feature{
					{Name: "conv_rate", ValueType: typing.Float64},
					{Name: "trips", ValueType: typing.Int64},
				},
				Online:       true,
				BatchSource:  batchSource,
				StreamSource: &pushSource,
			},
		},
	}
}

func testServer(t *testing.T, serverCfg config.FeatureServer) *Server {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "driver_stats.csv"), []byte(driverStatsCSV), 0o644))

	cfg := config.Config{
		Project:  "rideshare",
		Provider: "local",
		Registry: config.Registry{Path: filepath.Join(dir, "registry.json")},
	}

	reg := registry.NewWithStore("rideshare", registry.NewFileStore(cfg.Registry.Path), 0)
	fs := featurestore.NewWithStores(cfg, reg, memory.NewStore(), file.NewStore(dir), metrics.NullMetricsProvider{})

	ctx := context.Background()
	_, err := fs.Apply(ctx, testContents(), false)
	assert.NoError(t, err)
	assert.NoError(t, fs.Materialize(ctx,
		nil,
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	))

	return NewServer(fs, serverCfg)
}

func postJSON(t *testing.T, handler http.Handler, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestServer_Health(t *testing.T) {
	router := testServer(t, config.FeatureServer{}).Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	var body map[string]string
	assert.NoError(t, jsonutil.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "rideshare", body["project"])
}

func TestServer_GetOnlineFeatures(t *testing.T) {
	router := testServer(t, config.FeatureServer{}).Router()

	recorder := postJSON(t, router, "/get-online-features", `{
		"features": ["driver_hourly_stats:conv_rate", "driver_hourly_stats:trips"],
		"entities": {"driver_id": ["1001", "9999"]}
	}`, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	var response getOnlineFeaturesResponse
	assert.NoError(t, jsonutil.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, []string{"conv_rate", "trips"}, response.Metadata.FeatureNames)
	assert.Len(t, response.Results, 2)

	convRate := response.Results[0]
	assert.Equal(t, 0.80, convRate.Values[0])
	assert.Nil(t, convRate.Values[1])
	assert.Equal(t, []string{"PRESENT", "NOT_FOUND"}, convRate.Statuses)
	assert.Equal(t, "2024-01-01T00:00:00Z", convRate.EventTimestamps[0])
	assert.Empty(t, convRate.EventTimestamps[1])
}

func TestServer_GetOnlineFeatures_BadRequest(t *testing.T) {
	router := testServer(t, config.FeatureServer{}).Router()

	{
		// Malformed JSON.
		recorder := postJSON(t, router, "/get-online-features", `{`, nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	}
	{
		// Unknown feature view.
		recorder := postJSON(t, router, "/get-online-features", `{
			"features": ["missing_view:conv_rate"],
			"entities": {"driver_id": ["1001"]}
		}`, nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)

		var body errorResponse
		assert.NoError(t, jsonutil.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Contains(t, body.Error, "missing_view")
	}
	{
		// Unknown feature service.
		recorder := postJSON(t, router, "/get-online-features", `{
			"featureService": "missing_service",
			"entities": {"driver_id": ["1001"]}
		}`, nil)
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	}
}

func TestServer_Push(t *testing.T) {
	router := testServer(t, config.FeatureServer{}).Router()

	recorder := postJSON(t, router, "/push", `{
		"source": "driver_stats_push",
		"rows": [{"driver_id": "1001", "conv_rate": 0.95, "trips": 20, "event_timestamp": "2024-02-01T00:00:00Z"}]
	}`, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	// The pushed row is immediately readable online.
	recorder = postJSON(t, router, "/get-online-features", `{
		"features": ["driver_hourly_stats:conv_rate"],
		"entities": {"driver_id": ["1001"]}
	}`, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	var response getOnlineFeaturesResponse
	assert.NoError(t, jsonutil.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, 0.95, response.Results[0].Values[0])
}

func TestServer_Push_UnknownSource(t *testing.T) {
	router := testServer(t, config.FeatureServer{}).Router()

	recorder := postJSON(t, router, "/push", `{"source": "nope", "rows": [{"driver_id": "1"}]}`, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestServer_WriteToOnlineStore(t *testing.T) {
	router := testServer(t, config.FeatureServer{}).Router()

	recorder := postJSON(t, router, "/write-to-online-store", `{
		"featureView": "driver_hourly_stats",
		"rows": [{"driver_id": "1003", "conv_rate": 0.55, "trips": 7, "event_timestamp": "2024-02-01T00:00:00Z"}]
	}`, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = postJSON(t, router, "/get-online-features", `{
		"features": ["driver_hourly_stats:trips"],
		"entities": {"driver_id": ["1003"]}
	}`, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	var response getOnlineFeaturesResponse
	assert.NoError(t, jsonutil.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, float64(7), response.Results[0].Values[0])
}

func TestServer_Materialize(t *testing.T) {
	router := testServer(t, config.FeatureServer{}).Router()

	{
		recorder := postJSON(t, router, "/materialize", `{
			"start": "2023-01-01T00:00:00Z",
			"end": "2024-02-01T00:00:00Z"
		}`, nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
	}
	{
		// Missing timestamps.
		recorder := postJSON(t, router, "/materialize", `{}`, nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	}
	{
		recorder := postJSON(t, router, "/materialize-incremental", `{"end": "2024-02-02T00:00:00Z"}`, nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
	}
}

func TestServer_JWTAuth(t *testing.T) {
	const secret = "test-secret"
	router := testServer(t, config.FeatureServer{JWTSecret: secret}).Router()

	{
		// No token.
		recorder := postJSON(t, router, "/get-online-features", `{}`, nil)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	}
	{
		// Garbage token.
		recorder := postJSON(t, router, "/get-online-features", `{}`, map[string]string{"Authorization": "Bearer nonsense"})
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	}
	{
		// Token signed with the wrong key.
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("wrong-secret"))
		assert.NoError(t, err)

		recorder := postJSON(t, router, "/get-online-features", `{}`, map[string]string{"Authorization": "Bearer " + token})
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	}
	{
		// Valid token passes auth and reaches the handler.
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte(secret))
		assert.NoError(t, err)

		recorder := postJSON(t, router, "/get-online-features", `{
			"features": ["driver_hourly_stats:conv_rate"],
			"entities": {"driver_id": ["1001"]}
		}`, map[string]string{"Authorization": "Bearer " + token})
		assert.Equal(t, http.StatusOK, recorder.Code)
	}

	// The health check stays open.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestServer_RateLimit(t *testing.T) {
	router := testServer(t, config.FeatureServer{RequestsPerSecond: 1}).Router()

	body := `{
		"features": ["driver_hourly_stats:conv_rate"],
		"entities": {"driver_id": ["1001"]}
	}`

	// Burst is 2x the configured rate, so the third immediate request is rejected.
	assert.Equal(t, http.StatusOK, postJSON(t, router, "/get-online-features", body, nil).Code)
	assert.Equal(t, http.StatusOK, postJSON(t, router, "/get-online-features", body, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, postJSON(t, router, "/get-online-features", body, nil).Code)
}
