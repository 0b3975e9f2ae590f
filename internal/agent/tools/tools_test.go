package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-navigator/server/internal/agent/model"
)

func testClient(serverURL string) *Client {
	return NewClient(model.AgentsConfig{
		WikidataURL:    serverURL + "/sparql",
		WikipediaURL:   serverURL + "/summary",
		NominatimURL:   serverURL + "/search",
		OpenMeteoURL:   serverURL + "/forecast",
		TimeoutSeconds: 5,
		UserAgent:      "knowledge-navigator-test/1.0",
	})
}

func invoke(t *testing.T, bt tool.BaseTool, args string) (string, error) {
	t.Helper()
	inv, ok := bt.(tool.InvokableTool)
	require.True(t, ok, "tool must be invokable")
	return inv.InvokableRun(context.Background(), args)
}

func TestWikidataToolFormatsBindings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sparql", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.NotEmpty(t, r.URL.Query().Get("query"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"head": map[string]any{"vars": []string{"city", "population"}},
			"results": map[string]any{
				"bindings": []map[string]any{
					{
						"city":       map[string]string{"type": "literal", "value": "Tokyo"},
						"population": map[string]string{"type": "literal", "value": "13960000"},
					},
				},
			},
		})
	}))
	defer srv.Close()

	out, err := invoke(t, createWikidataTool(testClient(srv.URL)),
		`{"query":"SELECT ?city ?population WHERE { ?c wdt:P1082 ?population }"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Tokyo")
	assert.Contains(t, out, "13960000")
	assert.Contains(t, out, "Found 1 result(s)")
}

func TestWikidataToolNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"head":    map[string]any{"vars": []string{"x"}},
			"results": map[string]any{"bindings": []any{}},
		})
	}))
	defer srv.Close()

	out, err := invoke(t, createWikidataTool(testClient(srv.URL)), `{"query":"SELECT ?x WHERE { }"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "No results found")
}

func TestWikidataToolUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "query timed out", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := invoke(t, createWikidataTool(testClient(srv.URL)), `{"query":"SELECT ?x WHERE { }"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestWikipediaToolSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/summary/Marie_Curie", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"title":   "Marie Curie",
			"extract": "Marie Curie was a physicist and chemist.",
			"content_urls": map[string]any{
				"desktop": map[string]string{"page": "https://en.wikipedia.org/wiki/Marie_Curie"},
			},
		})
	}))
	defer srv.Close()

	out, err := invoke(t, createWikipediaTool(testClient(srv.URL)), `{"topic":"Marie Curie"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Marie Curie")
	assert.Contains(t, out, "physicist")
	assert.Contains(t, out, "en.wikipedia.org/wiki/Marie_Curie")
}

func TestWikipediaToolArticleNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := invoke(t, createWikipediaTool(testClient(srv.URL)), `{"topic":"Nonexistent Topic Xyz"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Wikipedia article found")
}

func TestGeocodeToolCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Tokyo", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"display_name": "Tokyo, Japan", "lat": "35.6768601", "lon": "139.7638947"},
		})
	}))
	defer srv.Close()

	out, err := invoke(t, createGeocodeTool(testClient(srv.URL)), `{"place":"Tokyo"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Tokyo, Japan")
	assert.Contains(t, out, "35.6768601")
}

func TestGeocodeToolNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]any{})
	}))
	defer srv.Close()

	out, err := invoke(t, createGeocodeTool(testClient(srv.URL)), `{"place":"xyzzyplugh"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "No locations found")
}

func TestWeatherToolCurrentConditions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("current_weather"))
		assert.Empty(t, r.URL.Query().Get("daily"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"current_weather": map[string]any{
				"temperature":   21.4,
				"windspeed":     13.0,
				"winddirection": 220.0,
				"weathercode":   0,
			},
		})
	}))
	defer srv.Close()

	out, err := invoke(t, createWeatherTool(testClient(srv.URL)), `{"latitude":35.68,"longitude":139.76}`)
	require.NoError(t, err)
	assert.Contains(t, out, "21.4")
	assert.Contains(t, out, "clear sky")
}

func TestWeatherToolWithForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("forecast_days"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"current_weather": map[string]any{
				"temperature":   18.0,
				"windspeed":     9.0,
				"winddirection": 180.0,
				"weathercode":   61,
			},
			"daily": map[string]any{
				"time":               []string{"2026-09-01", "2026-09-02"},
				"temperature_2m_max": []float64{24.0, 22.5},
				"temperature_2m_min": []float64{17.0, 16.2},
				"weathercode":        []int{2, 61},
			},
		})
	}))
	defer srv.Close()

	out, err := invoke(t, createWeatherTool(testClient(srv.URL)),
		`{"latitude":35.68,"longitude":139.76,"include_forecast":true}`)
	require.NoError(t, err)
	assert.Contains(t, out, "slight rain")
	assert.Contains(t, out, "2026-09-01")
	assert.Contains(t, out, "partly cloudy")
}

func TestGetToolInfosCoversAllAgents(t *testing.T) {
	ts := NewQueryTools(testClient("http://localhost:0"))
	infos, err := GetToolInfos(context.Background(), ts)
	require.NoError(t, err)
	require.Len(t, infos, 4)

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.ElementsMatch(t, names,
		[]string{ToolQueryWikidata, ToolWikipediaSummary, ToolGeocodePlace, ToolGetWeather})
}
