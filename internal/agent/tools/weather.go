package tools

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

const forecastDays = 3

type GetWeatherInput struct {
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	IncludeForecast bool    `json:"include_forecast,omitempty"`
}

type GetWeatherOutput struct {
	Summary  string   `json:"summary"`
	Forecast []string `json:"forecast,omitempty"`
}

type openMeteoResponse struct {
	CurrentWeather struct {
		Temperature   float64 `json:"temperature"`
		Windspeed     float64 `json:"windspeed"`
		Winddirection float64 `json:"winddirection"`
		Weathercode   int     `json:"weathercode"`
	} `json:"current_weather"`
	Daily struct {
		Time        []string  `json:"time"`
		TempMax     []float64 `json:"temperature_2m_max"`
		TempMin     []float64 `json:"temperature_2m_min"`
		Weathercode []int     `json:"weathercode"`
	} `json:"daily"`
}

// weatherCodeText maps WMO weather interpretation codes to readable labels.
var weatherCodeText = map[int]string{
	0:  "clear sky",
	1:  "mainly clear",
	2:  "partly cloudy",
	3:  "overcast",
	45: "fog",
	48: "depositing rime fog",
	51: "light drizzle",
	53: "moderate drizzle",
	55: "dense drizzle",
	61: "slight rain",
	63: "moderate rain",
	65: "heavy rain",
	71: "slight snow",
	73: "moderate snow",
	75: "heavy snow",
	80: "rain showers",
	81: "moderate rain showers",
	82: "violent rain showers",
	95: "thunderstorm",
}

func describeWeatherCode(code int) string {
	if text, ok := weatherCodeText[code]; ok {
		return text
	}
	return "unknown conditions"
}

func createWeatherTool(c *Client) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetWeather,
			Desc: "Get current weather conditions for a latitude/longitude pair, optionally with a short daily forecast. Coordinates usually come from geocode_place.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"latitude": {
					Type:     "number",
					Desc:     "Latitude in decimal degrees.",
					Required: true,
				},
				"longitude": {
					Type:     "number",
					Desc:     "Longitude in decimal degrees.",
					Required: true,
				},
				"include_forecast": {
					Type: "boolean",
					Desc: "Set true to also return a 3-day forecast.",
				},
			}),
		},
		func(ctx context.Context, in *GetWeatherInput) (*GetWeatherOutput, error) {
			params := url.Values{}
			params.Set("latitude", strconv.FormatFloat(in.Latitude, 'f', -1, 64))
			params.Set("longitude", strconv.FormatFloat(in.Longitude, 'f', -1, 64))
			params.Set("current_weather", "true")
			if in.IncludeForecast {
				params.Set("daily", "weathercode,temperature_2m_max,temperature_2m_min")
				params.Set("forecast_days", fmt.Sprint(forecastDays))
				params.Set("timezone", "auto")
			}

			var res openMeteoResponse
			if err := c.getJSON(ctx, c.cfg.OpenMeteoURL, params, &res); err != nil {
				return nil, fmt.Errorf("weather lookup failed: %w", err)
			}

			cw := res.CurrentWeather
			out := &GetWeatherOutput{
				Summary: fmt.Sprintf("Current: %.1f°C, %s, wind %.0f km/h (direction %.0f°)",
					cw.Temperature, describeWeatherCode(cw.Weathercode), cw.Windspeed, cw.Winddirection),
			}

			if in.IncludeForecast {
				for i, day := range res.Daily.Time {
					if i >= len(res.Daily.TempMin) || i >= len(res.Daily.TempMax) || i >= len(res.Daily.Weathercode) {
						break
					}
					out.Forecast = append(out.Forecast, fmt.Sprintf("%s: %s, %.1f°C to %.1f°C",
						day, describeWeatherCode(res.Daily.Weathercode[i]), res.Daily.TempMin[i], res.Daily.TempMax[i]))
				}
			}

			if len(out.Forecast) > 0 {
				out.Summary += "\nForecast:\n" + strings.Join(out.Forecast, "\n")
			}
			return out, nil
		},
	)
}
