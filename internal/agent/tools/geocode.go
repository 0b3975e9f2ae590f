package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

// maxGeocodeCandidates bounds how many candidate locations are returned.
const maxGeocodeCandidates = 3

type GeocodePlaceInput struct {
	Place string `json:"place"`
}

type GeocodeCandidate struct {
	Name      string `json:"name"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

type GeocodePlaceOutput struct {
	Locations []GeocodeCandidate `json:"locations"`
	Summary   string             `json:"summary"`
}

type nominatimResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

func createGeocodeTool(c *Client) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGeocodePlace,
			Desc: "Resolve a free-text place description into candidate locations with latitude and longitude. Use before get_weather when only a place name is known.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"place": {
					Type:     "string",
					Desc:     "Free-text place description, e.g. \"Shibuya, Tokyo\" or \"Eiffel Tower\".",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *GeocodePlaceInput) (*GeocodePlaceOutput, error) {
			place := strings.TrimSpace(in.Place)
			if place == "" {
				return nil, fmt.Errorf("place is required")
			}

			params := url.Values{}
			params.Set("q", place)
			params.Set("format", "json")
			params.Set("limit", fmt.Sprint(maxGeocodeCandidates))

			var res []nominatimResult
			if err := c.getJSON(ctx, c.cfg.NominatimURL, params, &res); err != nil {
				return nil, fmt.Errorf("geocoding failed: %w", err)
			}

			out := &GeocodePlaceOutput{}
			if len(res) == 0 {
				out.Summary = fmt.Sprintf("No locations found for %q.", place)
				return out, nil
			}

			var lines []string
			for _, r := range res {
				out.Locations = append(out.Locations, GeocodeCandidate{
					Name:      r.DisplayName,
					Latitude:  r.Lat,
					Longitude: r.Lon,
				})
				lines = append(lines, fmt.Sprintf("%s (%s, %s)", r.DisplayName, r.Lat, r.Lon))
			}
			out.Summary = strings.Join(lines, "\n")
			return out, nil
		},
	)
}
