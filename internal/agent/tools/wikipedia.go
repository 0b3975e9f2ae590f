package tools

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

type WikipediaSummaryInput struct {
	Topic string `json:"topic"`
}

type WikipediaSummaryOutput struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
	URL     string `json:"url,omitempty"`
	Summary string `json:"summary"`
}

type wikipediaSummary struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

func createWikipediaTool(c *Client) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolWikipediaSummary,
			Desc: "Fetch the lead summary of a Wikipedia article. Use for background prose about a person, place, event or concept when structured data is not needed.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"topic": {
					Type:     "string",
					Desc:     "The article title, e.g. \"Tokyo\" or \"Marie Curie\". Use the common English name of the topic.",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *WikipediaSummaryInput) (*WikipediaSummaryOutput, error) {
			topic := strings.TrimSpace(in.Topic)
			if topic == "" {
				return nil, fmt.Errorf("topic is required")
			}

			// The REST API addresses articles by underscore-normalized title.
			title := url.PathEscape(strings.ReplaceAll(topic, " ", "_"))

			var res wikipediaSummary
			err := c.getJSON(ctx, c.cfg.WikipediaURL+"/"+title, nil, &res)
			if err != nil {
				if errors.Is(err, errNotFound) {
					return nil, fmt.Errorf("no Wikipedia article found for %q", topic)
				}
				return nil, fmt.Errorf("wikipedia lookup failed: %w", err)
			}

			out := &WikipediaSummaryOutput{
				Title:   res.Title,
				Extract: res.Extract,
				URL:     res.ContentURLs.Desktop.Page,
			}
			out.Summary = res.Title + ": " + res.Extract
			if out.URL != "" {
				out.Summary += "\nSource: " + out.URL
			}
			return out, nil
		},
	)
}
