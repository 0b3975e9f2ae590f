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

// maxResultRows caps how many bindings the summary includes.
const maxResultRows = 10

type QueryWikidataInput struct {
	Query string `json:"query"`
}

type QueryWikidataOutput struct {
	Vars    []string `json:"vars"`
	Count   int      `json:"count"`
	Summary string   `json:"summary"`
}

type sparqlBinding map[string]struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sparqlResults struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []sparqlBinding `json:"bindings"`
	} `json:"results"`
}

func createWikidataTool(c *Client) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolQueryWikidata,
			Desc: "Execute a read-only SPARQL SELECT query against the Wikidata knowledge graph. Use for structured facts: populations, dates, relationships between entities, lists filtered by properties. Queries must be read-only; write or admin operations are rejected.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "A complete SPARQL SELECT query. Example: SELECT ?population WHERE { wd:Q1490 wdt:P1082 ?population }",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *QueryWikidataInput) (*QueryWikidataOutput, error) {
			if strings.TrimSpace(in.Query) == "" {
				return nil, fmt.Errorf("query is required")
			}

			params := url.Values{}
			params.Set("query", in.Query)
			params.Set("format", "json")

			var res sparqlResults
			if err := c.getJSON(ctx, c.cfg.WikidataURL, params, &res); err != nil {
				return nil, fmt.Errorf("wikidata query failed: %w", err)
			}

			out := &QueryWikidataOutput{
				Vars:  res.Head.Vars,
				Count: len(res.Results.Bindings),
			}
			if out.Count == 0 {
				out.Summary = "No results found for this query."
				return out, nil
			}
			out.Summary = formatBindings(res.Head.Vars, res.Results.Bindings)
			return out, nil
		},
	)
}

func formatBindings(vars []string, bindings []sparqlBinding) string {
	shown := bindings
	if len(shown) > maxResultRows {
		shown = shown[:maxResultRows]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d result(s) (showing up to %d):\n", len(bindings), maxResultRows)
	for _, row := range shown {
		fields := make([]string, 0, len(vars))
		for _, v := range vars {
			if cell, ok := row[v]; ok {
				fields = append(fields, v+": "+cell.Value)
			}
		}
		b.WriteString(strings.Join(fields, " | "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
