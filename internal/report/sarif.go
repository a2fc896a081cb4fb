package report

import (
	"encoding/json"
	"io"

	"github.com/harrison/nbcelltests/internal/models"
)

// SARIF 2.1.0 document, reduced to the parts lint results need.
type sarifDocument struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema,omitempty"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type sarifResult struct {
	RuleID     string          `json:"ruleId"`
	Level      string          `json:"level"`
	Message    sarifMessage    `json:"message"`
	Locations  []sarifLocation `json:"locations,omitempty"`
	Properties map[string]any  `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

// SARIFBuilder collects lint results from any number of notebooks into one
// SARIF run. Passed checks are recorded with level "none".
type SARIFBuilder struct {
	doc *sarifDocument
}

// NewSARIFBuilder creates a builder for the given tool identity.
func NewSARIFBuilder(toolName, toolVersion string) *SARIFBuilder {
	return &SARIFBuilder{
		doc: &sarifDocument{
			Version: "2.1.0",
			Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json",
			Runs: []sarifRun{{
				Tool:    sarifTool{Driver: sarifDriver{Name: toolName, Version: toolVersion}},
				Results: []sarifResult{},
			}},
		},
	}
}

// AddLint adds the lint messages of one notebook.
func (b *SARIFBuilder) AddLint(notebookPath string, msgs []models.LintMessage) *SARIFBuilder {
	run := &b.doc.Runs[0]
	for _, m := range msgs {
		level := "error"
		if m.Passed {
			level = "none"
		}
		r := sarifResult{
			RuleID:  string(m.Type),
			Level:   level,
			Message: sarifMessage{Text: m.Message},
			Locations: []sarifLocation{{
				PhysicalLocation: sarifPhysical{ArtifactLocation: sarifArtifact{URI: notebookPath}},
			}},
		}
		if m.Cell > 0 {
			r.Properties = map[string]any{"cell": m.Cell}
		}
		run.Results = append(run.Results, r)
	}
	return b
}

// WriteTo writes the SARIF document as indented JSON to w.
func (b *SARIFBuilder) WriteTo(w io.Writer) (int64, error) {
	data, err := json.MarshalIndent(b.doc, "", "  ")
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	n, err := w.Write(data)
	return int64(n), err
}
