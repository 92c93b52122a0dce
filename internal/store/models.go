package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CachedAnalysis is the analysis document fetched for a site URL, kept so repeat
// requests are served without calling the analysis service again.
type CachedAnalysis struct {
	URL          string    `gorm:"primaryKey;size:2048"`
	URLHash      string    `gorm:"size:64;uniqueIndex"`
	Host         string    `gorm:"size:255;index"`
	DocumentJSON string    `gorm:"type:text"`
	CachedAt     time.Time `gorm:"index"`
	UpdatedAt    time.Time
}

// SetDocument stores the analysis document as JSON.
func (c *CachedAnalysis) SetDocument(doc map[string]any) error {
	if doc == nil {
		c.DocumentJSON = "{}"
		return nil
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal analysis document: %w", err)
	}
	c.DocumentJSON = string(payload)
	return nil
}

// Document decodes the stored analysis document. Numbers are kept as json.Number.
func (c *CachedAnalysis) Document() (map[string]any, error) {
	if strings.TrimSpace(c.DocumentJSON) == "" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(c.DocumentJSON)))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode analysis document: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// ScoreRecord is a persisted compliance report.
type ScoreRecord struct {
	ID               uint    `gorm:"primaryKey"`
	URL              string  `gorm:"size:2048;index"`
	Host             string  `gorm:"size:255;index"`
	Profile          string  `gorm:"size:32"`
	ComplianceScore  float64 `gorm:"index"`
	Source           string  `gorm:"size:32"`
	ReportJSON       string  `gorm:"type:text"`
	ProcessingTimeMs int64
	CreatedAt        time.Time `gorm:"autoCreateTime"`
}

// SetReport stores any JSON-serializable report payload.
func (r *ScoreRecord) SetReport(report any) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal score report: %w", err)
	}
	r.ReportJSON = string(payload)
	return nil
}

// Report returns the decoded report payload.
func (r *ScoreRecord) Report() map[string]any {
	if strings.TrimSpace(r.ReportJSON) == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(r.ReportJSON), &out); err != nil {
		return nil
	}
	return out
}
