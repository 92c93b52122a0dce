package api

import (
	"time"

	"privacy-score/backend/internal/scoring"
	"privacy-score/backend/internal/store"
)

// FetchRequest asks for the compliance score of a site, analysing it if not cached.
type FetchRequest struct {
	URL     string `json:"url"`
	Profile string `json:"profile"`
}

// FetchResponse carries the score and the analysis document it was computed from.
type FetchResponse struct {
	PrivacyScore float64        `json:"privacy_score"`
	Profile      string         `json:"profile"`
	Source       string         `json:"source"`
	URL          string         `json:"url"`
	CachedAt     *time.Time     `json:"cached_at,omitempty"`
	Report       scoring.Report `json:"report"`
	APIResponse  map[string]any `json:"api_response,omitempty"`
	Warning      string         `json:"warning,omitempty"`
}

// ScoreResponse is returned when scoring a supplied document.
type ScoreResponse struct {
	PrivacyScore float64        `json:"privacy_score"`
	Profile      string         `json:"profile"`
	Report       scoring.Report `json:"report"`
}

// ScoreRecordDTO is the API representation of a persisted report.
type ScoreRecordDTO struct {
	ID               uint           `json:"id"`
	URL              string         `json:"url"`
	Host             string         `json:"host"`
	Profile          string         `json:"profile"`
	ComplianceScore  float64        `json:"compliance_score"`
	Source           string         `json:"source"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	CreatedAt        time.Time      `json:"created_at"`
	Report           map[string]any `json:"report,omitempty"`
}

// CachedURLDTO summarizes one cached analysis.
type CachedURLDTO struct {
	URL      string    `json:"url"`
	Host     string    `json:"host"`
	CachedAt time.Time `json:"cached_at"`
}

// DatabaseInfoDTO describes the backing database.
type DatabaseInfoDTO struct {
	ConnectionStatus string  `json:"connection_status"`
	Path             string  `json:"path"`
	SQLiteVersion    string  `json:"sqlite_version"`
	DatabaseSizeMB   float64 `json:"database_size_mb"`
	StorageSizeMB    float64 `json:"storage_size_mb"`
	DocumentCount    int64   `json:"document_count"`
	ScoreCount       int64   `json:"score_count"`
	Indexes          int64   `json:"indexes"`
}

// CacheStatsResponse reports cache size and the latest cached URLs.
type CacheStatsResponse struct {
	TotalCachedURLs  int64           `json:"total_cached_urls"`
	RecentCachedURLs []CachedURLDTO  `json:"recent_cached_urls"`
	DatabaseInfo     DatabaseInfoDTO `json:"database_info"`
}

func toScoreRecordDTO(r store.ScoreRecord, withReport bool) ScoreRecordDTO {
	dto := ScoreRecordDTO{
		ID:               r.ID,
		URL:              r.URL,
		Host:             r.Host,
		Profile:          r.Profile,
		ComplianceScore:  r.ComplianceScore,
		Source:           r.Source,
		ProcessingTimeMs: r.ProcessingTimeMs,
		CreatedAt:        r.CreatedAt,
	}
	if withReport {
		dto.Report = r.Report()
	}
	return dto
}

func toDatabaseInfo(stats store.Stats) DatabaseInfoDTO {
	return DatabaseInfoDTO{
		ConnectionStatus: "connected",
		Path:             stats.Path,
		SQLiteVersion:    stats.SQLiteVersion,
		DatabaseSizeMB:   megabytes(stats.DataSizeBytes),
		StorageSizeMB:    megabytes(stats.PageCount * stats.PageSize),
		DocumentCount:    stats.Analyses,
		ScoreCount:       stats.Scores,
		Indexes:          stats.IndexCount,
	}
}

func megabytes(bytes int64) float64 {
	mb := float64(bytes) / (1024 * 1024)
	return float64(int64(mb*100+0.5)) / 100
}
