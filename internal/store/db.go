package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"privacy-score/backend/internal/match"
)

// ErrNotFound is returned when no cached analysis exists for a URL.
var ErrNotFound = errors.New("analysis not cached")

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	path string
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&CachedAnalysis{}, &ScoreRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db, path: path}, nil
}

// Path returns the SQLite file backing the database.
func (d *Database) Path() string {
	return d.path
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database connection is usable.
func (d *Database) Ping() error {
	if d == nil {
		return errors.New("database is nil")
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// GetAnalysis returns the cached analysis for the URL or ErrNotFound.
func (d *Database) GetAnalysis(url string) (*CachedAnalysis, error) {
	key := match.NormalizeSite(url).Key
	if key == "" {
		return nil, errors.New("url is empty")
	}
	var entry CachedAnalysis
	err := d.gorm.Where("url = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// SaveAnalysis inserts or replaces the cached analysis for entry.URL.
func (d *Database) SaveAnalysis(entry *CachedAnalysis) error {
	if entry == nil {
		return errors.New("analysis is nil")
	}
	site := match.NormalizeSite(entry.URL)
	if site.Key == "" {
		return errors.New("analysis url is empty")
	}
	entry.URL = site.Key
	entry.URLHash = match.Hash(site.Key)
	entry.Host = site.Host
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{"url_hash", "host", "document_json", "cached_at", "updated_at"}),
	}).Create(entry).Error
}

// DeleteAnalysis removes the cached analysis matching the URL or its hash and reports
// how many rows were removed.
func (d *Database) DeleteAnalysis(url string) (int64, error) {
	key := match.NormalizeSite(url).Key
	if key == "" {
		return 0, errors.New("url is empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	res := d.gorm.Where("url = ? OR url_hash = ?", key, match.Hash(key)).Delete(&CachedAnalysis{})
	return res.RowsAffected, res.Error
}

// ClearAnalyses removes every cached analysis.
func (d *Database) ClearAnalyses() (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := d.gorm.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&CachedAnalysis{})
	return res.RowsAffected, res.Error
}

// CountAnalyses returns the number of cached analyses.
func (d *Database) CountAnalyses() (int64, error) {
	var count int64
	if err := d.gorm.Model(&CachedAnalysis{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// RecentAnalyses returns the most recently cached entries without their documents.
func (d *Database) RecentAnalyses(limit int) ([]CachedAnalysis, error) {
	if limit <= 0 {
		limit = 5
	}
	var rows []CachedAnalysis
	err := d.gorm.Model(&CachedAnalysis{}).
		Select("url", "url_hash", "host", "cached_at", "updated_at").
		Order("cached_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveScore persists a computed report.
func (d *Database) SaveScore(record *ScoreRecord) error {
	if record == nil {
		return errors.New("score record is nil")
	}
	site := match.NormalizeSite(record.URL)
	record.URL = site.Key
	record.Host = site.Host
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(record).Error
}

// ScoreQuery filters and paginates persisted reports.
type ScoreQuery struct {
	URL    string
	Host   string
	Offset int
	Limit  int
}

// ListScores returns persisted reports, newest first.
func (d *Database) ListScores(opts ScoreQuery) ([]ScoreRecord, int64, error) {
	base := d.gorm.Model(&ScoreRecord{})
	if key := match.NormalizeSite(opts.URL).Key; key != "" {
		base = base.Where("url = ?", key)
	}
	if host := strings.ToLower(strings.TrimSpace(opts.Host)); host != "" {
		base = base.Where("host = ?", host)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base.Order("created_at DESC, id DESC").Offset(opts.Offset)
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	var rows []ScoreRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Stats summarizes database size and row counts.
type Stats struct {
	Path          string
	Analyses      int64
	Scores        int64
	PageCount     int64
	PageSize      int64
	FreelistPages int64
	DataSizeBytes int64
	IndexCount    int64
	SQLiteVersion string
}

// Stats gathers row counts and storage figures from SQLite pragmas.
func (d *Database) Stats() (Stats, error) {
	stats := Stats{Path: d.path}
	var err error
	if stats.Analyses, err = d.CountAnalyses(); err != nil {
		return stats, err
	}
	if err := d.gorm.Model(&ScoreRecord{}).Count(&stats.Scores).Error; err != nil {
		return stats, err
	}
	if err := d.gorm.Raw("PRAGMA page_count").Scan(&stats.PageCount).Error; err != nil {
		return stats, err
	}
	if err := d.gorm.Raw("PRAGMA page_size").Scan(&stats.PageSize).Error; err != nil {
		return stats, err
	}
	if err := d.gorm.Raw("PRAGMA freelist_count").Scan(&stats.FreelistPages).Error; err != nil {
		return stats, err
	}
	if err := d.gorm.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'index'").Scan(&stats.IndexCount).Error; err != nil {
		return stats, err
	}
	if err := d.gorm.Raw("SELECT sqlite_version()").Scan(&stats.SQLiteVersion).Error; err != nil {
		return stats, err
	}
	stats.DataSizeBytes = (stats.PageCount - stats.FreelistPages) * stats.PageSize
	return stats, nil
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_score_records_url_created ON score_records(url, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_cached_analyses_host_cached ON cached_analyses(host, cached_at)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
