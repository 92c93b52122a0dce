package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"privacy-score/backend/internal/analyzer"
	"privacy-score/backend/internal/scoring"
	"privacy-score/backend/internal/store"
)

const (
	sourceCache       = "cache"
	sourceFresh       = "fresh_api_call"
	sourceAPICallOnly = "api_call_only"
	sourceDirect      = "direct"

	maxDocumentBytes = 32 << 20
	serviceVersion   = "2.0.0"
)

// Config defines server dependencies.
type Config struct {
	DBPath         string
	SilentDB       bool
	AllowedOrigins []string
	Analyzer       analyzer.Config
	DefaultProfile string
}

// Server wires HTTP handlers with the document cache, analysis client and scorer.
type Server struct {
	db             *store.Database
	analyzer       analyzer.Analyzer
	analyzerURL    string
	allowedOrigins []string
	defaultProfile string
	notifier       *ScoreNotifier
	startedAt      time.Time
}

// NewServer opens the database and constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}
	client := analyzer.NewClient(cfg.Analyzer)
	logrus.WithFields(logrus.Fields{
		"endpoint": client.Endpoint(),
		"timeout":  cfg.Analyzer.Timeout,
	}).Info("analysis service configured")

	server, err := NewServerWithDeps(db, client, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	server.analyzerURL = client.Endpoint()
	return server, nil
}

// NewServerWithDeps builds a server around existing collaborators. The default
// profile must name a built-in profile.
func NewServerWithDeps(db *store.Database, a analyzer.Analyzer, cfg Config) (*Server, error) {
	profile, err := scoring.LoadProfile(cfg.DefaultProfile)
	if err != nil {
		return nil, fmt.Errorf("default profile: %w", err)
	}
	return &Server{
		db:             db,
		analyzer:       a,
		allowedOrigins: cfg.AllowedOrigins,
		defaultProfile: profile.Name,
		notifier:       NewScoreNotifier(),
		startedAt:      time.Now().UTC(),
	}, nil
}

// Close releases the database handle.
func (s *Server) Close() error {
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/", s.handleRoot)
	r.GET("/api/healthz", s.handleHealth)

	api := r.Group("/api")
	{
		api.POST("/fetch", s.handleFetch)
		api.POST("/score", s.handleScore)
		api.GET("/scores", s.handleListScores)
		api.GET("/scores/stream", s.handleScoreStream)
		api.GET("/cache/stats", s.handleCacheStats)
		api.DELETE("/cache/clear", s.handleClearCache)
		api.DELETE("/cache/url", s.handleClearURL)
		api.GET("/db/info", s.handleDatabaseInfo)
	}

	return r, nil
}

func (s *Server) handleRoot(c *gin.Context) {
	status := "connected"
	if err := s.db.Ping(); err != nil {
		status = "disconnected"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":         "Privacy compliance scoring API",
		"description":     "POST /api/fetch with {\"url\": \"https://example.com\"} to analyse and score a site",
		"database_status": status,
		"database_path":   s.db.Path(),
		"analyzer":        s.analyzerURL,
		"profiles":        scoring.ProfileNames(),
		"default_profile": s.defaultProfile,
		"version":         serviceVersion,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	dbStatus := "healthy"
	if err := s.db.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
	}
	status := http.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":         overall,
		"database":       dbStatus,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"ws_clients":     s.notifier.Clients(),
		"last_event":     s.notifier.LastEvent(),
	})
}

func (s *Server) handleFetch(c *gin.Context) {
	var req FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("url is required"))
		return
	}
	scorer, err := s.scorer(req.Profile)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	cached, err := s.db.GetAnalysis(url)
	switch {
	case err == nil:
		doc, decodeErr := cached.Document()
		if decodeErr != nil {
			s.renderError(c, http.StatusInternalServerError, decodeErr)
			return
		}
		report, scoreErr := scorer.Score(scoring.UnwrapDocument(doc))
		if scoreErr != nil {
			s.renderError(c, http.StatusUnprocessableEntity, scoreErr)
			return
		}
		cachedAt := cached.CachedAt
		s.recordScore(url, sourceCache, report, start)
		c.JSON(http.StatusOK, FetchResponse{
			PrivacyScore: report.ComplianceScore,
			Profile:      report.Profile,
			Source:       sourceCache,
			URL:          url,
			CachedAt:     &cachedAt,
			Report:       report,
			APIResponse:  doc,
		})
		return
	case !errors.Is(err, store.ErrNotFound):
		s.renderError(c, http.StatusInternalServerError, fmt.Errorf("database operation failed: %w", err))
		return
	}

	result, err := s.analyzer.Analyze(c.Request.Context(), url)
	if err != nil {
		logrus.WithError(err).WithField("url", url).Warn("analysis service call failed")
		s.renderError(c, http.StatusBadGateway, fmt.Errorf("failed to fetch analysis for url: %w", err))
		return
	}
	report, err := scorer.Score(scoring.UnwrapDocument(result.Document))
	if err != nil {
		s.renderError(c, http.StatusUnprocessableEntity, err)
		return
	}

	entry := &store.CachedAnalysis{URL: url, CachedAt: time.Now().UTC()}
	err = entry.SetDocument(result.Document)
	if err == nil {
		err = s.db.SaveAnalysis(entry)
	}
	if err != nil {
		logrus.WithError(err).WithField("url", url).Warn("cache analysis document")
		s.notify(url, sourceAPICallOnly, report)
		c.JSON(http.StatusOK, FetchResponse{
			PrivacyScore: report.ComplianceScore,
			Profile:      report.Profile,
			Source:       sourceAPICallOnly,
			URL:          url,
			Report:       report,
			APIResponse:  result.Document,
			Warning:      "failed to cache analysis: " + err.Error(),
		})
		return
	}

	s.recordScore(url, sourceFresh, report, start)
	c.JSON(http.StatusOK, FetchResponse{
		PrivacyScore: report.ComplianceScore,
		Profile:      report.Profile,
		Source:       sourceFresh,
		URL:          url,
		CachedAt:     &entry.CachedAt,
		Report:       report,
		APIResponse:  result.Document,
	})
}

func (s *Server) handleScore(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDocumentBytes))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	scorer, err := s.scorer(c.Query("profile"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	doc, err := scoring.DecodeDocument(body)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	report, err := scorer.Score(scoring.UnwrapDocument(doc))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if url, _ := report.Metadata["url"].(string); url != "" {
		s.notify(url, sourceDirect, report)
	}
	c.JSON(http.StatusOK, ScoreResponse{
		PrivacyScore: report.ComplianceScore,
		Profile:      report.Profile,
		Report:       report,
	})
}

func (s *Server) handleListScores(c *gin.Context) {
	limit := 50
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid limit: %s", v))
			return
		}
		if parsed > 500 {
			parsed = 500
		}
		limit = parsed
	}
	offset := 0
	if v := strings.TrimSpace(c.Query("offset")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid offset: %s", v))
			return
		}
		offset = parsed
	}
	withReport := strings.EqualFold(c.Query("report"), "true")

	rows, total, err := s.db.ListScores(store.ScoreQuery{
		URL:    c.Query("url"),
		Host:   c.Query("host"),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	items := make([]ScoreRecordDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, toScoreRecordDTO(row, withReport))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

func (s *Server) handleScoreStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("score websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("score websocket closed")
			} else {
				logrus.WithError(err).Warn("score websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) handleCacheStats(c *gin.Context) {
	total, err := s.db.CountAnalyses()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, fmt.Errorf("failed to get cache stats: %w", err))
		return
	}
	recent, err := s.db.RecentAnalyses(5)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, fmt.Errorf("failed to get cache stats: %w", err))
		return
	}
	stats, err := s.db.Stats()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, fmt.Errorf("failed to get cache stats: %w", err))
		return
	}
	urls := make([]CachedURLDTO, 0, len(recent))
	for _, row := range recent {
		urls = append(urls, CachedURLDTO{URL: row.URL, Host: row.Host, CachedAt: row.CachedAt})
	}
	c.JSON(http.StatusOK, CacheStatsResponse{
		TotalCachedURLs:  total,
		RecentCachedURLs: urls,
		DatabaseInfo:     toDatabaseInfo(stats),
	})
}

func (s *Server) handleClearCache(c *gin.Context) {
	deleted, err := s.db.ClearAnalyses()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, fmt.Errorf("failed to clear cache: %w", err))
		return
	}
	logrus.WithField("deleted", deleted).Info("cleared analysis cache")
	c.JSON(http.StatusOK, gin.H{
		"message":       fmt.Sprintf("Cache cleared successfully. Deleted %d documents.", deleted),
		"deleted_count": deleted,
	})
}

func (s *Server) handleClearURL(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("url query parameter is required"))
		return
	}
	deleted, err := s.db.DeleteAnalysis(url)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, fmt.Errorf("failed to remove url from cache: %w", err))
		return
	}
	if deleted == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "URL not found in cache: " + url, "deleted_count": 0})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Successfully removed URL from cache: " + url, "deleted_count": deleted})
}

func (s *Server) handleDatabaseInfo(c *gin.Context) {
	stats, err := s.db.Stats()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, fmt.Errorf("failed to get database info: %w", err))
		return
	}
	c.JSON(http.StatusOK, toDatabaseInfo(stats))
}

func (s *Server) scorer(profile string) (*scoring.Scorer, error) {
	if strings.TrimSpace(profile) == "" {
		profile = s.defaultProfile
	}
	return scoring.NewScorer(scoring.Options{Profile: profile})
}

// recordScore persists the report and notifies websocket listeners. Persistence failures
// are logged; the caller still returns the computed score.
func (s *Server) recordScore(url, source string, report scoring.Report, start time.Time) {
	record := &store.ScoreRecord{
		URL:              url,
		Profile:          report.Profile,
		ComplianceScore:  report.ComplianceScore,
		Source:           source,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	err := record.SetReport(report)
	if err == nil {
		err = s.db.SaveScore(record)
	}
	if err != nil {
		logrus.WithError(err).WithField("url", url).Warn("persist score report")
	}
	logrus.WithFields(logrus.Fields{
		"url":              url,
		"source":           source,
		"profile":          report.Profile,
		"compliance_score": report.ComplianceScore,
		"duration_ms":      record.ProcessingTimeMs,
	}).Info("scored site")
	s.notify(url, source, report)
}

func (s *Server) notify(url, source string, report scoring.Report) {
	s.notifier.Broadcast(ScoreEvent{
		Type:    "score",
		URL:     url,
		Profile: report.Profile,
		Source:  source,
		Score:   report.ComplianceScore,
	})
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
