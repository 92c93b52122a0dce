package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"privacy-score/backend/internal/analyzer"
	"privacy-score/backend/internal/api"
	"privacy-score/backend/internal/scoring"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("load .env")
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_LEVEL")), "debug") {
		logrus.SetLevel(logrus.DebugLevel)
	}

	baseDir, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("determine working directory: %v", err)
	}

	dataDir := filepath.Join(baseDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logrus.Fatalf("create data directory: %v", err)
	}

	analyzerCfg := analyzer.Config{
		Endpoint: strings.TrimSpace(os.Getenv("ANALYZER_URL")),
	}
	if timeout := os.Getenv("ANALYZER_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			analyzerCfg.Timeout = d
		} else {
			logrus.WithError(err).Warnf("ignoring ANALYZER_TIMEOUT %q", timeout)
		}
	}

	profile := strings.TrimSpace(os.Getenv("SCORING_PROFILE"))
	if profile == "" {
		profile = scoring.DefaultProfile
	}

	origins := []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
	}
	if env := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); env != "" {
		origins = origins[:0]
		for _, o := range strings.Split(env, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	cfg := api.Config{
		DBPath:         filepath.Join(dataDir, "privacy-score.db"),
		SilentDB:       strings.EqualFold(strings.TrimSpace(os.Getenv("SILENT_DB")), "true"),
		AllowedOrigins: origins,
		Analyzer:       analyzerCfg,
		DefaultProfile: profile,
	}

	if override := strings.TrimSpace(os.Getenv("PRIVACY_DB_PATH")); override != "" {
		cfg.DBPath = override
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8001"
	}

	logrus.Infof("starting privacy-score backend on :%s (profile %s)", port, profile)
	if err := router.Run(":" + port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}
