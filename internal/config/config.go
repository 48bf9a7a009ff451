package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API and poller processes.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	CanvasAPIToken         string
	CanvasProtocol         string
	CanvasTimeout          time.Duration
	PollerSchedule         string
	PollerCourseInterval   time.Duration
	PollerInactivityDays   int
	TrendingWindow         time.Duration
	TrendingSchedule       string
	ImpactSchedule         string
	DailyDigestSchedule    string
	WeeklyDigestSchedule   string
	LeaderboardCacheTTL    time.Duration
	MetadataBlacklist      []string
	RealtimeChannel        string
	RateLimitPerSecond     int
	AssetMaxSizeMB         int
	CORSAllowOrigins       string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SUITEC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "SuiteC API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "suitec/assets")
	v.SetDefault("canvas.protocol", "https")
	v.SetDefault("canvas.timeout", "30s")
	v.SetDefault("poller.schedule", "@every 5m")
	v.SetDefault("poller.course_interval", "2s")
	v.SetDefault("poller.inactivity_days", 60)
	v.SetDefault("scores.trending_window", "168h")
	v.SetDefault("scores.trending_schedule", "0 * * * *")
	v.SetDefault("scores.impact_schedule", "30 3 * * *")
	v.SetDefault("digest.daily_schedule", "0 8 * * *")
	v.SetDefault("digest.weekly_schedule", "0 8 * * 1")
	v.SetDefault("leaderboard.cache_ttl", "30s")
	v.SetDefault("activity.metadata_blacklist", "email,token,password,url")
	v.SetDefault("realtime.channel", "suitec")
	v.SetDefault("api.rate_limit", 20)
	v.SetDefault("assets.max_size_mb", 25)
	v.SetDefault("cors.allow_origins", "*")

	canvasTimeout, err := parseDuration(v, "canvas.timeout", "30s")
	if err != nil {
		return Config{}, err
	}
	courseInterval, err := parseDuration(v, "poller.course_interval", "2s")
	if err != nil {
		return Config{}, err
	}
	trendingWindow, err := parseDuration(v, "scores.trending_window", "168h")
	if err != nil {
		return Config{}, err
	}
	leaderboardTTL, err := parseDuration(v, "leaderboard.cache_ttl", "30s")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		CanvasAPIToken:         v.GetString("canvas.api_token"),
		CanvasProtocol:         strings.ToLower(v.GetString("canvas.protocol")),
		CanvasTimeout:          canvasTimeout,
		PollerSchedule:         v.GetString("poller.schedule"),
		PollerCourseInterval:   courseInterval,
		PollerInactivityDays:   v.GetInt("poller.inactivity_days"),
		TrendingWindow:         trendingWindow,
		TrendingSchedule:       v.GetString("scores.trending_schedule"),
		ImpactSchedule:         v.GetString("scores.impact_schedule"),
		DailyDigestSchedule:    v.GetString("digest.daily_schedule"),
		WeeklyDigestSchedule:   v.GetString("digest.weekly_schedule"),
		LeaderboardCacheTTL:    leaderboardTTL,
		MetadataBlacklist:      splitList(v.GetString("activity.metadata_blacklist")),
		RealtimeChannel:        v.GetString("realtime.channel"),
		RateLimitPerSecond:     v.GetInt("api.rate_limit"),
		AssetMaxSizeMB:         v.GetInt("assets.max_size_mb"),
		CORSAllowOrigins:       v.GetString("cors.allow_origins"),
	}

	if cfg.PollerInactivityDays <= 0 {
		cfg.PollerInactivityDays = 60
	}

	return cfg, nil
}

// ValidateAPI checks the settings the HTTP process cannot run without.
func (c Config) ValidateAPI() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret must be provided")
	}
	return nil
}

// ValidatePoller checks the settings the poller process cannot run without.
func (c Config) ValidatePoller() error {
	if c.CanvasAPIToken == "" {
		return fmt.Errorf("canvas api token must be provided")
	}
	if c.PollerSchedule == "" {
		return fmt.Errorf("poller schedule must be provided")
	}
	return nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		raw = fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
