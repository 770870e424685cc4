package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Config struct {
	Port        string
	BindAddress string
	AppEnv      string

	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxOpenConns int
	DBMaxIdleConns int

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration

	NATSURL           string
	NATSToken         string
	NATSSubjectPrefix string

	JWTSecret          string
	RateLimitPerMinute int
	CORSAllowedOrigins []string

	RoomCodeAttempts      int
	CountdownTick         time.Duration
	DefaultGridSize       int
	DefaultWordSearchTime int
	DefaultTotalQuestions int
	BoardColumns          int
	BoardRows             int
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		BindAddress: getEnv("BIND_ADDRESS", "localhost"),
		AppEnv:      getEnv("APP_ENV", "development"),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "livequiz"),
		DBPassword:     getEnv("DB_PASSWORD", "livequiz"),
		DBName:         getEnv("DB_NAME", "livequiz"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SnapshotTTL:   getEnvDuration("SNAPSHOT_TTL", 2*time.Hour),

		NATSURL:           getEnv("NATS_URL", ""),
		NATSToken:         getEnv("NATS_TOKEN", ""),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "livequiz.rooms"),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 600),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:4200"}),

		RoomCodeAttempts:      getEnvInt("ROOM_CODE_ATTEMPTS", 10),
		CountdownTick:         getEnvDuration("COUNTDOWN_TICK", time.Second),
		DefaultGridSize:       getEnvInt("DEFAULT_GRID_SIZE", 15),
		DefaultWordSearchTime: getEnvInt("DEFAULT_WORDSEARCH_TIME", 300),
		DefaultTotalQuestions: getEnvInt("DEFAULT_TOTAL_QUESTIONS", 10),
		BoardColumns:          getEnvInt("BOARD_COLUMNS", 6),
		BoardRows:             getEnvInt("BOARD_ROWS", 5),
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid PORT %q", c.Port)
	}
	if c.DBMaxOpenConns <= 0 || c.DBMaxIdleConns < 0 || c.DBMaxIdleConns > c.DBMaxOpenConns {
		return fmt.Errorf("invalid database pool settings: open=%d idle=%d", c.DBMaxOpenConns, c.DBMaxIdleConns)
	}
	if c.RoomCodeAttempts <= 0 {
		return fmt.Errorf("ROOM_CODE_ATTEMPTS must be positive")
	}
	if c.CountdownTick <= 0 {
		return fmt.Errorf("COUNTDOWN_TICK must be positive")
	}
	if c.DefaultGridSize < 5 || c.DefaultGridSize > 30 {
		return fmt.Errorf("DEFAULT_GRID_SIZE must be between 5 and 30")
	}
	if c.DefaultWordSearchTime <= 0 || c.DefaultTotalQuestions <= 0 {
		return fmt.Errorf("default game durations and counts must be positive")
	}
	if c.BoardColumns <= 0 || c.BoardRows <= 0 {
		return fmt.Errorf("board dimensions must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.AppEnv == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if cfg.AppEnv == "development" {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
