package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	DataDir string // Base directory for all local state

	// Metadata document
	MetadataBackend string // file, redis, mysql
	MetadataPath    string // file backend: path of the JSON document
	MetadataKey     string // redis/mysql backend: document name
	AdminPassword   string // password of the bootstrap super admin

	// Blob store
	BlobBackend    string // bolt, minio
	BlobPath       string // bolt backend: database file
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MySQL配置
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Playback
	FFmpegPath     string
	AudioOutput    string // ffplay, silent
	SeekGuardDelay time.Duration

	// Surfaces
	HTTPAddr      string
	SessionSecret string
	UploadInbox   string

	// Logging
	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}
	return fromEnv()
}

func fromEnv() *Config {
	dataDir := getEnv("DATA_DIR", "data")

	return &Config{
		DataDir:         dataDir,
		MetadataBackend: getEnv("METADATA_BACKEND", "file"),
		MetadataPath:    getEnv("METADATA_PATH", filepath.Join(dataDir, "library.json")),
		MetadataKey:     getEnv("METADATA_KEY", "localfm:library"),
		AdminPassword:   getEnv("ADMIN_PASSWORD", "admin"),

		BlobBackend:    getEnv("BLOB_BACKEND", "bolt"),
		BlobPath:       getEnv("BLOB_PATH", filepath.Join(dataDir, "blobs.db")),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "localfm"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for passwords
		DBName:     getEnv("DB_NAME", "localfm"),

		FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),
		AudioOutput:    getEnv("AUDIO_OUTPUT", "silent"),
		SeekGuardDelay: getEnvDuration("SEEK_GUARD_DELAY", 300*time.Millisecond),

		HTTPAddr:      getEnv("HTTP_ADDR", "127.0.0.1:8080"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		UploadInbox:   getEnv("UPLOAD_INBOX", filepath.Join(dataDir, "inbox")),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 50),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 28),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}
