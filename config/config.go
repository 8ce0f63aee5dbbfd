package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Storage backend selectors. StorageBackendNone disables poster storage.
const (
	StorageBackendNone  = "none"
	StorageBackendMinio = "minio"
	StorageBackendGCS   = "gcs"
)

type Config struct {
	ServerPort int
	Database   DatabaseConfig
	Session    SessionConfig
	BcryptCost int

	StorageBackend string
	Minio          MinioConfig
	GCS            GCSConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// SessionConfig carries the session secret and cookie policy. Secret is
// required at startup; the server refuses to boot without it.
type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	CookieSecure bool
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "reelkeep"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "reelkeep_db"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),
	}

	sessionConfig := SessionConfig{
		Secret:       getEnv("SESSION_SECRET", ""),
		TTL:          getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		CookieSecure: getEnvBool("COOKIE_SECURE", false),
	}

	minioConfig := MinioConfig{
		Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		SecretKey: getEnv("MINIO_SECRET_KEY", ""),
		Bucket:    getEnv("MINIO_BUCKET", "reelkeep-posters"),
		UseSSL:    getEnvBool("MINIO_USE_SSL", false),
	}

	gcsConfig := GCSConfig{
		Bucket:          getEnv("GCS_BUCKET", ""),
		ProjectID:       getEnv("GCS_PROJECT_ID", ""),
		CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
	}

	return Config{
		ServerPort:     getEnvInt("SERVER_PORT", 8080),
		Database:       dbConfig,
		Session:        sessionConfig,
		BcryptCost:     getEnvInt("BCRYPT_COST", 10),
		StorageBackend: getEnv("STORAGE_BACKEND", StorageBackendNone),
		Minio:          minioConfig,
		GCS:            gcsConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		return valueStr == "1" || valueStr == "true" || valueStr == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
