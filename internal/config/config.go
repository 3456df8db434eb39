package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Local cache database
	CacheDriver string
	SQLitePath  string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// Remote authority + object store
	RemoteDriver  string
	MongoURI      string
	MongoDatabase string
	BlobBucket    string

	// Sessions
	JWTSecret       string
	SessionExpiry   time.Duration
	MediaSigningKey string

	// Identity provider (ID token verification)
	IdentityJWKSURL  string
	IdentityIssuer   string
	IdentityAudience string

	// Camera
	CameraDriver       string
	CameraSnapshotURL  string
	CameraStillURL     string
	CameraDir          string
	CameraWidth        int
	CameraHeight       int
	CaptureHighRes     bool
	StreamFPS          float64
	CaptureTempDir     string
	MaxAnnotationBytes int
	ImageFetchTimeout  time.Duration

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	// Logging and background jobs
	LogLevel            string
	LogRetentionDays    int
	CacheResyncInterval time.Duration
	BlobSweepInterval   time.Duration

	// Server
	Port          string
	CORSOrigins   string
	PublicBaseURL string
	SentryDSN     string
	AppEnv        string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	port := getEnv("PORT", "8080")

	jwtSecret := getEnv("JWT_SECRET", "")

	return &Config{
		CacheDriver: getEnv("CACHE_DRIVER", "sqlite"),
		SQLitePath:  getEnv("SQLITE_PATH", "linfoscopio.db"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", "linfoscopio"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),

		RemoteDriver:  getEnv("REMOTE_DRIVER", "mongo"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "linfoscopio"),
		BlobBucket:    getEnv("BLOB_BUCKET", "captures"),

		JWTSecret:       jwtSecret,
		SessionExpiry:   parseDuration(getEnv("SESSION_EXPIRY", "12h"), 12*time.Hour),
		MediaSigningKey: getEnv("MEDIA_SIGNING_KEY", jwtSecret),

		IdentityJWKSURL:  getEnv("IDENTITY_JWKS_URL", "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"),
		IdentityIssuer:   getEnv("IDENTITY_ISSUER", ""),
		IdentityAudience: getEnv("IDENTITY_AUDIENCE", ""),

		CameraDriver:       getEnv("CAMERA_DRIVER", "synthetic"),
		CameraSnapshotURL:  getEnv("CAMERA_SNAPSHOT_URL", ""),
		CameraStillURL:     getEnv("CAMERA_STILL_URL", ""),
		CameraDir:          getEnv("CAMERA_DIR", "frames"),
		CameraWidth:        parseInt(getEnv("CAMERA_WIDTH", "640"), 640),
		CameraHeight:       parseInt(getEnv("CAMERA_HEIGHT", "480"), 480),
		CaptureHighRes:     parseBool(getEnv("CAMERA_CAPTURE_HIGH_RES", "true")),
		StreamFPS:          parseFloat(getEnv("STREAM_FPS", "15"), 15),
		CaptureTempDir:     getEnv("CAPTURE_TEMP_DIR", os.TempDir()),
		MaxAnnotationBytes: parseInt(getEnv("MAX_ANNOTATION_BYTES", "3145728"), 3*1024*1024),
		ImageFetchTimeout:  parseDuration(getEnv("IMAGE_FETCH_TIMEOUT", "10s"), 10*time.Second),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     parseInt(getEnv("SMTP_PORT", "587"), 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),

		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogRetentionDays:    parseInt(getEnv("LOG_RETENTION_DAYS", "30"), 30),
		CacheResyncInterval: parseDuration(getEnv("CACHE_RESYNC_INTERVAL", "1h"), time.Hour),
		BlobSweepInterval:   parseDuration(getEnv("BLOB_SWEEP_INTERVAL", "24h"), 24*time.Hour),

		Port:          port,
		CORSOrigins:   getEnv("CORS_ORIGINS", "*"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		SentryDSN:     getEnv("SENTRY_DSN", ""),
		AppEnv:        getEnv("APP_ENV", "development"),
	}
}

func (c *Config) PostgresDSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// SQLiteDSN enables foreign keys so the captures → patients cascade is enforced.
func (c *Config) SQLiteDSN() string {
	return "file:" + c.SQLitePath + "?_foreign_keys=on&_busy_timeout=5000"
}

func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
