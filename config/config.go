package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// Rendering constants (resolution, fps, caption layout) are not configurable here;
// they live with the compositor.
type Config struct {
	FFmpegPath  string
	FFprobePath string
	EdgeTTSPath string
	WhisperPath string
	// WhisperModel is passed to the whisper CLI, e.g. "base.en".
	WhisperModel string
	YTDLPPath    string

	BackgroundDir     string // category -> clips library root
	BackgroundCatalog string // optional yaml file with category source URLs
	OutputDir         string // rendered videos
	WorkDir           string // transient per-job audio
	IntroImage        string // title card background image
	CaptionFont       string
	TitleFont         string

	ServerAddr  string
	WorkerCount int

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	JobStatusTTL  int // minutes

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	APIKeyHash           string // bcrypt hash, empty disables the check
	ShareTokenSecret     string
	ShareTokenTTLMinutes int

	RedditUserAgent string

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
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

// probePathFor derives the ffprobe binary that sits next to ffmpeg.
func probePathFor(ffmpegPath string) string {
	dir, base := filepath.Split(ffmpegPath)
	return dir + strings.Replace(base, "ffmpeg", "ffprobe", 1)
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	ffmpegPath := getEnv("FFMPEG_PATH", "ffmpeg")
	dataBase := getEnv("DATA_DIR", "data")

	return &Config{
		FFmpegPath:   ffmpegPath,
		FFprobePath:  getEnv("FFPROBE_PATH", probePathFor(ffmpegPath)),
		EdgeTTSPath:  getEnv("EDGE_TTS_PATH", "edge-tts"),
		WhisperPath:  getEnv("WHISPER_PATH", "whisper"),
		WhisperModel: getEnv("WHISPER_MODEL", "base.en"),
		YTDLPPath:    getEnv("YTDLP_PATH", "yt-dlp"),

		BackgroundDir:     getEnv("BACKGROUND_DIR", filepath.Join(dataBase, "backgrounds")),
		BackgroundCatalog: getEnv("BACKGROUND_CATALOG", ""),
		OutputDir:         getEnv("OUTPUT_DIR", filepath.Join(dataBase, "videos")),
		WorkDir:           getEnv("WORK_DIR", filepath.Join(os.TempDir(), "storyreel")),
		IntroImage:        getEnv("INTRO_IMAGE", filepath.Join("assets", "IntroPicture.png")),
		CaptionFont:       getEnv("CAPTION_FONT", "Impact"),
		TitleFont:         getEnv("TITLE_FONT", "Impact"),

		ServerAddr:  getEnv("SERVER_ADDR", ":8080"),
		WorkerCount: getEnvInt("WORKER_COUNT", 1),

		DBHost:     getEnv("DB_HOST", ""), // empty disables job history
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "storyreel"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		JobStatusTTL:  getEnvInt("JOB_STATUS_TTL_MINUTES", 24*60),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""), // empty keeps videos on local disk only
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "storyreel"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		APIKeyHash:           getEnv("API_KEY_HASH", ""),
		ShareTokenSecret:     getEnv("SHARE_TOKEN_SECRET", ""),
		ShareTokenTTLMinutes: getEnvInt("SHARE_TOKEN_TTL_MINUTES", 60),

		RedditUserAgent: getEnv("REDDIT_USER_AGENT", "storyreel/1.0"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
	}
}

// RedisAddr returns host:port for the redis client.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}
