package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string
	CORSOrigins string

	// Workflow
	SigningPolicy string   // "parallel" or "sequential"
	RevisionRoles []string // roles allowed to request revisions
	AdminRoles    []string // roles allowed to revoke signatures

	// Certificates
	VerifyBaseURL       string
	VerifyRatePerMinute int
	RedisAddr           string
	RedisPassword       string
	RedisDB             int

	// Reminders
	ReminderSchedule   string
	ReminderAfterHours int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "go-letters"),
		SkipAuth:    getEnv("SKIP_AUTH", "false") == "true",
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "go-letters"),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000, http://localhost:8000"),

		SigningPolicy: getEnv("SIGNING_POLICY", "parallel"),
		RevisionRoles: getList("REVISION_ROLES", "reviewer,admin"),
		AdminRoles:    getList("ADMIN_ROLES", "admin"),

		VerifyBaseURL:       strings.TrimRight(getEnv("VERIFY_BASE_URL", "http://localhost:8080/api/verify"), "/"),
		VerifyRatePerMinute: getInt("VERIFY_RATE_PER_MINUTE", 60),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getInt("REDIS_DB", 0),

		ReminderSchedule:   getEnv("REMINDER_SCHEDULE", "0 8 * * *"),
		ReminderAfterHours: getInt("REMINDER_AFTER_HOURS", 24),
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getList(key, fallback string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, fallback), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
