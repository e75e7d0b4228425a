package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func lookupEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// loadEnv overlays environment variables. A .env file in the working
// directory is loaded first; variables already set in the process win.
func loadEnv(cfg *Config) error {
	_ = godotenv.Load()

	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.AuthSecret, "AUTH_SECRET")
	setString(&cfg.StoreDriver, "STORE_DRIVER")
	setString(&cfg.MongoURI, "MONGODB_URI")
	setString(&cfg.MongoDB, "MONGODB_DB")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.BlobDriver, "BLOB_DRIVER")
	setString(&cfg.S3Bucket, "S3_BUCKET")
	setString(&cfg.S3Region, "S3_REGION")
	setString(&cfg.S3Endpoint, "S3_ENDPOINT")
	setString(&cfg.S3AccessKey, "S3_ACCESS_KEY")
	setString(&cfg.S3SecretKey, "S3_SECRET_KEY")
	setString(&cfg.S3PublicURL, "S3_PUBLIC_URL")
	setString(&cfg.RoleMismatchPolicy, "ROLE_MISMATCH_POLICY")
	setString(&cfg.TimeZone, "TIME_ZONE")
	setString(&cfg.StaticDir, "STATIC_DIR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")

	if v := lookupEnv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := lookupEnv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TOKEN_TTL: %w", err)
		}
		cfg.TokenTTL = d
	}
	if v := lookupEnv("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid COOKIE_SECURE: %w", err)
		}
		cfg.CookieSecure = b
	}
	for key, dst := range map[string]*int{
		"REDIS_DB":           &cfg.RedisDB,
		"LOGIN_RATE_PER_MIN": &cfg.LoginRatePerMin,
		"LOGIN_BURST":        &cfg.LoginBurst,
		"BCRYPT_COST":        &cfg.BcryptCost,
	} {
		v := lookupEnv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", key, err)
		}
		*dst = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := lookupEnv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
