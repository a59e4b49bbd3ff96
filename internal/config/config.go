package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 認証・ストアのバックエンド
const (
	AuthFirebase = "firebase"
	AuthSupabase = "supabase"

	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
	StoreMemory    = "memory"
)

type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	AppID      string `mapstructure:"APP_ID"`

	GeminiAPIKey         string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel          string `mapstructure:"GEMINI_MODEL"`
	GeminiBaseURL        string `mapstructure:"GEMINI_BASE_URL"`
	GeminiTimeoutSeconds int    `mapstructure:"GEMINI_TIMEOUT_SECONDS"`

	AuthProvider       string `mapstructure:"AUTH_PROVIDER"`
	FirebaseAPIKey     string `mapstructure:"FIREBASE_API_KEY"`
	SupabaseURL        string `mapstructure:"SUPABASE_URL"`
	SupabaseAnonKey    string `mapstructure:"SUPABASE_ANON_KEY"`
	SupabaseDBPassword string `mapstructure:"SUPABASE_DB_PASSWORD"`

	StoreBackend       string `mapstructure:"STORE_BACKEND"`
	FirestoreProjectID string `mapstructure:"FIRESTORE_PROJECT_ID"`
	CredentialsFile    string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	PostgresDSN        string `mapstructure:"POSTGRES_DSN"`

	NominatimBaseURL       string `mapstructure:"NOMINATIM_BASE_URL"`
	NominatimUserAgent     string `mapstructure:"NOMINATIM_USER_AGENT"`
	RedisAddr              string `mapstructure:"REDIS_ADDR"`
	RedisPassword          string `mapstructure:"REDIS_PASSWORD"`
	GeocodeCacheTTLMinutes int    `mapstructure:"GEOCODE_CACHE_TTL_MINUTES"`
}

var defaults = map[string]any{
	"SERVER_PORT":                    ":8080",
	"APP_ID":                         "default-app-id",
	"GEMINI_API_KEY":                 "",
	"GEMINI_MODEL":                   "gemini-2.5-flash",
	"GEMINI_BASE_URL":                "https://generativelanguage.googleapis.com/v1beta/models",
	"GEMINI_TIMEOUT_SECONDS":         60,
	"AUTH_PROVIDER":                  AuthFirebase,
	"FIREBASE_API_KEY":               "",
	"SUPABASE_URL":                   "",
	"SUPABASE_ANON_KEY":              "",
	"SUPABASE_DB_PASSWORD":           "",
	"STORE_BACKEND":                  StoreFirestore,
	"FIRESTORE_PROJECT_ID":           "",
	"GOOGLE_APPLICATION_CREDENTIALS": "",
	"POSTGRES_DSN":                   "",
	"NOMINATIM_BASE_URL":             "https://nominatim.openstreetmap.org",
	"NOMINATIM_USER_AGENT":           "GeoInfo-App/1.0",
	"REDIS_ADDR":                     "",
	"REDIS_PASSWORD":                 "",
	"GEOCODE_CACHE_TTL_MINUTES":      1440,
}

// Load は.envと環境変数から設定を読み込む（環境変数が優先）
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using system environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Printf("⚠️ 設定の読み込みに失敗: %v", err)
	}
	cfg.AuthProvider = strings.ToLower(strings.TrimSpace(cfg.AuthProvider))
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	return cfg
}

// Validate は選択されたバックエンドに必要な設定が揃っているか確認する
func (c Config) Validate() error {
	var errs []error
	if c.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}

	switch c.AuthProvider {
	case AuthFirebase:
		if c.FirebaseAPIKey == "" {
			errs = append(errs, errors.New("FIREBASE_API_KEY is required for AUTH_PROVIDER=firebase"))
		}
	case AuthSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_ANON_KEY are required for AUTH_PROVIDER=supabase"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_PROVIDER: %q", c.AuthProvider))
	}

	switch c.StoreBackend {
	case StoreFirestore:
		if c.FirestoreProjectID == "" {
			errs = append(errs, errors.New("FIRESTORE_PROJECT_ID is required for STORE_BACKEND=firestore"))
		}
	case StorePostgres:
		if c.PostgresDSN == "" && (c.SupabaseURL == "" || c.SupabaseDBPassword == "") {
			errs = append(errs, errors.New("POSTGRES_DSN or SUPABASE_URL and SUPABASE_DB_PASSWORD are required for STORE_BACKEND=postgres"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND: %q", c.StoreBackend))
	}

	return errors.Join(errs...)
}

func (c Config) GeminiTimeout() time.Duration {
	return time.Duration(c.GeminiTimeoutSeconds) * time.Second
}

func (c Config) GeocodeCacheTTL() time.Duration {
	return time.Duration(c.GeocodeCacheTTLMinutes) * time.Minute
}
