package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PostgreSQLClient PostgreSQL直接接続クライアント
type PostgreSQLClient struct {
	DB *sql.DB
	// ConnStr はLISTEN用の専用接続でも使う接続文字列
	ConnStr string
}

// BuildSupabaseConnStr はSupabaseのプロジェクトURLからPostgreSQL接続文字列を構築する
// (https://xxx.supabase.co -> host=db.xxx.supabase.co)
func BuildSupabaseConnStr(supabaseURL, password string) (string, error) {
	if supabaseURL == "" {
		return "", fmt.Errorf("SUPABASE_URL環境変数が設定されていません")
	}
	if password == "" {
		return "", fmt.Errorf("SUPABASE_DB_PASSWORD環境変数が設定されていません")
	}
	u, err := url.Parse(supabaseURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("SUPABASE_URLの形式が不正です: %s", supabaseURL)
	}
	host := strings.TrimPrefix(u.Hostname(), "db.")

	// LISTEN/NOTIFYはトランザクションプーラーでは使えないため直接接続（5432）を使う
	return fmt.Sprintf(
		"host=db.%s port=5432 user=postgres password=%s dbname=postgres sslmode=require",
		host, password,
	), nil
}

// NewPostgreSQLClient 新しいPostgreSQLクライアントを作成
func NewPostgreSQLClient(connStr string) (*PostgreSQLClient, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("PostgreSQL接続の初期化に失敗: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	// 接続テスト
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("PostgreSQLへの接続に失敗: %w", err)
	}

	return &PostgreSQLClient{
		DB:      db,
		ConnStr: connStr,
	}, nil
}

// NewPostgreSQLClientWithRetry 接続に失敗した場合に指定回数リトライする
func NewPostgreSQLClientWithRetry(connStr string, maxRetries int, interval time.Duration) (*PostgreSQLClient, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		client, err := NewPostgreSQLClient(connStr)
		if err == nil {
			return client, nil
		}
		lastErr = err
		log.Printf("⚠️ PostgreSQL接続リトライ %d/%d: %v", attempt, maxRetries, err)
		time.Sleep(interval)
	}
	return nil, fmt.Errorf("%d回のリトライ後も接続できませんでした: %w", maxRetries, lastErr)
}

// EnsureSchema はプロフィール・Placeテーブルを作成する
func (pc *PostgreSQLClient) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS geoinfo_profiles (
	app_id   TEXT NOT NULL,
	user_id  TEXT NOT NULL,
	username TEXT NOT NULL DEFAULT '',
	email    TEXT NOT NULL DEFAULT '',
	points   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (app_id, user_id)
);
CREATE TABLE IF NOT EXISTS geoinfo_places (
	id         TEXT PRIMARY KEY,
	app_id     TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	latitude   DOUBLE PRECISION NOT NULL,
	longitude  DOUBLE PRECISION NOT NULL,
	location   TEXT NOT NULL DEFAULT '', -- WKT POINT(lng lat)
	info       TEXT NOT NULL DEFAULT '',
	image_url  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS geoinfo_places_owner_idx ON geoinfo_places (app_id, user_id);`

	if _, err := pc.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("スキーマの作成に失敗: %w", err)
	}
	return nil
}

// Close データベース接続を閉じる
func (pc *PostgreSQLClient) Close() error {
	if pc.DB != nil {
		return pc.DB.Close()
	}
	return nil
}

// HealthCheck データベース接続のヘルスチェック
func (pc *PostgreSQLClient) HealthCheck() error {
	if pc.DB == nil {
		return fmt.Errorf("PostgreSQLクライアントが初期化されていません")
	}
	return pc.DB.Ping()
}
