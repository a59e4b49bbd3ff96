package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"GeoInfo-App/internal/config"
	"GeoInfo-App/internal/database"
	"GeoInfo-App/internal/domain/repository"
	"GeoInfo-App/internal/domain/service"
	"GeoInfo-App/internal/handler"
	"GeoInfo-App/internal/infrastructure/ai"
	"GeoInfo-App/internal/infrastructure/auth"
	pgclient "GeoInfo-App/internal/infrastructure/database"
	fsclient "GeoInfo-App/internal/infrastructure/firestore"
	"GeoInfo-App/internal/infrastructure/maps"
	repoimpl "GeoInfo-App/internal/repository"
	"GeoInfo-App/internal/usecase"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Println("⚠️  環境変数が設定されていません:")
		fmt.Println(err)
		fmt.Println("\n.envファイルを作成するか、環境変数を設定してください")
		log.Fatal("Environment variables not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Printf("⚠️ 終了処理に失敗: %v", err)
			}
		}
	}()

	// 保存先
	store, storeCloser, err := newPlaceRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("保存先の初期化失敗: %v", err)
	}
	if storeCloser != nil {
		closers = append(closers, storeCloser)
	}

	// 認証
	provider, err := newIdentityProvider(cfg)
	if err != nil {
		log.Fatalf("認証プロバイダー初期化失敗: %v", err)
	}

	// AI推論
	gemini := ai.NewGeminiClient(ai.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Timeout: cfg.GeminiTimeout(),
	})
	resolver := service.NewPlaceResolver(gemini)

	// 逆ジオコーディング（REDIS_ADDRがあればキャッシュする）
	var geocoder repository.GeocodingRepository = maps.NewNominatimGeocoder(cfg.NominatimBaseURL, cfg.NominatimUserAgent)
	if cfg.RedisAddr != "" {
		redisClient := maps.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword)
		closers = append(closers, redisClient)
		geocoder = maps.NewCachedGeocoder(geocoder, redisClient, cfg.GeocodeCacheTTL())
		fmt.Println("✅ Redis geocode cache enabled:", cfg.RedisAddr)
	}

	// セッション
	sessionContext := service.NewSessionContext(service.NewPlaceStoreSync(store))
	session := service.NewSessionStateMachine(provider, store, sessionContext)
	session.Start(ctx)
	defer session.Close()

	router := handler.NewRouter(
		handler.NewAuthHandler(usecase.NewAuthUseCase(session)),
		handler.NewDiscoveryHandler(
			usecase.NewDiscoveryUseCase(resolver, session),
			usecase.NewLocationUseCase(geocoder, sessionContext),
		),
	)

	if err := serve(ctx, cfg.ServerPort, router); err != nil {
		log.Printf("❌ サーバーエラー: %v", err)
	}
}

// newPlaceRepository はSTORE_BACKENDに応じた保存先を作る
func newPlaceRepository(ctx context.Context, cfg config.Config) (repository.PlaceRepository, io.Closer, error) {
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		fmt.Println("Initializing Firestore client...")
		client, err := fsclient.NewFirestoreClient(ctx, cfg.FirestoreProjectID, cfg.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		fmt.Println("✅ Firestore connection successful!")
		return repoimpl.NewFirestorePlaceRepository(client.GetClient(), cfg.AppID), client, nil

	case config.StorePostgres:
		connStr := cfg.PostgresDSN
		if connStr == "" {
			var err error
			connStr, err = pgclient.BuildSupabaseConnStr(cfg.SupabaseURL, cfg.SupabaseDBPassword)
			if err != nil {
				return nil, nil, err
			}
		}
		fmt.Println("Initializing PostgreSQL client...")
		client, err := pgclient.NewPostgreSQLClientWithRetry(connStr, 3, 2*time.Second)
		if err != nil {
			return nil, nil, err
		}
		if err := client.EnsureSchema(ctx); err != nil {
			client.Close()
			return nil, nil, err
		}
		repo, err := repoimpl.NewPostgresPlaceRepository(client, cfg.AppID)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		fmt.Println("✅ PostgreSQL connection successful!")
		return repo, multiCloser{repo, client}, nil

	case config.StoreMemory:
		fmt.Println("⚠️ インメモリストアを使用します（再起動でデータは消えます）")
		return repoimpl.NewMemoryPlaceRepository(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_BACKEND: %q", cfg.StoreBackend)
}

// newIdentityProvider はAUTH_PROVIDERに応じたIDプロバイダーを作る
func newIdentityProvider(cfg config.Config) (repository.IdentityProvider, error) {
	switch cfg.AuthProvider {
	case config.AuthFirebase:
		return auth.NewFirebaseIdentityProvider(auth.FirebaseConfig{
			APIKey:  cfg.FirebaseAPIKey,
			Timeout: 30 * time.Second,
		}), nil

	case config.AuthSupabase:
		fmt.Println("Initializing Supabase client...")
		supabaseClient, err := database.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		if err != nil {
			return nil, err
		}
		if err := supabaseClient.HealthCheck(); err != nil {
			return nil, fmt.Errorf("Supabaseヘルスチェック失敗: %w", err)
		}
		fmt.Println("✅ Supabase connection successful!")
		return auth.NewSupabaseIdentityProvider(supabaseClient.GetClient()), nil
	}
	return nil, fmt.Errorf("unknown AUTH_PROVIDER: %q", cfg.AuthProvider)
}

// serve はctxがキャンセルされるまでHTTPサーバーを動かし、終了時はリクエストの完了を待つ
func serve(ctx context.Context, addr string, router *gin.Engine) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("GeoInfo-App server starting on %s...\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("🛑 シャットダウン中...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
