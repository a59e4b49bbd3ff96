package repository

import (
	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/domain/repository"
	"GeoInfo-App/internal/infrastructure/database"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/paulmach/orb/encoding/wkt"
)

// 変更通知のチャンネル名
const (
	placesChannel  = "geoinfo_places"
	profileChannel = "geoinfo_profiles"
)

// changePayload NOTIFYのペイロード
type changePayload struct {
	AppID  string `json:"app_id"`
	UserID string `json:"user_id"`
}

// PostgresPlaceRepository PostgreSQLを使用したPlaceRepository
// 書き込みと同じトランザクションでNOTIFYし、pq.Listenerで購読者に再読み込みを促す
type PostgresPlaceRepository struct {
	client   *database.PostgreSQLClient
	appID    string
	listener *pq.Listener

	mu       sync.Mutex
	nextID   int
	watchers map[int]*pgWatcher

	stop chan struct{}
	done chan struct{}
}

// pgWatcher は購読ごとの再読み込みループ
type pgWatcher struct {
	channel string
	userID  string
	reload  func(ctx context.Context)
	wake    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPostgresPlaceRepository 新しいPostgresPlaceRepositoryインスタンスを作成し、LISTENを開始する
func NewPostgresPlaceRepository(client *database.PostgreSQLClient, appID string) (*PostgresPlaceRepository, error) {
	listener := pq.NewListener(client.ConnStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("⚠️ PostgreSQL LISTENイベント(%d): %v", ev, err)
		}
	})
	for _, ch := range []string{placesChannel, profileChannel} {
		if err := listener.Listen(ch); err != nil {
			listener.Close()
			return nil, fmt.Errorf("LISTEN %s に失敗: %w", ch, err)
		}
	}

	r := newPostgresPlaceRepository(client, appID)
	r.listener = listener
	go r.listen()
	return r, nil
}

func newPostgresPlaceRepository(client *database.PostgreSQLClient, appID string) *PostgresPlaceRepository {
	return &PostgresPlaceRepository{
		client:   client,
		appID:    appID,
		watchers: map[int]*pgWatcher{},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

var _ repository.PlaceRepository = (*PostgresPlaceRepository)(nil)

// Close はLISTENを終了し、残っている購読をすべて停止する
func (r *PostgresPlaceRepository) Close() error {
	close(r.stop)
	if r.listener != nil {
		<-r.done
	}

	r.mu.Lock()
	watchers := make([]*pgWatcher, 0, len(r.watchers))
	for id, w := range r.watchers {
		watchers = append(watchers, w)
		delete(r.watchers, id)
	}
	r.mu.Unlock()
	for _, w := range watchers {
		w.cancel()
		<-w.done
	}

	if r.listener != nil {
		return r.listener.Close()
	}
	return nil
}

func (r *PostgresPlaceRepository) listen() {
	defer close(r.done)
	for {
		select {
		case n, ok := <-r.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// 再接続時は取りこぼしがあり得るので全購読を再読み込み
				r.wakeAll()
				continue
			}
			r.dispatch(n.Channel, n.Extra)
		case <-time.After(90 * time.Second):
			go func() {
				if err := r.listener.Ping(); err != nil {
					log.Printf("⚠️ LISTEN接続のPingに失敗: %v", err)
				}
			}()
		case <-r.stop:
			return
		}
	}
}

// dispatch は通知に一致する購読を起こす
func (r *PostgresPlaceRepository) dispatch(channel, extra string) {
	var p changePayload
	if err := json.Unmarshal([]byte(extra), &p); err != nil {
		log.Printf("⚠️ 通知ペイロードのパースに失敗: %v", err)
		return
	}
	if p.AppID != r.appID {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.watchers {
		if w.channel == channel && w.userID == p.UserID {
			w.poke()
		}
	}
}

func (r *PostgresPlaceRepository) wakeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.watchers {
		w.poke()
	}
}

// poke は再読み込みを要求する（未処理の要求があればまとめる）
func (w *pgWatcher) poke() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *pgWatcher) run(ctx context.Context) {
	defer close(w.done)
	w.reload(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
			w.reload(ctx)
		}
	}
}

func (r *PostgresPlaceRepository) watch(ctx context.Context, channel, userID string, reload func(ctx context.Context)) repository.Subscription {
	subCtx, cancel := context.WithCancel(ctx)
	w := &pgWatcher{
		channel: channel,
		userID:  userID,
		reload:  reload,
		wake:    make(chan struct{}, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.watchers[id] = w
	r.mu.Unlock()

	go w.run(subCtx)

	return repository.SubscriptionFunc(func() {
		r.mu.Lock()
		delete(r.watchers, id)
		r.mu.Unlock()
		cancel()
		<-w.done
	})
}

func (r *PostgresPlaceRepository) notify(ctx context.Context, tx *sql.Tx, channel, userID string) error {
	payload, err := json.Marshal(changePayload{AppID: r.appID, UserID: userID})
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, channel, string(payload))
	return err
}

// withNotify はfnと通知を1トランザクションで実行する（通知はコミット時に配信される）
func (r *PostgresPlaceRepository) withNotify(ctx context.Context, channel, userID string, fn func(tx *sql.Tx) error) error {
	tx, err := r.client.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := r.notify(ctx, tx, channel, userID); err != nil {
		return fmt.Errorf("変更通知に失敗: %w", err)
	}
	return tx.Commit()
}

func (r *PostgresPlaceRepository) CreateProfile(ctx context.Context, userID string, profile *model.UserProfile) error {
	err := r.withNotify(ctx, profileChannel, userID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO geoinfo_profiles (app_id, user_id, username, email, points)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (app_id, user_id)
			DO UPDATE SET username = EXCLUDED.username, email = EXCLUDED.email, points = EXCLUDED.points`,
			r.appID, userID, profile.Username, profile.Email, profile.Points)
		return err
	})
	if err != nil {
		return fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}
	return nil
}

func (r *PostgresPlaceRepository) AddPlace(ctx context.Context, userID string, place *model.Place) (string, error) {
	id := uuid.NewString()
	err := r.withNotify(ctx, placesChannel, userID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO geoinfo_places (id, app_id, user_id, name, latitude, longitude, location, info, image_url, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			id, r.appID, userID, place.Name, place.Latitude, place.Longitude, wkt.MarshalString(place.Point()),
			place.Info, place.ImageURL, place.CreatedAt)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("Placeの保存に失敗しました: %w", err)
	}
	return id, nil
}

func (r *PostgresPlaceRepository) IncrementPoints(ctx context.Context, userID string, delta int) error {
	err := r.withNotify(ctx, profileChannel, userID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE geoinfo_profiles SET points = points + $1 WHERE app_id = $2 AND user_id = $3`,
			delta, r.appID, userID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("プロフィールが見つかりません: %s", userID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ポイントの更新に失敗しました: %w", err)
	}
	return nil
}

func (r *PostgresPlaceRepository) SubscribePlaces(ctx context.Context, userID string, onSnapshot func([]*model.Place)) (repository.Subscription, error) {
	return r.watch(ctx, placesChannel, userID, func(ctx context.Context) {
		places, err := r.loadPlaces(ctx, userID)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("❌ Placeコレクションの読み込みに失敗 (user=%s): %v", userID, err)
			}
			return
		}
		if ctx.Err() == nil {
			onSnapshot(places)
		}
	}), nil
}

func (r *PostgresPlaceRepository) SubscribeProfile(ctx context.Context, userID string, onSnapshot func(*model.UserProfile)) (repository.Subscription, error) {
	return r.watch(ctx, profileChannel, userID, func(ctx context.Context) {
		profile, err := r.loadProfile(ctx, userID)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("❌ プロフィールの読み込みに失敗 (user=%s): %v", userID, err)
			}
			return
		}
		if profile != nil && ctx.Err() == nil {
			onSnapshot(profile)
		}
	}), nil
}

func (r *PostgresPlaceRepository) loadPlaces(ctx context.Context, userID string) ([]*model.Place, error) {
	rows, err := r.client.DB.QueryContext(ctx, `
		SELECT id, name, latitude, longitude, info, image_url, created_at
		FROM geoinfo_places WHERE app_id = $1 AND user_id = $2`, r.appID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	places := []*model.Place{}
	for rows.Next() {
		var p model.Place
		if err := rows.Scan(&p.ID, &p.Name, &p.Latitude, &p.Longitude, &p.Info, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("行の読み込みに失敗: %w", err)
		}
		places = append(places, &p)
	}
	return places, rows.Err()
}

// loadProfile はプロフィールを読み込む（存在しない場合はnil）
func (r *PostgresPlaceRepository) loadProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	var p model.UserProfile
	err := r.client.DB.QueryRowContext(ctx,
		`SELECT username, email, points FROM geoinfo_profiles WHERE app_id = $1 AND user_id = $2`,
		r.appID, userID).Scan(&p.Username, &p.Email, &p.Points)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
