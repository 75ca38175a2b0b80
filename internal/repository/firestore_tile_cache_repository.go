package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"GymSearch-App/internal/domain/model"
	"GymSearch-App/internal/domain/repository"
)

const firestoreTileCacheCollection = "tileCache"

// FirestoreTileCacheRepository Firestoreを使用したタイルキャッシュリポジトリ
// ドキュメントIDは cache_key
type FirestoreTileCacheRepository struct {
	client *firestore.Client
}

// NewFirestoreTileCacheRepository 新しいFirestoreTileCacheRepositoryインスタンスを作成
func NewFirestoreTileCacheRepository(client *firestore.Client) *FirestoreTileCacheRepository {
	return &FirestoreTileCacheRepository{
		client: client,
	}
}

var _ repository.TileCacheRepository = (*FirestoreTileCacheRepository)(nil)

func (r *FirestoreTileCacheRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(firestoreTileCacheCollection)
}

// Get 指定キーのタイルキャッシュを取得する
func (r *FirestoreTileCacheRepository) Get(ctx context.Context, key model.TileKey) (*model.TileCacheEntry, error) {
	doc, err := r.collection().Doc(key.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("タイルキャッシュ %s の取得に失敗しました: %w", key, err)
	}

	var row TileCacheRow
	if err := doc.DataTo(&row); err != nil {
		return nil, fmt.Errorf("データの変換に失敗しました: %w", err)
	}
	return row.ToEntry()
}

// Upsert BulkWriterでまとめて書き込む（同一ドキュメントへの重複書き込みは事前に畳む）
func (r *FirestoreTileCacheRepository) Upsert(ctx context.Context, entries []model.TileCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(entries))
	for _, entry := range lastWriteWins(entries) {
		row, err := ToTileCacheRow(entry)
		if err != nil {
			bw.End()
			return err
		}
		job, err := bw.Set(r.collection().Doc(row.CacheKey), row)
		if err != nil {
			bw.End()
			return fmt.Errorf("タイルキャッシュ %s の書き込み登録に失敗しました: %w", row.CacheKey, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	failed := 0
	var firstErr error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return fmt.Errorf("タイルキャッシュの書き込みに%d件失敗しました: %w", failed, firstErr)
	}
	return nil
}

func (r *FirestoreTileCacheRepository) Delete(ctx context.Context, key model.TileKey) error {
	if _, err := r.collection().Doc(key.String()).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("タイルキャッシュ %s の削除に失敗しました: %w", key, err)
	}
	return nil
}

// DeleteExpired expires_at <= now のドキュメントを削除する
func (r *FirestoreTileCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	iter := r.collection().Where("expires_at", "<=", now.UTC()).Documents(ctx)
	defer iter.Stop()

	bw := r.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("期限切れタイルキャッシュの検索に失敗しました: %w", err)
		}
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("削除の登録に失敗しました: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var deleted int64
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			log.Printf("⚠️  期限切れタイルキャッシュの削除に失敗: %v", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (r *FirestoreTileCacheRepository) HealthCheck(ctx context.Context) error {
	iter := r.collection().Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("Firestoreへの疎通確認に失敗しました: %w", err)
	}
	return nil
}
