package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GymSearch-App/internal/domain/model"
	"GymSearch-App/internal/infrastructure/firestore"
)

// エミュレータ（FIRESTORE_EMULATOR_HOST）か実プロジェクトが必要
func TestFirestoreTileCacheRepository_Integration(t *testing.T) {
	projectID := os.Getenv("FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("必要な環境変数が設定されていません: FIRESTORE_PROJECT_ID")
	}

	ctx := context.Background()
	client, err := firestore.NewFirestoreClient(ctx, projectID, os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	require.NoError(t, err)
	defer client.Close()

	repo := NewFirestoreTileCacheRepository(client.GetClient())
	require.NoError(t, repo.HealthCheck(ctx))

	now := time.Now().UTC().Truncate(time.Millisecond)
	entry := sampleEntry("test-cell-"+now.Format("150405.000"), 700, now, time.Hour)
	defer repo.Delete(ctx, entry.Key)

	// 同じキーが重複していても1件として書き込まれる
	require.NoError(t, repo.Upsert(ctx, []model.TileCacheEntry{entry, entry}))

	got, err := repo.Get(ctx, entry.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Venues, 2)

	missing, err := repo.Get(ctx, model.TileKey{Cell: "no-such-cell", RadiusMeters: 1})
	require.NoError(t, err)
	assert.Nil(t, missing)

	deleted, err := repo.DeleteExpired(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(1))
}
