package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/central-rogues/internal/common"
	"github.com/ternarybob/central-rogues/internal/interfaces"
	"github.com/ternarybob/central-rogues/internal/models"
)

func openTestDB(t *testing.T) *BadgerDB {
	t.Helper()
	config := &common.BadgerConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "tokens")}
	db, err := NewBadgerDB(arbor.NewLogger(), config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestTokenStorage_SaveAndLoad(t *testing.T) {
	storage := NewTokenStorage(openTestDB(t), arbor.NewLogger())
	ctx := context.Background()
	expiry := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)

	err := storage.SaveToken(ctx, &models.CachedToken{
		ClientID:     " client-1 ",
		AccessToken:  "A1",
		RefreshToken: "R1",
		Expiry:       expiry,
	})
	require.NoError(t, err)

	token, err := storage.LoadToken(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "client-1", token.ClientID)
	assert.Equal(t, "A1", token.AccessToken)
	assert.Equal(t, "R1", token.RefreshToken)
	assert.True(t, expiry.Equal(token.Expiry))
}

func TestTokenStorage_SaveOverwrites(t *testing.T) {
	storage := NewTokenStorage(openTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.SaveToken(ctx, &models.CachedToken{ClientID: "client-1", RefreshToken: "R1"}))
	require.NoError(t, storage.SaveToken(ctx, &models.CachedToken{ClientID: "client-1", RefreshToken: "R2"}))

	token, err := storage.LoadToken(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "R2", token.RefreshToken)
}

func TestTokenStorage_NotFound(t *testing.T) {
	storage := NewTokenStorage(openTestDB(t), arbor.NewLogger())

	_, err := storage.LoadToken(context.Background(), "missing")
	assert.ErrorIs(t, err, interfaces.ErrTokenNotFound)
}

func TestTokenStorage_Delete(t *testing.T) {
	storage := NewTokenStorage(openTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.SaveToken(ctx, &models.CachedToken{ClientID: "client-1", RefreshToken: "R1"}))
	require.NoError(t, storage.DeleteToken(ctx, "client-1"))

	_, err := storage.LoadToken(ctx, "client-1")
	assert.ErrorIs(t, err, interfaces.ErrTokenNotFound)
}

func TestTokenStorage_RejectsMissingClientID(t *testing.T) {
	storage := NewTokenStorage(openTestDB(t), arbor.NewLogger())

	assert.Error(t, storage.SaveToken(context.Background(), &models.CachedToken{RefreshToken: "R1"}))
	assert.Error(t, storage.SaveToken(context.Background(), nil))
}

func TestTokenStorage_SurvivesReopen(t *testing.T) {
	config := &common.BadgerConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "tokens")}
	ctx := context.Background()

	db, err := NewBadgerDB(arbor.NewLogger(), config)
	require.NoError(t, err)
	require.NoError(t, NewTokenStorage(db, arbor.NewLogger()).SaveToken(ctx, &models.CachedToken{ClientID: "client-1", RefreshToken: "R9"}))
	require.NoError(t, db.Close())

	db, err = NewBadgerDB(arbor.NewLogger(), config)
	require.NoError(t, err)
	defer db.Close()

	token, err := NewTokenStorage(db, arbor.NewLogger()).LoadToken(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "R9", token.RefreshToken)
}
