package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/chaobytes/chaogpt/internal/personality"
	"github.com/chaobytes/chaogpt/internal/vibe"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&conversationRow{}, &messageRow{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newGormTestStore(t *testing.T, cap int) *GormStore {
	t.Helper()
	return NewGormStore(openTestDB(t), cap, personality.NewSampler(1))
}

func TestGormCreateGetDelete(t *testing.T) {
	s := newGormTestStore(t, 50)
	ctx := context.Background()

	rec, err := s.Create(ctx, "persist me please", vibe.Soft)
	require.NoError(t, err)
	assert.Equal(t, "persist me please", rec.Title)
	assert.Equal(t, vibe.Soft, rec.CurrentVibe)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Empty(t, got.Messages)

	deleted, err := s.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = s.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormAppendEvictsBeyondCap(t *testing.T) {
	cap := 4
	s := newGormTestStore(t, cap)
	ctx := context.Background()

	rec, _ := s.Create(ctx, "cap test", vibe.Chaotic)
	for i := 0; i < cap+2; i++ {
		_, err := s.AppendMessage(ctx, rec.ID, Message{
			Role:    RoleUser,
			Content: fmt.Sprintf("message %d", i),
			Vibe:    vibe.Chaotic,
			Tokens:  3,
		})
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, cap)
	assert.Equal(t, "message 2", got.Messages[0].Content)
	assert.Equal(t, cap, got.Metadata.MessageCount)
	assert.Equal(t, cap*3, got.Metadata.TotalTokens)
}

func TestGormUpdateFields(t *testing.T) {
	s := newGormTestStore(t, 50)
	ctx := context.Background()

	rec, _ := s.Create(ctx, "rename me", vibe.Chaotic)

	title := "renamed"
	v := vibe.Study
	got, err := s.Update(ctx, rec.ID, Update{Title: &title, Vibe: &v})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, vibe.Study, got.CurrentVibe)
	assert.Equal(t, vibe.Study.ChaosLevel(), got.Metadata.ChaosLevel)

	_, err = s.Update(ctx, "missing", Update{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormSearch(t *testing.T) {
	s := newGormTestStore(t, 50)
	ctx := context.Background()

	a, _ := s.Create(ctx, "about dinosaurs", vibe.Study)
	b, _ := s.Create(ctx, "misc", vibe.Chaotic)
	s.AppendMessage(ctx, b.ID, Message{Role: RoleUser, Content: "were dinosaurs warm-blooded?"})
	s.Create(ctx, "unrelated", vibe.Soft)

	got, err := s.Search(ctx, "dinosaur")
	require.NoError(t, err)
	require.Len(t, got, 2)
	ids := []string{got[0].ID, got[1].ID}
	assert.Contains(t, ids, a.ID)
	assert.Contains(t, ids, b.ID)
}

func TestGormImportMintsFreshIDs(t *testing.T) {
	s := newGormTestStore(t, 50)
	ctx := context.Background()

	rec, _ := s.Create(ctx, "export target", vibe.Unhinged)
	s.AppendMessage(ctx, rec.ID, Message{Role: RoleUser, Content: "hello", Tokens: 2})

	data, err := s.Export(ctx, rec.ID)
	require.NoError(t, err)

	imported, err := s.Import(ctx, data)
	require.NoError(t, err)
	assert.NotEqual(t, rec.ID, imported.ID)
	require.Len(t, imported.Messages, 1)
	assert.Equal(t, "hello", imported.Messages[0].Content)
}

func TestGormImportEnforcesRetentionAndRebuildsAggregates(t *testing.T) {
	cap := 5
	s := newGormTestStore(t, cap)
	ctx := context.Background()

	in := Record{
		ID:          "cnv_doctored",
		Title:       "too many messages",
		CurrentVibe: vibe.Chaotic,
		Metadata:    Aggregates{MessageCount: 999, TotalTokens: -42},
	}
	for i := 0; i < cap+3; i++ {
		in.Messages = append(in.Messages, Message{
			Role:    RoleUser,
			Content: fmt.Sprintf("message %d", i),
			Tokens:  3,
		})
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	imported, err := s.Import(ctx, data)
	require.NoError(t, err)

	require.Len(t, imported.Messages, cap)
	assert.Equal(t, "message 3", imported.Messages[0].Content)
	assert.Equal(t, cap, imported.Metadata.MessageCount)
	assert.Equal(t, cap*3, imported.Metadata.TotalTokens)

	_, err = s.Import(ctx, []byte("not json"))
	assert.ErrorIs(t, err, ErrInvalidImport)
}

func TestGormCleanup(t *testing.T) {
	s := newGormTestStore(t, 50)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	stale, _ := s.Create(ctx, "stale", vibe.Soft)

	s.now = func() time.Time { return base.Add(72 * time.Hour) }
	fresh, _ := s.Create(ctx, "fresh", vibe.Soft)

	removed, err := s.Cleanup(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.Get(ctx, stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}
