package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/fedtimeline/internal/model"
	"github.com/d60-Lab/fedtimeline/pkg/database"
)

func setupDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

var author = &model.Identity{ID: "1", Acct: "alice"}

func post(id string) *model.Post {
	return &model.Post{ID: id, Account: author, Content: "post " + id}
}

func postIDs(ps []*model.Post) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestSaveBatchAndListPage(t *testing.T) {
	repo := NewTimelineRepository(setupDB(t))
	ctx := context.Background()

	var batch []*model.Post
	for _, id := range []string{"100", "99", "81", "9", "120", "1000"} {
		batch = append(batch, post(id))
	}
	require.NoError(t, repo.SaveBatch(ctx, "a", "home", batch))
	require.NoError(t, repo.SaveBatch(ctx, "a", "public", []*model.Post{post("5")}))
	require.NoError(t, repo.SaveBatch(ctx, "b", "home", []*model.Post{post("7")}))

	page, err := repo.ListPage(ctx, "a", "home", "", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"1000", "120", "100"}, postIDs(page))

	page, err = repo.ListPage(ctx, "a", "home", "100", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"99", "81", "9"}, postIDs(page))

	page, err = repo.ListPage(ctx, "a", "home", "9", 10)
	require.NoError(t, err)
	assert.Empty(t, page)

	n, err := repo.Count(ctx, "a", "home")
	require.NoError(t, err)
	assert.EqualValues(t, 6, n)
}

func TestSaveBatchUpsertsSnapshot(t *testing.T) {
	repo := NewTimelineRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SaveBatch(ctx, "a", "home", []*model.Post{post("3")}))
	edited := post("3")
	edited.Content = "edited"
	require.NoError(t, repo.SaveBatch(ctx, "a", "home", []*model.Post{edited, post("4")}))

	page, err := repo.ListPage(ctx, "a", "home", "", 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "4", page[0].ID)
	assert.Equal(t, "edited", page[1].Content)
	assert.Equal(t, "alice", page[1].Account.Acct)
}

func TestUpdateAndDeletePost(t *testing.T) {
	repo := NewTimelineRepository(setupDB(t))
	ctx := context.Background()
	for _, tl := range []string{"home", "federated"} {
		require.NoError(t, repo.SaveBatch(ctx, "a", tl, []*model.Post{post("3"), post("2")}))
	}

	edited := post("3")
	edited.Content = "v2"
	n, err := repo.UpdatePost(ctx, "a", edited)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = repo.UpdatePost(ctx, "a", post("404"))
	require.NoError(t, err)
	assert.Zero(t, n)

	page, err := repo.ListPage(ctx, "a", "federated", "", 10)
	require.NoError(t, err)
	assert.Equal(t, "v2", page[0].Content)

	require.NoError(t, repo.DeletePost(ctx, "a", "3"))
	for _, tl := range []string{"home", "federated"} {
		page, err := repo.ListPage(ctx, "a", tl, "", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"2"}, postIDs(page), fmt.Sprint(tl))
	}
}
