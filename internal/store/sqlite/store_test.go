package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/domain"
	"chatrelay/internal/store/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	// a single pooled connection keeps every caller on the same
	// in-memory database
	db.SetMaxOpenConns(1)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *sql.DB, name string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          name + "@example.com",
		HashedPassword: "x",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, sqlite.NewUserRepo(db).Create(context.Background(), u))
	return u
}

func TestUserRepo(t *testing.T) {
	db := openTestDB(t)
	repo := sqlite.NewUserRepo(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")

	got, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Name)

	got, err = repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alice.ID, got.ID)

	got, err = repo.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindOrCreateOrderInsensitive(t *testing.T) {
	db := openTestDB(t)
	repo := sqlite.NewConversationRepo(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	conv, err := repo.FindOrCreate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, conv.SenderID)
	assert.Equal(t, bob.ID, conv.ReceiverID)

	// the reverse order resolves to the same conversation
	again, err := repo.FindOrCreate(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	found, err := repo.FindByPair(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, conv.ID, found.ID)
}

func TestFindOrCreateConcurrent(t *testing.T) {
	db := openTestDB(t)
	repo := sqlite.NewConversationRepo(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := alice.ID, bob.ID
			if i%2 == 1 {
				a, b = b, a
			}
			conv, err := repo.FindOrCreate(ctx, a, b)
			if assert.NoError(t, err) {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	// every caller resolved to the single winning row
	for i := 1; i < callers; i++ {
		assert.Equal(t, ids[0], ids[i])
	}

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count))
	assert.Equal(t, 1, count)
}

func appendText(t *testing.T, repo *sqlite.MessageRepo, convID, authorID, text string) *domain.Message {
	t.Helper()
	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		AuthorID:       authorID,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.Append(context.Background(), m))
	return m
}

func TestAppendOrdering(t *testing.T) {
	db := openTestDB(t)
	convRepo := sqlite.NewConversationRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	conv, err := convRepo.FindOrCreate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	// identical timestamps must not disturb append order
	now := time.Now().UTC()
	var want []string
	for i := 0; i < 10; i++ {
		m := &domain.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			AuthorID:       alice.ID,
			Text:           fmt.Sprintf("msg %d", i),
			CreatedAt:      now,
		}
		require.NoError(t, msgRepo.Append(ctx, m))
		want = append(want, m.ID)
	}

	msgs, err := msgRepo.ListForConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	for i, m := range msgs {
		assert.Equal(t, want[i], m.ID)
	}

	last, err := msgRepo.Last(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, want[9], last.ID)
}

func TestMarkSeen(t *testing.T) {
	db := openTestDB(t)
	convRepo := sqlite.NewConversationRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	conv, err := convRepo.FindOrCreate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	appendText(t, msgRepo, conv.ID, alice.ID, "from alice 1")
	appendText(t, msgRepo, conv.ID, alice.ID, "from alice 2")
	appendText(t, msgRepo, conv.ID, bob.ID, "from bob")

	unseen, err := msgRepo.CountUnseen(ctx, conv.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unseen)

	// bob views: alice's messages flip, bob's own stays untouched
	require.NoError(t, msgRepo.MarkSeen(ctx, conv.ID, alice.ID))

	msgs, err := msgRepo.ListForConversation(ctx, conv.ID)
	require.NoError(t, err)
	for _, m := range msgs {
		if m.AuthorID == alice.ID {
			assert.True(t, m.Seen)
		} else {
			assert.False(t, m.Seen)
		}
	}

	// idempotent, and new messages stay unseen
	require.NoError(t, msgRepo.MarkSeen(ctx, conv.ID, alice.ID))
	appendText(t, msgRepo, conv.ID, alice.ID, "from alice 3")

	msgs, err = msgRepo.ListForConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, msgs[0].Seen)
	assert.True(t, msgs[1].Seen)
	assert.False(t, msgs[3].Seen)

	unseen, err = msgRepo.CountUnseen(ctx, conv.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unseen)
}

func TestListForUserOrdering(t *testing.T) {
	db := openTestDB(t)
	convRepo := sqlite.NewConversationRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	withBob, err := convRepo.FindOrCreate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	withCarol, err := convRepo.FindOrCreate(ctx, alice.ID, carol.ID)
	require.NoError(t, err)

	// appending to the bob conversation bumps it to the front
	_, err = db.Exec(`UPDATE conversations SET updated_at = datetime('now', '-1 hour')`)
	require.NoError(t, err)
	appendText(t, msgRepo, withBob.ID, alice.ID, "hi bob")

	convs, err := convRepo.ListForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, withBob.ID, convs[0].ID)
	assert.Equal(t, withCarol.ID, convs[1].ID)

	convs, err = convRepo.ListForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
}
