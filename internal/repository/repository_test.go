package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/review-channels/internal/model"
)

const testChannel = "0b0e5d8e-8a43-4c39-9a3c-2f4f3d6f5a11"

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func accountRows(typ string, credit uint64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"username", "email", "name", "password_hash", "account_type", "credit", "created_at", "updated_at"}).
		AddRow("alice", "alice@example.com", "Alice", "hash", typ, credit, now, now)
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(&mysql.MySQLError{Number: 1062}))
	assert.False(t, isDuplicate(&mysql.MySQLError{Number: 1452}))
	assert.False(t, isDuplicate(nil))
	assert.True(t, isDuplicate(errors.New("Error 1062: Duplicate entry")))
}

func TestDuplicateKey(t *testing.T) {
	err := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b.c' for key 'accounts.uq_accounts_email'"}
	assert.Equal(t, "uq_accounts_email", duplicateKey(err))
	assert.Equal(t, "", duplicateKey(errors.New("other")))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
}

func TestAccountCreate_DuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("INSERT INTO accounts").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'alice@example.com' for key 'accounts.uq_accounts_email'"})

	err := NewAccountRepo(db).Create(context.Background(), &model.Account{Username: "alice", Email: "alice@example.com", Type: model.AccountFree})
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountCreate_DuplicateUsername(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("INSERT INTO accounts").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'alice' for key 'accounts.PRIMARY'"})

	err := NewAccountRepo(db).Create(context.Background(), &model.Account{Username: "alice", Type: model.AccountFree})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestAccountGetByUsername_NotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE username = \\?").WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := NewAccountRepo(db).GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountGetByUsername_RejectsUnknownType(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE username = \\?").WithArgs("alice").WillReturnRows(accountRows("gold", 0))

	_, err := NewAccountRepo(db).GetByUsername(context.Background(), "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAccountNotFound)
	assert.Contains(t, err.Error(), `unknown type "gold"`)
}

func TestAccountMutate_LocksAndPersists(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE username = \\? AND deleted_at IS NULL FOR UPDATE").
		WithArgs("alice").WillReturnRows(accountRows("free", 150000))
	mock.ExpectExec("UPDATE accounts SET account_type = \\?, credit = \\?").
		WithArgs("premium", uint64(50000), "alice").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	a, err := NewAccountRepo(db).Mutate(context.Background(), "alice", func(a *model.Account) error {
		a.Credit -= 100000
		a.Type = model.AccountPremium
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.AccountPremium, a.Type)
	assert.Equal(t, uint64(50000), a.Credit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountMutate_CallbackErrorRollsBack(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("insufficient")
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("alice").WillReturnRows(accountRows("free", 10))
	mock.ExpectRollback()

	_, err := NewAccountRepo(db).Mutate(context.Background(), "alice", func(*model.Account) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChannelCreateForAccount_TierCheckUnderLock(t *testing.T) {
	db, mock := newMock(t)
	limit := errors.New("limit reached")
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE username = \\? AND deleted_at IS NULL FOR UPDATE").
		WithArgs("alice").WillReturnRows(accountRows("free", 0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM channels").WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	var seen int
	err := NewChannelRepo(db).CreateForAccount(context.Background(), &model.Channel{ID: testChannel, AccountUsername: "alice"},
		func(a *model.Account, owned int) error {
			seen = owned
			return limit
		})
	assert.ErrorIs(t, err, limit)
	assert.Equal(t, 1, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChannelCreateForAccount_Inserts(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("alice").WillReturnRows(accountRows("premium", 0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM channels").WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec("INSERT INTO channels").
		WithArgs(testChannel, "games", "US###", "hash", "alice").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ch := &model.Channel{ID: testChannel, Name: "games", UserPrefix: "US###", AccessTokenHash: "hash", AccountUsername: "alice"}
	require.NoError(t, NewChannelRepo(db).CreateForAccount(context.Background(), ch, nil))
	assert.False(t, ch.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChannelListByAccount_NameFilterEscaped(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery("LOWER\\(name\\) LIKE \\?").WithArgs("alice", "%50\\%%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "user_prefix", "access_token_hash", "account_username", "created_at", "updated_at"}).
			AddRow(testChannel, "50% off", "US###", "h", "alice", now, now))

	out, err := NewChannelRepo(db).ListByAccount(context.Background(), "alice", "50%")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "50% off", out[0].Name)
}

func TestChannelRotateToken(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("UPDATE channels SET access_token_hash = \\?").WithArgs("new", testChannel).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE channels SET access_token_hash = \\?").WithArgs("new", "gone").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewChannelRepo(db)
	require.NoError(t, repo.RotateToken(context.Background(), testChannel, "new"))
	assert.ErrorIs(t, repo.RotateToken(context.Background(), "gone", "new"), ErrChannelNotFound)
}

func TestUserAllocate_CountsLiveUsersUnderChannelLock(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM channels WHERE id = \\? AND deleted_at IS NULL FOR UPDATE").
		WithArgs(testChannel).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testChannel))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE channel_id = \\? AND deleted_at IS NULL").
		WithArgs(testChannel).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectExec("INSERT INTO users").WithArgs("US008", testChannel).WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectExec("INSERT INTO users").WithArgs("US009", testChannel).WillReturnResult(sqlmock.NewResult(22, 1))
	mock.ExpectCommit()

	var base int
	users, err := NewUserRepo(db).Allocate(context.Background(), testChannel, func(b int) ([]string, error) {
		base = b
		return []string{"US008", "US009"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, base)
	require.Len(t, users, 2)
	assert.Equal(t, uint64(21), users[0].ID)
	assert.Equal(t, "US009", users[1].AccID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserAllocate_DuplicateRollsBackBatch(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(testChannel).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testChannel))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users").WithArgs(testChannel).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec("INSERT INTO users").WithArgs("US003", testChannel).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err := NewUserRepo(db).Allocate(context.Background(), testChannel, func(int) ([]string, error) {
		return []string{"US003"}, nil
	})
	assert.ErrorIs(t, err, ErrAccIDTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserAllocate_UnknownChannel(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("nope").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := NewUserRepo(db).Allocate(context.Background(), "nope", func(int) ([]string, error) {
		t.Fatal("mint must not run")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestUserGetByAccID_OnlyLive(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM users WHERE channel_id = \\? AND acc_id = \\? AND deleted_at IS NULL").
		WithArgs(testChannel, "US001").WillReturnError(sql.ErrNoRows)

	_, err := NewUserRepo(db).GetByAccID(context.Background(), testChannel, "US001")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserIDsByAccID(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT id FROM users WHERE acc_id = \\? AND deleted_at IS NULL AND channel_id IN \\(\\?,\\?\\)").
		WithArgs("US001", "a", "b").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4).AddRow(9))

	ids, err := NewUserRepo(db).IDsByAccID(context.Background(), []string{"a", "b"}, "US001")
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 9}, ids)
}

func reviewRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "acc_id", "channel_id", "game_id", "game_name", "rating", "review", "screenshot", "created_at", "updated_at"})
}

func TestReviewFind_AndsDimensions(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()
	game := uint64(1942)
	mock.ExpectQuery("u.deleted_at IS NULL AND u.channel_id IN \\(\\?\\) AND r.game_id = \\? AND r.user_id IN \\(\\?\\) ORDER BY").
		WithArgs(testChannel, game, uint64(4), 20, 0).
		WillReturnRows(reviewRows().AddRow(1, 4, "US001", testChannel, game, "The Witcher 3", 5, nil, "a.png", now, now))

	out, err := NewReviewRepo(db).Find(context.Background(), ReviewQuery{
		ChannelIDs: []string{testChannel}, GameID: &game, UserIDs: []uint64{4}, Limit: 20,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].Review)
	require.NotNil(t, out[0].Screenshot)
	assert.Equal(t, "a.png", *out[0].Screenshot)
	assert.Equal(t, "US001", out[0].AccID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewFind_EmptyScope(t *testing.T) {
	db, _ := newMock(t)
	out, err := NewReviewRepo(db).Find(context.Background(), ReviewQuery{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestReviewGetInChannels_IncludesDeletedAuthors(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery("WHERE r.id = \\? AND r.deleted_at IS NULL AND u.channel_id IN \\(\\?\\) LIMIT 1").
		WithArgs(uint64(3), testChannel).
		WillReturnRows(reviewRows().AddRow(3, 4, "US001", testChannel, 7, "Doom", 4, "great", nil, now, now))

	rv, err := NewReviewRepo(db).GetInChannels(context.Background(), 3, []string{testChannel})
	require.NoError(t, err)
	assert.Equal(t, "great", *rv.Review)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewSoftDelete_NotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("UPDATE reviews SET deleted_at").WithArgs(uint64(3), uint64(4)).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, NewReviewRepo(db).SoftDelete(context.Background(), 3, 4), ErrReviewNotFound)
}
