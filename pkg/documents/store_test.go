package documents

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivedocs/hivedocs/pkg/access"
	"github.com/hivedocs/hivedocs/pkg/tenants"
)

type fakeQuota struct {
	err   error
	calls int
}

func (f *fakeQuota) CheckDocumentQuotaTx(ctx context.Context, tx *sql.Tx, tenantID uuid.UUID) error {
	f.calls++
	return f.err
}

func TestCreateTenantDocumentRunsQuotaGateInTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tenant := uuid.New()
	docID := uuid.New()
	quota := &fakeQuota{}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO documents").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(docID.String(), time.Now(), time.Now()))
	mock.ExpectCommit()

	store := NewStore(db, quota)
	doc := &Document{
		Slug:        "handbook",
		Title:       "Handbook",
		TenantID:    &tenant,
		AccessLevel: access.LevelOwnerRestricted,
		Active:      true,
	}
	require.NoError(t, store.Create(context.Background(), doc))

	assert.Equal(t, 1, quota.calls)
	assert.Equal(t, docID, doc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAbortsWhenQuotaExceeded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tenant := uuid.New()
	quota := &fakeQuota{err: &tenants.QuotaExceededError{Resource: "documents", Current: 1, Ceiling: 1}}

	mock.ExpectBegin()
	mock.ExpectRollback()

	store := NewStore(db, quota)
	doc := &Document{
		Slug:        "one-too-many",
		Title:       "One Too Many",
		TenantID:    &tenant,
		AccessLevel: access.LevelOwnerRestricted,
		Active:      true,
	}

	err = store.Create(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, tenants.IsQuotaExceeded(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePrivateUploadSkipsQuotaGate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	quota := &fakeQuota{}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO documents").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(uuid.New().String(), time.Now(), time.Now()))
	mock.ExpectCommit()

	store := NewStore(db, quota)
	doc := &Document{
		Slug:        "my-notes",
		Title:       "My Notes",
		AccessLevel: access.LevelOwnerRestricted,
		Active:      true,
	}
	require.NoError(t, store.Create(context.Background(), doc))

	assert.Zero(t, quota.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetExcludesInactiveByDefault(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1 AND active = TRUE").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	store := NewStore(db, nil)
	_, err = store.Get(context.Background(), id, false)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestAccessInfoCarriesUploader(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	uploader := uuid.New()
	metadata := `{"user_id": "` + uploader.String() + `"}`

	mock.ExpectQuery("SELECT id, tenant_id, access_level, passcode, active, metadata").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "access_level", "passcode", "active", "metadata"}).
			AddRow(id.String(), nil, "owner_restricted", nil, true, []byte(metadata)))

	store := NewStore(db, nil)
	info, err := store.AccessInfo(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.Equal(t, access.LevelOwnerRestricted, info.AccessLevel)
	assert.Nil(t, info.TenantID)
	require.NotNil(t, info.UploaderID)
	assert.Equal(t, uploader, *info.UploaderID)
}

func TestAccessInfoUnknownDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT id, tenant_id, access_level, passcode, active, metadata").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "access_level", "passcode", "active", "metadata"}))

	store := NewStore(db, nil)
	info, err := store.AccessInfo(context.Background(), id)
	require.NoError(t, err, "missing document is not an error")
	assert.Nil(t, info)
}

func TestCreateCategoryRejectsSystemDefaultCollision(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tenant := uuid.New()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("General").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	store := NewStore(db, nil)
	err = store.CreateCategory(context.Background(), &Category{
		Name:     "General",
		IsCustom: true,
		TenantID: &tenant,
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCategorySystemDefaultSkipsCollisionCheck(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO categories").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(uuid.New().String(), time.Now()))

	store := NewStore(db, nil)
	err = store.CreateCategory(context.Background(), &Category{Name: "Compliance"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
