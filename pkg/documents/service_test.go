package documents

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivedocs/hivedocs/pkg/access"
	"github.com/hivedocs/hivedocs/pkg/observability"
)

type fakeRoles struct {
	roles map[uuid.UUID][]access.RoleAssignment
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{roles: make(map[uuid.UUID][]access.RoleAssignment)}
}

func (f *fakeRoles) addRole(principal uuid.UUID, tenantID *uuid.UUID, role access.Role) {
	f.roles[principal] = append(f.roles[principal], access.RoleAssignment{
		ID:          uuid.New(),
		PrincipalID: principal,
		TenantID:    tenantID,
		Role:        role,
	})
}

func (f *fakeRoles) RolesFor(ctx context.Context, principalID uuid.UUID) ([]access.RoleAssignment, error) {
	return f.roles[principalID], nil
}

type fakeInvalidator struct {
	invalidated []uuid.UUID
}

func (f *fakeInvalidator) InvalidateDocument(ctx context.Context, documentID uuid.UUID) {
	f.invalidated = append(f.invalidated, documentID)
}

func serviceUnderTest(t *testing.T) (*Service, sqlmock.Sqlmock, *fakeRoles, *fakeInvalidator) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	roles := newFakeRoles()
	inval := &fakeInvalidator{}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	svc := NewService(NewStore(db, nil), roles, inval, logger)

	return svc, mock, roles, inval
}

func docRow(doc *Document) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "slug", "title", "tenant_id", "access_level", "passcode",
		"chunk_limit_override", "forced_model", "category_id", "active",
		"metadata", "created_at", "updated_at",
	})

	var tenant interface{}
	if doc.TenantID != nil {
		tenant = doc.TenantID.String()
	}
	metadata := []byte("{}")
	if doc.Metadata != nil {
		if uploader := doc.UploaderID(); uploader != nil {
			metadata = []byte(`{"user_id": "` + uploader.String() + `"}`)
		}
	}

	rows.AddRow(doc.ID.String(), doc.Slug, doc.Title, tenant, string(doc.AccessLevel),
		nil, nil, nil, nil, doc.Active, metadata, time.Now(), time.Now())
	return rows
}

func TestServiceCreateRequiresPrincipal(t *testing.T) {
	svc, mock, _, _ := serviceUnderTest(t)

	err := svc.Create(context.Background(), nil, &Document{
		Slug:        "anon-doc",
		Title:       "Anon Doc",
		AccessLevel: access.LevelPublic,
	})
	assert.ErrorIs(t, err, access.ErrPermissionDenied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceCreateTenantDocumentRequiresAdmin(t *testing.T) {
	svc, mock, roles, _ := serviceUnderTest(t)

	tenant := uuid.New()
	member := uuid.New()
	roles.addRole(member, &tenant, access.RoleRegistered)

	err := svc.Create(context.Background(), &member, &Document{
		Slug:        "tenant-doc",
		Title:       "Tenant Doc",
		TenantID:    &tenant,
		AccessLevel: access.LevelRegistered,
	})
	assert.ErrorIs(t, err, access.ErrPermissionDenied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceCreateTenantDocumentAsTenantAdmin(t *testing.T) {
	svc, mock, roles, _ := serviceUnderTest(t)

	tenant := uuid.New()
	admin := uuid.New()
	roles.addRole(admin, &tenant, access.RoleTenantAdmin)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO documents").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(uuid.New().String(), time.Now(), time.Now()))
	mock.ExpectCommit()

	err := svc.Create(context.Background(), &admin, &Document{
		Slug:        "tenant-doc",
		Title:       "Tenant Doc",
		TenantID:    &tenant,
		AccessLevel: access.LevelRegistered,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceCreatePrivateUploadStampsUploader(t *testing.T) {
	svc, mock, _, _ := serviceUnderTest(t)

	principal := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO documents").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(uuid.New().String(), time.Now(), time.Now()))
	mock.ExpectCommit()

	doc := &Document{Slug: "my-notes", Title: "My Notes"}
	require.NoError(t, svc.Create(context.Background(), &principal, doc))

	uploader := doc.UploaderID()
	require.NotNil(t, uploader)
	assert.Equal(t, principal, *uploader)
	assert.Equal(t, access.LevelOwnerRestricted, doc.AccessLevel)
	assert.True(t, doc.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceGetCollapsesNotFoundForNonAdmins(t *testing.T) {
	svc, mock, roles, _ := serviceUnderTest(t)

	principal := uuid.New()
	roles.addRole(principal, uuidPtrOf(uuid.New()), access.RoleRegistered)

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.Get(context.Background(), &principal, uuid.New())
	assert.ErrorIs(t, err, access.ErrPermissionDenied, "existence must not leak")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceGetSurfacesNotFoundToAdmins(t *testing.T) {
	svc, mock, roles, _ := serviceUnderTest(t)

	admin := uuid.New()
	roles.addRole(admin, nil, access.RoleSuperAdmin)

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.Get(context.Background(), &admin, uuid.New())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceGetDeniesOutsiderOnExistingDocument(t *testing.T) {
	svc, mock, roles, _ := serviceUnderTest(t)

	tenant := uuid.New()
	outsider := uuid.New()
	other := uuid.New()
	roles.addRole(outsider, &other, access.RoleTenantAdmin)

	doc := &Document{
		ID:          uuid.New(),
		Slug:        "handbook",
		Title:       "Handbook",
		TenantID:    &tenant,
		AccessLevel: access.LevelRegistered,
		Active:      true,
	}
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1").
		WillReturnRows(docRow(doc))

	_, err := svc.Get(context.Background(), &outsider, doc.ID)
	assert.ErrorIs(t, err, access.ErrPermissionDenied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceGetUploaderSeesPrivateDocument(t *testing.T) {
	svc, mock, _, _ := serviceUnderTest(t)

	uploader := uuid.New()
	doc := &Document{
		ID:          uuid.New(),
		Slug:        "my-notes",
		Title:       "My Notes",
		AccessLevel: access.LevelOwnerRestricted,
		Active:      true,
		Metadata:    map[string]interface{}{MetadataUploaderKey: uploader.String()},
	}
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1").
		WillReturnRows(docRow(doc))

	got, err := svc.Get(context.Background(), &uploader, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceListRequiresAdminOfTenant(t *testing.T) {
	svc, mock, roles, _ := serviceUnderTest(t)

	tenant := uuid.New()
	member := uuid.New()
	roles.addRole(member, &tenant, access.RoleRegistered)

	_, err := svc.List(context.Background(), &member, &tenant, false)
	assert.ErrorIs(t, err, access.ErrPermissionDenied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceDeleteInvalidatesCachedDecisions(t *testing.T) {
	svc, mock, roles, inval := serviceUnderTest(t)

	tenant := uuid.New()
	admin := uuid.New()
	roles.addRole(admin, &tenant, access.RoleTenantAdmin)

	doc := &Document{
		ID:          uuid.New(),
		Slug:        "handbook",
		Title:       "Handbook",
		TenantID:    &tenant,
		AccessLevel: access.LevelRegistered,
		Active:      true,
	}
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1").
		WillReturnRows(docRow(doc))
	mock.ExpectExec("UPDATE documents SET active = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.Delete(context.Background(), &admin, doc.ID))
	assert.Equal(t, []uuid.UUID{doc.ID}, inval.invalidated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceCreateCategoryGating(t *testing.T) {
	svc, mock, roles, _ := serviceUnderTest(t)

	tenant := uuid.New()
	member := uuid.New()
	roles.addRole(member, &tenant, access.RoleRegistered)

	// Tenant member cannot create tenant categories
	err := svc.CreateCategory(context.Background(), &member, &Category{
		Name:     "Playbooks",
		TenantID: &tenant,
	})
	assert.ErrorIs(t, err, access.ErrPermissionDenied)

	// Tenant admin cannot create system defaults
	admin := uuid.New()
	roles.addRole(admin, &tenant, access.RoleTenantAdmin)
	err = svc.CreateCategory(context.Background(), &admin, &Category{Name: "Playbooks"})
	assert.ErrorIs(t, err, access.ErrPermissionDenied)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceCreateCategoryTenantAdmin(t *testing.T) {
	svc, mock, roles, _ := serviceUnderTest(t)

	tenant := uuid.New()
	admin := uuid.New()
	roles.addRole(admin, &tenant, access.RoleTenantAdmin)

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO categories").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(uuid.New().String(), time.Now()))

	category := &Category{Name: "Playbooks", TenantID: &tenant}
	require.NoError(t, svc.CreateCategory(context.Background(), &admin, category))
	assert.True(t, category.IsCustom, "tenant categories are always custom")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceListCategoriesRequiresPrincipal(t *testing.T) {
	svc, mock, _, _ := serviceUnderTest(t)

	_, err := svc.ListCategories(context.Background(), nil, nil)
	assert.ErrorIs(t, err, access.ErrPermissionDenied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func uuidPtrOf(id uuid.UUID) *uuid.UUID { return &id }
