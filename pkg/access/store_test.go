package access

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantTenantAdminPrunesRedundantRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	principal := uuid.New()
	tenant := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO role_assignments").
		WithArgs(principal, &tenant, RoleTenantAdmin).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM tenant_access_grants").
		WithArgs(principal, tenant).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM role_assignments").
		WithArgs(principal, tenant, RoleRegistered).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := NewStore(db)
	result, err := store.Grant(context.Background(), principal, &tenant, RoleTenantAdmin)
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.DirectGrantsRemoved)
	assert.Equal(t, int64(1), result.RegisteredRolesRemoved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantSuperAdminPrunesAcrossAllTenants(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	principal := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO role_assignments").
		WithArgs(principal, nil, RoleSuperAdmin).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// No tenant filter: every direct grant and registered role goes
	mock.ExpectExec("DELETE FROM tenant_access_grants WHERE principal_id").
		WithArgs(principal).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM role_assignments WHERE principal_id").
		WithArgs(principal, RoleRegistered).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	store := NewStore(db)
	result, err := store.Grant(context.Background(), principal, nil, RoleSuperAdmin)
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.DirectGrantsRemoved)
	assert.Equal(t, int64(2), result.RegisteredRolesRemoved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantRegisteredSkipsCleanup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	principal := uuid.New()
	tenant := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO role_assignments").
		WithArgs(principal, &tenant, RoleRegistered).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := NewStore(db)
	result, err := store.Grant(context.Background(), principal, &tenant, RoleRegistered)
	require.NoError(t, err)

	assert.Zero(t, result.DirectGrantsRemoved)
	assert.Zero(t, result.RegisteredRolesRemoved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantIdempotentInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	principal := uuid.New()
	tenant := uuid.New()

	// Second grant of the same assignment: conflict swallows the insert but
	// the cleanup still runs
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO role_assignments").
		WithArgs(principal, &tenant, RoleTenantAdmin).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM tenant_access_grants").
		WithArgs(principal, tenant).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM role_assignments").
		WithArgs(principal, tenant, RoleRegistered).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	store := NewStore(db)
	_, err = store.Grant(context.Background(), principal, &tenant, RoleTenantAdmin)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantRejectsInvalidScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	principal := uuid.New()
	tenant := uuid.New()

	// super_admin must be global
	_, err = store.Grant(context.Background(), principal, &tenant, RoleSuperAdmin)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	// tenant-scoped roles need a tenant
	_, err = store.Grant(context.Background(), principal, nil, RoleRegistered)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = store.Grant(context.Background(), principal, nil, RoleTenantAdmin)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = store.Grant(context.Background(), principal, &tenant, Role("owner"))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	// Nothing reached the database
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantRollsBackOnCleanupFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	principal := uuid.New()
	tenant := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO role_assignments").
		WithArgs(principal, &tenant, RoleTenantAdmin).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM tenant_access_grants").
		WithArgs(principal, tenant).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	store := NewStore(db)
	_, err = store.Grant(context.Background(), principal, &tenant, RoleTenantAdmin)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRolesFor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	principal := uuid.New()
	tenant := uuid.New()
	rowID := uuid.New()
	globalRowID := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "principal_id", "tenant_id", "role", "granted_at"}).
		AddRow(rowID.String(), principal.String(), tenant.String(), "tenant_admin", time.Now()).
		AddRow(globalRowID.String(), principal.String(), nil, "super_admin", time.Now())

	mock.ExpectQuery("SELECT id, principal_id, tenant_id, role, granted_at").
		WithArgs(principal).
		WillReturnRows(rows)

	store := NewStore(db)
	assignments, err := store.RolesFor(context.Background(), principal)
	require.NoError(t, err)
	require.Len(t, assignments, 2)

	assert.Equal(t, RoleTenantAdmin, assignments[0].Role)
	require.NotNil(t, assignments[0].TenantID)
	assert.Equal(t, tenant, *assignments[0].TenantID)

	assert.Equal(t, RoleSuperAdmin, assignments[1].Role)
	assert.Nil(t, assignments[1].TenantID)
}

func TestHasDirectGrant(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	principal := uuid.New()
	tenant := uuid.New()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(principal, tenant).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	store := NewStore(db)
	has, err := store.HasDirectGrant(context.Background(), principal, tenant)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestRevokeGlobalRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	principal := uuid.New()

	mock.ExpectExec("DELETE FROM role_assignments").
		WithArgs(principal, RoleSuperAdmin, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewStore(db)
	err = store.Revoke(context.Background(), principal, nil, RoleSuperAdmin)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
