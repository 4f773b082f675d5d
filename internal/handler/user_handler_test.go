package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawe-tz/mne-api/internal/models"
	"github.com/fawe-tz/mne-api/internal/service"
)

type memUserRepo struct {
	users  map[string]*models.User
	audits int
}

func newMemUserRepo(users ...models.User) *memUserRepo {
	repo := &memUserRepo{users: map[string]*models.User{}}
	for i := range users {
		u := users[i]
		repo.users[u.ID] = &u
	}
	return repo
}

func (m *memUserRepo) List(_ context.Context, _ models.UserFilter) ([]models.User, int, error) {
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *memUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memUserRepo) Create(_ context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) Update(_ context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) Delete(_ context.Context, id string) error {
	m.users[id].Active = false
	return nil
}

func (m *memUserRepo) CountActiveByRole(_ context.Context, role models.UserRole) (int, error) {
	n := 0
	for _, u := range m.users {
		if u.Role == role && u.Active {
			n++
		}
	}
	return n, nil
}

func (m *memUserRepo) CreateAuditLog(context.Context, *models.AuditLog) error {
	m.audits++
	return nil
}

func TestUserCreate(t *testing.T) {
	repo := newMemUserRepo()
	h := NewUserHandler(service.NewUserService(repo, nil, nil))

	payload := `{"email":"Entry@MNE.test","full_name":"Data Clerk","role":"DATA_ENTRY","password":"s3cretpass"}`
	c, rec := newTestContext(http.MethodPost, "/users", bytes.NewBufferString(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	withClaims(c, "admin-1", models.RoleAdmin)

	h.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	var user models.User
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &user))
	assert.Equal(t, "entry@mne.test", user.Email)
	assert.True(t, user.Active)
	assert.Equal(t, 1, repo.audits)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestUserCreateRejectsInvalidRole(t *testing.T) {
	h := NewUserHandler(service.NewUserService(newMemUserRepo(), nil, nil))

	payload := `{"email":"x@mne.test","full_name":"X","role":"ROOT","password":"s3cretpass"}`
	c, rec := newTestContext(http.MethodPost, "/users", bytes.NewBufferString(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	withClaims(c, "admin-1", models.RoleAdmin)

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserCreateWithoutCaller(t *testing.T) {
	h := NewUserHandler(service.NewUserService(newMemUserRepo(), nil, nil))
	c, rec := newTestContext(http.MethodPost, "/users", bytes.NewBufferString(`{}`))

	h.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserDeleteSelfForbidden(t *testing.T) {
	repo := newMemUserRepo(models.User{ID: "admin-1", Role: models.RoleAdmin, Active: true})
	h := NewUserHandler(service.NewUserService(repo, nil, nil))

	c, rec := newTestContext(http.MethodDelete, "/users/admin-1", nil)
	c.AddParam("id", "admin-1")
	withClaims(c, "admin-1", models.RoleAdmin)

	h.Delete(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, repo.users["admin-1"].Active)
}

func TestUserDeleteDeactivates(t *testing.T) {
	repo := newMemUserRepo(
		models.User{ID: "admin-1", Role: models.RoleAdmin, Active: true},
		models.User{ID: "viewer-1", Role: models.RoleViewer, Active: true},
	)
	h := NewUserHandler(service.NewUserService(repo, nil, nil))

	c, _ := newTestContext(http.MethodDelete, "/users/viewer-1", nil)
	c.AddParam("id", "viewer-1")
	withClaims(c, "admin-1", models.RoleAdmin)

	h.Delete(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.False(t, repo.users["viewer-1"].Active)
}

func TestUserGetNotFound(t *testing.T) {
	h := NewUserHandler(service.NewUserService(newMemUserRepo(), nil, nil))
	c, rec := newTestContext(http.MethodGet, "/users/missing", nil)
	c.AddParam("id", "missing")

	h.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, rec).Error.Code)
}
