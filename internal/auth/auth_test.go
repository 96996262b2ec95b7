package auth

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangasync/pkg/database"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

var tokens = TokenService{Secret: []byte("test-secret"), Issuer: "mangasync", Duration: time.Hour}

func testRouter(t *testing.T) (*gin.Engine, *Repo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := NewRepo(testDB(t))
	r := gin.New()
	api := r.Group("/api")
	NewHandler(repo, tokens, zerolog.Nop()).RegisterRoutes(api)
	api.GET("/private", RequireAdmin(tokens, repo), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": MustGetClaims(c).Email})
	})
	return r, repo
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthWithPassword(t *testing.T) {
	r, repo := testRouter(t)
	_, created, err := repo.EnsureAdmin(context.Background(), "Admin@Example.com", "correct-horse")
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = repo.EnsureAdmin(context.Background(), "admin@example.com", "whatever1")
	require.NoError(t, err)
	assert.False(t, created)

	w := postJSON(r, "/api/admins/auth-with-password", passwordReq{Identity: "admin@example.com", Password: "wrong-pass"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/api/admins/auth-with-password", passwordReq{Identity: "admin@example.com", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Token string `json:"token"`
		Admin Admin  `json:"admin"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "admin@example.com", res.Admin.Email)
	assert.NotContains(t, w.Body.String(), "password")

	for _, header := range []string{res.Token, "Bearer " + res.Token} {
		req := httptest.NewRequest(http.MethodGet, "/api/private", nil)
		req.Header.Set("Authorization", header)
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRequireAdminRejects(t *testing.T) {
	r, repo := testRouter(t)
	a, err := repo.CreateAdmin(context.Background(), "a@b.c", "password1")
	require.NoError(t, err)

	other := TokenService{Secret: []byte("other"), Issuer: "mangasync", Duration: time.Hour}
	forged, _, err := other.Sign(a)
	require.NoError(t, err)

	stale := *a
	stale.TokenKey = "revoked"
	revoked, _, err := tokens.Sign(&stale)
	require.NoError(t, err)

	for name, header := range map[string]string{"missing": "", "forged": forged, "revoked": revoked, "junk": "Bearer abc"} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/private", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	a := &Admin{ID: "abc", Email: "a@b.c", TokenKey: "k"}
	s, exp, err := tokens.Sign(a)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := tokens.Parse(s)
	require.NoError(t, err)
	assert.Equal(t, "abc", claims.AdminID)
	assert.Equal(t, "k", claims.TokenKey)

	wrongIssuer := tokens
	wrongIssuer.Issuer = "someone-else"
	_, err = wrongIssuer.Parse(s)
	assert.Error(t, err)
}
