package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/reloop/marketplace/internal/events"
	"github.com/reloop/marketplace/internal/hash"
	"github.com/reloop/marketplace/internal/models"
	"github.com/reloop/marketplace/internal/session"
	"github.com/reloop/marketplace/internal/token"
	"github.com/reloop/marketplace/internal/upload"
)

type testEnv struct {
	DB    *gorm.DB
	E     *echo.Echo
	Codec *token.Codec
	Auth  *AuthHandler
	Posts *PostHandler
	Comm  *CommentHandler
	Users *UserHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.RefreshToken{}, &models.Post{}, &models.Comment{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	codec := &token.Codec{
		Secret:     []byte("test-secret"),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
	auth := &session.Authenticator{DB: db, Codec: codec}
	uploads := &upload.Saver{Dir: t.TempDir()}
	producer := &events.Producer{}

	return &testEnv{
		DB:    db,
		E:     echo.New(),
		Codec: codec,
		Auth: &AuthHandler{
			DB:       db,
			Auth:     auth,
			Uploads:  uploads,
			Producer: producer,
		},
		Posts: &PostHandler{DB: db, Producer: producer, Uploads: uploads},
		Comm:  &CommentHandler{DB: db, Producer: producer},
		Users: &UserHandler{DB: db, Uploads: uploads},
	}
}

func (env *testEnv) doJSONRequest(t *testing.T, method, target string, payload any) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(bodyBytes)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, env.E.NewContext(req, rec)
}

func (env *testEnv) createUser(t *testing.T, email, password string) *models.User {
	t.Helper()
	pwHash, err := hash.HashPassword(password)
	require.NoError(t, err)
	user := models.User{Username: "tester", Email: email, PasswordHash: pwHash}
	require.NoError(t, env.DB.Create(&user).Error)
	return &user
}
