package server_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/goliatone/go-gallery/config"
	"github.com/goliatone/go-gallery/server"
	"github.com/goliatone/go-gallery/storage"
)

// fakeBlobStore keeps uploaded objects in memory
type fakeBlobStore struct {
	objects map[string][]byte
}

func (f *fakeBlobStore) Upload(ctx context.Context, key string, body io.Reader, contentType string) (*storage.UploadResult, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	f.objects[key] = data

	return &storage.UploadResult{
		URL:      "https://cdn.example.com/" + key,
		PublicID: key,
	}, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, publicID string) error {
	delete(f.objects, publicID)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            "0",
			ShutdownTimeout: time.Second,
		},
		Auth: config.AuthConfig{
			SigningKey:      "e2e-test-signing-key",
			TokenExpiration: 5 * time.Minute,
			Issuer:          "go-gallery-test",
			ContextKey:      "user",
			AuthScheme:      "Bearer",
		},
		DB:      config.DBConfig{DSN: "unused"},
		Storage: storage.Config{},
	}
}

func setupApp(t *testing.T) (*server.App, *fakeBlobStore) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxIdleConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	blobs := &fakeBlobStore{objects: map[string][]byte{}}

	app, err := server.NewApp(context.Background(), testConfig(),
		server.WithDB(db),
		server.WithBlobStore(blobs),
	)
	require.NoError(t, err)

	return app, blobs
}

func jsonRequest(t *testing.T, app *server.App, method, path, token string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := app.Router().Test(req, 5000)
	require.NoError(t, err)

	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	body := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &body))

	return body
}

func register(t *testing.T, app *server.App, username, email, password, role string) *http.Response {
	t.Helper()

	payload := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}
	if role != "" {
		payload["role"] = role
	}

	return jsonRequest(t, app, http.MethodPost, "/api/auth/register", "", payload)
}

func login(t *testing.T, app *server.App, username, password string) string {
	t.Helper()

	resp := jsonRequest(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)

	return token
}

func uploadImage(t *testing.T, app *server.App, token, field, filename, contentType string, payload []byte) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename)}
	header["Content-Type"] = []string{contentType}

	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/image/upload", &buf)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := app.Router().Test(req, 5000)
	require.NoError(t, err)

	return resp
}

func TestRegistrationFlow(t *testing.T) {
	app, _ := setupApp(t)

	t.Run("registers a user", func(t *testing.T) {
		resp := register(t, app, "pepe", "pepe@example.com", "password123", "")
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		body := decode(t, resp)
		assert.Equal(t, true, body["success"])
		assert.Contains(t, body["message"], "pepe")
	})

	t.Run("rejects duplicate username", func(t *testing.T) {
		resp := register(t, app, "pepe", "other@example.com", "password123", "")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		body := decode(t, resp)
		assert.Equal(t, false, body["success"])
	})

	t.Run("rejects duplicate email with the same message", func(t *testing.T) {
		respUsername := register(t, app, "pepe", "unused@example.com", "password123", "")
		respEmail := register(t, app, "unused", "pepe@example.com", "password123", "")

		assert.Equal(t, http.StatusConflict, respUsername.StatusCode)
		assert.Equal(t, http.StatusConflict, respEmail.StatusCode)
		assert.Equal(t, decode(t, respUsername)["message"], decode(t, respEmail)["message"])
	})

	t.Run("rejects an invalid payload", func(t *testing.T) {
		resp := register(t, app, "x", "not-an-email", "123", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects an unknown role", func(t *testing.T) {
		resp := register(t, app, "rolehacker", "rolehacker@example.com", "password123", "root")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLoginFlow(t *testing.T) {
	app, _ := setupApp(t)

	resp := register(t, app, "login-user", "login@example.com", "password123", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("valid credentials", func(t *testing.T) {
		token := login(t, app, "login-user", "password123")
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := jsonRequest(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "login-user",
			"password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown user gets the identical response", func(t *testing.T) {
		respWrongPw := jsonRequest(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "login-user",
			"password": "wrong",
		})
		respUnknown := jsonRequest(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "ghost",
			"password": "password123",
		})

		assert.Equal(t, http.StatusUnauthorized, respWrongPw.StatusCode)
		assert.Equal(t, http.StatusUnauthorized, respUnknown.StatusCode)
		assert.Equal(t, decode(t, respWrongPw), decode(t, respUnknown))
	})

	t.Run("missing fields behave like bad credentials", func(t *testing.T) {
		resp := jsonRequest(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "login-user",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestWelcomeEndpoint(t *testing.T) {
	app, _ := setupApp(t)

	register(t, app, "greeter", "greeter@example.com", "password123", "")
	token := login(t, app, "greeter", "password123")

	t.Run("requires a token", func(t *testing.T) {
		resp := jsonRequest(t, app, http.MethodGet, "/api/home/welcome", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("echoes the identity", func(t *testing.T) {
		resp := jsonRequest(t, app, http.MethodGet, "/api/home/welcome", token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode(t, resp)
		assert.Contains(t, body["message"], "greeter")

		user, ok := body["user"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "greeter", user["username"])
		assert.Equal(t, "user", user["role"])
	})
}

func TestChangePasswordFlow(t *testing.T) {
	app, _ := setupApp(t)

	register(t, app, "rotator", "rotator@example.com", "first-password", "")
	token := login(t, app, "rotator", "first-password")

	t.Run("requires a token", func(t *testing.T) {
		resp := jsonRequest(t, app, http.MethodPost, "/api/auth/change-password", "", map[string]string{
			"old_password": "first-password",
			"new_password": "second-password",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong old password does not change anything", func(t *testing.T) {
		resp := jsonRequest(t, app, http.MethodPost, "/api/auth/change-password", token, map[string]string{
			"old_password": "not-the-password",
			"new_password": "attacker-password",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		// old credentials still work
		login(t, app, "rotator", "first-password")
	})

	t.Run("identical old and new password is rejected", func(t *testing.T) {
		resp := jsonRequest(t, app, http.MethodPost, "/api/auth/change-password", token, map[string]string{
			"old_password": "first-password",
			"new_password": "first-password",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("changes the password", func(t *testing.T) {
		resp := jsonRequest(t, app, http.MethodPost, "/api/auth/change-password", token, map[string]string{
			"old_password": "first-password",
			"new_password": "second-password",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		// new credentials work, old ones do not
		login(t, app, "rotator", "second-password")

		failed := jsonRequest(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "rotator",
			"password": "first-password",
		})
		assert.Equal(t, http.StatusUnauthorized, failed.StatusCode)
	})
}

func TestImageFlow(t *testing.T) {
	app, blobs := setupApp(t)

	register(t, app, "boss", "boss@example.com", "password123", "admin")
	register(t, app, "member", "member@example.com", "password123", "")

	adminToken := login(t, app, "boss", "password123")
	memberToken := login(t, app, "member", "password123")

	t.Run("upload requires a token", func(t *testing.T) {
		resp := uploadImage(t, app, "", "image", "cat.png", "image/png", []byte("png-bytes"))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("upload requires the admin role", func(t *testing.T) {
		resp := uploadImage(t, app, memberToken, "image", "cat.png", "image/png", []byte("png-bytes"))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		body := decode(t, resp)
		assert.Equal(t, "Access denied. Admin rights required!", body["message"])
	})

	var imageID string

	t.Run("admin uploads an image", func(t *testing.T) {
		resp := uploadImage(t, app, adminToken, "image", "cat.png", "image/png", []byte("png-bytes"))
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		body := decode(t, resp)
		assert.Equal(t, true, body["success"])

		image, ok := body["image"].(map[string]any)
		require.True(t, ok)
		imageID, _ = image["id"].(string)
		assert.NotEmpty(t, imageID)
		assert.NotEmpty(t, image["url"])

		publicID, _ := image["public_id"].(string)
		assert.Equal(t, []byte("png-bytes"), blobs.objects[publicID])
	})

	t.Run("upload rejects a missing file", func(t *testing.T) {
		resp := jsonRequest(t, app, http.MethodPost, "/api/image/upload", adminToken, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("upload rejects non-image content", func(t *testing.T) {
		resp := uploadImage(t, app, adminToken, "image", "doc.pdf", "application/pdf", []byte("pdf-bytes"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("any authenticated user can list", func(t *testing.T) {
		resp := jsonRequest(t, app, http.MethodGet, "/api/image/get?page=1&limit=5", memberToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode(t, resp)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, float64(1), body["current_page"])
		assert.Equal(t, float64(1), body["total_pages"])
		assert.Equal(t, float64(1), body["total_results"])

		images, ok := body["images"].([]any)
		require.True(t, ok)
		assert.Len(t, images, 1)
	})

	t.Run("listing requires a token", func(t *testing.T) {
		resp := jsonRequest(t, app, http.MethodGet, "/api/image/get", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("delete rejects non-owners", func(t *testing.T) {
		resp := jsonRequest(t, app, http.MethodDelete, "/api/image/"+imageID, memberToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("delete rejects a bad id", func(t *testing.T) {
		resp := jsonRequest(t, app, http.MethodDelete, "/api/image/not-a-uuid", adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("owner deletes the image", func(t *testing.T) {
		resp := jsonRequest(t, app, http.MethodDelete, "/api/image/"+imageID, adminToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Empty(t, blobs.objects)

		listResp := jsonRequest(t, app, http.MethodGet, "/api/image/get", adminToken, nil)
		body := decode(t, listResp)
		assert.Equal(t, float64(0), body["total_results"])
	})

	t.Run("deleting a missing image is a 404", func(t *testing.T) {
		resp := jsonRequest(t, app, http.MethodDelete, "/api/image/"+uuid.NewString(), adminToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestUploadBodyLimit(t *testing.T) {
	app, blobs := setupApp(t)

	register(t, app, "archivist", "archivist@example.com", "password123", "admin")
	token := login(t, app, "archivist", "password123")

	t.Run("accepts a file just under the upload cap", func(t *testing.T) {
		// past fiber's stock 4 MB body limit, under the 5 MiB cap
		payload := bytes.Repeat([]byte{0x89}, 9*(1<<20)/2)
		resp := uploadImage(t, app, token, "image", "big.png", "image/png", payload)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Len(t, blobs.objects, 1)
	})

	t.Run("rejects a file over the upload cap", func(t *testing.T) {
		payload := bytes.Repeat([]byte{0x89}, 11*(1<<20)/2)
		resp := uploadImage(t, app, token, "image", "huge.png", "image/png", payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Len(t, blobs.objects, 1)
	})
}

func TestExpiredTokenIsRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.TokenExpiration = time.Nanosecond

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxIdleConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	app, err := server.NewApp(context.Background(), cfg,
		server.WithDB(db),
		server.WithBlobStore(&fakeBlobStore{objects: map[string][]byte{}}),
	)
	require.NoError(t, err)

	register(t, app, "shortlived", "short@example.com", "password123", "")
	token := login(t, app, "shortlived", "password123")

	time.Sleep(10 * time.Millisecond)

	resp := jsonRequest(t, app, http.MethodGet, "/api/home/welcome", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
