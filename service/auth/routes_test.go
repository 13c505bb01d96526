package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carelane/hms-server/cmd/models"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("getting sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.Patient{}); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func newTestRouter(db *gorm.DB) *mux.Router {
	router := mux.NewRouter()
	NewHandler(db).RegisterRoutes(router.PathPrefix("/auth").Subrouter())
	return router
}

func postJSON(t *testing.T, router *mux.Router, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshalling request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegister_CreatesPatientProfile(t *testing.T) {
	db := newTestDB(t)
	router := newTestRouter(db)

	rec := postJSON(t, router, "/auth/register", map[string]string{
		"username": "alice",
		"password": "secret123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var user models.User
	if err := db.Where("username = ?", "alice").First(&user).Error; err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if user.Role != models.RolePatient {
		t.Errorf("expected patient role, got %s", user.Role)
	}

	var patient models.Patient
	if err := db.Where("user_id = ?", user.ID).First(&patient).Error; err != nil {
		t.Fatalf("patient profile not created: %v", err)
	}
	if patient.FullName != "alice" {
		t.Errorf("expected profile name defaulted from username, got %q", patient.FullName)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	router := newTestRouter(db)

	body := map[string]string{"username": "alice", "password": "secret123"}
	if rec := postJSON(t, router, "/auth/register", body); rec.Code != http.StatusCreated {
		t.Fatalf("first register failed: %d", rec.Code)
	}

	rec := postJSON(t, router, "/auth/register", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d", rec.Code)
	}

	var count int64
	db.Model(&models.User{}).Where("username = ?", "alice").Count(&count)
	if count != 1 {
		t.Errorf("expected exactly one user row, got %d", count)
	}
}

func TestRegister_MissingFields(t *testing.T) {
	db := newTestDB(t)
	router := newTestRouter(db)

	rec := postJSON(t, router, "/auth/register", map[string]string{"username": "alice"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", rec.Code)
	}
}

func TestLogin_SameMessageForUnknownUserAndWrongPassword(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	db := newTestDB(t)
	router := newTestRouter(db)

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.DefaultCost)
	db.Create(&models.User{Username: "alice", PasswordHash: string(hash), Role: models.RolePatient})

	unknown := postJSON(t, router, "/auth/login", map[string]string{
		"username": "nobody", "password": "whatever",
	})
	wrong := postJSON(t, router, "/auth/login", map[string]string{
		"username": "alice", "password": "incorrect",
	})

	if unknown.Code != http.StatusUnauthorized || wrong.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d and %d", unknown.Code, wrong.Code)
	}
	if unknown.Body.String() != wrong.Body.String() {
		t.Errorf("error messages differ: %q vs %q", unknown.Body.String(), wrong.Body.String())
	}
}

func TestLogin_Success(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	db := newTestDB(t)
	router := newTestRouter(db)

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.DefaultCost)
	db.Create(&models.User{Username: "alice", PasswordHash: string(hash), Role: models.RolePatient})

	rec := postJSON(t, router, "/auth/login", map[string]string{
		"username": "alice", "password": "correct",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if response["access_token"] == "" || response["access_token"] == nil {
		t.Error("expected an access token")
	}
	if response["refresh_token"] == "" || response["refresh_token"] == nil {
		t.Error("expected a refresh token")
	}
	if response["role"] != models.RolePatient {
		t.Errorf("expected patient role in response, got %v", response["role"])
	}

	var user models.User
	db.Where("username = ?", "alice").First(&user)
	if user.RefreshToken == "" {
		t.Error("expected refresh token persisted on the user")
	}
}

func TestLogin_Blacklisted(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	db := newTestDB(t)
	router := newTestRouter(db)

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.DefaultCost)
	db.Create(&models.User{
		Username: "alice", PasswordHash: string(hash),
		Role: models.RolePatient, IsBlacklisted: true,
	})

	rec := postJSON(t, router, "/auth/login", map[string]string{
		"username": "alice", "password": "correct",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for blacklisted account, got %d", rec.Code)
	}
}

func TestRefreshToken_RotatesToken(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	db := newTestDB(t)
	router := newTestRouter(db)

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.DefaultCost)
	db.Create(&models.User{Username: "alice", PasswordHash: string(hash), Role: models.RolePatient})

	login := postJSON(t, router, "/auth/login", map[string]string{
		"username": "alice", "password": "correct",
	})
	var loginResponse map[string]interface{}
	json.Unmarshal(login.Body.Bytes(), &loginResponse)
	oldToken, _ := loginResponse["refresh_token"].(string)
	if oldToken == "" {
		t.Fatal("login did not return a refresh token")
	}

	rec := postJSON(t, router, "/auth/refresh", map[string]string{"refresh_token": oldToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var refreshResponse map[string]string
	json.Unmarshal(rec.Body.Bytes(), &refreshResponse)
	if refreshResponse["refresh_token"] == "" || refreshResponse["refresh_token"] == oldToken {
		t.Error("expected a rotated refresh token")
	}

	// The old token no longer works.
	replay := postJSON(t, router, "/auth/refresh", map[string]string{"refresh_token": oldToken})
	if replay.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 replaying the old token, got %d", replay.Code)
	}
}
