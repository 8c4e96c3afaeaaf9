package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/seantiz/babelpdf/internal/model"
)

func TestAuthStatusBeforeAndAfterSetup(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := doJSON(t, ts, "GET", "/auth/status", "", "")
	var status authStatusResponse
	decodeResp(t, resp, &status)
	if status.Initialized {
		t.Error("Initialized = true before setup, want false")
	}
	if !status.AllowRegistration {
		t.Error("AllowRegistration = false, want true")
	}

	setupAdmin(t, ts)

	resp = doJSON(t, ts, "GET", "/auth/status", "", "")
	decodeResp(t, resp, &status)
	if !status.Initialized {
		t.Error("Initialized = false after setup, want true")
	}
}

func TestSetupCreatesAdminWithTokens(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	tok := setupAdmin(t, ts)

	if tok.AccessToken == "" || tok.RefreshToken == "" {
		t.Fatal("setup returned empty tokens")
	}
	if tok.TokenType != "bearer" {
		t.Errorf("TokenType = %q, want %q", tok.TokenType, "bearer")
	}
	if tok.User.Role != model.RoleAdmin {
		t.Errorf("Role = %q, want %q", tok.User.Role, model.RoleAdmin)
	}
	if !tok.User.IsActive {
		t.Error("IsActive = false, want true")
	}

	// The access token works against a protected route.
	resp := doJSON(t, ts, "GET", "/auth/me", tok.AccessToken, "")
	var me model.User
	decodeResp(t, resp, &me)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /auth/me status = %d, want 200", resp.StatusCode)
	}
	if me.Username != "admin" {
		t.Errorf("Username = %q, want %q", me.Username, "admin")
	}
}

func TestSetupOnlyRunsOnce(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	setupAdmin(t, ts)

	resp := doJSON(t, ts, "POST", "/auth/setup", "", `{"username":"second","password":"pw"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("second setup status = %d, want 400", resp.StatusCode)
	}
}

func TestRegisterRequiresSetup(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := doJSON(t, ts, "POST", "/auth/register", "", `{"username":"alice","password":"pw"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("register before setup status = %d, want 400", resp.StatusCode)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	setupAdmin(t, ts)
	registerUser(t, ts, "alice")

	resp := doJSON(t, ts, "POST", "/auth/register", "", `{"username":"alice","password":"other"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("duplicate register status = %d, want 400", resp.StatusCode)
	}
}

func TestRegisterRespectsToggle(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	admin := setupAdmin(t, ts)

	resp := doJSON(t, ts, "PATCH", "/admin/settings", admin.AccessToken, `{"allow_registration":false}`)
	var settings adminSettingsResponse
	decodeResp(t, resp, &settings)
	if settings.AllowRegistration {
		t.Fatal("AllowRegistration = true after disabling")
	}

	resp = doJSON(t, ts, "POST", "/auth/register", "", `{"username":"bob","password":"pw"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("register while disabled status = %d, want 403", resp.StatusCode)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	setupAdmin(t, ts)

	resp := doJSON(t, ts, "POST", "/auth/login", "", `{"username":"admin","password":"wrong"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", resp.StatusCode)
	}

	// An unknown username gets the same answer.
	resp2 := doJSON(t, ts, "POST", "/auth/login", "", `{"username":"ghost","password":"wrong"}`)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Errorf("unknown user status = %d, want 401", resp2.StatusCode)
	}
}

func TestLoginRecordsLastLogin(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	setupAdmin(t, ts)

	resp := doJSON(t, ts, "POST", "/auth/login", "", `{"username":"admin","password":"hunter2"}`)
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	var tok tokenResponse
	decodeResp(t, resp, &tok)

	if tok.User.LastLogin == nil {
		t.Error("LastLogin = nil after login, want set")
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	tok := setupAdmin(t, ts)

	body := fmt.Sprintf(`{"refresh_token":%q}`, tok.RefreshToken)
	resp := doJSON(t, ts, "POST", "/auth/refresh", "", body)
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		t.Fatalf("refresh status = %d, want 200", resp.StatusCode)
	}
	var fresh tokenResponse
	decodeResp(t, resp, &fresh)
	if fresh.AccessToken == "" || fresh.RefreshToken == "" {
		t.Fatal("refresh returned empty tokens")
	}

	// The superseded refresh token is rejected.
	resp = doJSON(t, ts, "POST", "/auth/refresh", "", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("stale refresh status = %d, want 401", resp.StatusCode)
	}
}

func TestRefreshAcceptsBearerForm(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	tok := setupAdmin(t, ts)

	resp := doJSON(t, ts, "POST", "/auth/refresh", tok.RefreshToken, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("bearer refresh status = %d, want 200", resp.StatusCode)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	tok := setupAdmin(t, ts)

	body := fmt.Sprintf(`{"refresh_token":%q}`, tok.AccessToken)
	resp := doJSON(t, ts, "POST", "/auth/refresh", "", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("access-token refresh status = %d, want 401", resp.StatusCode)
	}
}

func TestLogoutInvalidatesRefresh(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	tok := setupAdmin(t, ts)

	resp := doJSON(t, ts, "POST", "/auth/logout", tok.AccessToken, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", resp.StatusCode)
	}

	body := fmt.Sprintf(`{"refresh_token":%q}`, tok.RefreshToken)
	resp = doJSON(t, ts, "POST", "/auth/refresh", "", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("refresh after logout status = %d, want 401", resp.StatusCode)
	}
}

func TestChangePassword(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	tok := setupAdmin(t, ts)

	// Wrong current password is rejected and nothing changes.
	resp := doJSON(t, ts, "POST", "/auth/change-password", tok.AccessToken,
		`{"old_password":"wrong","new_password":"swordfish"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("wrong current password status = %d, want 400", resp.StatusCode)
	}

	resp = doJSON(t, ts, "POST", "/auth/change-password", tok.AccessToken,
		`{"old_password":"hunter2","new_password":"swordfish"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change password status = %d, want 200", resp.StatusCode)
	}

	// The old credential no longer logs in; the new one does.
	resp = doJSON(t, ts, "POST", "/auth/login", "", `{"username":"admin","password":"hunter2"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("old password login status = %d, want 401", resp.StatusCode)
	}
	resp = doJSON(t, ts, "POST", "/auth/login", "", `{"username":"admin","password":"swordfish"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("new password login status = %d, want 200", resp.StatusCode)
	}

	// The session was cleared, so the pre-change refresh token is dead.
	body := fmt.Sprintf(`{"refresh_token":%q}`, tok.RefreshToken)
	resp = doJSON(t, ts, "POST", "/auth/refresh", "", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("refresh after password change status = %d, want 401", resp.StatusCode)
	}
}

func TestChangePasswordRequiresNewPassword(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	tok := setupAdmin(t, ts)

	resp := doJSON(t, ts, "POST", "/auth/change-password", tok.AccessToken,
		`{"old_password":"hunter2","new_password":""}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty new password status = %d, want 400", resp.StatusCode)
	}
}

func TestProtectedRoutesRejectBadTokens(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	tok := setupAdmin(t, ts)

	cases := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
		{"refresh as access", tok.RefreshToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, ts, "GET", "/auth/me", tc.token, "")
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
		})
	}
}
