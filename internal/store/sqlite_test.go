package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/seantiz/babelpdf/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeTestUser(username string) *model.User {
	return &model.User{
		ID:           model.NewID(),
		Username:     username,
		PasswordHash: "$2a$14$fakehash",
		Role:         model.RoleUser,
		IsActive:     true,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func makeTestHistory(userID string) *model.HistoryEntry {
	return &model.HistoryEntry{
		ID:        model.NewID(),
		UserID:    userID,
		Filename:  "report.pdf",
		FileSize:  2048,
		MonoPath:  "/out/mono.pdf",
		DualPath:  "/out/dual.pdf",
		Status:    model.StatusCompleted,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := makeTestUser("alice")

	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("Username = %q, want alice", got.Username)
	}
	if got.Role != model.RoleUser {
		t.Errorf("Role = %q, want %q", got.Role, model.RoleUser)
	}
	if !got.IsActive {
		t.Error("IsActive = false, want true")
	}
	if got.LastLogin != nil {
		t.Errorf("LastLogin = %v, want nil", got.LastLogin)
	}

	byName, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if byName.ID != u.ID {
		t.Errorf("ID = %q, want %q", byName.ID, u.ID)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, makeTestUser("bob")); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	err := s.CreateUser(ctx, makeTestUser("bob"))
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Errorf("second CreateUser = %v, want ErrDuplicateUsername", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetUser(ctx, "nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser = %v, want ErrNotFound", err)
	}
	if _, err := s.GetUserByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByUsername = %v, want ErrNotFound", err)
	}
}

func TestUpdateLastLoginAndToggle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := makeTestUser("carol")
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	at := time.Now().UTC().Truncate(time.Second)
	if err := s.UpdateLastLogin(ctx, u.ID, at); err != nil {
		t.Fatalf("UpdateLastLogin: %v", err)
	}
	if err := s.SetUserActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.LastLogin == nil || !got.LastLogin.Equal(at) {
		t.Errorf("LastLogin = %v, want %v", got.LastLogin, at)
	}
	if got.IsActive {
		t.Error("IsActive = true, want false")
	}

	if err := s.SetUserActive(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetUserActive(missing) = %v, want ErrNotFound", err)
	}
}

func TestUpdatePassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := makeTestUser("dave")
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if err := s.UpdatePassword(ctx, u.ID, "$2a$14$newhash"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.PasswordHash != "$2a$14$newhash" {
		t.Errorf("PasswordHash = %q, want the replacement hash", got.PasswordHash)
	}

	if err := s.UpdatePassword(ctx, "missing", "$2a$14$x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdatePassword(missing) = %v, want ErrNotFound", err)
	}
}

func TestAdminExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exists, err := s.AdminExists(ctx)
	if err != nil {
		t.Fatalf("AdminExists: %v", err)
	}
	if exists {
		t.Error("AdminExists = true on empty store")
	}

	admin := makeTestUser("root")
	admin.Role = model.RoleAdmin
	if err := s.CreateUser(ctx, admin); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	exists, err = s.AdminExists(ctx)
	if err != nil {
		t.Fatalf("AdminExists: %v", err)
	}
	if !exists {
		t.Error("AdminExists = false after creating admin")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := makeTestUser("dave")
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	raw, err := s.GetConfig(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if raw != "" {
		t.Errorf("GetConfig on empty = %q, want empty", raw)
	}

	if err := s.PutConfig(ctx, u.ID, `{"a":1}`); err != nil {
		t.Fatalf("PutConfig: %v", err)
	}
	// Wholesale replacement on update.
	if err := s.PutConfig(ctx, u.ID, `{"b":2}`); err != nil {
		t.Fatalf("PutConfig update: %v", err)
	}

	raw, err = s.GetConfig(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if raw != `{"b":2}` {
		t.Errorf("GetConfig = %q, want replacement", raw)
	}
}

func TestHistoryLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := makeTestUser("erin")
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	h := makeTestHistory(u.ID)
	if err := s.CreateHistory(ctx, h); err != nil {
		t.Fatalf("CreateHistory: %v", err)
	}

	got, err := s.GetHistory(ctx, h.ID)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if got.Filename != "report.pdf" || got.DualPath != "/out/dual.pdf" {
		t.Errorf("entry = %+v", got)
	}

	if err := s.DeleteHistory(ctx, h.ID); err != nil {
		t.Fatalf("DeleteHistory: %v", err)
	}
	if _, err := s.GetHistory(ctx, h.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetHistory after delete = %v, want ErrNotFound", err)
	}
	if err := s.DeleteHistory(ctx, h.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteHistory again = %v, want ErrNotFound", err)
	}
}

func TestListHistoryNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := makeTestUser("frank")
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	var ids []string
	for i := 0; i < 3; i++ {
		h := makeTestHistory(u.ID)
		h.Filename = fmt.Sprintf("doc-%d.pdf", i)
		h.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := s.CreateHistory(ctx, h); err != nil {
			t.Fatalf("CreateHistory[%d]: %v", i, err)
		}
		ids = append(ids, h.ID)
	}

	entries, err := s.ListHistory(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].ID != ids[2] || entries[2].ID != ids[0] {
		t.Error("entries not ordered newest first")
	}
}

func TestListAllHistoryResolvesUsernames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u1 := makeTestUser("gina")
	u2 := makeTestUser("hank")
	for _, u := range []*model.User{u1, u2} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}
	for _, u := range []*model.User{u1, u2} {
		if err := s.CreateHistory(ctx, makeTestHistory(u.ID)); err != nil {
			t.Fatalf("CreateHistory: %v", err)
		}
	}

	entries, err := s.ListAllHistory(ctx)
	if err != nil {
		t.Fatalf("ListAllHistory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Username == "" {
			t.Errorf("entry %s has no username", e.ID)
		}
	}
}

func TestDeleteUserHistoryReturnsEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := makeTestUser("iris")
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.CreateHistory(ctx, makeTestHistory(u.ID)); err != nil {
			t.Fatalf("CreateHistory: %v", err)
		}
	}

	deleted, err := s.DeleteUserHistory(ctx, u.ID)
	if err != nil {
		t.Fatalf("DeleteUserHistory: %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("deleted %d entries, want 2", len(deleted))
	}

	remaining, err := s.ListHistory(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("remaining = %d, want 0", len(remaining))
	}
}

func TestDeleteUserCascadesConfig(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := makeTestUser("judy")
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.PutConfig(ctx, u.ID, `{"x":1}`); err != nil {
		t.Fatalf("PutConfig: %v", err)
	}

	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if _, err := s.GetUser(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser after delete = %v, want ErrNotFound", err)
	}
	raw, err := s.GetConfig(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if raw != "" {
		t.Errorf("config survived user deletion: %q", raw)
	}

	if err := s.DeleteUser(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteUser again = %v, want ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u1 := makeTestUser("kim")
	u2 := makeTestUser("lee")
	for _, u := range []*model.User{u1, u2} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		h := makeTestHistory(u1.ID)
		h.FileSize = 1000
		if err := s.CreateHistory(ctx, h); err != nil {
			t.Fatalf("CreateHistory: %v", err)
		}
	}

	sys, err := s.GetSystemStats(ctx)
	if err != nil {
		t.Fatalf("GetSystemStats: %v", err)
	}
	if sys.TotalUsers != 2 || sys.TotalFiles != 3 || sys.TotalSize != 3000 {
		t.Errorf("system stats = %+v", sys)
	}

	users, err := s.GetUserStats(ctx)
	if err != nil {
		t.Fatalf("GetUserStats: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len(user stats) = %d, want 2", len(users))
	}
	byName := map[string]UserStats{}
	for _, st := range users {
		byName[st.Username] = st
	}
	if st := byName["kim"]; st.FileCount != 3 || st.TotalSize != 3000 {
		t.Errorf("kim stats = %+v", st)
	}
	if st := byName["lee"]; st.FileCount != 0 || st.TotalSize != 0 {
		t.Errorf("lee stats = %+v", st)
	}
}
