package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/EgejuruProsper/alx-polly-sub001/auth"
	testpg "github.com/EgejuruProsper/alx-polly-sub001/internal/testutil/postgrescontainer"
)

const testTimeout = 5 * time.Second

func TestMain(m *testing.M) {
	if err := testpg.Setup(); err != nil {
		fmt.Println("postgres repository tests skipped:", err)
		os.Exit(0)
	}

	code := m.Run()

	if err := testpg.Teardown(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: failed to stop postgres test container:", err)
	}

	os.Exit(code)
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	db, err := Open(ctx, WithDSN(testpg.DSN()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ensureSchema(t *testing.T, db *sql.DB) {
	t.Helper()
	drops := []string{
		"DROP TABLE IF EXISTS votes",
		"DROP TABLE IF EXISTS poll_options",
		"DROP TABLE IF EXISTS polls",
		"DROP TABLE IF EXISTS users",
	}
	for _, stmt := range drops {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("drop schema: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
}

func newDBUser(email string) auth.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return auth.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Test User",
		Role:         auth.RoleVoter,
		PasswordHash: []byte("$2a$10$fakehashfakehashfakehash"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserRepositoryCRUD(t *testing.T) {
	db := openTestDB(t)
	ensureSchema(t, db)
	repo := NewUserRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	user := newDBUser("crud@example.com")
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	fetched, err := repo.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if fetched.Email != user.Email || fetched.Role != auth.RoleVoter {
		t.Fatalf("GetUser() = %+v", fetched)
	}
	if string(fetched.PasswordHash) != string(user.PasswordHash) {
		t.Fatal("password hash did not round trip")
	}

	// Email lookups are case-insensitive thanks to CITEXT.
	byEmail, err := repo.GetUserByEmail(ctx, "CRUD@Example.COM")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if byEmail.ID != user.ID {
		t.Fatalf("GetUserByEmail() = %v, want %v", byEmail.ID, user.ID)
	}

	fetched.Role = auth.RoleAdmin
	fetched.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	if err := repo.UpdateUser(ctx, fetched); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	updated, err := repo.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser() after update error = %v", err)
	}
	if updated.Role != auth.RoleAdmin {
		t.Fatalf("Role = %q, want %q", updated.Role, auth.RoleAdmin)
	}

	if _, err := repo.GetUser(ctx, uuid.New()); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("GetUser() unknown id = %v, want ErrNotFound", err)
	}
	missing := newDBUser("missing@example.com")
	if err := repo.UpdateUser(ctx, missing); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("UpdateUser() unknown id = %v, want ErrNotFound", err)
	}
}

func TestUserRepositoryDuplicateEmail(t *testing.T) {
	db := openTestDB(t)
	ensureSchema(t, db)
	repo := NewUserRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if err := repo.CreateUser(ctx, newDBUser("dup@example.com")); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	// Same address, different case, must still collide.
	if err := repo.CreateUser(ctx, newDBUser("DUP@example.com")); !errors.Is(err, auth.ErrEmailTaken) {
		t.Fatalf("CreateUser() duplicate = %v, want ErrEmailTaken", err)
	}
}

func TestUserRepositoryList(t *testing.T) {
	db := openTestDB(t)
	ensureSchema(t, db)
	repo := NewUserRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	for i := 0; i < 3; i++ {
		user := newDBUser(fmt.Sprintf("list%d@example.com", i))
		user.CreatedAt = user.CreatedAt.Add(time.Duration(i) * time.Second)
		if err := repo.CreateUser(ctx, user); err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}
	}

	users, err := repo.ListUsers(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("ListUsers() returned %d users, want 2", len(users))
	}
	// Newest first.
	if users[0].Email != "list2@example.com" {
		t.Fatalf("first user = %q, want list2@example.com", users[0].Email)
	}

	rest, err := repo.ListUsers(ctx, 10, 2)
	if err != nil {
		t.Fatalf("ListUsers() offset error = %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("ListUsers() offset returned %d users, want 1", len(rest))
	}
}
