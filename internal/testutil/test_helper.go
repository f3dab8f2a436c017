package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/coaltail/rhythmlink-backend/internal/models"
	"github.com/coaltail/rhythmlink-backend/internal/repository"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestHelper provides utility functions for tests
type TestHelper struct {
	t *testing.T
}

func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t}
}

// CreateTestUser creates a test user with default values
func (h *TestHelper) CreateTestUser(id uint, username, email string) *models.User {
	if id == 0 {
		id = 1
	}
	if username == "" {
		username = "testuser"
	}
	if email == "" {
		email = "test@example.com"
	}

	return &models.User{
		ID:               id,
		Username:         username,
		Email:            email,
		PasswordHash:     "hashed_password_123",
		Address:          "1 Test Street, Testville",
		MainInstrument:   models.InstrumentGuitar,
		GenresOfInterest: datatypes.JSONSlice[models.Genre]{models.GenreRock},
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
}

// CreateTestGroup creates a test group owned by ownerID
func (h *TestHelper) CreateTestGroup(id, ownerID uint, name string, genres ...models.Genre) *models.Group {
	if id == 0 {
		id = 1
	}
	if name == "" {
		name = "Test Group"
	}
	group := &models.Group{
		ID:           id,
		Name:         name,
		OwnerID:      ownerID,
		MainImageURL: "https://example.com/group.jpg",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	for _, g := range genres {
		group.Genres = append(group.Genres, models.GroupGenre{GroupID: id, Genre: g})
	}
	return group
}

// SetupTestEnv sets up required environment variables for testing
func (h *TestHelper) SetupTestEnv() {
	h.t.Setenv("JWT_SECRET", "test-secret-key-for-testing-only")
	h.t.Setenv("PASSWORD_MIN_LENGTH", "10")
	h.t.Setenv("MAX_MESSAGE_LENGTH", "4000")
}

// AssertError checks if an error occurred when it should (or shouldn't)
func (h *TestHelper) AssertError(err error, shouldErr bool, testName string) {
	h.t.Helper()
	if (err != nil) != shouldErr {
		if shouldErr {
			h.t.Errorf("%s: expected error but got nil", testName)
		} else {
			h.t.Errorf("%s: unexpected error: %v", testName, err)
		}
	}
}

// AssertEqual checks if two values are equal
func (h *TestHelper) AssertEqual(got, want interface{}, testName string) {
	h.t.Helper()
	if got != want {
		h.t.Errorf("%s: got %v, want %v", testName, got, want)
	}
}

// NewTestDB opens a migrated SQLite database in the test's temp dir. Connections
// are capped at one so concurrent callers serialize the way a single writer would.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.sqlite")
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedUser inserts a user with a unique email derived from username.
func SeedUser(t *testing.T, db *gorm.DB, username string, genres ...models.Genre) *models.User {
	t.Helper()
	user := &models.User{
		Username:         username,
		Email:            username + "@example.com",
		PasswordHash:     "hashed_password_123",
		Address:          "1 Test Street, Testville",
		MainInstrument:   models.InstrumentGuitar,
		GenresOfInterest: datatypes.JSONSlice[models.Genre](genres),
	}
	if user.GenresOfInterest == nil {
		user.GenresOfInterest = datatypes.JSONSlice[models.Genre]{}
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

// SeedGroup inserts a group with its genres and OWNER membership.
func SeedGroup(t *testing.T, db *gorm.DB, owner *models.User, name string, genres ...models.Genre) *models.Group {
	t.Helper()
	group := &models.Group{Name: name, OwnerID: owner.ID, MainImageURL: "https://example.com/" + name + ".jpg"}
	if err := repository.NewGroupRepository(db).CreateWithOwner(context.Background(), group, genres); err != nil {
		t.Fatalf("seed group %s: %v", name, err)
	}
	return group
}

// SeedMember adds userID to the group with role MEMBER.
func SeedMember(t *testing.T, db *gorm.DB, groupID, userID uint) {
	t.Helper()
	member := &models.GroupMember{GroupID: groupID, UserID: userID, Role: models.RoleMember}
	if err := db.Omit("User", "Group").Create(member).Error; err != nil {
		t.Fatalf("seed member %d in group %d: %v", userID, groupID, err)
	}
}
