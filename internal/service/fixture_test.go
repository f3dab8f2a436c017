package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/coaltail/rhythmlink-backend/internal/apperr"
	"github.com/coaltail/rhythmlink-backend/internal/auth"
	"github.com/coaltail/rhythmlink-backend/internal/metrics"
	"github.com/coaltail/rhythmlink-backend/internal/models"
	"github.com/coaltail/rhythmlink-backend/internal/testutil"
)

const testSecret = "test-secret-key-for-testing-only"

// fixture wires every service to the in-memory repositories.
type fixture struct {
	t *testing.T

	users    *MockUserRepository
	groups   *MockGroupRepository
	requests *MockJoinRequestRepository
	threads  *MockThreadRepository
	messages *MockMessageRepository
	reads    *MockReadStateRepository
	blobs    *fakeBlobStore
	events   *recordingPublisher
	signer   *auth.TokenSigner

	auth    *AuthService
	user    *UserService
	group   *GroupService
	message *MessageService
	helper  *testutil.TestHelper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	helper := testutil.NewTestHelper(t)
	helper.SetupTestEnv()

	f := &fixture{t: t, helper: helper}
	f.users = NewMockUserRepository()
	f.groups = NewMockGroupRepository(f.users)
	f.requests = NewMockJoinRequestRepository(f.groups)
	f.threads = NewMockThreadRepository(f.groups, f.users)
	f.reads = NewMockReadStateRepository()
	f.messages = NewMockMessageRepository(f.threads, f.reads)
	f.blobs = newFakeBlobStore()
	f.events = &recordingPublisher{}
	f.signer = auth.NewTokenSigner(testSecret, time.Hour)
	m := metrics.New()

	f.auth = NewAuthService(f.users, f.signer)
	f.user = NewUserService(f.users, f.signer, f.blobs, nil)
	f.group = NewGroupService(f.groups, f.requests, f.users, f.blobs, f.events, m)
	f.message = NewMessageService(f.threads, f.messages, f.reads, f.groups, f.users, nil, f.events, m)
	return f
}

func (f *fixture) seedUser(id uint, username string, genres ...models.Genre) *models.User {
	f.t.Helper()
	user := f.helper.CreateTestUser(id, username, username+"@example.com")
	if len(genres) > 0 {
		user.GenresOfInterest = genres
	}
	if err := f.users.Create(context.Background(), user); err != nil {
		f.t.Fatalf("seed user %d: %v", id, err)
	}
	return user
}

func (f *fixture) seedGroup(id, ownerID uint, name string, genres ...models.Genre) *models.Group {
	f.t.Helper()
	group := f.helper.CreateTestGroup(id, ownerID, name)
	if err := f.groups.CreateWithOwner(context.Background(), group, genres); err != nil {
		f.t.Fatalf("seed group %d: %v", id, err)
	}
	return group
}

func pngImage(t *testing.T, w, h int) *bytes.Reader {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func assertKind(t *testing.T, err error, want *apperr.Error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want kind %s", err, want.Kind)
	}
}
