package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coaltail/rhythmlink-backend/internal/events"
	"github.com/coaltail/rhythmlink-backend/internal/models"
	"github.com/coaltail/rhythmlink-backend/internal/repository"
	"gorm.io/gorm"
)

// MockUserRepository is an in-memory repository.UserRepositoryInterface.
type MockUserRepository struct {
	users     map[uint]*models.User
	nextID    uint
	updateErr error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[uint]*models.User), nextID: 1}
}

func (m *MockUserRepository) Create(_ context.Context, user *models.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID == 0 {
		user.ID = m.nextID
		m.nextID++
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *MockUserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			found := *u
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockUserRepository) FindByID(_ context.Context, id uint) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		found := *u
		return &found, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockUserRepository) Update(_ context.Context, user *models.User) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	user.UpdatedAt = time.Now().UTC()
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

// MockGroupRepository is an in-memory repository.GroupRepositoryInterface.
type MockGroupRepository struct {
	groups      map[uint]*models.Group
	memberships map[uint]map[uint]models.GroupRole
	users       *MockUserRepository
	nextID      uint
	createErr   error
}

func NewMockGroupRepository(users *MockUserRepository) *MockGroupRepository {
	return &MockGroupRepository{
		groups:      make(map[uint]*models.Group),
		memberships: make(map[uint]map[uint]models.GroupRole),
		users:       users,
		nextID:      1,
	}
}

func (m *MockGroupRepository) CreateWithOwner(_ context.Context, group *models.Group, genres []models.Genre) error {
	if m.createErr != nil {
		return m.createErr
	}
	if group.ID == 0 {
		group.ID = m.nextID
		m.nextID++
	}
	group.Genres = nil
	for _, g := range genres {
		group.Genres = append(group.Genres, models.GroupGenre{GroupID: group.ID, Genre: g})
	}
	stored := *group
	m.groups[group.ID] = &stored
	m.AddMember(group.ID, group.OwnerID, models.RoleOwner)
	return nil
}

func (m *MockGroupRepository) AddMember(groupID, userID uint, role models.GroupRole) {
	if _, ok := m.memberships[groupID]; !ok {
		m.memberships[groupID] = make(map[uint]models.GroupRole)
	}
	m.memberships[groupID][userID] = role
}

func (m *MockGroupRepository) FindByID(_ context.Context, id uint) (*models.Group, error) {
	if g, ok := m.groups[id]; ok {
		found := *g
		return &found, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockGroupRepository) Search(ctx context.Context, filter repository.GroupFilter) ([]models.Group, error) {
	all, _ := m.ListWithGenres(ctx)
	var out []models.Group
	for _, g := range all {
		if filter.Name != "" && !strings.Contains(strings.ToLower(g.Name), strings.ToLower(filter.Name)) {
			continue
		}
		if len(filter.Genres) > 0 && !sharesGenre(g.GenreList(), filter.Genres) {
			continue
		}
		out = append(out, g)
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MockGroupRepository) ListWithGenres(_ context.Context) ([]models.Group, error) {
	out := make([]models.Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockGroupRepository) IsMember(_ context.Context, groupID, userID uint) (bool, error) {
	_, ok := m.memberships[groupID][userID]
	return ok, nil
}

func (m *MockGroupRepository) GetMemberRole(_ context.Context, groupID, userID uint) (models.GroupRole, error) {
	if role, ok := m.memberships[groupID][userID]; ok {
		return role, nil
	}
	return "", gorm.ErrRecordNotFound
}

func (m *MockGroupRepository) GetMembers(ctx context.Context, groupID uint) ([]models.GroupMember, error) {
	var out []models.GroupMember
	for uid, role := range m.memberships[groupID] {
		member := models.GroupMember{GroupID: groupID, UserID: uid, Role: role}
		if m.users != nil {
			if u, err := m.users.FindByID(ctx, uid); err == nil {
				member.User = *u
			}
		}
		out = append(out, member)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *MockGroupRepository) GetUserGroups(ctx context.Context, userID uint) ([]models.Group, error) {
	all, _ := m.ListWithGenres(ctx)
	var out []models.Group
	for _, g := range all {
		if _, ok := m.memberships[g.ID][userID]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func sharesGenre(have, want []models.Genre) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

type requestKey struct{ groupID, userID uint }

// MockJoinRequestRepository is an in-memory repository.JoinRequestRepositoryInterface.
// Accepting adds the membership to the group mock.
type MockJoinRequestRepository struct {
	requests map[requestKey]*models.GroupJoinRequest
	groups   *MockGroupRepository
	sentAt   time.Time
}

func NewMockJoinRequestRepository(groups *MockGroupRepository) *MockJoinRequestRepository {
	return &MockJoinRequestRepository{
		requests: make(map[requestKey]*models.GroupJoinRequest),
		groups:   groups,
		sentAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *MockJoinRequestRepository) CreatePending(_ context.Context, groupID, userID uint) (*models.GroupJoinRequest, error) {
	m.sentAt = m.sentAt.Add(time.Second)
	key := requestKey{groupID, userID}
	if existing, ok := m.requests[key]; ok {
		if existing.Status != models.JoinRequestDenied {
			return nil, repository.ErrDuplicate
		}
		existing.Status = models.JoinRequestPending
		existing.SentAt = m.sentAt
		existing.RespondedAt = nil
		found := *existing
		return &found, nil
	}
	req := &models.GroupJoinRequest{GroupID: groupID, UserID: userID, Status: models.JoinRequestPending, SentAt: m.sentAt}
	m.requests[key] = req
	found := *req
	return &found, nil
}

func (m *MockJoinRequestRepository) Find(_ context.Context, groupID, userID uint) (*models.GroupJoinRequest, error) {
	if req, ok := m.requests[requestKey{groupID, userID}]; ok {
		found := *req
		return &found, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockJoinRequestRepository) ListByGroup(_ context.Context, groupID uint) ([]models.GroupJoinRequest, error) {
	var out []models.GroupJoinRequest
	for key, req := range m.requests {
		if key.groupID == groupID {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	return out, nil
}

func (m *MockJoinRequestRepository) Accept(ctx context.Context, groupID, userID uint) (*models.GroupJoinRequest, error) {
	req, err := m.resolve(groupID, userID, models.JoinRequestAccepted)
	if err != nil {
		return nil, err
	}
	if member, _ := m.groups.IsMember(ctx, groupID, userID); member {
		return nil, repository.ErrDuplicate
	}
	m.groups.AddMember(groupID, userID, models.RoleMember)
	return req, nil
}

func (m *MockJoinRequestRepository) Deny(_ context.Context, groupID, userID uint) (*models.GroupJoinRequest, error) {
	return m.resolve(groupID, userID, models.JoinRequestDenied)
}

func (m *MockJoinRequestRepository) resolve(groupID, userID uint, status models.JoinRequestStatus) (*models.GroupJoinRequest, error) {
	req, ok := m.requests[requestKey{groupID, userID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if req.Status != models.JoinRequestPending {
		return nil, repository.ErrAlreadyResolved
	}
	now := time.Now().UTC()
	req.Status = status
	req.RespondedAt = &now
	found := *req
	return &found, nil
}

// MockThreadRepository is an in-memory repository.ThreadRepositoryInterface.
type MockThreadRepository struct {
	mu      sync.Mutex
	threads map[uint]*models.Thread
	groups  *MockGroupRepository
	users   *MockUserRepository
	nextID  uint
}

func NewMockThreadRepository(groups *MockGroupRepository, users *MockUserRepository) *MockThreadRepository {
	return &MockThreadRepository{threads: make(map[uint]*models.Thread), groups: groups, users: users, nextID: 1}
}

func (m *MockThreadRepository) Resolve(_ context.Context, userID, groupID uint) (*models.Thread, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.threads {
		if t.UserID == userID && t.GroupID == groupID {
			found := *t
			return &found, false, nil
		}
	}
	now := time.Now().UTC()
	t := &models.Thread{ID: m.nextID, UserID: userID, GroupID: groupID, CreatedAt: now, UpdatedAt: now}
	m.nextID++
	m.threads[t.ID] = t
	found := *t
	return &found, true, nil
}

func (m *MockThreadRepository) FindByID(_ context.Context, id uint) (*models.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.threads[id]; ok {
		found := *t
		return &found, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockThreadRepository) ListByUser(ctx context.Context, userID uint) ([]models.Thread, error) {
	out := m.list(func(t *models.Thread) bool { return t.UserID == userID })
	for i := range out {
		if g, err := m.groups.FindByID(ctx, out[i].GroupID); err == nil {
			out[i].Group = *g
		}
	}
	return out, nil
}

func (m *MockThreadRepository) ListByGroup(ctx context.Context, groupID uint) ([]models.Thread, error) {
	out := m.list(func(t *models.Thread) bool { return t.GroupID == groupID })
	for i := range out {
		if u, err := m.users.FindByID(ctx, out[i].UserID); err == nil {
			out[i].User = *u
		}
	}
	return out, nil
}

func (m *MockThreadRepository) list(keep func(*models.Thread) bool) []models.Thread {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Thread
	for _, t := range m.threads {
		if keep(t) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MockThreadRepository) touch(id uint, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[id]
	if ok {
		t.UpdatedAt = at
	}
	return ok
}

// MockMessageRepository is an in-memory repository.MessageRepositoryInterface.
// Each append is one second after the previous one so ordering is deterministic.
type MockMessageRepository struct {
	messages []models.Message
	threads  *MockThreadRepository
	reads    *MockReadStateRepository
	clock    time.Time
	nextID   uint
}

func NewMockMessageRepository(threads *MockThreadRepository, reads *MockReadStateRepository) *MockMessageRepository {
	return &MockMessageRepository{
		threads: threads,
		reads:   reads,
		clock:   time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		nextID:  1,
	}
}

func (m *MockMessageRepository) Append(_ context.Context, message *models.Message) error {
	if (message.SenderUserID == nil) == (message.SenderGroupID == nil) {
		return errors.New("message must have exactly one sender")
	}
	m.clock = m.clock.Add(time.Second)
	message.ID = m.nextID
	message.CreatedAt = m.clock
	m.nextID++
	if !m.threads.touch(message.ThreadID, message.CreatedAt) {
		return gorm.ErrRecordNotFound
	}
	m.messages = append(m.messages, *message)
	return nil
}

func (m *MockMessageRepository) ListByThread(_ context.Context, threadID uint) ([]models.Message, error) {
	var out []models.Message
	for _, msg := range m.messages {
		if msg.ThreadID == threadID {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MockMessageRepository) LatestByThreads(_ context.Context, threadIDs []uint) (map[uint]models.Message, error) {
	wanted := make(map[uint]bool, len(threadIDs))
	for _, id := range threadIDs {
		wanted[id] = true
	}
	latest := make(map[uint]models.Message)
	for _, msg := range m.messages {
		if wanted[msg.ThreadID] && msg.ID > latest[msg.ThreadID].ID {
			latest[msg.ThreadID] = msg
		}
	}
	return latest, nil
}

func (m *MockMessageRepository) LatestID(_ context.Context, threadID uint) (uint, error) {
	var id uint
	for _, msg := range m.messages {
		if msg.ThreadID == threadID && msg.ID > id {
			id = msg.ID
		}
	}
	return id, nil
}

func (m *MockMessageRepository) UnreadCounts(_ context.Context, threadIDs []uint, readerID uint, from models.SenderType) (map[uint]int64, error) {
	counts := make(map[uint]int64)
	for _, id := range threadIDs {
		pointer := m.reads.pointer(id, readerID)
		for _, msg := range m.messages {
			if msg.ThreadID == id && msg.ID > pointer && msg.SenderType() == from {
				counts[id]++
			}
		}
	}
	return counts, nil
}

// MockReadStateRepository is an in-memory repository.ReadStateRepositoryInterface.
type MockReadStateRepository struct {
	states map[[2]uint]uint
}

func NewMockReadStateRepository() *MockReadStateRepository {
	return &MockReadStateRepository{states: make(map[[2]uint]uint)}
}

func (m *MockReadStateRepository) MarkRead(_ context.Context, threadID, userID, messageID uint) error {
	key := [2]uint{threadID, userID}
	if messageID > m.states[key] {
		m.states[key] = messageID
	}
	return nil
}

func (m *MockReadStateRepository) Get(_ context.Context, threadID, userID uint) (*models.ThreadReadState, error) {
	id, ok := m.states[[2]uint{threadID, userID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.ThreadReadState{ThreadID: threadID, UserID: userID, LastReadMessageID: id}, nil
}

func (m *MockReadStateRepository) pointer(threadID, userID uint) uint {
	return m.states[[2]uint{threadID, userID}]
}

// fakeBlobStore keeps uploads in memory and records deletions.
type fakeBlobStore struct {
	objects   map[string][]byte
	deleted   []string
	uploadErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.objects[key] = data
	return "https://cdn.example.com/" + key, nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
