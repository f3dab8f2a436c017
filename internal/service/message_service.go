package service

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/coaltail/rhythmlink-backend/internal/apperr"
	"github.com/coaltail/rhythmlink-backend/internal/cache"
	"github.com/coaltail/rhythmlink-backend/internal/events"
	"github.com/coaltail/rhythmlink-backend/internal/metrics"
	"github.com/coaltail/rhythmlink-backend/internal/models"
	"github.com/coaltail/rhythmlink-backend/internal/repository"
	"github.com/coaltail/rhythmlink-backend/internal/validation"
)

type MessageService struct {
	threadRepo  repository.ThreadRepositoryInterface
	messageRepo repository.MessageRepositoryInterface
	readRepo    repository.ReadStateRepositoryInterface
	groupRepo   repository.GroupRepositoryInterface
	userRepo    repository.UserRepositoryInterface
	cache       *cache.ThreadCache
	events      events.Publisher
	metrics     *metrics.Metrics
}

func NewMessageService(
	threadRepo repository.ThreadRepositoryInterface,
	messageRepo repository.MessageRepositoryInterface,
	readRepo repository.ReadStateRepositoryInterface,
	groupRepo repository.GroupRepositoryInterface,
	userRepo repository.UserRepositoryInterface,
	threadCache *cache.ThreadCache,
	publisher events.Publisher,
	m *metrics.Metrics,
) *MessageService {
	return &MessageService{
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		readRepo:    readRepo,
		groupRepo:   groupRepo,
		userRepo:    userRepo,
		cache:       threadCache,
		events:      publisher,
		metrics:     m,
	}
}

type messageEventPayload struct {
	MessageID  uint              `json:"message_id"`
	ThreadID   uint              `json:"thread_id"`
	UserID     uint              `json:"user_id"`
	GroupID    uint              `json:"group_id"`
	SenderType models.SenderType `json:"sender_type"`
	SentBy     uint              `json:"sent_by"`
	SentAt     time.Time         `json:"sent_at"`
}

// ResolveThread returns the thread between the user and the group, creating it
// on first contact. Callers do their own access checks.
func (s *MessageService) ResolveThread(ctx context.Context, userID, groupID uint) (*models.Thread, error) {
	thread, created, err := s.threadRepo.Resolve(ctx, userID, groupID)
	if err != nil {
		return nil, apperr.Internal("resolve thread", err)
	}
	if created {
		s.metrics.ThreadCreated()
	}
	return thread, nil
}

// SendAsUser posts to a group's thread with the user. Any user may write to
// any existing group.
func (s *MessageService) SendAsUser(ctx context.Context, userID, groupID uint, content string) (*models.MessageResponse, error) {
	ctx, span := tracer.Start(ctx, "MessageService.SendAsUser")
	defer span.End()

	content, err := validation.MessageContent(content)
	if err != nil {
		return nil, err
	}
	if _, err := s.groupRepo.FindByID(ctx, groupID); err != nil {
		return nil, lookupErr(err, "group", groupID)
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupErr(err, "user", userID)
	}

	thread, err := s.ResolveThread(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ThreadID:     thread.ID,
		Content:      content,
		SenderUserID: &userID,
		SentByUserID: userID,
	}
	if err := s.append(ctx, thread, msg); err != nil {
		return nil, err
	}

	msg.SenderUser = user
	msg.SentBy = *user
	resp := msg.ToResponse()
	return &resp, nil
}

// SendAsThreadParticipant replies in an existing thread, either as its user or,
// for members of its group, on behalf of the group.
func (s *MessageService) SendAsThreadParticipant(ctx context.Context, threadID, userID uint, content string, asGroup bool) (*models.MessageResponse, error) {
	ctx, span := tracer.Start(ctx, "MessageService.SendAsThreadParticipant")
	defer span.End()

	content, err := validation.MessageContent(content)
	if err != nil {
		return nil, err
	}
	thread, err := s.threadRepo.FindByID(ctx, threadID)
	if err != nil {
		return nil, lookupErr(err, "thread", threadID)
	}

	msg := &models.Message{ThreadID: thread.ID, Content: content, SentByUserID: userID}
	var group *models.Group
	if asGroup {
		member, err := s.groupRepo.IsMember(ctx, thread.GroupID, userID)
		if err != nil {
			return nil, apperr.Internal("check membership", err)
		}
		if !member {
			return nil, apperr.Forbidden("user %d is not a member of group %d", userID, thread.GroupID)
		}
		if group, err = s.groupRepo.FindByID(ctx, thread.GroupID); err != nil {
			return nil, lookupErr(err, "group", thread.GroupID)
		}
		msg.SenderGroupID = &thread.GroupID
	} else {
		if userID != thread.UserID {
			return nil, apperr.Forbidden("user %d is not the participant of thread %d", userID, threadID)
		}
		msg.SenderUserID = &userID
	}

	author, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupErr(err, "user", userID)
	}
	if err := s.append(ctx, thread, msg); err != nil {
		return nil, err
	}

	msg.SentBy = *author
	if group != nil {
		msg.SenderGroup = group
	} else {
		msg.SenderUser = author
	}
	resp := msg.ToResponse()
	return &resp, nil
}

// ListThreadMessages returns the thread oldest first. Only the thread's user may read it.
func (s *MessageService) ListThreadMessages(ctx context.Context, threadID, userID uint) ([]models.MessageResponse, error) {
	thread, err := s.threadRepo.FindByID(ctx, threadID)
	if err != nil {
		return nil, lookupErr(err, "thread", threadID)
	}
	if userID != thread.UserID {
		return nil, apperr.Forbidden("user %d is not the participant of thread %d", userID, threadID)
	}

	if cached, ok := s.cache.GetMessages(ctx, threadID); ok {
		return cached, nil
	}

	messages, err := s.messageRepo.ListByThread(ctx, threadID)
	if err != nil {
		return nil, apperr.Internal("list messages", err)
	}
	out := make([]models.MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, messages[i].ToResponse())
	}

	if err := s.cache.SetMessages(ctx, threadID, out); err != nil {
		slog.Debug("cache: failed to store thread messages", "thread_id", threadID, "error", err)
	}
	return out, nil
}

// ListUserThreads returns the user's threads, most recently active first, with
// the group side's unread messages counted.
func (s *MessageService) ListUserThreads(ctx context.Context, userID uint) ([]models.ThreadSummary, error) {
	if cached, ok := s.cache.GetUserThreads(ctx, userID); ok {
		return cached, nil
	}

	threads, err := s.threadRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list threads", err)
	}
	summaries, err := s.summarize(ctx, threads, userID, models.SenderGroup)
	if err != nil {
		return nil, err
	}
	for i := range threads {
		g := threads[i].Group.ToResponse()
		summaries[i].Group = &g
	}
	sortSummaries(summaries)

	if err := s.cache.SetUserThreads(ctx, userID, summaries); err != nil {
		slog.Debug("cache: failed to store user threads", "user_id", userID, "error", err)
	}
	return summaries, nil
}

// ListGroupThreads returns the group's threads for one of its members, with
// the user side's unread messages counted.
func (s *MessageService) ListGroupThreads(ctx context.Context, groupID, userID uint) ([]models.ThreadSummary, error) {
	member, err := s.groupRepo.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, apperr.Internal("check membership", err)
	}
	if !member {
		return nil, apperr.Forbidden("user %d is not a member of group %d", userID, groupID)
	}

	if cached, ok := s.cache.GetGroupThreads(ctx, groupID, userID); ok {
		return cached, nil
	}

	threads, err := s.threadRepo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, apperr.Internal("list threads", err)
	}
	summaries, err := s.summarize(ctx, threads, userID, models.SenderUser)
	if err != nil {
		return nil, err
	}
	for i := range threads {
		p := threads[i].User.ToPublicResponse()
		summaries[i].Participant = &p
	}
	sortSummaries(summaries)

	if err := s.cache.SetGroupThreads(ctx, groupID, userID, summaries); err != nil {
		slog.Debug("cache: failed to store group threads", "group_id", groupID, "error", err)
	}
	return summaries, nil
}

// MarkThreadRead moves the caller's read pointer to the thread's newest message.
func (s *MessageService) MarkThreadRead(ctx context.Context, threadID, userID uint) error {
	thread, err := s.threadRepo.FindByID(ctx, threadID)
	if err != nil {
		return lookupErr(err, "thread", threadID)
	}
	if userID != thread.UserID {
		member, err := s.groupRepo.IsMember(ctx, thread.GroupID, userID)
		if err != nil {
			return apperr.Internal("check membership", err)
		}
		if !member {
			return apperr.Forbidden("user %d cannot read thread %d", userID, threadID)
		}
	}

	latest, err := s.messageRepo.LatestID(ctx, threadID)
	if err != nil {
		return apperr.Internal("load latest message", err)
	}
	if latest == 0 {
		return nil
	}
	if err := s.readRepo.MarkRead(ctx, threadID, userID, latest); err != nil {
		return apperr.Internal("mark thread read", err)
	}

	if err := s.cache.InvalidateReader(ctx, thread, userID); err != nil {
		slog.Warn("cache: failed to invalidate thread listings", "thread_id", threadID, "error", err)
	}
	return nil
}

func (s *MessageService) append(ctx context.Context, thread *models.Thread, msg *models.Message) error {
	if err := s.messageRepo.Append(ctx, msg); err != nil {
		return apperr.Internal("append message", err)
	}
	thread.UpdatedAt = msg.CreatedAt

	if err := s.cache.InvalidateThread(ctx, thread); err != nil {
		slog.Warn("cache: failed to invalidate thread", "thread_id", thread.ID, "error", err)
	}

	side := msg.SenderType()
	s.metrics.MessageSent(string(side))
	publish(ctx, s.events, events.New(events.MessageSent, "thread:"+strconv.FormatUint(uint64(thread.ID), 10), messageEventPayload{
		MessageID:  msg.ID,
		ThreadID:   thread.ID,
		UserID:     thread.UserID,
		GroupID:    thread.GroupID,
		SenderType: side,
		SentBy:     msg.SentByUserID,
		SentAt:     msg.CreatedAt,
	}))
	return nil
}

// summarize builds one summary per thread, in the same order, with the last
// message and the number of messages from the other side the reader has not seen.
func (s *MessageService) summarize(ctx context.Context, threads []models.Thread, readerID uint, from models.SenderType) ([]models.ThreadSummary, error) {
	ids := make([]uint, 0, len(threads))
	for _, t := range threads {
		ids = append(ids, t.ID)
	}

	latest, err := s.messageRepo.LatestByThreads(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("load latest messages", err)
	}
	unread, err := s.messageRepo.UnreadCounts(ctx, ids, readerID, from)
	if err != nil {
		return nil, apperr.Internal("count unread messages", err)
	}

	out := make([]models.ThreadSummary, 0, len(threads))
	for _, t := range threads {
		summary := models.ThreadSummary{
			ID:          t.ID,
			UserID:      t.UserID,
			GroupID:     t.GroupID,
			UnreadCount: unread[t.ID],
			UpdatedAt:   t.UpdatedAt,
		}
		if m, ok := latest[t.ID]; ok {
			content, sentAt := m.Content, m.CreatedAt
			summary.LastMessage = &content
			summary.LastMessageTimestamp = &sentAt
		}
		out = append(out, summary)
	}
	return out, nil
}

func sortSummaries(summaries []models.ThreadSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		if !summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
		}
		return summaries[i].ID > summaries[j].ID
	})
}
