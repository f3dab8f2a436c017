package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"github.com/coaltail/rhythmlink-backend/internal/apperr"
	"github.com/coaltail/rhythmlink-backend/internal/events"
	"github.com/coaltail/rhythmlink-backend/internal/metrics"
	"github.com/coaltail/rhythmlink-backend/internal/models"
	"github.com/coaltail/rhythmlink-backend/internal/repository"
	"github.com/coaltail/rhythmlink-backend/internal/storage"
	"github.com/coaltail/rhythmlink-backend/internal/validation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultPageSize       = 20
	MaxPageSize           = 100
	DefaultRecommendLimit = 5
	MaxRecommendLimit     = 50
)

type GroupService struct {
	groupRepo   repository.GroupRepositoryInterface
	requestRepo repository.JoinRequestRepositoryInterface
	userRepo    repository.UserRepositoryInterface
	blobs       storage.BlobStore
	events      events.Publisher
	metrics     *metrics.Metrics
}

func NewGroupService(
	groupRepo repository.GroupRepositoryInterface,
	requestRepo repository.JoinRequestRepositoryInterface,
	userRepo repository.UserRepositoryInterface,
	blobs storage.BlobStore,
	publisher events.Publisher,
	m *metrics.Metrics,
) *GroupService {
	return &GroupService{
		groupRepo:   groupRepo,
		requestRepo: requestRepo,
		userRepo:    userRepo,
		blobs:       blobs,
		events:      publisher,
		metrics:     m,
	}
}

type CreateGroupInput struct {
	OwnerID uint
	Name    string
	Genres  []string
	Image   io.Reader
}

// GroupSearch is a 1-indexed page request. Zero page fields take the defaults.
type GroupSearch struct {
	Name       string
	Genres     []string
	PageSize   int
	PageNumber int
}

type GroupPage struct {
	Groups     []models.GroupResponse `json:"groups"`
	PageSize   int                    `json:"page_size"`
	PageNumber int                    `json:"page_number"`
}

type groupEventPayload struct {
	GroupID uint   `json:"group_id"`
	OwnerID uint   `json:"owner_id"`
	Name    string `json:"name"`
}

type joinRequestEventPayload struct {
	GroupID uint                     `json:"group_id"`
	UserID  uint                     `json:"user_id"`
	Status  models.JoinRequestStatus `json:"status"`
}

// CreateGroup stores the image, then the group with its genres and owner
// membership in one transaction. The image is deleted if the transaction fails.
func (s *GroupService) CreateGroup(ctx context.Context, input CreateGroupInput) (*models.GroupResponse, error) {
	ctx, span := tracer.Start(ctx, "GroupService.CreateGroup")
	defer span.End()

	var errs validation.Errors
	name := validation.GroupName(&errs, "name", input.Name)
	genres := validation.Genres(&errs, "genres", input.Genres)
	var img *storage.ProcessedImage
	if input.Image == nil {
		errs.Add("main_image", "main image is required")
	} else {
		var err error
		if img, err = storage.ProcessImage(input.Image, storage.DefaultImageOptions()); err != nil {
			errs.Add("main_image", err.Error())
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if s.blobs == nil {
		return nil, apperr.Internal("upload group image", ErrStorageNotConfigured)
	}
	key := fmt.Sprintf("groups/%s.jpg", uuid.NewString())
	url, err := s.blobs.Upload(ctx, key, img.Data, img.ContentType)
	if err != nil {
		return nil, apperr.Internal("upload group image", err)
	}

	group := &models.Group{Name: name, OwnerID: input.OwnerID, MainImageURL: url}
	if err := s.groupRepo.CreateWithOwner(ctx, group, genres); err != nil {
		if derr := s.blobs.Delete(ctx, key); derr != nil {
			slog.Warn("storage: failed to remove orphaned upload", "key", key, "error", derr)
		}
		return nil, apperr.Internal("create group", err)
	}

	s.metrics.GroupCreated()
	publish(ctx, s.events, events.New(events.GroupCreated, groupKey(group.ID), groupEventPayload{
		GroupID: group.ID,
		OwnerID: group.OwnerID,
		Name:    group.Name,
	}))

	resp := group.ToResponse()
	return &resp, nil
}

func (s *GroupService) GetGroup(ctx context.Context, groupID uint) (*models.GroupResponse, error) {
	group, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return nil, lookupErr(err, "group", groupID)
	}
	resp := group.ToResponse()
	return &resp, nil
}

func (s *GroupService) GetUserGroups(ctx context.Context, userID uint) ([]models.GroupResponse, error) {
	groups, err := s.groupRepo.GetUserGroups(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list user groups", err)
	}
	return groupResponses(groups), nil
}

func (s *GroupService) GetGroupMembers(ctx context.Context, groupID uint) ([]models.GroupMemberResponse, error) {
	if _, err := s.groupRepo.FindByID(ctx, groupID); err != nil {
		return nil, lookupErr(err, "group", groupID)
	}
	members, err := s.groupRepo.GetMembers(ctx, groupID)
	if err != nil {
		return nil, apperr.Internal("list group members", err)
	}
	out := make([]models.GroupMemberResponse, 0, len(members))
	for i := range members {
		out = append(out, members[i].ToResponse())
	}
	return out, nil
}

func (s *GroupService) SearchGroups(ctx context.Context, search GroupSearch) (*GroupPage, error) {
	var errs validation.Errors
	size, number := search.PageSize, search.PageNumber
	switch {
	case size < 0:
		errs.Add("pageSize", "page size must be a positive integer")
	case size == 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	switch {
	case number < 0:
		errs.Add("pageNumber", "page number must be a positive integer")
	case number == 0:
		number = 1
	}
	var genres []models.Genre
	if len(search.Genres) > 0 {
		genres = validation.Genres(&errs, "genres", search.Genres)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	groups, err := s.groupRepo.Search(ctx, repository.GroupFilter{
		Name:   search.Name,
		Genres: genres,
		Limit:  size,
		Offset: (number - 1) * size,
	})
	if err != nil {
		return nil, apperr.Internal("search groups", err)
	}
	return &GroupPage{Groups: groupResponses(groups), PageSize: size, PageNumber: number}, nil
}

// RequestToJoin records a pending request. A previously denied request is
// reopened; a pending or accepted one is a conflict.
func (s *GroupService) RequestToJoin(ctx context.Context, groupID, userID uint) (*models.JoinRequestResponse, error) {
	ctx, span := tracer.Start(ctx, "GroupService.RequestToJoin")
	defer span.End()

	group, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return nil, lookupErr(err, "group", groupID)
	}
	if group.OwnerID == userID {
		return nil, apperr.Forbidden("the owner cannot request to join their own group")
	}
	member, err := s.groupRepo.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, apperr.Internal("check membership", err)
	}
	if member {
		return nil, apperr.AlreadyExists("user %d is already a member of group %d", userID, groupID)
	}

	req, err := s.requestRepo.CreatePending(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.AlreadyExists("a join request for group %d already exists", groupID)
		}
		return nil, apperr.Internal("create join request", err)
	}

	s.metrics.JoinRequest("created")
	publish(ctx, s.events, events.New(events.JoinRequestCreated, groupKey(groupID), joinRequestEventPayload{
		GroupID: groupID,
		UserID:  userID,
		Status:  req.Status,
	}))

	resp := req.ToResponse()
	return &resp, nil
}

func (s *GroupService) AcceptJoinRequest(ctx context.Context, groupID, userID, ownerID uint) (*models.JoinRequestResponse, error) {
	return s.resolveJoinRequest(ctx, groupID, userID, ownerID, true)
}

func (s *GroupService) DenyJoinRequest(ctx context.Context, groupID, userID, ownerID uint) (*models.JoinRequestResponse, error) {
	return s.resolveJoinRequest(ctx, groupID, userID, ownerID, false)
}

func (s *GroupService) resolveJoinRequest(ctx context.Context, groupID, userID, ownerID uint, accept bool) (*models.JoinRequestResponse, error) {
	ctx, span := tracer.Start(ctx, "GroupService.resolveJoinRequest")
	defer span.End()

	if _, err := s.ownedGroup(ctx, groupID, ownerID); err != nil {
		return nil, err
	}

	var (
		req     *models.GroupJoinRequest
		err     error
		outcome = "denied"
		kind    = events.JoinRequestDenied
	)
	if accept {
		outcome, kind = "accepted", events.JoinRequestAccepted
		req, err = s.requestRepo.Accept(ctx, groupID, userID)
	} else {
		req, err = s.requestRepo.Deny(ctx, groupID, userID)
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.NotFound("no join request from user %d for group %d", userID, groupID)
	case errors.Is(err, repository.ErrAlreadyResolved):
		return nil, apperr.AlreadyExists("join request from user %d was already resolved", userID)
	case errors.Is(err, repository.ErrDuplicate):
		return nil, apperr.AlreadyExists("user %d is already a member of group %d", userID, groupID)
	case err != nil:
		return nil, apperr.Internal("resolve join request", err)
	}

	s.metrics.JoinRequest(outcome)
	publish(ctx, s.events, events.New(kind, groupKey(groupID), joinRequestEventPayload{
		GroupID: groupID,
		UserID:  userID,
		Status:  req.Status,
	}))

	resp := req.ToResponse()
	return &resp, nil
}

// ListJoinRequests returns every request for the group, newest first. Owner only.
func (s *GroupService) ListJoinRequests(ctx context.Context, groupID, ownerID uint) ([]models.JoinRequestResponse, error) {
	if _, err := s.ownedGroup(ctx, groupID, ownerID); err != nil {
		return nil, err
	}
	reqs, err := s.requestRepo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, apperr.Internal("list join requests", err)
	}
	out := make([]models.JoinRequestResponse, 0, len(reqs))
	for i := range reqs {
		out = append(out, reqs[i].ToResponse())
	}
	return out, nil
}

// RecommendGroups ranks groups the user is not in by cosine similarity between
// the user's genres of interest and each group's genres.
func (s *GroupService) RecommendGroups(ctx context.Context, userID uint, limit int) ([]models.GroupResponse, error) {
	ctx, span := tracer.Start(ctx, "GroupService.RecommendGroups")
	defer span.End()

	if limit <= 0 {
		limit = DefaultRecommendLimit
	}
	if limit > MaxRecommendLimit {
		limit = MaxRecommendLimit
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupErr(err, "user", userID)
	}
	mine, err := s.groupRepo.GetUserGroups(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list user groups", err)
	}
	all, err := s.groupRepo.ListWithGenres(ctx)
	if err != nil {
		return nil, apperr.Internal("list groups", err)
	}

	joined := make(map[uint]struct{}, len(mine))
	for _, g := range mine {
		joined[g.ID] = struct{}{}
	}

	type scored struct {
		group models.Group
		score float64
	}
	candidates := make([]scored, 0, len(all))
	for _, g := range all {
		if _, ok := joined[g.ID]; ok {
			continue
		}
		candidates = append(candidates, scored{group: g, score: genreSimilarity(user.GenresOfInterest, g.GenreList())})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].group.ID < candidates[j].group.ID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]models.GroupResponse, 0, len(candidates))
	for i := range candidates {
		out = append(out, candidates[i].group.ToResponse())
	}
	return out, nil
}

func (s *GroupService) ownedGroup(ctx context.Context, groupID, ownerID uint) (*models.Group, error) {
	group, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return nil, lookupErr(err, "group", groupID)
	}
	if group.OwnerID != ownerID {
		return nil, apperr.Forbidden("only the owner of group %d can manage join requests", groupID)
	}
	return group, nil
}

// genreSimilarity is the cosine similarity of the two sets as one-hot vectors.
func genreSimilarity(a, b []models.Genre) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[models.Genre]struct{}, len(a))
	for _, g := range a {
		set[g] = struct{}{}
	}
	var shared int
	seen := make(map[models.Genre]struct{}, len(b))
	for _, g := range b {
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		if _, ok := set[g]; ok {
			shared++
		}
	}
	return float64(shared) / (math.Sqrt(float64(len(set))) * math.Sqrt(float64(len(seen))))
}

func groupResponses(groups []models.Group) []models.GroupResponse {
	out := make([]models.GroupResponse, 0, len(groups))
	for i := range groups {
		out = append(out, groups[i].ToResponse())
	}
	return out
}

func groupKey(id uint) string {
	return "group:" + strconv.FormatUint(uint64(id), 10)
}
