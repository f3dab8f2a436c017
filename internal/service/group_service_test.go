package service

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/coaltail/rhythmlink-backend/internal/apperr"
	"github.com/coaltail/rhythmlink-backend/internal/events"
	"github.com/coaltail/rhythmlink-backend/internal/models"
)

func TestCreateGroup(t *testing.T) {
	f := newFixture(t)
	f.seedUser(2, "bob_owner")
	ctx := context.Background()

	resp, err := f.group.CreateGroup(ctx, CreateGroupInput{
		OwnerID: 2,
		Name:    "  Late Night Trio ",
		Genres:  []string{"jazz", "Blues", "JAZZ"},
		Image:   pngImage(t, 40, 30),
	})
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}

	if resp.Name != "Late Night Trio" {
		t.Errorf("name = %q", resp.Name)
	}
	if len(resp.Genres) != 2 || resp.Genres[0] != models.GenreJazz || resp.Genres[1] != models.GenreBlues {
		t.Errorf("genres = %v, want [Jazz Blues]", resp.Genres)
	}
	if !strings.HasPrefix(resp.MainImageURL, "https://cdn.example.com/groups/") || !strings.HasSuffix(resp.MainImageURL, ".jpg") {
		t.Errorf("image url = %q", resp.MainImageURL)
	}
	if len(f.blobs.objects) != 1 {
		t.Errorf("stored %d objects, want 1", len(f.blobs.objects))
	}

	role, err := f.groups.GetMemberRole(ctx, resp.ID, 2)
	if err != nil || role != models.RoleOwner {
		t.Errorf("owner role = %q, %v; want OWNER", role, err)
	}
	if got := f.events.types(); len(got) != 1 || got[0] != events.GroupCreated {
		t.Errorf("events = %v, want [group.created]", got)
	}
}

func TestCreateGroup_RemovesImageWhenInsertFails(t *testing.T) {
	f := newFixture(t)
	f.seedUser(2, "bob_owner")
	f.groups.createErr = errors.New("connection reset")

	_, err := f.group.CreateGroup(context.Background(), CreateGroupInput{
		OwnerID: 2,
		Name:    "Doomed",
		Genres:  []string{"Rock"},
		Image:   pngImage(t, 10, 10),
	})
	assertKind(t, err, apperr.ErrInternal)

	if len(f.blobs.deleted) != 1 {
		t.Fatalf("deleted %v, want the uploaded key", f.blobs.deleted)
	}
	if len(f.blobs.objects) != 0 {
		t.Errorf("orphaned objects left: %d", len(f.blobs.objects))
	}
	if len(f.events.events) != 0 {
		t.Errorf("events published for a failed create: %v", f.events.types())
	}
}

func TestCreateGroup_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input CreateGroupInput
		field string
	}{
		{"missing name", CreateGroupInput{Genres: []string{"Rock"}}, "name"},
		{"unknown genre", CreateGroupInput{Name: "Band", Genres: []string{"Polka"}}, "genres"},
		{"no genres", CreateGroupInput{Name: "Band"}, "genres"},
		{"missing image", CreateGroupInput{Name: "Band", Genres: []string{"Rock"}}, "main_image"},
		{"not an image", CreateGroupInput{Name: "Band", Genres: []string{"Rock"}, Image: bytes.NewReader([]byte("plain text"))}, "main_image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.input.OwnerID = 1
			if tt.input.Image == nil && tt.field != "main_image" {
				tt.input.Image = pngImage(t, 4, 4)
			}

			_, err := f.group.CreateGroup(context.Background(), tt.input)
			assertKind(t, err, apperr.ErrValidation)

			var appErr *apperr.Error
			errors.As(err, &appErr)
			found := false
			for _, fe := range appErr.Fields {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("fields = %+v, want one for %q", appErr.Fields, tt.field)
			}
			if len(f.blobs.objects) != 0 {
				t.Errorf("uploaded despite invalid input")
			}
		})
	}
}

func TestJoinRequestWorkflow(t *testing.T) {
	f := newFixture(t)
	f.seedUser(2, "bob_owner")
	f.seedUser(3, "carol_c")
	f.seedUser(5, "erin_e")
	f.seedGroup(7, 2, "The Sevens", models.GenreJazz)
	ctx := context.Background()

	req, err := f.group.RequestToJoin(ctx, 7, 3)
	if err != nil {
		t.Fatalf("RequestToJoin() error = %v", err)
	}
	if req.Status != models.JoinRequestPending {
		t.Errorf("status = %s, want pending", req.Status)
	}

	_, err = f.group.RequestToJoin(ctx, 7, 3)
	assertKind(t, err, apperr.ErrAlreadyExists)

	_, err = f.group.RequestToJoin(ctx, 7, 2)
	assertKind(t, err, apperr.ErrForbidden)

	_, err = f.group.RequestToJoin(ctx, 70, 3)
	assertKind(t, err, apperr.ErrNotFound)

	_, err = f.group.AcceptJoinRequest(ctx, 7, 3, 5)
	assertKind(t, err, apperr.ErrForbidden)

	_, err = f.group.AcceptJoinRequest(ctx, 7, 5, 2)
	assertKind(t, err, apperr.ErrNotFound)

	accepted, err := f.group.AcceptJoinRequest(ctx, 7, 3, 2)
	if err != nil {
		t.Fatalf("AcceptJoinRequest() error = %v", err)
	}
	if accepted.Status != models.JoinRequestAccepted || accepted.RespondedAt == nil {
		t.Errorf("accepted = %+v", accepted)
	}
	role, err := f.groups.GetMemberRole(ctx, 7, 3)
	if err != nil || role != models.RoleMember {
		t.Errorf("role = %q, %v; want MEMBER", role, err)
	}

	_, err = f.group.AcceptJoinRequest(ctx, 7, 3, 2)
	assertKind(t, err, apperr.ErrAlreadyExists)

	_, err = f.group.RequestToJoin(ctx, 7, 3)
	assertKind(t, err, apperr.ErrAlreadyExists)

	want := []events.Type{events.JoinRequestCreated, events.JoinRequestAccepted}
	if got := f.events.types(); len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestDenyThenRequestAgain(t *testing.T) {
	f := newFixture(t)
	f.seedUser(2, "bob_owner")
	f.seedUser(3, "carol_c")
	f.seedGroup(7, 2, "The Sevens")
	ctx := context.Background()

	if _, err := f.group.RequestToJoin(ctx, 7, 3); err != nil {
		t.Fatalf("RequestToJoin() error = %v", err)
	}
	denied, err := f.group.DenyJoinRequest(ctx, 7, 3, 2)
	if err != nil {
		t.Fatalf("DenyJoinRequest() error = %v", err)
	}
	if denied.Status != models.JoinRequestDenied {
		t.Errorf("status = %s, want denied", denied.Status)
	}
	if member, _ := f.groups.IsMember(ctx, 7, 3); member {
		t.Fatal("denied user became a member")
	}

	_, err = f.group.DenyJoinRequest(ctx, 7, 3, 2)
	assertKind(t, err, apperr.ErrAlreadyExists)

	again, err := f.group.RequestToJoin(ctx, 7, 3)
	if err != nil {
		t.Fatalf("request after denial: %v", err)
	}
	if again.Status != models.JoinRequestPending || again.RespondedAt != nil {
		t.Errorf("reopened request = %+v", again)
	}

	list, err := f.group.ListJoinRequests(ctx, 7, 2)
	if err != nil {
		t.Fatalf("ListJoinRequests() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d requests, want 1", len(list))
	}
	_, err = f.group.ListJoinRequests(ctx, 7, 3)
	assertKind(t, err, apperr.ErrForbidden)
}

func TestRequestToJoin_ExistingMember(t *testing.T) {
	f := newFixture(t)
	f.seedUser(2, "bob_owner")
	f.seedGroup(7, 2, "The Sevens")
	f.groups.AddMember(7, 4, models.RoleMember)

	_, err := f.group.RequestToJoin(context.Background(), 7, 4)
	assertKind(t, err, apperr.ErrAlreadyExists)
}

func TestSearchGroups(t *testing.T) {
	f := newFixture(t)
	f.seedUser(1, "owner_one")
	for i, name := range []string{"Rock Ensemble", "Jazz Club", "rockers", "Metal Heads"} {
		genre := models.GenreRock
		if i == 1 {
			genre = models.GenreJazz
		}
		f.seedGroup(uint(i+1), 1, name, genre)
	}
	ctx := context.Background()

	tests := []struct {
		name      string
		search    GroupSearch
		wantIDs   []uint
		wantSize  int
		wantError bool
	}{
		{name: "defaults", search: GroupSearch{}, wantIDs: []uint{1, 2, 3, 4}, wantSize: DefaultPageSize},
		{name: "name substring", search: GroupSearch{Name: "ROCK"}, wantIDs: []uint{1, 3}, wantSize: DefaultPageSize},
		{name: "genre filter", search: GroupSearch{Genres: []string{"jazz"}}, wantIDs: []uint{2}, wantSize: DefaultPageSize},
		{name: "second page", search: GroupSearch{PageSize: 3, PageNumber: 2}, wantIDs: []uint{4}, wantSize: 3},
		{name: "page size capped", search: GroupSearch{PageSize: 1000}, wantIDs: []uint{1, 2, 3, 4}, wantSize: MaxPageSize},
		{name: "negative size", search: GroupSearch{PageSize: -1}, wantError: true},
		{name: "negative page", search: GroupSearch{PageNumber: -2}, wantError: true},
		{name: "unknown genre", search: GroupSearch{Genres: []string{"Polka"}}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.group.SearchGroups(ctx, tt.search)
			if tt.wantError {
				assertKind(t, err, apperr.ErrValidation)
				return
			}
			if err != nil {
				t.Fatalf("SearchGroups() error = %v", err)
			}
			if page.PageSize != tt.wantSize {
				t.Errorf("page size = %d, want %d", page.PageSize, tt.wantSize)
			}
			var ids []uint
			for _, g := range page.Groups {
				ids = append(ids, g.ID)
			}
			if len(ids) != len(tt.wantIDs) {
				t.Fatalf("ids = %v, want %v", ids, tt.wantIDs)
			}
			for i := range ids {
				if ids[i] != tt.wantIDs[i] {
					t.Fatalf("ids = %v, want %v", ids, tt.wantIDs)
				}
			}
		})
	}
}

func TestRecommendGroups(t *testing.T) {
	f := newFixture(t)
	f.seedUser(1, "listener", models.GenreRock, models.GenreJazz)
	f.seedUser(2, "owner_two")
	f.seedGroup(10, 2, "Exact", models.GenreRock, models.GenreJazz)
	f.seedGroup(11, 2, "Half", models.GenreRock, models.GenreMetal)
	f.seedGroup(12, 2, "None", models.GenreCountry)
	f.seedGroup(13, 1, "Mine", models.GenreRock, models.GenreJazz)
	f.seedGroup(14, 2, "Joined", models.GenreJazz)
	f.groups.AddMember(14, 1, models.RoleMember)

	got, err := f.group.RecommendGroups(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("RecommendGroups() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != 10 || got[1].ID != 11 {
		t.Fatalf("recommendations = %+v, want groups 10 then 11", got)
	}

	_, err = f.group.RecommendGroups(context.Background(), 99, 0)
	assertKind(t, err, apperr.ErrNotFound)
}

func TestGenreSimilarity(t *testing.T) {
	rock, jazz, metal := models.GenreRock, models.GenreJazz, models.GenreMetal
	tests := []struct {
		name string
		a, b []models.Genre
		want float64
	}{
		{"identical", []models.Genre{rock, jazz}, []models.Genre{jazz, rock}, 1},
		{"disjoint", []models.Genre{rock}, []models.Genre{jazz}, 0},
		{"half", []models.Genre{rock, jazz}, []models.Genre{rock, metal}, 0.5},
		{"empty", nil, []models.Genre{rock}, 0},
		{"duplicates ignored", []models.Genre{rock}, []models.Genre{rock, rock}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := genreSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("genreSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetGroupMembers(t *testing.T) {
	f := newFixture(t)
	f.seedUser(2, "bob_owner")
	f.seedUser(3, "carol_c")
	f.seedGroup(7, 2, "The Sevens")
	f.groups.AddMember(7, 3, models.RoleMember)
	ctx := context.Background()

	members, err := f.group.GetGroupMembers(ctx, 7)
	if err != nil {
		t.Fatalf("GetGroupMembers() error = %v", err)
	}
	if len(members) != 2 || members[0].Role != models.RoleOwner || members[1].User.Username != "carol_c" {
		t.Errorf("members = %+v", members)
	}

	_, err = f.group.GetGroupMembers(ctx, 8)
	assertKind(t, err, apperr.ErrNotFound)

	mine, err := f.group.GetUserGroups(ctx, 3)
	if err != nil || len(mine) != 1 || mine[0].ID != 7 {
		t.Errorf("GetUserGroups() = %+v, %v", mine, err)
	}
}
