package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Handlers bundles every route group so the server and tests mount the same table.
type Handlers struct {
	Auth    *AuthHandler
	User    *UserHandler
	Group   *GroupHandler
	Message *MessageHandler
}

// RouteOptions tunes the public rate limit. Zero values disable it.
type RouteOptions struct {
	AuthLimit       int
	AuthLimitWindow time.Duration
}

// Mount registers the REST surface under api. authRequired guards everything
// except registration and login.
func (h Handlers) Mount(api fiber.Router, authRequired fiber.Handler, opts RouteOptions) {
	public := []fiber.Handler{}
	if opts.AuthLimit > 0 {
		public = append(public, limiter.New(limiter.Config{
			Max:        opts.AuthLimit,
			Expiration: opts.AuthLimitWindow,
		}))
	}

	withLimit := func(handler fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, public...), handler)
	}

	// Registered before the guarded /users group so POST /users never reaches authRequired.
	api.Post("/users", withLimit(h.Auth.Register)...)
	api.Post("/auth/login", withLimit(h.Auth.Login)...)

	users := api.Group("/users", authRequired)
	users.Get("/me", h.User.GetCurrentUser)
	users.Patch("/me", h.User.UpdateProfile)

	groups := api.Group("/groups", authRequired)
	groups.Post("/", h.Group.CreateGroup)
	groups.Get("/", h.Group.SearchGroups)
	groups.Get("/mine", h.Group.GetMyGroups)
	groups.Get("/recommend", h.Group.RecommendGroups)
	groups.Get("/find/:id", h.Group.GetGroup)
	groups.Get("/:id/members", h.Group.GetGroupMembers)
	groups.Post("/:id/join", h.Group.RequestToJoin)
	groups.Get("/:id/requests", h.Group.ListJoinRequests)
	groups.Post("/:id/requests/:userId/accept", h.Group.AcceptJoinRequest)
	groups.Post("/:id/requests/:userId/deny", h.Group.DenyJoinRequest)

	messages := api.Group("/messages", authRequired)
	messages.Post("/groups/:groupId", h.Message.SendToGroup)
	messages.Get("/groups/:groupId/threads", h.Message.GetGroupThreads)
	messages.Post("/threads/:threadId/messages", h.Message.Reply)
	messages.Get("/threads/:threadId/messages", h.Message.GetThreadMessages)
	messages.Post("/threads/:threadId/read", h.Message.MarkRead)
	messages.Get("/users/me/threads", h.Message.GetMyThreads)
}
