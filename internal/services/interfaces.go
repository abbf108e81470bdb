package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/ryokrieger/CityConnect/internal/models"
)

// The interfaces below are what the HTTP handlers depend on, so handler
// tests can substitute in-memory mocks.

type AuthServiceInterface interface {
	HashPassword(password string) (string, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	CreateSession(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateSession(ctx context.Context, token string) (uuid.UUID, error)
	DeleteSession(ctx context.Context, token string) error
}

type UserServiceInterface interface {
	Create(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.Profile, error)
	GetPublicProfile(ctx context.Context, viewerID, userID uuid.UUID) (*models.PublicProfile, error)
}

type LocationServiceInterface interface {
	ListCities(ctx context.Context) ([]models.City, error)
	ListNeighborhoods(ctx context.Context, cityCode string) ([]models.Neighborhood, error)
	AddCity(ctx context.Context, city models.City) error
	AddNeighborhood(ctx context.Context, n models.Neighborhood) error
}

type InterestServiceInterface interface {
	List(ctx context.Context) ([]models.Interest, error)
	ListPage(ctx context.Context, page int) (*models.Page[models.Interest], error)
	Create(ctx context.Context, name, category string) (*models.Interest, error)
	Update(ctx context.Context, id uuid.UUID, name, category string) (*models.Interest, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type FriendServiceInterface interface {
	SendRequest(ctx context.Context, senderID, receiverID uuid.UUID) (bool, error)
	CancelRequest(ctx context.Context, userID, receiverID uuid.UUID) error
	AcceptRequest(ctx context.Context, actorID, requestID uuid.UUID) (*models.FriendRequest, error)
	DeclineRequest(ctx context.Context, actorID, requestID uuid.UUID) error
	Unfriend(ctx context.Context, userID, otherID uuid.UUID) error
	ListIncoming(ctx context.Context, userID uuid.UUID, page int) (*models.Page[models.IncomingRequest], error)
	ListFriends(ctx context.Context, userID uuid.UUID, page int) (*models.Page[models.Friend], error)
}

type MatchServiceInterface interface {
	FindMatches(ctx context.Context, userID uuid.UUID, scope models.MatchScope, page int) (*models.Page[models.MatchCandidate], error)
}

type RatingServiceInterface interface {
	Submit(ctx context.Context, raterID, rateeID uuid.UUID, score int, comment string) (*models.Rating, error)
	Delete(ctx context.Context, raterID, rateeID uuid.UUID) error
	Get(ctx context.Context, raterID, rateeID uuid.UUID) (*models.Rating, error)
	AverageRating(ctx context.Context, rateeID uuid.UUID) (models.RatingSummary, error)
	ListReviews(ctx context.Context, rateeID uuid.UUID) ([]models.Review, error)
}

type MessageServiceInterface interface {
	Send(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*models.Message, error)
	Conversation(ctx context.Context, userID, friendID uuid.UUID) ([]models.Message, error)
}

type GroupServiceInterface interface {
	Suggestions(ctx context.Context, userID uuid.UUID, page int) (*models.Page[models.GroupSuggestion], error)
	Create(ctx context.Context, creatorID uuid.UUID, params models.CreateGroupParams) (*models.Group, error)
	Join(ctx context.Context, userID, groupID uuid.UUID) error
	Leave(ctx context.Context, userID, groupID uuid.UUID) error
	Detail(ctx context.Context, userID, groupID uuid.UUID) (*models.GroupDetail, error)
	CreatePost(ctx context.Context, userID, groupID uuid.UUID, content string) (*models.Post, error)
	DeletePost(ctx context.Context, userID, postID uuid.UUID) error
	AddComment(ctx context.Context, userID, postID uuid.UUID, content string) (*models.Comment, error)
	DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error
}

type EventServiceInterface interface {
	Create(ctx context.Context, creatorID uuid.UUID, params models.CreateEventParams) (*models.Event, error)
	Delete(ctx context.Context, userID, eventID uuid.UUID) error
	Join(ctx context.Context, userID, eventID uuid.UUID) error
	Leave(ctx context.Context, userID, eventID uuid.UUID) error
}

type AdminServiceInterface interface {
	ListUsers(ctx context.Context, actorID uuid.UUID, page int) (*models.Page[models.User], error)
	ListGroups(ctx context.Context, actorID uuid.UUID, page int) (*models.Page[models.GroupSuggestion], error)
	ListPosts(ctx context.Context, actorID uuid.UUID, page int) (*models.Page[models.AdminPost], error)
	ListEvents(ctx context.Context, actorID uuid.UUID, page int) (*models.Page[models.AdminEvent], error)
	ListRatings(ctx context.Context, actorID uuid.UUID, page int) (*models.Page[models.AdminRating], error)
	SetAdmin(ctx context.Context, actorID, targetID uuid.UUID, admin bool) error
	SetRestricted(ctx context.Context, actorID, targetID uuid.UUID, restricted bool) error
	DeleteUser(ctx context.Context, actorID, targetID uuid.UUID) error
	DeleteGroup(ctx context.Context, actorID, groupID uuid.UUID) error
	DeletePost(ctx context.Context, actorID, postID uuid.UUID) error
	DeleteEvent(ctx context.Context, actorID, eventID uuid.UUID) error
	DeleteRating(ctx context.Context, actorID, raterID, rateeID uuid.UUID) error
}

type ProviderAuthServiceInterface interface {
	LinkOrFindUserFromProvider(ctx context.Context, claims IdentityClaims) (*ProviderLinkResult, error)
	CreateUserFromProviderPending(ctx context.Context, pending PendingProviderUser, username string, gender models.Gender) (*models.User, error)
}

var (
	_ AuthServiceInterface         = (*AuthService)(nil)
	_ UserServiceInterface         = (*UserService)(nil)
	_ LocationServiceInterface     = (*LocationService)(nil)
	_ InterestServiceInterface     = (*InterestService)(nil)
	_ FriendServiceInterface       = (*FriendService)(nil)
	_ MatchServiceInterface        = (*MatchService)(nil)
	_ RatingServiceInterface       = (*RatingService)(nil)
	_ MessageServiceInterface      = (*MessageService)(nil)
	_ GroupServiceInterface        = (*GroupService)(nil)
	_ EventServiceInterface        = (*EventService)(nil)
	_ AdminServiceInterface        = (*AdminService)(nil)
	_ ProviderAuthServiceInterface = (*ProviderAuthService)(nil)
)
