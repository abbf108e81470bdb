package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ryokrieger/CityConnect/internal/models"
	"github.com/ryokrieger/CityConnect/internal/services"
)

var errUnexpected = errors.New("unexpected call")

type mockAuthService struct {
	HashPasswordFunc   func(password string) (string, error)
	AuthenticateFunc   func(ctx context.Context, username, password string) (*models.User, error)
	CreateSessionFunc  func(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateSessionFn  func(ctx context.Context, token string) (uuid.UUID, error)
	DeleteSessionFunc  func(ctx context.Context, token string) error
	deletedSessionKeys []string
}

func (m *mockAuthService) HashPassword(password string) (string, error) {
	if m.HashPasswordFunc != nil {
		return m.HashPasswordFunc(password)
	}
	return "hashed:" + password, nil
}

func (m *mockAuthService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, username, password)
	}
	return nil, errUnexpected
}

func (m *mockAuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, userID)
	}
	return "", errUnexpected
}

func (m *mockAuthService) ValidateSession(ctx context.Context, token string) (uuid.UUID, error) {
	if m.ValidateSessionFn != nil {
		return m.ValidateSessionFn(ctx, token)
	}
	return uuid.Nil, services.ErrSessionNotFound
}

func (m *mockAuthService) DeleteSession(ctx context.Context, token string) error {
	m.deletedSessionKeys = append(m.deletedSessionKeys, token)
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, token)
	}
	return nil
}

type mockUserService struct {
	CreateFunc           func(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByIDFunc          func(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetProfileFunc       func(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	UpdateProfileFunc    func(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.Profile, error)
	GetPublicProfileFunc func(ctx context.Context, viewerID, userID uuid.UUID) (*models.PublicProfile, error)
}

func (m *mockUserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, errUnexpected
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, services.ErrUserNotFound
}

func (m *mockUserService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, userID)
	}
	return nil, errUnexpected
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.Profile, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userID, params)
	}
	return nil, errUnexpected
}

func (m *mockUserService) GetPublicProfile(ctx context.Context, viewerID, userID uuid.UUID) (*models.PublicProfile, error) {
	if m.GetPublicProfileFunc != nil {
		return m.GetPublicProfileFunc(ctx, viewerID, userID)
	}
	return nil, errUnexpected
}

type mockFriendService struct {
	SendRequestFunc    func(ctx context.Context, senderID, receiverID uuid.UUID) (bool, error)
	CancelRequestFunc  func(ctx context.Context, userID, receiverID uuid.UUID) error
	AcceptRequestFunc  func(ctx context.Context, actorID, requestID uuid.UUID) (*models.FriendRequest, error)
	DeclineRequestFunc func(ctx context.Context, actorID, requestID uuid.UUID) error
	UnfriendFunc       func(ctx context.Context, userID, otherID uuid.UUID) error
	ListIncomingFunc   func(ctx context.Context, userID uuid.UUID, page int) (*models.Page[models.IncomingRequest], error)
	ListFriendsFunc    func(ctx context.Context, userID uuid.UUID, page int) (*models.Page[models.Friend], error)
}

func (m *mockFriendService) SendRequest(ctx context.Context, senderID, receiverID uuid.UUID) (bool, error) {
	if m.SendRequestFunc != nil {
		return m.SendRequestFunc(ctx, senderID, receiverID)
	}
	return false, errUnexpected
}

func (m *mockFriendService) CancelRequest(ctx context.Context, userID, receiverID uuid.UUID) error {
	if m.CancelRequestFunc != nil {
		return m.CancelRequestFunc(ctx, userID, receiverID)
	}
	return errUnexpected
}

func (m *mockFriendService) AcceptRequest(ctx context.Context, actorID, requestID uuid.UUID) (*models.FriendRequest, error) {
	if m.AcceptRequestFunc != nil {
		return m.AcceptRequestFunc(ctx, actorID, requestID)
	}
	return nil, errUnexpected
}

func (m *mockFriendService) DeclineRequest(ctx context.Context, actorID, requestID uuid.UUID) error {
	if m.DeclineRequestFunc != nil {
		return m.DeclineRequestFunc(ctx, actorID, requestID)
	}
	return errUnexpected
}

func (m *mockFriendService) Unfriend(ctx context.Context, userID, otherID uuid.UUID) error {
	if m.UnfriendFunc != nil {
		return m.UnfriendFunc(ctx, userID, otherID)
	}
	return errUnexpected
}

func (m *mockFriendService) ListIncoming(ctx context.Context, userID uuid.UUID, page int) (*models.Page[models.IncomingRequest], error) {
	if m.ListIncomingFunc != nil {
		return m.ListIncomingFunc(ctx, userID, page)
	}
	return nil, errUnexpected
}

func (m *mockFriendService) ListFriends(ctx context.Context, userID uuid.UUID, page int) (*models.Page[models.Friend], error) {
	if m.ListFriendsFunc != nil {
		return m.ListFriendsFunc(ctx, userID, page)
	}
	return nil, errUnexpected
}

type mockMatchService struct {
	FindMatchesFunc func(ctx context.Context, userID uuid.UUID, scope models.MatchScope, page int) (*models.Page[models.MatchCandidate], error)
}

func (m *mockMatchService) FindMatches(ctx context.Context, userID uuid.UUID, scope models.MatchScope, page int) (*models.Page[models.MatchCandidate], error) {
	if m.FindMatchesFunc != nil {
		return m.FindMatchesFunc(ctx, userID, scope, page)
	}
	return nil, errUnexpected
}

type mockRatingService struct {
	SubmitFunc      func(ctx context.Context, raterID, rateeID uuid.UUID, score int, comment string) (*models.Rating, error)
	DeleteFunc      func(ctx context.Context, raterID, rateeID uuid.UUID) error
	GetFunc         func(ctx context.Context, raterID, rateeID uuid.UUID) (*models.Rating, error)
	AverageFunc     func(ctx context.Context, rateeID uuid.UUID) (models.RatingSummary, error)
	ListReviewsFunc func(ctx context.Context, rateeID uuid.UUID) ([]models.Review, error)
}

func (m *mockRatingService) Submit(ctx context.Context, raterID, rateeID uuid.UUID, score int, comment string) (*models.Rating, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, raterID, rateeID, score, comment)
	}
	return nil, errUnexpected
}

func (m *mockRatingService) Delete(ctx context.Context, raterID, rateeID uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, raterID, rateeID)
	}
	return errUnexpected
}

func (m *mockRatingService) Get(ctx context.Context, raterID, rateeID uuid.UUID) (*models.Rating, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, raterID, rateeID)
	}
	return nil, services.ErrRatingNotFound
}

func (m *mockRatingService) AverageRating(ctx context.Context, rateeID uuid.UUID) (models.RatingSummary, error) {
	if m.AverageFunc != nil {
		return m.AverageFunc(ctx, rateeID)
	}
	return models.RatingSummary{}, errUnexpected
}

func (m *mockRatingService) ListReviews(ctx context.Context, rateeID uuid.UUID) ([]models.Review, error) {
	if m.ListReviewsFunc != nil {
		return m.ListReviewsFunc(ctx, rateeID)
	}
	return nil, errUnexpected
}

type mockMessageService struct {
	SendFunc         func(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*models.Message, error)
	ConversationFunc func(ctx context.Context, userID, friendID uuid.UUID) ([]models.Message, error)
}

func (m *mockMessageService) Send(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*models.Message, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, senderID, receiverID, content)
	}
	return nil, errUnexpected
}

func (m *mockMessageService) Conversation(ctx context.Context, userID, friendID uuid.UUID) ([]models.Message, error) {
	if m.ConversationFunc != nil {
		return m.ConversationFunc(ctx, userID, friendID)
	}
	return nil, errUnexpected
}

func authedRequest(method, target, body string, user *models.User) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req = req.WithContext(SetUserInContext(req.Context(), user))
	}
	return req
}

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d (%s)", status, rr.Code, rr.Body.String())
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse error response: %v", err)
	}
	if resp.Error != message {
		t.Fatalf("expected error %q, got %q", message, resp.Error)
	}
}

type mockGroupService struct {
	SuggestionsFunc   func(ctx context.Context, userID uuid.UUID, page int) (*models.Page[models.GroupSuggestion], error)
	CreateFunc        func(ctx context.Context, creatorID uuid.UUID, params models.CreateGroupParams) (*models.Group, error)
	JoinFunc          func(ctx context.Context, userID, groupID uuid.UUID) error
	LeaveFunc         func(ctx context.Context, userID, groupID uuid.UUID) error
	DetailFunc        func(ctx context.Context, userID, groupID uuid.UUID) (*models.GroupDetail, error)
	CreatePostFunc    func(ctx context.Context, userID, groupID uuid.UUID, content string) (*models.Post, error)
	DeletePostFunc    func(ctx context.Context, userID, postID uuid.UUID) error
	AddCommentFunc    func(ctx context.Context, userID, postID uuid.UUID, content string) (*models.Comment, error)
	DeleteCommentFunc func(ctx context.Context, userID, commentID uuid.UUID) error
}

func (m *mockGroupService) Suggestions(ctx context.Context, userID uuid.UUID, page int) (*models.Page[models.GroupSuggestion], error) {
	if m.SuggestionsFunc != nil {
		return m.SuggestionsFunc(ctx, userID, page)
	}
	return nil, errUnexpected
}

func (m *mockGroupService) Create(ctx context.Context, creatorID uuid.UUID, params models.CreateGroupParams) (*models.Group, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, creatorID, params)
	}
	return nil, errUnexpected
}

func (m *mockGroupService) Join(ctx context.Context, userID, groupID uuid.UUID) error {
	if m.JoinFunc != nil {
		return m.JoinFunc(ctx, userID, groupID)
	}
	return errUnexpected
}

func (m *mockGroupService) Leave(ctx context.Context, userID, groupID uuid.UUID) error {
	if m.LeaveFunc != nil {
		return m.LeaveFunc(ctx, userID, groupID)
	}
	return errUnexpected
}

func (m *mockGroupService) Detail(ctx context.Context, userID, groupID uuid.UUID) (*models.GroupDetail, error) {
	if m.DetailFunc != nil {
		return m.DetailFunc(ctx, userID, groupID)
	}
	return nil, errUnexpected
}

func (m *mockGroupService) CreatePost(ctx context.Context, userID, groupID uuid.UUID, content string) (*models.Post, error) {
	if m.CreatePostFunc != nil {
		return m.CreatePostFunc(ctx, userID, groupID, content)
	}
	return nil, errUnexpected
}

func (m *mockGroupService) DeletePost(ctx context.Context, userID, postID uuid.UUID) error {
	if m.DeletePostFunc != nil {
		return m.DeletePostFunc(ctx, userID, postID)
	}
	return errUnexpected
}

func (m *mockGroupService) AddComment(ctx context.Context, userID, postID uuid.UUID, content string) (*models.Comment, error) {
	if m.AddCommentFunc != nil {
		return m.AddCommentFunc(ctx, userID, postID, content)
	}
	return nil, errUnexpected
}

func (m *mockGroupService) DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error {
	if m.DeleteCommentFunc != nil {
		return m.DeleteCommentFunc(ctx, userID, commentID)
	}
	return errUnexpected
}

type mockEventService struct {
	CreateFunc func(ctx context.Context, creatorID uuid.UUID, params models.CreateEventParams) (*models.Event, error)
	DeleteFunc func(ctx context.Context, userID, eventID uuid.UUID) error
	JoinFunc   func(ctx context.Context, userID, eventID uuid.UUID) error
	LeaveFunc  func(ctx context.Context, userID, eventID uuid.UUID) error
}

func (m *mockEventService) Create(ctx context.Context, creatorID uuid.UUID, params models.CreateEventParams) (*models.Event, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, creatorID, params)
	}
	return nil, errUnexpected
}

func (m *mockEventService) Delete(ctx context.Context, userID, eventID uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, eventID)
	}
	return errUnexpected
}

func (m *mockEventService) Join(ctx context.Context, userID, eventID uuid.UUID) error {
	if m.JoinFunc != nil {
		return m.JoinFunc(ctx, userID, eventID)
	}
	return errUnexpected
}

func (m *mockEventService) Leave(ctx context.Context, userID, eventID uuid.UUID) error {
	if m.LeaveFunc != nil {
		return m.LeaveFunc(ctx, userID, eventID)
	}
	return errUnexpected
}

type mockAdminService struct {
	ListUsersFunc     func(ctx context.Context, actorID uuid.UUID, page int) (*models.Page[models.User], error)
	SetAdminFunc      func(ctx context.Context, actorID, targetID uuid.UUID, admin bool) error
	SetRestrictedFunc func(ctx context.Context, actorID, targetID uuid.UUID, restricted bool) error
	DeleteUserFunc    func(ctx context.Context, actorID, targetID uuid.UUID) error
	DeleteGroupFunc   func(ctx context.Context, actorID, groupID uuid.UUID) error
	DeletePostFunc    func(ctx context.Context, actorID, postID uuid.UUID) error
	DeleteEventFunc   func(ctx context.Context, actorID, eventID uuid.UUID) error
	DeleteRatingFunc  func(ctx context.Context, actorID, raterID, rateeID uuid.UUID) error
}

func (m *mockAdminService) ListUsers(ctx context.Context, actorID uuid.UUID, page int) (*models.Page[models.User], error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx, actorID, page)
	}
	return nil, errUnexpected
}

func (m *mockAdminService) ListGroups(ctx context.Context, actorID uuid.UUID, page int) (*models.Page[models.GroupSuggestion], error) {
	result := models.NewPage([]models.GroupSuggestion(nil), page, 0)
	return &result, nil
}

func (m *mockAdminService) ListPosts(ctx context.Context, actorID uuid.UUID, page int) (*models.Page[models.AdminPost], error) {
	result := models.NewPage([]models.AdminPost(nil), page, 0)
	return &result, nil
}

func (m *mockAdminService) ListEvents(ctx context.Context, actorID uuid.UUID, page int) (*models.Page[models.AdminEvent], error) {
	result := models.NewPage([]models.AdminEvent(nil), page, 0)
	return &result, nil
}

func (m *mockAdminService) ListRatings(ctx context.Context, actorID uuid.UUID, page int) (*models.Page[models.AdminRating], error) {
	result := models.NewPage([]models.AdminRating(nil), page, 0)
	return &result, nil
}

func (m *mockAdminService) SetAdmin(ctx context.Context, actorID, targetID uuid.UUID, admin bool) error {
	if m.SetAdminFunc != nil {
		return m.SetAdminFunc(ctx, actorID, targetID, admin)
	}
	return errUnexpected
}

func (m *mockAdminService) SetRestricted(ctx context.Context, actorID, targetID uuid.UUID, restricted bool) error {
	if m.SetRestrictedFunc != nil {
		return m.SetRestrictedFunc(ctx, actorID, targetID, restricted)
	}
	return errUnexpected
}

func (m *mockAdminService) DeleteUser(ctx context.Context, actorID, targetID uuid.UUID) error {
	if m.DeleteUserFunc != nil {
		return m.DeleteUserFunc(ctx, actorID, targetID)
	}
	return errUnexpected
}

func (m *mockAdminService) DeleteGroup(ctx context.Context, actorID, groupID uuid.UUID) error {
	if m.DeleteGroupFunc != nil {
		return m.DeleteGroupFunc(ctx, actorID, groupID)
	}
	return errUnexpected
}

func (m *mockAdminService) DeletePost(ctx context.Context, actorID, postID uuid.UUID) error {
	if m.DeletePostFunc != nil {
		return m.DeletePostFunc(ctx, actorID, postID)
	}
	return errUnexpected
}

func (m *mockAdminService) DeleteEvent(ctx context.Context, actorID, eventID uuid.UUID) error {
	if m.DeleteEventFunc != nil {
		return m.DeleteEventFunc(ctx, actorID, eventID)
	}
	return errUnexpected
}

func (m *mockAdminService) DeleteRating(ctx context.Context, actorID, raterID, rateeID uuid.UUID) error {
	if m.DeleteRatingFunc != nil {
		return m.DeleteRatingFunc(ctx, actorID, raterID, rateeID)
	}
	return errUnexpected
}

type mockInterestService struct {
	interests  []models.Interest
	CreateFunc func(ctx context.Context, name, category string) (*models.Interest, error)
	UpdateFunc func(ctx context.Context, id uuid.UUID, name, category string) (*models.Interest, error)
	DeleteFunc func(ctx context.Context, id uuid.UUID) error
}

func (m *mockInterestService) List(ctx context.Context) ([]models.Interest, error) {
	return m.interests, nil
}

func (m *mockInterestService) ListPage(ctx context.Context, page int) (*models.Page[models.Interest], error) {
	result := models.NewPage(m.interests, page, len(m.interests))
	return &result, nil
}

func (m *mockInterestService) Create(ctx context.Context, name, category string) (*models.Interest, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, name, category)
	}
	return nil, errUnexpected
}

func (m *mockInterestService) Update(ctx context.Context, id uuid.UUID, name, category string) (*models.Interest, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, name, category)
	}
	return nil, errUnexpected
}

func (m *mockInterestService) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return errUnexpected
}

type mockLocationService struct {
	cities             []models.City
	neighborhoods      []models.Neighborhood
	AddCityFunc        func(ctx context.Context, city models.City) error
	AddNeighborhoodFn  func(ctx context.Context, n models.Neighborhood) error
	lastNeighborhoodOf string
}

func (m *mockLocationService) ListCities(ctx context.Context) ([]models.City, error) {
	return m.cities, nil
}

func (m *mockLocationService) ListNeighborhoods(ctx context.Context, cityCode string) ([]models.Neighborhood, error) {
	m.lastNeighborhoodOf = cityCode
	return m.neighborhoods, nil
}

func (m *mockLocationService) AddCity(ctx context.Context, city models.City) error {
	if m.AddCityFunc != nil {
		return m.AddCityFunc(ctx, city)
	}
	return errUnexpected
}

func (m *mockLocationService) AddNeighborhood(ctx context.Context, n models.Neighborhood) error {
	if m.AddNeighborhoodFn != nil {
		return m.AddNeighborhoodFn(ctx, n)
	}
	return errUnexpected
}

var (
	_ services.AuthServiceInterface     = (*mockAuthService)(nil)
	_ services.UserServiceInterface     = (*mockUserService)(nil)
	_ services.FriendServiceInterface   = (*mockFriendService)(nil)
	_ services.MatchServiceInterface    = (*mockMatchService)(nil)
	_ services.RatingServiceInterface   = (*mockRatingService)(nil)
	_ services.MessageServiceInterface  = (*mockMessageService)(nil)
	_ services.GroupServiceInterface    = (*mockGroupService)(nil)
	_ services.EventServiceInterface    = (*mockEventService)(nil)
	_ services.AdminServiceInterface    = (*mockAdminService)(nil)
	_ services.InterestServiceInterface = (*mockInterestService)(nil)
	_ services.LocationServiceInterface = (*mockLocationService)(nil)
)
