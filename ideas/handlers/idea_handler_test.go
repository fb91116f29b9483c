package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	uuid "github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ideasErrors "github.com/affan-mulla/nextup/ideas/errors"
	"github.com/affan-mulla/nextup/ideas/handlers"
	"github.com/affan-mulla/nextup/ideas/models"
	"github.com/affan-mulla/nextup/internal/types"
)

// MockIdeaService implements the IdeaService interface for testing
type MockIdeaService struct {
	createIdeaFunc   func(ctx context.Context, req *models.CreateIdeaRequest, user *types.UserContext) (*models.Idea, error)
	getIdeaFunc      func(ctx context.Context, id uuid.UUID, viewer uuid.UUID) (*models.IdeaDetail, error)
	feedFunc         func(ctx context.Context, query models.PageQuery, viewer uuid.UUID) (*models.FeedPage, error)
	profileIdeasFunc func(ctx context.Context, owner uuid.UUID, query models.PageQuery, viewer uuid.UUID) (*models.ProfilePage, error)
}

func (m *MockIdeaService) CreateIdea(ctx context.Context, req *models.CreateIdeaRequest, user *types.UserContext) (*models.Idea, error) {
	return m.createIdeaFunc(ctx, req, user)
}

func (m *MockIdeaService) GetIdea(ctx context.Context, id uuid.UUID, viewer uuid.UUID) (*models.IdeaDetail, error) {
	return m.getIdeaFunc(ctx, id, viewer)
}

func (m *MockIdeaService) Feed(ctx context.Context, query models.PageQuery, viewer uuid.UUID) (*models.FeedPage, error) {
	return m.feedFunc(ctx, query, viewer)
}

func (m *MockIdeaService) ProfileIdeas(ctx context.Context, owner uuid.UUID, query models.PageQuery, viewer uuid.UUID) (*models.ProfilePage, error) {
	return m.profileIdeasFunc(ctx, owner, query, viewer)
}

func (m *MockIdeaService) InvalidateSubject(ctx context.Context, id uuid.UUID) error {
	return nil
}

func newApp(svc *MockIdeaService, user *types.UserContext) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if user != nil {
			c.Locals(types.UserCtxName, *user)
		}
		return c.Next()
	})

	h := handlers.NewIdeaHandler(svc)
	app.Post("/ideas", h.CreateIdea)
	app.Get("/ideas", h.Feed)
	app.Get("/ideas/:ideaId", h.GetIdea)
	app.Get("/profiles/:userId/ideas", h.ProfileIdeas)
	return app
}

func TestCreateIdea(t *testing.T) {
	user := &types.UserContext{UserID: uuid.Must(uuid.NewV4()), DisplayName: "Ada"}
	created := uuid.Must(uuid.NewV4())

	svc := &MockIdeaService{
		createIdeaFunc: func(ctx context.Context, req *models.CreateIdeaRequest, u *types.UserContext) (*models.Idea, error) {
			assert.Equal(t, "Dark mode", req.Title)
			assert.Equal(t, user.UserID, u.UserID)
			return &models.Idea{ID: created}, nil
		},
	}

	body, _ := json.Marshal(models.CreateIdeaRequest{Title: "Dark mode"})
	req := httptest.NewRequest(http.MethodPost, "/ideas", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := newApp(svc, user).Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, created.String(), out["objectId"])
}

func TestCreateIdea_RequiresUser(t *testing.T) {
	body, _ := json.Marshal(models.CreateIdeaRequest{Title: "Dark mode"})
	req := httptest.NewRequest(http.MethodPost, "/ideas", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := newApp(&MockIdeaService{}, nil).Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFeed_DecodesPagination(t *testing.T) {
	viewer := uuid.Must(uuid.NewV4())
	svc := &MockIdeaService{
		feedFunc: func(ctx context.Context, query models.PageQuery, v uuid.UUID) (*models.FeedPage, error) {
			assert.Equal(t, 5, query.Limit)
			assert.Equal(t, 10, query.Offset)
			assert.Equal(t, viewer, v)
			return &models.FeedPage{Items: []models.FeedItem{}, Offset: 10}, nil
		},
	}

	resp, err := newApp(svc, &types.UserContext{UserID: viewer}).Test(httptest.NewRequest(http.MethodGet, "/ideas?limit=5&offset=10&utm=x", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFeed_RejectsBadPagination(t *testing.T) {
	resp, err := newApp(&MockIdeaService{}, nil).Test(httptest.NewRequest(http.MethodGet, "/ideas?limit=abc", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetIdea(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	t.Run("anonymous viewer", func(t *testing.T) {
		svc := &MockIdeaService{
			getIdeaFunc: func(ctx context.Context, got uuid.UUID, viewer uuid.UUID) (*models.IdeaDetail, error) {
				assert.Equal(t, id, got)
				assert.Equal(t, uuid.Nil, viewer)
				return &models.IdeaDetail{ObjectID: id, Score: 3}, nil
			},
		}
		resp, err := newApp(svc, nil).Test(httptest.NewRequest(http.MethodGet, "/ideas/"+id.String(), nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		svc := &MockIdeaService{
			getIdeaFunc: func(ctx context.Context, got uuid.UUID, viewer uuid.UUID) (*models.IdeaDetail, error) {
				return nil, ideasErrors.ErrIdeaNotFound
			},
		}
		resp, err := newApp(svc, nil).Test(httptest.NewRequest(http.MethodGet, "/ideas/"+id.String(), nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestProfileIdeas(t *testing.T) {
	owner := uuid.Must(uuid.NewV4())
	svc := &MockIdeaService{
		profileIdeasFunc: func(ctx context.Context, got uuid.UUID, query models.PageQuery, viewer uuid.UUID) (*models.ProfilePage, error) {
			assert.Equal(t, owner, got)
			return &models.ProfilePage{UserID: owner, Items: []models.ProfileIdea{}}, nil
		},
	}

	resp, err := newApp(svc, nil).Test(httptest.NewRequest(http.MethodGet, "/profiles/"+owner.String()+"/ideas", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
