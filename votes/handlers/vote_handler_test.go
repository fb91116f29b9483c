package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	uuid "github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/affan-mulla/nextup/internal/types"
	voteErrors "github.com/affan-mulla/nextup/votes/errors"
	"github.com/affan-mulla/nextup/votes/handlers"
	"github.com/affan-mulla/nextup/votes/models"
)

// MockVoteService implements the VoteService interface for testing
type MockVoteService struct {
	applyVoteFunc func(ctx context.Context, userID, subjectID uuid.UUID, direction models.Direction) (*models.VoteResult, error)
}

func (m *MockVoteService) ApplyVote(ctx context.Context, userID, subjectID uuid.UUID, direction models.Direction) (*models.VoteResult, error) {
	return m.applyVoteFunc(ctx, userID, subjectID, direction)
}

func newApp(svc *MockVoteService, user *types.UserContext) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if user != nil {
			c.Locals(types.UserCtxName, *user)
		}
		return c.Next()
	})
	app.Post("/votes", handlers.NewVoteHandler(svc).Vote)
	return app
}

func postVote(t *testing.T, app *fiber.App, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/votes", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestVote_Success(t *testing.T) {
	user := &types.UserContext{UserID: uuid.Must(uuid.NewV4())}
	subjectID := uuid.Must(uuid.NewV4())

	svc := &MockVoteService{
		applyVoteFunc: func(ctx context.Context, userID, sid uuid.UUID, d models.Direction) (*models.VoteResult, error) {
			assert.Equal(t, user.UserID, userID)
			assert.Equal(t, subjectID, sid)
			assert.Equal(t, models.DirectionUp, d)
			return &models.VoteResult{SubjectID: sid, VoteCount: 1, ViewerVote: models.DirectionUp}, nil
		},
	}

	status, body := postVote(t, newApp(svc, user), fmt.Sprintf(`{"subjectId":%q,"direction":"UP"}`, subjectID))

	assert.Equal(t, http.StatusOK, status)
	var resp models.VoteResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, subjectID.String(), resp.SubjectID)
	assert.Equal(t, int64(1), resp.VoteCount)
	require.NotNil(t, resp.ViewerVote)
	assert.Equal(t, models.DirectionUp, resp.ViewerVote.Direction)
}

func TestVote_ToggleOffReturnsNullViewerVote(t *testing.T) {
	user := &types.UserContext{UserID: uuid.Must(uuid.NewV4())}
	subjectID := uuid.Must(uuid.NewV4())

	svc := &MockVoteService{
		applyVoteFunc: func(ctx context.Context, userID, sid uuid.UUID, d models.Direction) (*models.VoteResult, error) {
			return &models.VoteResult{SubjectID: sid, VoteCount: 0}, nil
		},
	}

	status, body := postVote(t, newApp(svc, user), fmt.Sprintf(`{"subjectId":%q,"direction":"UP"}`, subjectID))

	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"viewerVote":null`)
}

func TestVote_LegacyBody(t *testing.T) {
	user := &types.UserContext{UserID: uuid.Must(uuid.NewV4())}
	subjectID := uuid.Must(uuid.NewV4())

	var got models.Direction
	svc := &MockVoteService{
		applyVoteFunc: func(ctx context.Context, userID, sid uuid.UUID, d models.Direction) (*models.VoteResult, error) {
			got = d
			return &models.VoteResult{SubjectID: sid, VoteCount: -1, ViewerVote: d}, nil
		},
	}

	status, _ := postVote(t, newApp(svc, user), fmt.Sprintf(`{"postId":%q,"typeId":2}`, subjectID))

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.DirectionDown, got)
}

func TestVote_Errors(t *testing.T) {
	user := &types.UserContext{UserID: uuid.Must(uuid.NewV4())}
	subjectID := uuid.Must(uuid.NewV4())
	valid := fmt.Sprintf(`{"subjectId":%q,"direction":"UP"}`, subjectID)

	tests := []struct {
		name       string
		user       *types.UserContext
		body       string
		serviceErr error
		status     int
		code       voteErrors.Code
	}{
		{"no user", nil, valid, nil, http.StatusUnauthorized, voteErrors.CodeUnauthorized},
		{"malformed body", user, `{`, nil, http.StatusBadRequest, voteErrors.CodeInvalidInput},
		{"bad direction", user, fmt.Sprintf(`{"subjectId":%q,"direction":"SIDEWAYS"}`, subjectID), nil, http.StatusBadRequest, voteErrors.CodeInvalidInput},
		{"missing subject", user, `{"direction":"UP"}`, nil, http.StatusBadRequest, voteErrors.CodeInvalidInput},
		{"bad subject id", user, `{"subjectId":"nope","direction":"UP"}`, nil, http.StatusBadRequest, voteErrors.CodeInvalidInput},
		{"subject not found", user, valid, voteErrors.ErrSubjectNotFound, http.StatusNotFound, voteErrors.CodeNotFound},
		{"conflict", user, valid, voteErrors.ErrVoteConflict, http.StatusServiceUnavailable, voteErrors.CodeTransient},
		{"persistence", user, valid, voteErrors.ErrPersistence, http.StatusInternalServerError, voteErrors.CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockVoteService{
				applyVoteFunc: func(ctx context.Context, userID, sid uuid.UUID, d models.Direction) (*models.VoteResult, error) {
					if tt.serviceErr == nil {
						t.Fatal("service should not be called")
					}
					return nil, tt.serviceErr
				},
			}

			status, body := postVote(t, newApp(svc, tt.user), tt.body)

			assert.Equal(t, tt.status, status)
			var resp voteErrors.ErrorResponse
			require.NoError(t, json.Unmarshal(body, &resp))
			assert.Equal(t, string(tt.code), resp.Code)
		})
	}
}
