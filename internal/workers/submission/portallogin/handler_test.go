package portallogin

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"jobapply-workers/internal/common/auth"
	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/models"
	"jobapply-workers/internal/pipeline"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, userID, portalHost string, maxTTL time.Duration) (auth.Session, error) {
	args := m.Called(ctx, userID, portalHost, maxTTL)
	return args.Get(0).(auth.Session), args.Error(1)
}

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func createRequest() *pipeline.Request {
	return &pipeline.Request{
		UserID:    "u1",
		Item:      models.JobLead{ID: "j1", ApplicationLink: "https://Acme.wd5.myworkdayjobs.com/en-US/careers/job/123"},
		Artifacts: pipeline.Artifacts{},
	}
}

func createTestConfig() *Config {
	return &Config{SessionTTL: time.Hour, RefreshMargin: time.Minute}
}

func TestHandler_Execute_LoginAndCache(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	authn := new(MockAuthenticator)

	session := auth.Session{AccessToken: "tok-1", TokenType: "Bearer", ExpiresAt: fixedNow.Add(30 * time.Minute)}
	authn.On("Login", mock.Anything, "u1", "acme.wd5.myworkdayjobs.com", time.Hour).Return(session, nil)

	key := SessionKey("u1", "acme.wd5.myworkdayjobs.com")
	data, _ := json.Marshal(session)
	redisMock.ExpectGet(key).RedisNil()
	redisMock.ExpectSet(key, data, 30*time.Minute).SetVal("OK")

	h := NewHandler(createTestConfig(), authn, redisClient, logger.NewTestLogger(t))
	h.now = func() time.Time { return fixedNow }

	req := createRequest()
	require.NoError(t, h.Execute(context.Background(), req))
	assert.Equal(t, "tok-1", req.Artifacts.Get(pipeline.ArtifactPortalToken))
	authn.AssertExpectations(t)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestHandler_Execute_CachedSession(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	authn := new(MockAuthenticator)

	session := auth.Session{AccessToken: "tok-cached", ExpiresAt: fixedNow.Add(10 * time.Minute)}
	data, _ := json.Marshal(session)
	redisMock.ExpectGet(SessionKey("u1", "acme.wd5.myworkdayjobs.com")).SetVal(string(data))

	h := NewHandler(createTestConfig(), authn, redisClient, logger.NewTestLogger(t))
	h.now = func() time.Time { return fixedNow }

	req := createRequest()
	require.NoError(t, h.Execute(context.Background(), req))
	assert.Equal(t, "tok-cached", req.Artifacts.Get(pipeline.ArtifactPortalToken))
	authn.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_Execute_ExpiringSessionRefreshed(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	authn := new(MockAuthenticator)

	stale := auth.Session{AccessToken: "tok-old", ExpiresAt: fixedNow.Add(30 * time.Second)}
	data, _ := json.Marshal(stale)
	key := SessionKey("u1", "myworkdayjobs.com")
	redisMock.ExpectGet(key).SetVal(string(data))

	fresh := auth.Session{AccessToken: "tok-new", ExpiresAt: fixedNow.Add(time.Hour)}
	authn.On("Login", mock.Anything, "u1", "myworkdayjobs.com", time.Hour).Return(fresh, nil)
	freshData, _ := json.Marshal(fresh)
	redisMock.ExpectSet(key, freshData, time.Hour).SetErr(errors.New("OOM"))

	h := NewHandler(createTestConfig(), authn, redisClient, logger.NewTestLogger(t))
	h.now = func() time.Time { return fixedNow }

	req := createRequest()
	req.Item.ApplicationLink = ""
	require.NoError(t, h.Execute(context.Background(), req))
	assert.Equal(t, "tok-new", req.Artifacts.Get(pipeline.ArtifactPortalToken))
}

func TestHandler_Execute_LoginFails(t *testing.T) {
	authn := new(MockAuthenticator)
	authn.On("Login", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(auth.Session{}, errors.New("token request failed with status 401"))

	h := NewHandler(createTestConfig(), authn, nil, logger.NewTestLogger(t))
	req := createRequest()
	err := h.Execute(context.Background(), req)

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePortalAuthFailed, apperrors.CodeOf(err))
	assert.Empty(t, req.Artifacts.Get(pipeline.ArtifactPortalToken))
}
