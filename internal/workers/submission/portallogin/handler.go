package portallogin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"jobapply-workers/internal/common/auth"
	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/pipeline"

	"github.com/redis/go-redis/v9"
)

const StepID = "login"

// Authenticator is satisfied by auth.PortalClient.
type Authenticator interface {
	Login(ctx context.Context, userID, portalHost string, maxTTL time.Duration) (auth.Session, error)
}

type Handler struct {
	config *Config
	auth   Authenticator
	redis  *redis.Client
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(config *Config, authenticator Authenticator, redisClient *redis.Client, log logger.Logger) *Handler {
	if config.DefaultPortal == "" {
		config.DefaultPortal = "myworkdayjobs.com"
	}
	return &Handler{
		config: config,
		auth:   authenticator,
		redis:  redisClient,
		logger: log.WithFields(map[string]interface{}{"stepId": StepID}),
		now:    time.Now,
	}
}

func SessionKey(userID, host string) string {
	return fmt.Sprintf("portal:session:%s:%s", userID, host)
}

// Execute signs the user in to the portal hosting the lead, reusing a cached
// session while it is valid.
func (h *Handler) Execute(ctx context.Context, req *pipeline.Request) error {
	host := h.portalHost(req.Item.ApplicationLink)
	key := SessionKey(req.UserID, host)

	if session, ok := h.cached(ctx, key); ok {
		req.Artifacts.Set(pipeline.ArtifactPortalToken, session.AccessToken)
		h.logger.Debug("portal session reused", map[string]interface{}{"portal": host})
		return nil
	}

	session, err := h.auth.Login(ctx, req.UserID, host, h.config.SessionTTL)
	if err != nil {
		return apperrors.NewPortalAuthFailedError(host, err)
	}
	req.Artifacts.Set(pipeline.ArtifactPortalToken, session.AccessToken)

	if ttl := session.ExpiresAt.Sub(h.now()); ttl > 0 && h.redis != nil {
		data, _ := json.Marshal(session)
		if err := h.redis.Set(ctx, key, data, ttl).Err(); err != nil {
			h.logger.Warn("portal session not cached", map[string]interface{}{"portal": host, "error": err})
		}
	}

	h.logger.Info("portal login succeeded", map[string]interface{}{
		"portal":    host,
		"itemId":    req.Item.ID,
		"expiresAt": session.ExpiresAt,
	})
	return nil
}

func (h *Handler) cached(ctx context.Context, key string) (auth.Session, bool) {
	var session auth.Session
	if h.redis == nil {
		return session, false
	}
	val, err := h.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			h.logger.Warn("portal session cache read failed", map[string]interface{}{"error": err})
		}
		return session, false
	}
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return session, false
	}
	return session, session.Valid(h.now().Add(h.config.RefreshMargin))
}

func (h *Handler) portalHost(link string) string {
	if link != "" {
		if u, err := url.Parse(link); err == nil && u.Host != "" {
			return strings.ToLower(u.Hostname())
		}
	}
	return h.config.DefaultPortal
}
