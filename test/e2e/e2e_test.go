// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobapply-workers/internal/apply"
	"jobapply-workers/internal/common/auth"
	"jobapply-workers/internal/common/camunda"
	"jobapply-workers/internal/common/config"
	"jobapply-workers/internal/common/database"
	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/models"
	"jobapply-workers/internal/pipeline"
	"jobapply-workers/internal/progress"
	"jobapply-workers/internal/store"
	"jobapply-workers/internal/tracker"
	"jobapply-workers/pkg/registry"

	af "jobapply-workers/internal/workers/submission/autofillform"
	cs "jobapply-workers/internal/workers/submission/confirmsubmission"
	fr "jobapply-workers/internal/workers/submission/formatresume"
	mm "jobapply-workers/internal/workers/submission/messagemanager"
	pl "jobapply-workers/internal/workers/submission/portallogin"
	sub "jobapply-workers/internal/workers/submission/submitapplication"
	ur "jobapply-workers/internal/workers/submission/uploadresume"
)

const batchIndexName = "apply-batches-e2e"

var (
	pg  *database.PostgresClient
	rdb *database.RedisClient
	es  *database.ElasticsearchClient
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestMain(m *testing.M) {
	if os.Getenv("E2E") != "1" {
		fmt.Println("skipping e2e tests: set E2E=1 with postgres, redis and elasticsearch on localhost")
		os.Exit(0)
	}

	var err error
	pg, err = database.NewPostgres(config.PostgresConfig{
		Host:           envOr("POSTGRES_HOST", "localhost"),
		Port:           5432,
		Database:       envOr("POSTGRES_DB", "jobapply"),
		User:           envOr("POSTGRES_USER", "postgres"),
		Password:       envOr("POSTGRES_PASSWORD", "postgres"),
		MaxConnections: 10,
		MaxIdle:        2,
		SSLMode:        "disable",
	})
	if err != nil {
		fmt.Printf("❌ Failed to connect to PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	rdb, err = database.NewRedis(config.RedisConfig{Address: envOr("REDIS_ADDRESS", "localhost:6379")})
	if err != nil {
		fmt.Printf("❌ Failed to connect to Redis: %v\n", err)
		os.Exit(1)
	}
	es, err = database.NewElasticsearch(config.ElasticsearchConfig{
		Addresses:  []string{envOr("ELASTICSEARCH_URL", "http://localhost:9200")},
		BatchIndex: batchIndexName,
	})
	if err != nil {
		fmt.Printf("❌ Failed to connect to Elasticsearch: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	rdb.Close()
	pg.Close()
	os.Exit(code)
}

func TestFullE2E(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	t.Run("Connectivity", func(t *testing.T) {
		assertAllServicesConnectivity(t, ctx)
	})

	require.NoError(t, pg.Migrate(ctx))
	require.NoError(t, es.EnsureIndex(ctx, batchIndexName))

	userID := "e2e-" + uuid.NewString()[:8]
	jobs := seedApplicant(t, ctx, pg.DB, userID)

	svc, redisProgress, batchIndex := newService(t)

	t.Run("SpeedApply", func(t *testing.T) {
		ids := []string{jobs["eligible1"], jobs["eligible2"], jobs["external"], "missing-job"}
		result, err := svc.SpeedApply(ctx, userID, ids)
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{jobs["eligible1"], jobs["eligible2"]}, result.Successful)
		assert.ElementsMatch(t, []string{jobs["external"], "missing-job"}, result.Ineligible)
		assert.Empty(t, result.Failed)
		assert.Equal(t, 2, result.Total)
		assert.Equal(t, 2, result.Completed)
		assert.Equal(t, 4, result.Accounted())

		for _, id := range result.Successful {
			assert.Equal(t, string(models.StatusApplied), jobStatus(t, ctx, pg.DB, id))
			assert.Equal(t, models.ApplicationStatusSubmitted, applicationStatus(t, ctx, pg.DB, userID, id))
		}
		assert.Equal(t, string(models.StatusSaved), jobStatus(t, ctx, pg.DB, jobs["external"]))

		var notifications int
		require.NoError(t, pg.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID).Scan(&notifications))
		assert.Equal(t, 1, notifications)

		assertResultPublished(t, ctx, redisProgress, batchIndex, result)
	})

	t.Run("WorkdayApply", func(t *testing.T) {
		result, err := svc.WorkdayApply(ctx, userID, jobs["workday"])
		require.NoError(t, err)
		require.Equal(t, []string{jobs["workday"]}, result.Successful, "failures: %+v", result.Failures)

		confirmation := result.Confirmations[jobs["workday"]]
		expected := cs.NewHandler(&cs.Config{}, pg.DB, logger.NewNoOpLogger()).ConfirmationNumber(jobs["workday"])
		assert.Equal(t, expected, confirmation)
		assert.Equal(t, models.ApplicationStatusConfirmed, applicationStatus(t, ctx, pg.DB, userID, jobs["workday"]))

		var stored sql.NullString
		require.NoError(t, pg.DB.QueryRowContext(ctx,
			`SELECT confirmation_number FROM applications WHERE user_id = $1 AND job_id = $2`,
			userID, jobs["workday"]).Scan(&stored))
		assert.Equal(t, confirmation, stored.String)

		cached, err := rdb.Client.Exists(ctx, pl.SessionKey(userID, "acme.myworkdayjobs.com")).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), cached)

		assertResultPublished(t, ctx, redisProgress, batchIndex, result)
	})

	t.Run("NothingEligible", func(t *testing.T) {
		result, err := svc.SpeedApply(ctx, userID, []string{jobs["external"]})
		require.NoError(t, err)
		assert.Empty(t, result.Successful)
		assert.Equal(t, []string{jobs["external"]}, result.Ineligible)
		assert.Zero(t, result.Total)
		assert.True(t, result.Done())
	})

	require.NoError(t, svc.Shutdown(ctx))
}

func assertAllServicesConnectivity(t *testing.T, ctx context.Context) {
	t.Helper()

	require.NoError(t, pg.Ping(ctx), "postgres should be reachable")
	require.NoError(t, rdb.Ping(ctx), "redis should be reachable")
	require.NoError(t, es.Ping(), "elasticsearch should be reachable")

	addr := os.Getenv("ZEEBE_ADDRESS")
	if addr == "" {
		t.Log("ZEEBE_ADDRESS not set, skipping zeebe connectivity")
		return
	}
	zeebe, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
		GatewayAddress:         addr,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         10 * time.Second,
	})
	require.NoError(t, err)
	defer zeebe.Close()
	assert.NoError(t, zeebe.HealthCheck(ctx), "zeebe should report a topology")
}

func newService(t *testing.T) (*apply.Service, *progress.RedisPublisher, *store.BatchIndex) {
	t.Helper()
	log := logger.NewTestLogger(t)

	portal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "apply:acme.myworkdayjobs.com", r.PostForm.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(auth.TokenResponse{
			AccessToken: "e2e-token",
			TokenType:   "Bearer",
			ExpiresIn:   3600,
		})
	}))
	t.Cleanup(portal.Close)

	autofill, err := af.NewHandler(&af.Config{}, log)
	require.NoError(t, err)

	executors := map[string]pipeline.Executor{
		registry.StepFormat:   fr.NewHandler(&fr.Config{}, log),
		registry.StepAutofill: autofill,
		registry.StepUpload:   ur.NewHandler(&ur.Config{}, pg.DB, log),
		registry.StepSubmit:   sub.NewHandler(&sub.Config{}, pg.DB, log),
		registry.StepMessage:  mm.NewHandler(&mm.Config{Enabled: false}, nil, log),
		registry.StepLogin: pl.NewHandler(&pl.Config{SessionTTL: time.Hour},
			auth.NewPortalClient(portal.URL, "e2e-client", "e2e-secret", 5*time.Second), rdb.Client, log),
		registry.StepConfirm: cs.NewHandler(&cs.Config{}, pg.DB, log),
	}

	pgStore := store.NewPostgres(pg.DB)
	redisProgress := progress.NewRedisPublisher(rdb.Client, time.Hour, log)
	batchIndex := store.NewBatchIndex(es.Client, batchIndexName, log)
	trk := tracker.New(pgStore, pgStore, 7*24*time.Hour, log)

	svc, err := apply.NewService(apply.Dependencies{
		Executors:   executors,
		Jobs:        pgStore,
		Applicants:  pgStore,
		Hook:        trk,
		Reporter:    pipeline.BatchReporters{trk, redisProgress, batchIndex},
		Observer:    redisProgress,
		Logger:      log,
		StepTimeout: 30 * time.Second,
	})
	require.NoError(t, err)
	return svc, redisProgress, batchIndex
}

// seedApplicant inserts an applicant with an active text resume and a set of
// job leads, returning the lead ids keyed by role.
func seedApplicant(t *testing.T, ctx context.Context, db *sql.DB, userID string) map[string]string {
	t.Helper()

	resumePath := filepath.Join(t.TempDir(), "resume.txt")
	require.NoError(t, os.WriteFile(resumePath,
		[]byte("Jane Doe\nSenior Go Engineer\n\nBuilt distributed job pipelines."), 0o600))

	_, err := db.ExecContext(ctx,
		`INSERT INTO applicants (id, full_name, email, phone, location) VALUES ($1, $2, $3, $4, $5)`,
		userID, "Jane Doe", userID+"@example.com", "+15550100", "Berlin")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		`INSERT INTO resumes (id, applicant_id, name, file_path, file_type, is_active) VALUES ($1, $2, $3, $4, $5, TRUE)`,
		uuid.NewString(), userID, "resume.txt", resumePath, "txt")
	require.NoError(t, err)

	leads := []struct {
		role   string
		link   string
		inApp  bool
		method models.ApplicationMethod
	}{
		{"eligible1", "https://jobs.example.com/1", true, models.MethodInApp},
		{"eligible2", "https://jobs.example.com/2", true, models.MethodInApp},
		{"external", "https://careers.example.org/3", false, models.MethodExternal},
		{"workday", "https://acme.myworkdayjobs.com/en-US/jobs/4", true, models.MethodInApp},
	}
	ids := make(map[string]string, len(leads))
	for i, lead := range leads {
		id := uuid.NewString()
		ids[lead.role] = id
		_, err := db.ExecContext(ctx, `
			INSERT INTO job_leads (id, user_id, title, company, application_link, status,
				application_method, can_apply_in_app, speed_apply, posting_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
			id, userID, fmt.Sprintf("Go Engineer %d", i+1), strings.ToUpper(lead.role[:1])+lead.role[1:]+" Corp",
			lead.link, string(models.StatusSaved), string(lead.method), lead.inApp, lead.inApp)
		require.NoError(t, err)
	}
	return ids
}

func jobStatus(t *testing.T, ctx context.Context, db *sql.DB, jobID string) string {
	t.Helper()
	var status string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT status FROM job_leads WHERE id = $1`, jobID).Scan(&status))
	return status
}

func applicationStatus(t *testing.T, ctx context.Context, db *sql.DB, userID, jobID string) string {
	t.Helper()
	var status string
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT status FROM applications WHERE user_id = $1 AND job_id = $2`, userID, jobID).Scan(&status))
	return status
}

func assertResultPublished(t *testing.T, ctx context.Context, rp *progress.RedisPublisher, idx *store.BatchIndex, result *pipeline.BatchResult) {
	t.Helper()

	cached, err := rp.Result(ctx, result.BatchID)
	require.NoError(t, err)
	require.NotNil(t, cached, "result should be cached in redis")
	assert.ElementsMatch(t, result.Successful, cached.Successful)

	latest, err := rp.Latest(ctx, result.BatchID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, result.Total, latest.Total)

	archived, err := idx.Get(ctx, result.BatchID)
	require.NoError(t, err)
	require.NotNil(t, archived, "result should be archived in elasticsearch")
	assert.Equal(t, result.Flow, archived.Flow)
}
