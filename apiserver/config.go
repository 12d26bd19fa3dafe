package main

// nolint: lll
import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/krancour/identity/apiserver/internal/lib/mongodb"
	"github.com/krancour/identity/apiserver/internal/lib/redis"
	"github.com/krancour/identity/apiserver/internal/lib/restmachinery"
	"github.com/krancour/identity/apiserver/internal/lib/restmachinery/authn"
	"github.com/krancour/identity/apiserver/internal/sessions"
	sessionsMemory "github.com/krancour/identity/apiserver/internal/sessions/memory"
	sessionsMongodb "github.com/krancour/identity/apiserver/internal/sessions/mongodb"
	sessionsRedis "github.com/krancour/identity/apiserver/internal/sessions/redis"
	sessionsREST "github.com/krancour/identity/apiserver/internal/sessions/rest"
	"github.com/pkg/errors"
)

const disconnectTimeout = 5 * time.Second

// getAPIServerFromEnvironment assembles the API server and the session
// replicator from configuration in the environment. The returned function
// closes every connection that was opened and must be called once both have
// stopped.
func getAPIServerFromEnvironment() (
	restmachinery.Server,
	sessions.Replicator,
	func(),
	error,
) {
	noop := func() {}

	// API server config
	apiConfig, err := restmachinery.GetConfigFromEnvironment()
	if err != nil {
		return nil, nil, noop, err
	}

	// Sessions config
	sessionsConfig, err := sessions.GetConfigFromEnvironment()
	if err != nil {
		return nil, nil, noop, err
	}

	// Common
	redisClient, redisPrefix, err := redis.Client()
	if err != nil {
		return nil, nil, noop, err
	}
	database, err := mongodb.Database()
	if err != nil {
		redisClient.Close()
		return nil, nil, noop, err
	}
	closeStores := func() {
		if err := redisClient.Close(); err != nil {
			glog.Error(errors.Wrap(err, "error closing redis client"))
		}
		ctx, cancel :=
			context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		if err := database.Client().Disconnect(ctx); err != nil {
			glog.Error(errors.Wrap(err, "error disconnecting from mongo"))
		}
	}

	// Sessions
	ledgerStore, err := sessionsMongodb.NewLedgerStore(
		database,
		sessionsConfig.LedgerSingleSession,
	)
	if err != nil {
		closeStores()
		return nil, nil, noop, err
	}
	var cacheStore sessions.CacheStore
	switch sessionsConfig.CacheBackend {
	case sessions.CacheBackendMemory:
		cacheStore = sessionsMemory.NewCacheStore()
	default:
		cacheStore = sessionsRedis.NewCacheStore(redisClient, redisPrefix)
	}
	glog.Infof("session cache backend is %q", sessionsConfig.CacheBackend)
	eventBus := sessionsRedis.NewEventBus(
		redisClient,
		redisPrefix,
		sessionsConfig.EventsChannel,
	)
	tokenCodec := sessions.NewTokenCodec(
		sessionsConfig.SigningSecret,
		sessionsConfig.AccessTokenTTL,
		sessionsConfig.RefreshTokenTTL,
	)
	sessionsService := sessions.NewSessionsService(
		tokenCodec,
		cacheStore,
		ledgerStore,
		eventBus,
		sessionsConfig.RotateRefreshTokens,
	)
	replicator := sessions.NewReplicator(eventBus, cacheStore)

	apiServer := restmachinery.NewServer(
		apiConfig,
		[]restmachinery.Endpoints{
			sessionsREST.NewEndpoints(
				authn.NewIssuerTokenAuthFilter(apiConfig.HashedIssuerToken()),
				authn.NewTokenAuthFilter(tokenCodec.Verify),
				authn.NewExpiredTokenAuthFilter(
					tokenCodec.Verify,
					tokenCodec.Decode,
				),
				sessionsService,
			),
		},
	)

	return apiServer, replicator, closeStores, nil
}
