// Copyright (c) 2026 Identra. All rights reserved.

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/identra/identra/internal/platform/constants"
	"github.com/identra/identra/internal/platform/respond"
)

// # Health Probes

// healthCheckTimeout bounds each dependency probe so a wedged backend cannot
// stall the readiness endpoint.
const healthCheckTimeout = 2 * time.Second

// handleHealth is the liveness probe: the process is up and serving.
func (server *Server) handleHealth(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, map[string]string{
		constants.FieldStatus: "ok",
		"version":             constants.AppVersion,
	})
}

// handleReady is the readiness probe: both backing stores must answer a ping.
func (server *Server) handleReady(writer http.ResponseWriter, request *http.Request) {
	checks := map[string]string{
		"mongodb": checkMongo(request.Context(), server.mongoClient),
		"redis":   checkRedis(request.Context(), server.redisClient),
	}

	status := "ok"
	code := http.StatusOK
	for _, result := range checks {
		if result != "ok" {
			status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}

	respond.JSON(writer, code, map[string]any{
		constants.FieldStatus: status,
		constants.FieldChecks: checks,
	})
}

func checkMongo(ctx context.Context, client *mongo.Client) string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return err.Error()
	}
	return "ok"
}

func checkRedis(ctx context.Context, client *redis.Client) string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return err.Error()
	}
	return "ok"
}
