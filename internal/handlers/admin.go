package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/chainwatch/ingestor/api"
	config "github.com/chainwatch/ingestor/configs"
	"github.com/chainwatch/ingestor/internal/middleware"
	"github.com/chainwatch/ingestor/internal/storage"
	"github.com/chainwatch/ingestor/internal/writer"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const healthTimeout = 5 * time.Second

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type BatchWriter interface {
	Stats() []writer.PartitionStats
	FlushPartition(ctx context.Context, key string) error
	FlushAll(ctx context.Context) error
}

// Admin serves the operational endpoints of a writer process. Ledger is
// optional; without it /batches is not registered.
type Admin struct {
	Lake   HealthChecker
	Writer BatchWriter
	Ledger storage.IBatchLedger
}

func NewRouter(a *Admin, auth config.BasicAuthConfig) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logger())
	r.Use(gin.Recovery())

	r.GET("/health", a.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := r.Group("/")
	{
		admin.Use(middleware.Authorization(auth))
		admin.GET("/partitions", a.Partitions)
		admin.POST("/flush", a.Flush)
		if a.Ledger != nil {
			admin.GET("/batches", a.Batches)
		}
	}
	return r
}

func (a *Admin) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := a.Lake.HealthCheck(ctx); err != nil {
		log.Error().Err(err).Msg("Health check failed")
		api.UnavailableErrorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *Admin) Partitions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": a.Writer.Stats()})
}

// Flush flushes the partition named by the query, or every partition when
// none is given.
func (a *Admin) Flush(c *gin.Context) {
	params, err := api.ParsePartitionParams(c.Request)
	if err != nil {
		api.BadRequestErrorHandler(c, err)
		return
	}

	ctx := c.Request.Context()
	if params.All() {
		err = a.Writer.FlushAll(ctx)
	} else {
		err = a.Writer.FlushPartition(ctx, params.Key())
	}
	if err != nil {
		_ = c.Error(err)
		api.InternalErrorHandler(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": a.Writer.Stats()})
}

func (a *Admin) Batches(c *gin.Context) {
	params, err := api.ParsePartitionParams(c.Request)
	if err != nil {
		api.BadRequestErrorHandler(c, err)
		return
	}
	if params.All() {
		api.BadRequestErrorHandler(c, errors.New("network, subnet and vm_type are required"))
		return
	}

	batches, err := a.Ledger.ListBatches(c.Request.Context(), params.PartitionConfig, params.Limit)
	if err != nil {
		_ = c.Error(err)
		api.InternalErrorHandler(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": batches})
}
