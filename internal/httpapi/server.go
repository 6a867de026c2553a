// Package httpapi exposes agents and workout operations over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aparry3/gymtext-sub007/agent"
	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/durable"
	"github.com/aparry3/gymtext-sub007/messaging"
	"github.com/aparry3/gymtext-sub007/pkg/slogx"
	"github.com/aparry3/gymtext-sub007/store"
	"github.com/aparry3/gymtext-sub007/types"
	"github.com/aparry3/gymtext-sub007/workout"
	"github.com/fogfish/opts"
	"github.com/gin-gonic/gin"
	"go.temporal.io/sdk/temporal"
)

// SenderFactory returns the outbound channel for a user.
type SenderFactory func(userID string) messaging.Sender

// VarsFunc supplies prompt variables for a user. Variables sent with a
// request take precedence.
type VarsFunc func(ctx context.Context, userID string) types.ContextVars

type Server struct {
	engine   *gin.Engine
	agents   *agent.Factory
	workouts durable.Runner
	configs  store.AgentConfigStore
	senders  SenderFactory
	vars     VarsFunc
	logger   *slog.Logger
}

type Option = opts.Option[Server]

var (
	Agents   = opts.ForName[Server, *agent.Factory]("agents")
	Workouts = opts.ForName[Server, durable.Runner]("workouts")
	// Configs enables the agent config endpoints.
	Configs = opts.ForName[Server, store.AgentConfigStore]("configs")
	Senders = opts.ForName[Server, SenderFactory]("senders")
	Vars    = opts.ForName[Server, VarsFunc]("vars")
	Logger  = opts.ForName[Server, *slog.Logger]("logger")
)

func New(options ...Option) (*Server, error) {
	s := &Server{}
	if err := opts.Apply(s, options); err != nil {
		return nil, err
	}
	if s.agents == nil {
		return nil, errors.New("httpapi: an agent factory is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(slogx.LoggerName("gymtext.http"))
	if s.senders == nil {
		logger := s.logger
		s.senders = func(string) messaging.Sender { return messaging.Discard{Logger: logger} }
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.requestLog)
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	agents := s.engine.Group("/agents")
	{
		agents.GET("", s.listAgents)
		agents.POST("/:name/invoke", s.invokeAgent)
		if s.configs != nil {
			agents.GET("/:name/configs/latest", s.latestConfig)
			agents.POST("/:name/configs", s.createConfig)
		}
	}

	if s.workouts != nil {
		s.engine.POST("/workouts/:operation", s.runWorkout)
	}
}

func (s *Server) requestLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.InfoContext(c.Request.Context(), "request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.FullPath()),
		slog.Int("status", c.Writer.Status()),
		slogx.Elapsed(start),
	)
}

// fail writes err with the status its kind maps to.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "request failed", slog.String("path", c.FullPath()), slogx.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var (
		cfgErr *api.ConfigurationError
		verr   *api.ValidationError
		failed *workout.OperationFailedError
		appErr *temporal.ApplicationError
	)
	switch {
	case errors.As(err, &cfgErr):
		if cfgErr.Kind == "agent" && cfgErr.Reason == "not registered" {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case errors.As(err, &failed), errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &appErr):
		switch appErr.Type() {
		case durable.ErrTypeOperationFailed, durable.ErrTypeInvalidRequest:
			return http.StatusUnprocessableEntity
		case durable.ErrTypeConfiguration:
			return http.StatusBadRequest
		}
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
