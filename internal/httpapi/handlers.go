package httpapi

import (
	"maps"
	"net/http"

	"github.com/aparry3/gymtext-sub007/agent"
	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/callback"
	"github.com/aparry3/gymtext-sub007/messages"
	"github.com/aparry3/gymtext-sub007/store"
	"github.com/aparry3/gymtext-sub007/tool"
	"github.com/aparry3/gymtext-sub007/types"
	"github.com/aparry3/gymtext-sub007/workout"
	"github.com/gin-gonic/gin"
)

type invokeRequest struct {
	Input   string            `json:"input"`
	UserID  string            `json:"user_id"`
	Context []string          `json:"context"`
	History []messages.Pair   `json:"history"`
	Vars    types.ContextVars `json:"vars"`
}

type invokeResponse struct {
	Result    api.Result           `json:"result"`
	ToolCalls []api.ToolCallRecord `json:"tool_calls,omitempty"`
	Callbacks int                  `json:"callbacks"`
}

func (s *Server) listAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": s.agents.Registry().Names()})
}

// invokeAgent runs the named agent and then its callbacks.
func (s *Server) invokeAgent(c *gin.Context) {
	var req invokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Input == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "input is required"})
		return
	}

	ctx := c.Request.Context()
	vars := req.Vars
	if s.vars != nil {
		vars = s.vars(ctx, req.UserID)
		if vars == nil {
			vars = types.ContextVars{}
		}
		maps.Copy(vars, req.Vars)
	}
	rc := tool.RuntimeContext{UserID: req.UserID, Sender: s.senders(req.UserID), Vars: vars}
	options := []agent.Option{agent.Runtime(rc)}
	if len(req.Context) > 0 {
		options = append(options, agent.ContextEntries(req.Context...))
	}
	if len(req.History) > 0 {
		options = append(options, agent.History(messages.FromPairs(req.History)...))
	}

	ra, err := s.agents.RegistryAgent(ctx, c.Param("name"), options...)
	if err != nil {
		s.fail(c, err)
		return
	}

	result, err := ra.Agent.Invoke(ctx, req.Input)
	ran := s.agents.ExecuteAgentCallbacks(ctx, ra.Callbacks, callback.Context{
		AgentName: ra.Name,
		Input:     req.Input,
		Result:    result,
		Err:       err,
		Runtime:   rc,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, invokeResponse{Result: result, ToolCalls: result.ToolCalls, Callbacks: ran})
}

func (s *Server) latestConfig(c *gin.Context) {
	cfg, err := s.configs.GetLatest(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) createConfig(c *gin.Context) {
	var in store.NewAgentConfig
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in.ID = c.Param("name")
	if err := in.Validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := s.configs.Create(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) runWorkout(c *gin.Context) {
	op, err := workout.ParseOperation(c.Param("operation"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req workout.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Operation != "" && req.Operation != op {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "operation in body does not match the path"})
		return
	}
	req.Operation = op

	report, err := s.workouts.RunWorkout(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
