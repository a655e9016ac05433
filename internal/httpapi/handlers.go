package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ambient-sdlc/control-plane/internal/featureflags"
	"github.com/ambient-sdlc/control-plane/internal/jobs"
	"github.com/ambient-sdlc/control-plane/internal/queue"
	"github.com/ambient-sdlc/control-plane/internal/session"
)

// Server holds the dependencies every handler needs: the Session Store and
// the queue adapter. This service owns session data directly (unlike the
// teacher's public-api, which proxies to a backend).
type Server struct {
	Store *session.Store
	Queue queue.Queue
}

type deployRequest struct {
	RepoURL string `json:"repoUrl"`
	Branch  string `json:"branch"`
	SubPath string `json:"subPath"`
}

type verifyRequest struct {
	RepoURL   string            `json:"repoUrl"`
	Branch    string            `json:"branch"`
	SubPath   string            `json:"subPath"`
	StackInfo map[string]string `json:"stackInfo"`
}

type fixRequest struct {
	RepoURL      string            `json:"repoUrl"`
	Branch       string            `json:"branch"`
	SubPath      string            `json:"subPath"`
	Instructions string            `json:"instructions"`
	StackInfo    map[string]string `json:"stackInfo"`
}

type sdlcRequest struct {
	RepoURL   string            `json:"repoUrl"`
	Branch    string            `json:"branch"`
	SubPath   string            `json:"subPath"`
	StackInfo map[string]string `json:"stackInfo"`
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// Deploy handles POST /deploy: enqueue a deployment session.
func (s *Server) Deploy(c *gin.Context) {
	var req deployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !ValidateRepoURL(req.RepoURL) || !ValidateBranch(req.Branch) {
		badRequest(c, "repoUrl and branch are required")
		return
	}

	sessionID := session.NewSessionID(session.KindDeploy)
	now := time.Now()
	if err := s.Store.Create(c.Request.Context(), session.CreateParams{
		ID: sessionID, Kind: session.KindDeploy, RepoURL: req.RepoURL, Branch: req.Branch, SubPath: req.SubPath,
	}, now); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	payload, _ := json.Marshal(jobs.DeployJob{SessionID: sessionID, RepoURL: req.RepoURL, Branch: req.Branch, SubPath: req.SubPath})
	if err := s.Queue.Enqueue(c.Request.Context(), queue.Deploy, queue.Job{PayloadJSON: string(payload)}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"sessionId": sessionID, "status": "pending", "message": "deployment enqueued",
		"repoUrl": req.RepoURL, "branch": req.Branch, "subPath": req.SubPath,
	})
}

// SanityTest handles POST /sanity-test: enqueue a verification session.
func (s *Server) SanityTest(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !ValidateRepoURL(req.RepoURL) || !ValidateBranch(req.Branch) {
		badRequest(c, "repoUrl and branch are required")
		return
	}
	if !ValidateStackInfo(req.StackInfo) {
		badRequest(c, "stackInfo must contain one of apiUrl, baseUrl, endpoint")
		return
	}

	sessionID := session.NewSessionID(session.KindVerify)
	now := time.Now()
	if err := s.Store.Create(c.Request.Context(), session.CreateParams{
		ID: sessionID, Kind: session.KindVerify, RepoURL: req.RepoURL, Branch: req.Branch, SubPath: req.SubPath,
	}, now); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	payload, _ := json.Marshal(jobs.VerifyJob{SessionID: sessionID, RepoURL: req.RepoURL, Branch: req.Branch, SubPath: req.SubPath, StackInfo: req.StackInfo})
	if err := s.Queue.Enqueue(c.Request.Context(), queue.Verify, queue.Job{PayloadJSON: string(payload)}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"sessionId": sessionID, "status": "pending", "message": "verification enqueued",
		"repoUrl": req.RepoURL, "branch": req.Branch, "subPath": req.SubPath,
	})
}

// Fix handles POST /fix: enqueue a repair session.
func (s *Server) Fix(c *gin.Context) {
	var req fixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !ValidateRepoURL(req.RepoURL) || !ValidateBranch(req.Branch) {
		badRequest(c, "repoUrl and branch are required")
		return
	}

	sessionID := session.NewSessionID(session.KindRepair)
	now := time.Now()
	if err := s.Store.Create(c.Request.Context(), session.CreateParams{
		ID: sessionID, Kind: session.KindRepair, RepoURL: req.RepoURL, Branch: req.Branch, SubPath: req.SubPath,
	}, now); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	payload, _ := json.Marshal(jobs.RepairJob{
		SessionID: sessionID, RepoURL: req.RepoURL, Branch: req.Branch, SubPath: req.SubPath,
		Instructions: req.Instructions, StackInfo: req.StackInfo,
	})
	if err := s.Queue.Enqueue(c.Request.Context(), queue.Repair, queue.Job{PayloadJSON: string(payload)}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"sessionId": sessionID, "status": "pending", "message": "repair enqueued",
		"repoUrl": req.RepoURL, "branch": req.Branch, "subPath": req.SubPath,
	})
}

// SDLCDeploy handles POST /sdlc-deploy: enqueue a coordinator session.
func (s *Server) SDLCDeploy(c *gin.Context) {
	var req sdlcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !ValidateRepoURL(req.RepoURL) || !ValidateBranch(req.Branch) {
		badRequest(c, "repoUrl and branch are required")
		return
	}

	sessionID := session.NewSessionID(session.KindSDLC)
	now := time.Now()
	if err := s.Store.Create(c.Request.Context(), session.CreateParams{
		ID: sessionID, Kind: session.KindSDLC, RepoURL: req.RepoURL, Branch: req.Branch, SubPath: req.SubPath,
	}, now); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	payload, _ := json.Marshal(jobs.SDLCJob{SessionID: sessionID, RepoURL: req.RepoURL, Branch: req.Branch, SubPath: req.SubPath, StackInfo: req.StackInfo})
	if err := s.Queue.Enqueue(c.Request.Context(), queue.SDLC, queue.Job{PayloadJSON: string(payload)}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"sessionId": sessionID, "status": "pending", "message": "sdlc run enqueued",
		"repoUrl": req.RepoURL, "branch": req.Branch, "subPath": req.SubPath,
	})
}

// Status handles GET /status/:id: project session state.
func (s *Server) Status(c *gin.Context) {
	id := c.Param("id")
	state, err := s.Store.Project(c.Request.Context(), id)
	if err != nil {
		if err == session.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to project session"})
		return
	}
	c.JSON(http.StatusOK, stateResponse(state))
}

// Deployments handles GET /deployments: list recent sessions, filterable by
// phase. When featureflags.ListTerminalOnly is enabled, non-terminal
// sessions are excluded regardless of the phase filter.
func (s *Server) Deployments(c *gin.Context) {
	phase := session.Phase(c.Query("phase"))
	states, err := s.Store.ListByPhase(c.Request.Context(), phase, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}

	if featureflags.IsEnabled(featureflags.ListTerminalOnly) {
		filtered := states[:0]
		for _, st := range states {
			if st.Terminal() {
				filtered = append(filtered, st)
			}
		}
		states = filtered
	}

	items := make([]gin.H, 0, len(states))
	for _, st := range states {
		items = append(items, stateResponse(st))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func stateResponse(state session.State) gin.H {
	return gin.H{
		"sessionId":   state.ID,
		"kind":        state.Kind,
		"repoUrl":     state.RepoURL,
		"branch":      state.Branch,
		"subPath":     state.SubPath,
		"phase":       state.Phase,
		"outcome":     state.Outcome,
		"message":     state.Message,
		"error":       state.ErrorText,
		"log":         state.Log,
		"lastUpdated": state.LastUpdated.Format(time.RFC3339),
	}
}
