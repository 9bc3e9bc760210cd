// Package webhook exposes the HTTP intake for GitHub events: the signed
// webhook endpoint, a manual trigger endpoint, and a health probe.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jiralink/jiralink/internal/logging"
	"github.com/jiralink/jiralink/pkg/models"
)

// passTimeout bounds one background orchestration pass kicked off by a
// webhook delivery.
const passTimeout = 2 * time.Minute

// Processor runs the linking pipeline for one event.
type Processor interface {
	ProcessComment(ctx context.Context, prNumber int, comment string) (models.ProcessingResult, error)
	ProcessPullRequestOpened(ctx context.Context, pr models.PullRequest) (models.ProcessingResult, error)
}

// Server handles GitHub webhook deliveries and hands accepted events to the
// processor. Deliveries are acknowledged before processing; GitHub retries
// on non-2xx, and the processor's own idempotency guard absorbs redelivery.
type Server struct {
	processor Processor
	secret    string
	port      int
}

// NewServer creates a webhook server. secret is the shared GitHub webhook
// secret used to verify delivery signatures.
func NewServer(processor Processor, secret string, port int) *Server {
	return &Server{
		processor: processor,
		secret:    secret,
		port:      port,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)
	router.POST("/webhook", s.handleWebhook)
	router.POST("/trigger-jira-creation", s.handleTrigger)

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("webhook server listening", "port", s.port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down webhook server: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if err := VerifySignature(s.secret, body, c.GetHeader("X-Hub-Signature-256")); err != nil {
		logging.Warn("rejected webhook delivery with bad signature",
			"delivery", c.GetHeader("X-GitHub-Delivery"))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	event := c.GetHeader("X-GitHub-Event")
	switch event {
	case "issue_comment":
		s.handleCommentEvent(c, body)
	case "pull_request":
		s.handlePullRequestEvent(c, body)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "event not handled"})
	}
}

func (s *Server) handleCommentEvent(c *gin.Context, body []byte) {
	var payload commentEventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	// Only fresh comments on pull requests are candidates. Plain issues
	// also fire issue_comment but carry no pull_request field.
	if payload.Action != "created" || payload.Issue.PullRequest == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "event not handled"})
		return
	}

	prNumber := payload.Issue.Number
	comment := payload.Comment.Body
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
		defer cancel()
		if _, err := s.processor.ProcessComment(ctx, prNumber, comment); err != nil {
			logging.Error("comment event processing failed", "pr", prNumber, "error", err)
		}
	}()

	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "processing"})
}

func (s *Server) handlePullRequestEvent(c *gin.Context, body []byte) {
	var payload pullRequestEventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if payload.Action != "opened" {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "event not handled"})
		return
	}

	pr := models.PullRequest{
		Number:  payload.PullRequest.Number,
		Title:   payload.PullRequest.Title,
		Body:    payload.PullRequest.Body,
		State:   payload.PullRequest.State,
		HTMLURL: payload.PullRequest.HTMLURL,
	}
	for _, label := range payload.PullRequest.Labels {
		pr.Labels = append(pr.Labels, label.Name)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
		defer cancel()
		if _, err := s.processor.ProcessPullRequestOpened(ctx, pr); err != nil {
			logging.Error("pull request event processing failed", "pr", pr.Number, "error", err)
		}
	}()

	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "processing"})
}

// handleTrigger runs the pipeline synchronously for a caller-supplied
// comment. The endpoint is for operators and trusted automation; it is not
// signature-checked and must not be exposed publicly.
func (s *Server) handleTrigger(c *gin.Context) {
	var request struct {
		PRNumber int    `json:"pr_number" binding:"required"`
		Comment  string `json:"comment" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.processor.ProcessComment(c.Request.Context(), request.PRNumber, request.Comment)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := gin.H{
		"action": string(result.Action),
		"reason": result.Reason,
	}
	if result.Issue != nil {
		response["issue_key"] = result.Issue.Key
		response["similarity"] = result.Similarity
	}
	c.JSON(http.StatusOK, response)
}

type commentEventPayload struct {
	Action string `json:"action"`
	Issue  struct {
		Number      int       `json:"number"`
		PullRequest *struct{} `json:"pull_request"`
	} `json:"issue"`
	Comment struct {
		ID   int64  `json:"id"`
		Body string `json:"body"`
		User struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"comment"`
}

type pullRequestEventPayload struct {
	Action      string `json:"action"`
	PullRequest struct {
		Number  int    `json:"number"`
		Title   string `json:"title"`
		Body    string `json:"body"`
		State   string `json:"state"`
		HTMLURL string `json:"html_url"`
		Labels  []struct {
			Name string `json:"name"`
		} `json:"labels"`
	} `json:"pull_request"`
}
