// Package devserver serves the pipeline HTTP API backed by the in-memory
// simulator, so the client can be run end to end without the real backend.
package devserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agenciai/agx/internal/log"
	"github.com/agenciai/agx/internal/model"
	"github.com/agenciai/agx/internal/simulator"
)

// MaxUploadSize is the biggest accepted upload.
const MaxUploadSize = 10 << 20

// maxFormOverhead is the room left on an upload body for the multipart framing.
const maxFormOverhead = 1 << 20

// ServerConfig is the configuration of the server.
type ServerConfig struct {
	Simulator *simulator.Simulator
	Logger    log.Logger
}

func (c *ServerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "devserver.Server"})

	if c.Simulator == nil {
		sim, err := simulator.New(simulator.Config{Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create simulator: %w", err)
		}
		c.Simulator = sim
	}

	return nil
}

// Server is the development API server.
type Server struct {
	sim    *simulator.Simulator
	logger log.Logger
	router *gin.Engine
}

// NewServer returns a new server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Server{
		sim:    cfg.Simulator,
		logger: cfg.Logger,
	}
	s.router = s.routes()

	return s, nil
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.logMiddleware(), corsMiddleware())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "AgenciAI Backend Running"})
	})
	router.POST("/upload", s.upload)
	router.GET("/task/:id", s.taskStatus)
	router.POST("/chat", s.chat)
	router.GET("/download/:id", s.download)

	return router
}

func (s *Server) logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithValues(log.Kv{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
			"req-id": c.GetHeader("X-Request-ID"),
		}).Debugf("Request served in %s", time.Since(start))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+maxFormOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"detail": "missing or invalid file"})
		return
	}
	if fh.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "file too large"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to open file"})
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to read file"})
		return
	}

	id, input, err := s.sim.Submit(fh.Filename, content)
	if err != nil {
		s.logger.Warningf("Upload of %s rejected: %s", fh.Filename, err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Upload successful",
		"file_id": uuid.NewString(),
		"task_id": string(id),
		"type":    string(input),
	})
}

func (s *Server) taskStatus(c *gin.Context) {
	id := model.TaskID(c.Param("id"))

	st, err := s.sim.Advance(id)
	if errors.Is(err, model.ErrNotFound) {
		// Unknown tasks are pending forever, like on a Celery result backend.
		c.JSON(http.StatusOK, statusResponse{TaskID: string(id), Status: string(model.TaskStatePending)})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, newStatusResponse(id, *st))
}

func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TaskID == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "task_id and message are required"})
		return
	}

	answer, err := s.sim.Answer(model.TaskID(req.TaskID), req.Message)
	if errors.Is(err, model.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"response": answer})
}

func (s *Server) download(c *gin.Context) {
	id := model.TaskID(c.Param("id"))

	res, err := s.sim.Result(id)
	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "task not found"})
		return
	case errors.Is(err, model.ErrNotValid):
		c.JSON(http.StatusConflict, gin.H{"detail": "task has not finished successfully"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", string(id)+".csv"))
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	if err := simulator.WriteCSV(c.Writer, res.Rows); err != nil {
		s.logger.Errorf("Could not write task %s CSV: %s", id, err)
	}
}
