package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stellacore/quadloco/internal/store"
)

// Server represents the detection HTTP server.
type Server struct {
	jobManager *JobManager
	store      store.Store
	addr       string
	server     *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewServer creates a new HTTP server with an optional run store. If
// runStore is nil, periodic and shutdown persistence is disabled.
func NewServer(addr string, runStore store.Store) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		jobManager: NewJobManager(),
		store:      runStore,
		addr:       addr,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(s.loggingMiddleware(), s.corsMiddleware())

	api := router.Group("/api/v1/jobs")
	{
		api.POST("", s.handleCreateJob)
		api.GET("", s.handleListJobs)
		api.GET("/:id/status", s.handleGetJobStatus)
		api.GET("/:id/stream", s.handleJobStream)
		api.POST("/:id/resume", s.handleResumeJob)
	}

	router.GET("/debug/pprof/*any", gin.WrapF(pprof.Index))

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: router,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server, persisting in-progress jobs
// first.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")

	s.cancel()

	if s.store != nil {
		s.saveRunningJobs(ctx)
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// saveRunningJobs persists a RunRecord for every job still running so a
// later Resume can pick up where it left off.
func (s *Server) saveRunningJobs(ctx context.Context) {
	runningJobs := s.jobManager.GetRunningJobs()

	if len(runningJobs) == 0 {
		slog.Info("No running jobs to save")
		return
	}

	slog.Info("Saving running jobs", "count", len(runningJobs))

	type saveResult struct {
		jobID string
		err   error
	}

	results := make(chan saveResult, len(runningJobs))

	for _, job := range runningJobs {
		go func(j *Job) {
			err := saveRun(s.jobManager, s.store, j.ID)
			if err != nil {
				slog.Error("Failed to save job on shutdown", "job_id", j.ID, "error", err)
			} else {
				slog.Info("Job saved on shutdown", "job_id", j.ID, "processed_keys", j.ProcessedKeys)
			}
			results <- saveResult{jobID: j.ID, err: err}
		}(job)
	}

	saved, failed := 0, 0
	for i := 0; i < len(runningJobs); i++ {
		select {
		case result := <-results:
			if result.err == nil {
				saved++
			} else {
				failed++
			}
		case <-ctx.Done():
			slog.Warn("Save timeout during shutdown", "saved", saved, "failed", failed, "pending", len(runningJobs)-saved-failed)
			return
		}
	}

	slog.Info("Shutdown save complete", "saved", saved, "failed", failed)
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(c *gin.Context) {
	var config DetectionConfig
	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid JSON: %v", err)})
		return
	}

	if config.ImagePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "imagePath is required"})
		return
	}
	if len(config.RingHalfSizes) == 0 {
		config.RingHalfSizes = []int{5, 3}
	}
	if config.RefineHood <= 0 {
		config.RefineHood = 2
	}
	if config.RefineCorr <= 0 {
		config.RefineCorr = 5
	}
	if config.Refine == "" {
		config.Refine = "ssd"
	}

	job := s.jobManager.CreateJob(config)

	go runJob(s.ctx, s.jobManager, s.store, job.ID)

	c.JSON(http.StatusCreated, job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, s.jobManager.ListJobs())
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(c *gin.Context) {
	jobID := c.Param("id")
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            job.ID,
		"state":         job.State,
		"config":        job.Config,
		"hits":          job.Hits,
		"processedKeys": job.ProcessedKeys,
		"totalKeys":     job.TotalKeys,
		"elapsed":       elapsed.Seconds(),
		"startTime":     job.StartTime,
		"endTime":       job.EndTime,
		"error":         job.Error,
	})
}

// handleResumeJob handles POST /api/v1/jobs/:id/resume
func (s *Server) handleResumeJob(c *gin.Context) {
	jobID := c.Param("id")

	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run persistence not enabled"})
		return
	}

	run, err := s.store.LoadRun(jobID)
	if err != nil {
		if _, ok := err.(*store.NotFoundError); ok {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("run not found for job %s", jobID)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to load run: %v", err)})
		return
	}

	if err := run.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid run: %v", err)})
		return
	}

	slog.Info("Resuming job from saved run",
		"job_id", jobID,
		"processed_keys", run.ProcessedKeys,
		"total_keys", run.TotalKeys,
	)

	newJob := s.jobManager.CreateJob(run.Config)
	s.jobManager.UpdateJob(newJob.ID, func(j *Job) {
		j.Hits = run.Hits
		j.ProcessedKeys = run.ProcessedKeys
		j.TotalKeys = run.TotalKeys
	})

	go runJob(s.ctx, s.jobManager, s.store, newJob.ID)

	c.JSON(http.StatusOK, gin.H{
		"jobId":        newJob.ID,
		"resumedFrom":  jobID,
		"state":        string(newJob.State),
		"previousKeys": run.ProcessedKeys,
		"message":      "job resumed successfully from saved run",
	})
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request", "method", c.Request.Method, "path", c.Request.URL.Path, "duration", time.Since(start))
	}
}
