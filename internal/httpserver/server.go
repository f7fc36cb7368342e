// Package httpserver exposes the retrieval pipeline and the assembled
// event log over an HTTP API.
package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/casetrail/casetrail/internal/model"
	"github.com/gin-gonic/gin"
)

// Server provides the HTTP API around the event-log store and the retriever.
type Server struct {
	addr      string
	events    model.EventLogReader
	runner    model.RetrievalRunner
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates the API server. runner may be nil, in which case the
// retrieve endpoint reports that triggering is unavailable.
func NewServer(addr string, events model.EventLogReader, runner model.RetrievalRunner) *Server {
	if addr == "" {
		addr = "0.0.0.0:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		events: events,
		runner: runner,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s.registerRoutes(r)

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/api/health", s.handleHealth)
	r.POST("/api/retrieve", s.handleRetrieve)
	r.GET("/api/eventlog", s.handleEventLog)
	r.GET("/api/cases", s.handleCases)
}

func (s *Server) handleHealth(c *gin.Context) {
	eventCount, err := s.events.TotalEventCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"uptime":      time.Since(s.startTime).String(),
		"event_count": eventCount,
	})
}

func (s *Server) handleRetrieve(c *gin.Context) {
	if s.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "retrieval trigger not configured"})
		return
	}

	// The runner serializes itself, so a triggered run may overlap a
	// scheduled one without corrupting the target directory.
	stats, err := s.runner.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleEventLog(c *gin.Context) {
	opts := model.EventLogOpts{Approach: c.Query("approach")}

	events, err := s.events.EventLog(opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) handleCases(c *gin.Context) {
	ids, err := s.events.CaseIDs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cases": ids,
		"count": len(ids),
	})
}
