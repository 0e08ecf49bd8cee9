// Package http 暴露只读状态接口与 kill switch 管理面。
package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/executor"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/notify"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/portfolio"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/risk"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/store"
)

// Server 包装 gin 路由与 http.Server。
type Server struct {
	tracker  *portfolio.Tracker
	risk     *risk.Manager
	orders   *executor.OrderManager
	trades   store.TradeStore
	notifier *notify.Notifier

	engine *gin.Engine
	srv    *http.Server
}

type killSwitchRequest struct {
	Active bool   `json:"active"`
	Reason string `json:"reason"`
}

func NewServer(addr string, tracker *portfolio.Tracker, rm *risk.Manager, om *executor.OrderManager, ts store.TradeStore, nf *notify.Notifier) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		tracker:  tracker,
		risk:     rm,
		orders:   om,
		trades:   ts,
		notifier: nf,
		engine:   engine,
	}
	s.registerRoutes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	api := s.engine.Group("/api")
	api.GET("/portfolio", s.handlePortfolio)
	api.GET("/risk", s.handleRisk)
	api.GET("/trades", s.handleTrades)
	api.GET("/executions", s.handleExecutions)
	api.POST("/kill-switch", s.handleKillSwitch)
}

// Start 阻塞运行直到 Shutdown 或监听失败。
func (s *Server) Start() error {
	logger.Infof("[http] 状态接口监听 %s", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler 暴露底层 handler，测试用。
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handlePortfolio(c *gin.Context) {
	sum, err := s.tracker.Current(c.Request.Context())
	if err != nil {
		logger.Errorf("[http] 组合快照失败: %v", err)
		// 券商不可达时降级返回最近一次成功的概览
		if last := s.tracker.LastKnown(); last != nil {
			c.JSON(http.StatusOK, gin.H{
				"degraded":  true,
				"error":     err.Error(),
				"as_of":     last.Timestamp,
				"portfolio": last,
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) handleRisk(c *gin.Context) {
	pv := 0.0
	if sum, err := s.tracker.Current(c.Request.Context()); err == nil {
		pv = sum.PortfolioValue
	} else if last := s.tracker.LastKnown(); last != nil {
		pv = last.PortfolioValue
	}
	c.JSON(http.StatusOK, s.risk.GetStatus(pv))
}

func (s *Server) handleTrades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := s.trades.RecentTrades(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[http] 查询交易失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": list, "count": len(list)})
}

func (s *Server) handleExecutions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list := s.orders.ExecutionHistory(limit)
	c.JSON(http.StatusOK, gin.H{"executions": list, "count": len(list)})
}

func (s *Server) handleKillSwitch(c *gin.Context) {
	var req killSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体必须是 JSON"})
		return
	}
	reason := req.Reason
	if req.Active {
		if reason == "" {
			reason = "manual"
		}
		s.risk.ActivateKillSwitch(reason)
	} else {
		s.risk.DeactivateKillSwitch()
	}
	s.notifier.NotifyKillSwitch(c.Request.Context(), req.Active, reason)
	c.JSON(http.StatusOK, s.risk.GetStatus(0))
}
