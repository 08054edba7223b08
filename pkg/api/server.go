package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Server API服务器
type Server struct {
	router *gin.Engine
	srv    *http.Server
}

// NewServer 创建新的API服务器
func NewServer(port string) *Server {
	router := gin.Default()

	router.Use(gin.Recovery())

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	return &Server{
		router: router,
		srv:    srv,
	}
}

// SetupRoutes 设置路由
func (s *Server) SetupRoutes(handlers *Handlers) {
	// 健康检查
	s.router.GET("/health", handlers.HealthCheck)

	v1 := s.router.Group("/api/v1")
	{
		// 触发一次扫描
		v1.POST("/scan", handlers.TriggerScan)

		// 当前信号
		v1.GET("/signals", handlers.GetSignals)

		// 数据源健康
		v1.GET("/health", handlers.GetHealth)

		// 最近一次扫描结果
		v1.GET("/scan/last", handlers.GetLastScan)

		// 持久化历史查询
		v1.GET("/history/signals", handlers.GetSignalWindow)
		v1.GET("/history/signals/:asset", handlers.GetSignalHistory)
		v1.GET("/history/scans", handlers.GetScanHistory)
	}
}

// Start 在后台启动服务器
func (s *Server) Start() {
	go func() {
		log.Printf("API服务器启动在 %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("启动服务器失败: %v", err)
		}
	}()
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() {
	log.Println("正在关闭API服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		log.Printf("API服务器关闭失败: %v", err)
		return
	}
	log.Println("API服务器已关闭")
}
