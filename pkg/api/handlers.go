package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"SignalRadar/pkg/database"
	"SignalRadar/pkg/pipeline"
)

// Handlers API处理程序。store 未启用持久化时为 nil，历史查询接口返回503。
type Handlers struct {
	pipeline *pipeline.Pipeline
	store    *database.Store
}

// NewHandlers 创建新的API处理程序
func NewHandlers(p *pipeline.Pipeline, store *database.Store) *Handlers {
	return &Handlers{pipeline: p, store: store}
}

// HealthCheck 健康检查处理程序
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// TriggerScan 触发一次扫描周期
func (h *Handlers) TriggerScan(c *gin.Context) {
	result := h.pipeline.Scan(context.Background())
	c.JSON(http.StatusOK, gin.H{
		"data": result,
	})
}

// GetSignals 获取当前聚合信号
func (h *Handlers) GetSignals(c *gin.Context) {
	limit := 10
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit参数必须为正整数",
			})
			return
		}
		limit = parsed
	}

	report := h.pipeline.CurrentSignals(limit)
	c.JSON(http.StatusOK, gin.H{
		"data": report,
	})
}

// GetHealth 获取所有数据源健康状态
func (h *Handlers) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": h.pipeline.Health(),
	})
}

// GetSignalHistory 查询某资产的信号历史
func (h *Handlers) GetSignalHistory(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "未启用持久化",
		})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit参数必须为正整数",
			})
			return
		}
		limit = parsed
	}

	records, err := h.store.GetSignalsByAsset(c.Param("asset"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": records,
	})
}

// GetSignalWindow 查询时间窗口内的全部信号历史。
// start/end 为RFC3339时间，缺省为截至当前的24小时。
func (h *Handlers) GetSignalWindow(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "未启用持久化",
		})
		return
	}

	end := time.Now()
	if v := c.Query("end"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "end参数必须为RFC3339时间",
			})
			return
		}
		end = parsed
	}
	start := end.Add(-24 * time.Hour)
	if v := c.Query("start"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "start参数必须为RFC3339时间",
			})
			return
		}
		start = parsed
	}

	records, err := h.store.GetSignalsByTimeRange(start, end, 200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": records,
	})
}

// GetScanHistory 查询最近的扫描周期记录
func (h *Handlers) GetScanHistory(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "未启用持久化",
		})
		return
	}

	records, err := h.store.GetRecentScans(20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": records,
	})
}

// GetLastScan 获取最近一次扫描结果
func (h *Handlers) GetLastScan(c *gin.Context) {
	last := h.pipeline.LastResult()
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "尚未执行过扫描",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": last,
	})
}
