package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"SignalRadar/pkg/model"
	"SignalRadar/pkg/pipeline"
)

// SignalRecord 信号历史记录
type SignalRecord struct {
	ID         uint      `gorm:"primaryKey"`
	SignalID   string    `gorm:"size:64;uniqueIndex"`
	Market     string    `gorm:"size:32;index"`
	Asset      string    `gorm:"size:32;index"`
	Direction  string    `gorm:"size:8"`
	Strength   float64
	Confidence float64
	SignalType string    `gorm:"size:32"`
	Source     string    `gorm:"size:64;index"`
	Timestamp  time.Time `gorm:"index"`
	CreatedAt  time.Time
}

// ScanRecord 扫描周期记录
type ScanRecord struct {
	ID              uint      `gorm:"primaryKey"`
	Timestamp       time.Time `gorm:"index"`
	DurationMs      int64
	EventsFetched   int
	SignalsDetected int
	SignalsIngested int
	ErrorCount      int
	MarketBias      string `gorm:"size:8"`
	MarketBiasScore float64
	CreatedAt       time.Time
}

// Store 信号与扫描历史的持久化层。DSN 为空时系统不启用持久化。
type Store struct {
	db *gorm.DB
}

// NewStore 连接PostgreSQL并自动迁移表结构
func NewStore(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层连接失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := db.AutoMigrate(&SignalRecord{}, &ScanRecord{}); err != nil {
		return nil, fmt.Errorf("迁移表结构失败: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveSignals 批量保存信号，重复的 SignalID 跳过
func (s *Store) SaveSignals(signals []model.UnifiedSignal) error {
	if len(signals) == 0 {
		return nil
	}
	records := make([]SignalRecord, 0, len(signals))
	for _, sig := range signals {
		records = append(records, SignalRecord{
			SignalID:   sig.SignalID,
			Market:     string(sig.Market),
			Asset:      sig.Asset,
			Direction:  string(sig.Direction),
			Strength:   sig.Strength,
			Confidence: sig.Confidence,
			SignalType: string(sig.SignalType),
			Source:     sig.Source,
			Timestamp:  sig.Timestamp,
		})
	}
	err := s.db.CreateInBatches(records, 500).Error
	if err != nil {
		return fmt.Errorf("保存信号历史失败: %w", err)
	}
	return nil
}

// SaveScan 保存一次扫描周期的摘要
func (s *Store) SaveScan(result *pipeline.ScanResult) error {
	record := ScanRecord{
		Timestamp:       result.Timestamp,
		DurationMs:      result.Duration.Milliseconds(),
		EventsFetched:   result.EventsFetched,
		SignalsDetected: result.SignalsDetected,
		SignalsIngested: result.SignalsIngested,
		ErrorCount:      len(result.Errors),
		MarketBias:      string(result.Report.MarketBias),
		MarketBiasScore: result.Report.MarketBiasScore,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("保存扫描记录失败: %w", err)
	}
	return nil
}

// GetSignalsByAsset 查询某资产最近的信号历史
func (s *Store) GetSignalsByAsset(asset string, limit int) ([]SignalRecord, error) {
	var records []SignalRecord
	err := s.db.Where("asset = ?", asset).
		Order("timestamp DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("查询资产信号历史失败: %w", err)
	}
	return records, nil
}

// GetSignalsByTimeRange 查询时间范围内的信号
func (s *Store) GetSignalsByTimeRange(start, end time.Time, limit int) ([]SignalRecord, error) {
	var records []SignalRecord
	err := s.db.Where("timestamp BETWEEN ? AND ?", start, end).
		Order("timestamp DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("查询时间范围信号失败: %w", err)
	}
	return records, nil
}

// GetRecentScans 查询最近的扫描记录
func (s *Store) GetRecentScans(limit int) ([]ScanRecord, error) {
	var records []ScanRecord
	err := s.db.Order("timestamp DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("查询扫描记录失败: %w", err)
	}
	return records, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
