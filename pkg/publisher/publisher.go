package publisher

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"SignalRadar/pkg/model"
)

// Config 信号发布配置
type Config struct {
	FeedPath       string `yaml:"feed_path"`       // NDJSON 信号流文件
	SnapshotPath   string `yaml:"snapshot_path"`   // 活跃信号快照文件
	MaxFeedBytes   int64  `yaml:"max_feed_bytes"`  // 超过后轮转
	MaxGenerations int    `yaml:"max_generations"` // 保留的轮转代数
	SourcePipeline string `yaml:"source_pipeline"` // 信封上的来源标识
	SubscribeBuf   int    `yaml:"subscribe_buf"`   // 进程内订阅通道缓冲
}

// DefaultConfig 默认发布配置
func DefaultConfig() Config {
	return Config{
		FeedPath:       "data/signals.ndjson",
		SnapshotPath:   "data/signals_snapshot.json",
		MaxFeedBytes:   10 << 20,
		MaxGenerations: 5,
		SourcePipeline: "signal-radar",
		SubscribeBuf:   64,
	}
}

// Publisher 信号发布器。
// 按追加写 NDJSON 维护信号流，序号单调递增，超过大小上限时轮转；
// 同时维护进程内订阅通道与活跃信封集合供快照输出。
type Publisher struct {
	mu     sync.Mutex
	config Config
	file   *os.File
	writer *bufio.Writer
	seq    uint64
	size   int64

	active      []model.SignalEnvelope
	subscribers []chan model.SignalEnvelope
}

// New 创建发布器并打开（或续写）信号流文件
func New(config Config) (*Publisher, error) {
	def := DefaultConfig()
	if config.FeedPath == "" {
		config.FeedPath = def.FeedPath
	}
	if config.SnapshotPath == "" {
		config.SnapshotPath = def.SnapshotPath
	}
	if config.MaxFeedBytes <= 0 {
		config.MaxFeedBytes = def.MaxFeedBytes
	}
	if config.MaxGenerations <= 0 {
		config.MaxGenerations = def.MaxGenerations
	}
	if config.SourcePipeline == "" {
		config.SourcePipeline = def.SourcePipeline
	}
	if config.SubscribeBuf <= 0 {
		config.SubscribeBuf = def.SubscribeBuf
	}

	if err := os.MkdirAll(filepath.Dir(config.FeedPath), 0o755); err != nil {
		return nil, fmt.Errorf("创建信号流目录失败: %w", err)
	}

	p := &Publisher{config: config}
	if err := p.openFeed(); err != nil {
		return nil, err
	}
	if seq, err := lastSeq(config.FeedPath); err == nil {
		p.seq = seq
	}
	return p, nil
}

func (p *Publisher) openFeed() error {
	file, err := os.OpenFile(p.config.FeedPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开信号流文件失败: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("读取信号流文件状态失败: %w", err)
	}
	p.file = file
	p.writer = bufio.NewWriter(file)
	p.size = info.Size()
	return nil
}

// lastSeq 从已有信号流文件恢复最大序号，保证重启后序号继续单调递增
func lastSeq(path string) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var seq uint64
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var env model.SignalEnvelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			continue
		}
		if env.Seq > seq {
			seq = env.Seq
		}
	}
	return seq, scanner.Err()
}

// Publish 将一条交易信号封装入信封后追加写入信号流，
// 并同步推送给进程内订阅者。返回写入的信封。
func (p *Publisher) Publish(signal model.TradingSignal, ttl time.Duration) (model.SignalEnvelope, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.seq++
	env := model.SignalEnvelope{
		Seq:            p.seq,
		PublishedAt:    now,
		SourcePipeline: p.config.SourcePipeline,
		Signal:         signal,
	}
	if ttl > 0 {
		env.ExpiresAt = now.Add(ttl).Unix()
	}

	line, err := json.Marshal(env)
	if err != nil {
		return env, fmt.Errorf("序列化信号信封失败: %w", err)
	}
	if _, err := p.writer.Write(append(line, '\n')); err != nil {
		return env, fmt.Errorf("写入信号流失败: %w", err)
	}
	if err := p.writer.Flush(); err != nil {
		return env, fmt.Errorf("刷新信号流失败: %w", err)
	}
	p.size += int64(len(line)) + 1

	if p.size >= p.config.MaxFeedBytes {
		if err := p.rotate(); err != nil {
			log.Printf("信号流轮转失败: %v", err)
		}
	}

	p.pruneActive(now)
	p.active = append(p.active, env)

	for _, ch := range p.subscribers {
		select {
		case ch <- env:
		default:
			// 订阅者消费过慢时丢弃，发布侧绝不阻塞
		}
	}
	return env, nil
}

// rotate 轮转信号流文件：feed -> feed.1 -> feed.2 ...，超过代数上限的删除
func (p *Publisher) rotate() error {
	if err := p.writer.Flush(); err != nil {
		return err
	}
	if err := p.file.Close(); err != nil {
		return err
	}

	oldest := fmt.Sprintf("%s.%d", p.config.FeedPath, p.config.MaxGenerations)
	os.Remove(oldest)
	for i := p.config.MaxGenerations - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", p.config.FeedPath, i)
		to := fmt.Sprintf("%s.%d", p.config.FeedPath, i+1)
		if _, err := os.Stat(from); err == nil {
			os.Rename(from, to)
		}
	}
	if err := os.Rename(p.config.FeedPath, p.config.FeedPath+".1"); err != nil {
		return err
	}
	return p.openFeed()
}

// pruneActive 清理活跃集中已过期的信封
func (p *Publisher) pruneActive(now time.Time) {
	kept := p.active[:0]
	for _, env := range p.active {
		if env.Active(now) {
			kept = append(kept, env)
		}
	}
	p.active = kept
}

// Active 当前未过期的信封集合副本
func (p *Publisher) Active() []model.SignalEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruneActive(time.Now())
	return append([]model.SignalEnvelope(nil), p.active...)
}

// WriteSnapshot 将当前活跃信封集写成单个 JSON 文档，供无法跟踪日志的轮询方使用
func (p *Publisher) WriteSnapshot() error {
	active := p.Active()
	doc := struct {
		GeneratedAt time.Time              `json:"generated_at"`
		Count       int                    `json:"count"`
		Signals     []model.SignalEnvelope `json:"signals"`
	}{
		GeneratedAt: time.Now(),
		Count:       len(active),
		Signals:     active,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化快照失败: %w", err)
	}
	tmp := p.config.SnapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("写入快照临时文件失败: %w", err)
	}
	if err := os.Rename(tmp, p.config.SnapshotPath); err != nil {
		return fmt.Errorf("替换快照文件失败: %w", err)
	}
	return nil
}

// Subscribe 注册一个进程内订阅通道，发布的每个信封都会投递一份
func (p *Publisher) Subscribe() <-chan model.SignalEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan model.SignalEnvelope, p.config.SubscribeBuf)
	p.subscribers = append(p.subscribers, ch)
	return ch
}

// Seq 当前序号
func (p *Publisher) Seq() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

// Close 刷新并关闭信号流文件
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.writer.Flush(); err != nil {
		return err
	}
	return p.file.Close()
}

// ReadFeed 按序号读取信号流中 seq > after 的信封（含当前文件，不含轮转代）
func ReadFeed(path string, after uint64) ([]model.SignalEnvelope, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开信号流文件失败: %w", err)
	}
	defer file.Close()

	var envelopes []model.SignalEnvelope
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var env model.SignalEnvelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			continue
		}
		if env.Seq > after {
			envelopes = append(envelopes, env)
		}
	}
	return envelopes, scanner.Err()
}
