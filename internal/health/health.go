// Package health はバックエンドサービスへの疎通確認を並列に行い、
// ゲートウェイ全体の稼働状態を集約する。
package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/hubgate/pkg/message"
	"golang.org/x/sync/errgroup"
)

// Pinger は1つのバックエンドサービスへの疎通確認を行う。
type Pinger interface {
	Ping(ctx context.Context, from string) (*message.PingReply, error)
}

// Target は疎通確認の対象。
type Target struct {
	// Name はサービス名。応答のservicesのキーになる。
	Name string
	// Pinger は疎通確認に使うクライアント。
	Pinger Pinger
}

// ServiceStatus は1サービスの疎通確認結果。
type ServiceStatus struct {
	OK      bool               `json:"ok"`
	Service string             `json:"service"`
	Result  *message.PingReply `json:"result,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// GatewayStatus はゲートウェイ自身の情報。
type GatewayStatus struct {
	Service string    `json:"service"`
	Now     time.Time `json:"now"`
}

// Report は集約したヘルスチェック結果。
type Report struct {
	// OK はすべてのサービスが応答した場合にtrue。
	OK       bool                     `json:"ok"`
	Gateway  GatewayStatus            `json:"gateway"`
	Services map[string]ServiceStatus `json:"services"`
}

// Prober は複数のサービスへ並列に疎通確認を行う。
type Prober struct {
	from    string
	targets []Target
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewProber は新しいProberを生成する。
// fromは送信元として各サービスに渡すサービス名、timeoutは1サービスあたりの上限。
func NewProber(from string, targets []Target, timeout time.Duration, logger *slog.Logger) *Prober {
	return &Prober{
		from:    from,
		targets: targets,
		timeout: timeout,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Check はすべての対象へ同時に疎通確認を行い、結果を集約する。
// 1つのサービスの失敗や遅延が他のサービスの結果に影響することはない。
func (p *Prober) Check(ctx context.Context) Report {
	statuses := make([]ServiceStatus, len(p.targets))

	// 各goroutineは失敗を結果として記録するだけで、エラーは返さない
	var g errgroup.Group
	for i, t := range p.targets {
		i, t := i, t
		g.Go(func() error {
			statuses[i] = p.ping(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		OK:       true,
		Gateway:  GatewayStatus{Service: p.from, Now: p.now()},
		Services: make(map[string]ServiceStatus, len(statuses)),
	}
	for _, s := range statuses {
		report.OK = report.OK && s.OK
		report.Services[s.Service] = s
	}
	return report
}

// ping は1サービスへの疎通確認をタイムアウト付きで行う。
func (p *Prober) ping(ctx context.Context, t Target) ServiceStatus {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	reply, err := t.Pinger.Ping(ctx, p.from)
	if err != nil {
		p.logger.WarnContext(ctx, "service ping failed",
			slog.String("target", t.Name), slog.Any("error", err))
		return ServiceStatus{OK: false, Service: t.Name, Error: err.Error()}
	}
	return ServiceStatus{OK: true, Service: t.Name, Result: reply}
}
