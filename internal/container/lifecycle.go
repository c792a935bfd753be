package container

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"signal-scanner-go/infrastructure/alert"
	"signal-scanner-go/infrastructure/logger"
	"signal-scanner-go/scanner"
)

// Component 容器托管的部件，Name 出现在 /healthz 中。
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Health() error
}

// ComponentStatus /healthz 中单个部件的状态
type ComponentStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Lifecycle 按注册顺序启动、逆序停止；某个部件启动失败时，已启动的部件被回滚。
type Lifecycle struct {
	mu         sync.RWMutex
	components []Component
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

func (l *Lifecycle) Register(c Component) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.components = append(l.components, c)
}

func (l *Lifecycle) StartAll(ctx context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i, c := range l.components {
		if err := c.Start(ctx); err != nil {
			errs := []error{fmt.Errorf("start %s: %w", c.Name(), err)}
			for j := i - 1; j >= 0; j-- {
				if stopErr := l.components[j].Stop(); stopErr != nil {
					errs = append(errs, fmt.Errorf("rollback %s: %w", l.components[j].Name(), stopErr))
				}
			}
			return errors.Join(errs...)
		}
	}
	return nil
}

// StopAll 停止全部部件，某个失败不影响其余部件停止。
func (l *Lifecycle) StopAll() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var errs []error
	for i := len(l.components) - 1; i >= 0; i-- {
		if err := l.components[i].Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", l.components[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Health 逐个部件的健康状态，顺序同注册顺序
func (l *Lifecycle) Health() []ComponentStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]ComponentStatus, 0, len(l.components))
	for _, c := range l.components {
		st := ComponentStatus{Name: c.Name(), OK: true}
		if err := c.Health(); err != nil {
			st.OK = false
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	return out
}

// passTracker 记录最近一轮扫描；整轮失败（合约列表或行情快照加载失败）时不健康。
type passTracker struct {
	mu       sync.RWMutex
	last     time.Time
	err      error
	universe int
	signals  int
}

func (p *passTracker) Name() string                    { return "scan" }
func (p *passTracker) Start(ctx context.Context) error { return nil }
func (p *passTracker) Stop() error                     { return nil }

func (p *passTracker) record(at time.Time, rep scanner.Report, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = at
	p.err = err
	p.universe = len(rep.Universe)
	p.signals = len(rep.Signals)
}

func (p *passTracker) Health() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.err != nil {
		return fmt.Errorf("last pass failed: %w", p.err)
	}
	return nil
}

func (p *passTracker) snapshot() (last time.Time, universe, signals int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.universe, p.signals
}

// feedComponent 关闭时断开 /feed 的全部订阅者
type feedComponent struct {
	feed    *alert.FeedChannel
	mu      sync.Mutex
	stopped bool
}

func (f *feedComponent) Name() string                    { return "feed" }
func (f *feedComponent) Start(ctx context.Context) error { return nil }

func (f *feedComponent) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return f.feed.Close()
}

func (f *feedComponent) Health() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return errors.New("feed closed")
	}
	return nil
}

// httpComponent 暴露 /metrics /healthz /feed；Start 时同步监听，端口占用直接报错
type httpComponent struct {
	handler http.Handler
	addr    string
	logger  *logger.Logger

	mu     sync.Mutex
	server *http.Server
	bound  string
}

func (h *httpComponent) Name() string { return "http" }

func (h *httpComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", h.addr, err)
	}
	srv := &http.Server{Handler: h.handler, ReadHeaderTimeout: 5 * time.Second}
	h.server = srv
	h.bound = ln.Addr().String()

	lg := h.logger
	go func() {
		lg.Info("http server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.LogError(err, map[string]interface{}{"action": "serve"})
		}
	}()
	return nil
}

func (h *httpComponent) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		return err
	}
	h.server = nil
	h.logger.Info("http server stopped")
	return nil
}

func (h *httpComponent) Health() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.server == nil {
		return errors.New("not listening")
	}
	return nil
}

// Addr 实际监听地址（addr 为 :0 时有用）
func (h *httpComponent) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bound
}
