package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"signal-scanner-go/config"
	"signal-scanner-go/internal/container"
)

func main() {
	cfgPath := flag.String("config", "", "配置文件路径；留空则只用默认值与环境变量")
	interval := flag.Duration("interval", 0, "循环扫描间隔（如 30m）；0 则使用配置，配置也为 0 时只跑一轮")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	c := container.New(cfg)
	if err := c.Build(); err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	lg := c.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		lg.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := c.Start(ctx); err != nil {
		lg.Fatal("start container failed", zap.Error(err))
	}

	every := *interval
	if every == 0 {
		every = cfg.Scan.Interval()
	}

	code := 0
	if every <= 0 {
		if _, err := c.Scan(ctx); err != nil {
			code = 1
		}
	} else {
		runLoop(ctx, c, *cfgPath, every, *interval > 0)
	}

	if err := c.Stop(); err != nil {
		code = 1
	}
	os.Exit(code)
}

func loadConfig(path string) (config.AppConfig, error) {
	if path == "" {
		return config.FromEnv()
	}
	return config.LoadWithEnvOverrides(path)
}

// runLoop 每隔 every 跑一轮，直到 ctx 结束。fixed=true 时间隔由命令行指定，不随配置重载变化。
func runLoop(ctx context.Context, c *container.Container, cfgPath string, every time.Duration, fixed bool) {
	lg := c.Logger()

	if cfgPath != "" {
		w := config.NewWatcher(cfgPath)
		go func() {
			err := w.Start(ctx,
				func(next config.AppConfig) {
					if err := c.Reload(next); err != nil {
						c.ReportReloadFailure(ctx, cfgPath, err)
					}
				},
				func(err error) {
					c.ReportReloadFailure(ctx, cfgPath, err)
				},
			)
			if err != nil && !errors.Is(err, context.Canceled) {
				c.ReportReloadFailure(ctx, cfgPath, fmt.Errorf("watch config: %w", err))
			}
		}()
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		lg.Warn("sd_notify READY failed", zap.Error(err))
	} else if ok {
		lg.Info("notified systemd: ready")
	}
	defer daemon.SdNotify(false, daemon.SdNotifyStopping)

	if wd, err := daemon.SdWatchdogEnabled(false); err == nil && wd > 0 {
		go keepAlive(ctx, wd/2)
	}

	lg.Info("scanner loop started", zap.Duration("interval", every))
	for {
		_, _ = c.Scan(ctx)

		if !fixed {
			if next := c.Config().Scan.Interval(); next > 0 {
				every = next
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(every):
		}
	}
}

func keepAlive(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
