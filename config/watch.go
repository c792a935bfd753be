package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher 监听配置文件变化并重新加载。监听的是所在目录，
// 以便编辑器 rename 写入时仍能收到事件。
type Watcher struct {
	Path     string
	Cooldown time.Duration // 冷却时间，合并一次保存产生的多个事件
}

// NewWatcher 创建配置监听器
func NewWatcher(path string) *Watcher {
	return &Watcher{Path: path, Cooldown: 500 * time.Millisecond}
}

// Start 阻塞直到 ctx 结束。配置合法时回调 onUpdate，非法时回调 onError，
// 正在运行的扫描不受影响，下一轮使用新配置。
func (w *Watcher) Start(ctx context.Context, onUpdate func(AppConfig), onError func(error)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	target, err := filepath.Abs(w.Path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			// 只处理写入、创建和改名事件
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(w.Cooldown)

		case <-pending:
			pending = nil
			cfg, err := LoadWithEnvOverrides(w.Path)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onUpdate != nil {
				onUpdate(cfg)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(fmt.Errorf("watcher: %w", err))
			}
		}
	}
}
