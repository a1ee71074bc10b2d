package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dyike/dqc/internal/chat"
	"github.com/dyike/dqc/internal/docstore"
	"github.com/dyike/dqc/internal/storage"
	"github.com/dyike/dqc/internal/tui"
)

// runTUI 启动交互界面
func runTUI(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	// 本地历史数据库
	dbPath, err := a.cfg.GetDatabasePath()
	if err != nil {
		return fmt.Errorf("failed to get database path: %w", err)
	}
	db, err := storage.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	uploader := docstore.NewUploader(ctx, a.client, a.docs, a.folders, a.bus, a.logger)
	poller := docstore.NewPoller(a.client, a.docs, a.bus, a.cfg.PollInterval(), a.logger)
	ctrl := chat.NewController(a.client, db, a.cfg.Model, a.cfg.Stream, a.logger)

	model := tui.NewModel(ctx, tui.Deps{
		Cfg:      a.cfg,
		Bus:      a.bus,
		Folders:  a.folders,
		Docs:     a.docs,
		Uploader: uploader,
		Poller:   poller,
		Chat:     ctrl,
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	// 等待未完成的上传，停止轮询
	poller.Stop()
	uploader.Wait()

	return nil
}
