// Command portal runs the terminal front-end: the pipeline kanban board
// backed by the portal REST API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/agency-portal/internal/authz"
	"github.com/ignite/agency-portal/internal/cache"
	"github.com/ignite/agency-portal/internal/config"
	"github.com/ignite/agency-portal/internal/crm"
	"github.com/ignite/agency-portal/internal/notify"
	"github.com/ignite/agency-portal/internal/pkg/logger"
	"github.com/ignite/agency-portal/internal/portalapi"
	"github.com/ignite/agency-portal/internal/tui"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Warn("config load failed, using defaults", "error", err.Error())
		cfg = config.Default()
	}

	client := portalapi.NewClient(cfg.PortalAPI)

	var stageCache crm.StageCache
	var saveLocks crm.SaveLockFactory
	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, running without stage cache",
				"addr", cfg.Cache.RedisAddr, "error", err.Error())
		} else {
			stageCache = cache.NewStageCache(rdb, cfg.Cache.TTL())
			saveLocks = func(projectID string) crm.SaveLock {
				return cache.NewConfigLock(rdb, projectID, 30*time.Second)
			}
		}
		cancel()
	}

	registry := crm.NewStageRegistry(client, stageCache)
	if saveLocks != nil {
		registry.SetSaveLockFactory(saveLocks)
	}
	store := crm.NewProspectStore(client, cfg.CRM.SearchDebounce())
	center := notify.NewCenter(0)

	kanban := crm.NewKanbanController(store, registry, client, center)
	kanban.SetUpdateTimeout(cfg.CRM.StageUpdateTimeout())

	detail := crm.NewDetailPanel(client, store, authz.FromConfig(cfg.Org), center)
	detail.SetLoadTimeout(cfg.CRM.DetailLoadTimeout())

	loadCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	registry.Load(loadCtx, cfg.Org.ProjectID)
	if err := store.SetProject(loadCtx, cfg.Org.ProjectID); err != nil {
		logger.Warn("initial prospect load failed", "error", err.Error())
	}
	cancel()

	model := tui.NewModel(store, registry, kanban, detail, center)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "portal error: %v\n", err)
		os.Exit(1)
	}
}
