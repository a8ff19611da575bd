// Command echo runs the portal assistant as a terminal chat. It answers
// pipeline, billing, and prospect questions from live portal data.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ignite/agency-portal/internal/authz"
	"github.com/ignite/agency-portal/internal/billing"
	"github.com/ignite/agency-portal/internal/config"
	"github.com/ignite/agency-portal/internal/crm"
	"github.com/ignite/agency-portal/internal/echo"
	"github.com/ignite/agency-portal/internal/notify"
	"github.com/ignite/agency-portal/internal/pkg/logger"
	"github.com/ignite/agency-portal/internal/portalapi"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Warn("config load failed, using defaults", "error", err.Error())
		cfg = config.Default()
	}

	client := portalapi.NewClient(cfg.PortalAPI)
	org := authz.FromConfig(cfg.Org)

	loadCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	snap, err := loadSnapshot(loadCtx, client, org, cfg)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "echo: %v\n", err)
		os.Exit(1)
	}

	assistant := echo.NewAssistant()
	fmt.Println("Echo is ready. Ask about your pipeline, invoices, or a prospect. Ctrl-D to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}

		resp := assistant.Chat(query, snap)
		fmt.Println(resp.Message)
		if len(resp.Suggestions) > 0 {
			fmt.Println("\nTry:")
			for _, s := range resp.Suggestions {
				fmt.Printf("  - %s\n", s)
			}
		}
		fmt.Println()
	}
}

// loadSnapshot pulls everything the assistant answers from in one pass.
// Billing data is optional: a restricted user still gets pipeline answers.
func loadSnapshot(ctx context.Context, client *portalapi.Client, org authz.OrgContext, cfg *config.Config) (echo.Snapshot, error) {
	registry := crm.NewStageRegistry(client, nil)
	stages := registry.Load(ctx, cfg.Org.ProjectID)

	list, err := client.ListProspects(ctx, portalapi.ProspectListParams{ProjectID: cfg.Org.ProjectID})
	if err != nil {
		return echo.Snapshot{}, fmt.Errorf("failed to load prospects: %w", err)
	}

	snap := echo.Snapshot{
		Prospects: list.Prospects,
		Stages:    stages,
		Now:       time.Now(),
	}

	svc := billing.NewService(client, org, notify.NewCenter(0))
	invoices, err := svc.List(ctx)
	if err != nil {
		logger.Warn("invoices unavailable, answering from pipeline only",
			"error", err.Error())
	} else {
		snap.Invoices = invoices
	}
	return snap, nil
}
