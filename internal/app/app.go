// Package app is the composition root: it opens the database, builds the
// gateways and services, and exposes one method per CLI subcommand.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/phleudt/mailscheduler/config"
	"github.com/phleudt/mailscheduler/internal/database"
	"github.com/phleudt/mailscheduler/internal/domain"
	"github.com/phleudt/mailscheduler/internal/repository"
	"github.com/phleudt/mailscheduler/internal/service"
	"github.com/phleudt/mailscheduler/pkg/gmailgw"
	"github.com/phleudt/mailscheduler/pkg/googleauth"
	"github.com/phleudt/mailscheduler/pkg/logger"
	"github.com/phleudt/mailscheduler/pkg/sheetsgw"
)

// App holds the fully wired engine.
type App struct {
	Config *config.Config
	Logger logger.Logger

	db *sql.DB

	EmailRepo     domain.EmailRepository
	RecipientRepo domain.RecipientRepository
	ContactRepo   domain.ContactRepository
	TemplateRepo  domain.TemplateRepository
	PlanRepo      domain.PlanRepository

	Sheets domain.SpreadsheetGateway
	Mail   domain.MailGateway

	Scheduler     *service.SchedulerService
	Dispatcher    *service.DispatchService
	RecipientSync *service.RecipientSyncService
	HistorySync   *service.HistorySyncService
}

// New builds the application from configuration. Gateways authenticate with
// the stored Google token.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.NewLoggerWithLevel(cfg.LogLevel)

	db, err := sql.Open("postgres", database.ConnectionString(
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
		cfg.Database.Password, cfg.Database.DBName, cfg.Database.SSLMode,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.InitializeDatabase(db); err != nil {
		db.Close()
		return nil, err
	}

	oauthConfig, err := googleauth.LoadConfig(cfg.Google.CredentialsFile)
	if err != nil {
		db.Close()
		return nil, err
	}
	client, err := googleauth.Client(ctx, oauthConfig, cfg.Google.TokenFile)
	if err != nil {
		db.Close()
		return nil, err
	}
	sheets, err := sheetsgw.NewGateway(ctx, client)
	if err != nil {
		db.Close()
		return nil, err
	}
	mail, err := gmailgw.NewGateway(ctx, client)
	if err != nil {
		db.Close()
		return nil, err
	}

	app := &App{
		Config:        cfg,
		Logger:        log,
		db:            db,
		EmailRepo:     repository.NewEmailRepository(db),
		RecipientRepo: repository.NewRecipientRepository(db),
		ContactRepo:   repository.NewContactRepository(db),
		TemplateRepo:  repository.NewTemplateRepository(db),
		PlanRepo:      repository.NewPlanRepository(db),
		Sheets:        sheets,
		Mail:          mail,
	}

	sender := domain.EmailAddress(cfg.SenderEmail)
	resolver := service.NewPlaceholderResolver(app.RecipientRepo, app.ContactRepo, sheets, cfg.SpreadsheetID, log)
	app.Scheduler = service.NewSchedulerService(
		app.EmailRepo, app.RecipientRepo, app.PlanRepo, app.TemplateRepo,
		resolver, sender, log,
	)

	selector := service.NewPendingSelector(app.EmailRepo, log)
	app.Dispatcher = service.NewDispatchService(app.EmailRepo, app.RecipientRepo, mail, selector, log)

	app.RecipientSync, err = service.NewRecipientSyncService(
		app.RecipientRepo, app.ContactRepo, sheets,
		cfg.SpreadsheetID, cfg.SheetTitle, cfg.ColumnMapping, cfg.SendingCriteria, log,
	)
	if err != nil {
		db.Close()
		return nil, err
	}

	if cfg.HistoryRange != "" {
		historyRange, err := domain.NewRangeReference(cfg.HistoryRange)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("invalid HISTORY_RANGE: %w", err)
		}
		if cfg.SheetTitle != "" {
			historyRange = historyRange.WithSheet(cfg.SheetTitle)
		}
		app.HistorySync = service.NewHistorySyncService(
			app.EmailRepo, app.RecipientRepo, sheets,
			cfg.SpreadsheetID, historyRange, sender, log,
		)
	}

	return app, nil
}

// Close releases the database handle.
func (a *App) Close() error {
	return a.db.Close()
}

// EnsureDefaultPlan creates the DEFAULT plan from the configured follow-up
// intervals when no plan exists yet. Templates for the steps are left to the
// operator; steps without a template block scheduling until bound.
func (a *App) EnsureDefaultPlan(ctx context.Context) error {
	plans, err := a.PlanRepo.List(ctx)
	if err != nil {
		return err
	}
	for _, plan := range plans {
		if plan.PlanType == domain.PlanTypeDefault {
			return nil
		}
	}

	steps := make([]domain.FollowUpStep, len(a.Config.FollowUpIntervals))
	for i, wait := range a.Config.FollowUpIntervals {
		steps[i] = domain.FollowUpStep{StepNumber: i, WaitDays: wait}
	}
	plan, err := domain.NewFollowUpPlan(uuid.New().String(), domain.PlanTypeDefault, steps)
	if err != nil {
		return err
	}
	return a.PlanRepo.Create(ctx, plan)
}
