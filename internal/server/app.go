// Package server initializes and runs the sitekeeper application: it wires
// the collections, the sync queue, the share-link issuer, and the session
// guard into the HTTP server and handles graceful shutdown.
package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/badrabdoph/sitekeeper/internal/config"
	"github.com/badrabdoph/sitekeeper/internal/content"
	"github.com/badrabdoph/sitekeeper/internal/github"
	"github.com/badrabdoph/sitekeeper/internal/history"
	"github.com/badrabdoph/sitekeeper/internal/links"
	"github.com/badrabdoph/sitekeeper/internal/logging"
	"github.com/badrabdoph/sitekeeper/internal/rest"
	"github.com/badrabdoph/sitekeeper/internal/service"
	"github.com/badrabdoph/sitekeeper/internal/session"
	"github.com/badrabdoph/sitekeeper/internal/store"
	"github.com/badrabdoph/sitekeeper/internal/syncqueue"
)

const shutdownTimeout = 5 * time.Second

// legacyShareLinksFile is the pre-rename share-link location, consulted
// once for migration when the canonical file is absent.
const legacyShareLinksFile = "shareLinks.json"

type App struct {
	config *config.Config
	logger logging.Logger
	queue  *syncqueue.Queue
	server *rest.Server
}

func NewApp(cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	// Remote sync is disabled entirely when the credential or the
	// repository identifier is absent; local writes still succeed.
	var committer syncqueue.Committer
	if cfg.GithubToken != "" && cfg.GithubRepo != "" {
		committer = github.NewClient(cfg.GithubAPIBase, cfg.GithubToken, cfg.GithubRepo, cfg.GithubBranch, cfg.GithubPathPrefix, logger)
	} else {
		logger.Info(context.Background(), "remote sync disabled, no github token or repo configured")
	}
	queue := syncqueue.New(committer, cfg.SyncDebounce, logger)

	dir := cfg.DataDir
	text := store.NewCollection[content.TextField, *content.TextField](content.TextFile, dir, logger,
		store.WithEnqueuer[content.TextField, *content.TextField](queue))
	images := store.NewCollection[content.Image, *content.Image](content.ImagesFile, dir, logger,
		store.WithEnqueuer[content.Image, *content.Image](queue))
	contact := store.NewCollection[content.ContactField, *content.ContactField](content.ContactFile, dir, logger,
		store.WithEnqueuer[content.ContactField, *content.ContactField](queue))
	sections := store.NewCollection[content.SectionFlag, *content.SectionFlag](content.SectionsFile, dir, logger,
		store.WithEnqueuer[content.SectionFlag, *content.SectionFlag](queue))
	portfolio := store.NewCollection[content.PortfolioItem, *content.PortfolioItem](content.PortfolioFile, dir, logger,
		store.WithEnqueuer[content.PortfolioItem, *content.PortfolioItem](queue))
	testimonials := store.NewCollection[content.Testimonial, *content.Testimonial](content.TestimonialsFile, dir, logger,
		store.WithEnqueuer[content.Testimonial, *content.Testimonial](queue))
	packages := store.NewCollection[content.Package, *content.Package](content.PackagesFile, dir, logger,
		store.WithEnqueuer[content.Package, *content.Package](queue))
	shareLinks := store.NewCollection[content.ShareLink, *content.ShareLink](content.ShareLinksFile, dir, logger,
		store.WithEnqueuer[content.ShareLink, *content.ShareLink](queue),
		store.WithLegacyPath[content.ShareLink, *content.ShareLink](filepath.Join(dir, legacyShareLinksFile)))

	ledger := history.NewLedger(content.HistoryFile, dir, logger, history.WithEnqueuer(queue))
	packagesService := service.NewPackagesService(packages, ledger, logger)
	issuer := links.NewIssuer(shareLinks, cfg.SecretKey, cfg.ShareCodePrefix, cfg.ShareCodeLength, cfg.ShareTokenTTL, logger)
	guard := session.NewGuard(cfg, logger)

	handler := rest.NewHandler(guard, issuer, packagesService,
		text, images, contact, sections, portfolio, testimonials, logger)
	httpServer := rest.NewServer(cfg.EndpointAddr, handler, logger)

	return &App{config: cfg, logger: logger, queue: queue, server: httpServer}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddr, "dataDir", app.config.DataDir)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Start(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, err.Error())
	}
	wg.Wait()

	// flush any pending remote sync before exit
	app.queue.Close()

	app.logger.Info(context.Background(), "app stopped")
}
