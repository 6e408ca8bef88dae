package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"slideflow/api"
	"slideflow/config"
	"slideflow/handlers"
	"slideflow/internal/database"
	"slideflow/models"
	"slideflow/services/accounts"
	"slideflow/services/bridge"
	"slideflow/services/caption"
	"slideflow/services/playlist"
	"slideflow/services/sessions"
	"slideflow/services/settings"
	"slideflow/services/shows"
	"slideflow/services/slideshow"
	"slideflow/services/source"
	"slideflow/services/tokenbroker"
	"slideflow/utils"
)

// staticTokenSource satisfies the caption token interface with a fixed
// API key, for caption backends that are not behind the provider OAuth.
type staticTokenSource struct {
	key string
}

func (s staticTokenSource) GetValidAccessToken(ctx context.Context) (string, bool) {
	return s.key, s.key != ""
}

func main() {
	fs := afero.NewOsFs()

	configDir := strings.TrimSpace(os.Getenv("SLIDEFLOW_CONFIG_DIR"))
	if configDir == "" {
		configDir = "./data"
	}
	cfgMgr, err := config.NewManager(fs, configDir)
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	cfg := cfgMgr.GetSettings()

	setupLogging(cfg.StorageDir)
	log.Printf("[main] slideflow %s starting", handlers.Version())

	db, err := database.Open(cfg.StorageDir)
	if err != nil {
		log.Fatalf("[main] failed to open database: %v", err)
	}
	defer db.Close()

	accountRepo := database.NewAccountRepository(db)
	showRepo := database.NewShowRepository(db)

	accountsSvc, err := accounts.NewService(accountRepo)
	if err != nil {
		log.Fatalf("[main] failed to init accounts: %v", err)
	}
	sessionsSvc, err := sessions.NewService(fs, cfg.StorageDir, 0)
	if err != nil {
		log.Fatalf("[main] failed to init sessions: %v", err)
	}
	defer sessionsSvc.Close()
	settingsSvc, err := settings.NewService(fs, cfg.StorageDir, settings.DefaultRetryPolicy())
	if err != nil {
		log.Fatalf("[main] failed to init settings: %v", err)
	}
	showsSvc := shows.NewService(showRepo)

	provider := tokenbroker.NewProviderClient(
		cfg.Provider.AuthBaseURL,
		cfg.Provider.ClientID,
		cfg.Provider.ClientSecret,
		cfg.Provider.RedirectURL,
		cfg.Provider.UserAgent,
	)
	broker, err := tokenbroker.NewBroker(fs, cfg.StorageDir, provider)
	if err != nil {
		log.Fatalf("[main] failed to init token broker: %v", err)
	}

	sourceClient := source.NewClient(cfg.Provider.BaseURL, cfg.Provider.UserAgent)
	poller := playlist.NewPoller(sourceClient, broker, time.Duration(cfg.PollFloorSeconds)*time.Second)

	master, err := masterAccount(accountsSvc)
	if err != nil {
		log.Fatalf("[main] failed to resolve master account: %v", err)
	}
	prefs, err := settingsSvc.Get(master.ID)
	if err != nil {
		log.Fatalf("[main] failed to load master preferences: %v", err)
	}

	controller := slideshow.NewController(
		time.Duration(prefs.IntervalSeconds)*time.Second, prefs.Transition)
	defer controller.Close()

	// Captions talk to an OpenAI-compatible backend; with an API key
	// configured that key is used, otherwise the provider token is.
	var captionTokens caption.TokenSource = broker
	if cfg.Caption.APIKey != "" {
		captionTokens = staticTokenSource{key: cfg.Caption.APIKey}
	}
	generator := caption.NewGenerator(cfg.Caption.BaseURL, cfg.Caption.Model)
	coordinator := caption.NewCoordinator(generator, captionTokens, prefs.Instruction, prefs.CaptionsEnabled)
	controller.Subscribe(coordinator.OnItemChanged)

	br := bridge.New(poller, controller, coordinator)
	settingsSvc.Subscribe(br.OnPreferencesChanged)
	poller.Subscribe(br.OnSnapshot)
	br.SetActiveUser(master.ID, prefs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	router := buildRouter(
		handlers.NewAuthHandler(accountsSvc, sessionsSvc),
		handlers.NewAccountsHandler(accountsSvc, sessionsSvc, settingsSvc),
		handlers.NewSlideshowHandler(controller, coordinator, poller, br),
		handlers.NewSettingsHandler(settingsSvc),
		handlers.NewShowsHandler(showsSvc, settingsSvc),
		handlers.NewProviderHandler(provider, broker, poller),
		handlers.NewMediaHandler(poller),
		sessionsSvc,
	)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("[main] shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] shutdown error: %v", err)
	}
}

// setupLogging tees logs to stderr and a size-rotated file under the
// storage directory.
func setupLogging(storageDir string) {
	logPath := filepath.Join(storageDir, "logs", "slideflow.log")
	rotated := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotated))
}

func masterAccount(accountsSvc *accounts.Service) (models.Account, error) {
	list, err := accountsSvc.List()
	if err != nil {
		return models.Account{}, err
	}
	for _, a := range list {
		if a.IsMaster {
			return a, nil
		}
	}
	return models.Account{}, accounts.ErrAccountNotFound
}

func buildRouter(
	authHandler *handlers.AuthHandler,
	accountsHandler *handlers.AccountsHandler,
	slideshowHandler *handlers.SlideshowHandler,
	settingsHandler *handlers.SettingsHandler,
	showsHandler *handlers.ShowsHandler,
	providerHandler *handlers.ProviderHandler,
	mediaHandler *handlers.MediaHandler,
	sessionsSvc *sessions.Service,
) http.Handler {
	router := utils.NewRouter()

	// Public routes. Login is rate limited to slow credential guessing;
	// the OAuth callback arrives from a browser redirect without a token.
	loginLimiter := api.NewIPRateLimiter(rate.Every(12*time.Second), 5)
	router.HandleFunc("/api/auth/login",
		api.RateLimitHandlerFunc(loginLimiter, authHandler.Login)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/provider/callback", providerHandler.Callback).Methods(http.MethodGet)
	router.HandleFunc("/api/shared/{token}", showsHandler.Shared).Methods(http.MethodGet)
	router.HandleFunc("/api/version", handlers.NewVersionHandler().GetVersion).Methods(http.MethodGet)

	// Everything else under /api requires a session.
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(api.AccountAuthMiddleware(sessionsSvc))

	protected.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/auth/me", authHandler.Me).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/auth/password", authHandler.ChangePassword).Methods(http.MethodPut, http.MethodOptions)

	protected.HandleFunc("/slideshow/state", slideshowHandler.State).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/slideshow/next", slideshowHandler.Next).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/slideshow/previous", slideshowHandler.Previous).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/slideshow/pause", slideshowHandler.Pause).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/slideshow/resume", slideshowHandler.Resume).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/slideshow/caption/regenerate", slideshowHandler.RegenerateCaption).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/slideshow/playlist", slideshowHandler.Playlist).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/slideshow/playlist/refresh", slideshowHandler.RefreshPlaylist).Methods(http.MethodPost, http.MethodOptions)

	protected.HandleFunc("/settings", settingsHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/settings", settingsHandler.Update).Methods(http.MethodPut, http.MethodOptions)

	protected.HandleFunc("/shows", showsHandler.List).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/shows", showsHandler.Create).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/shows/{showID}", showsHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/shows/{showID}", showsHandler.Update).Methods(http.MethodPatch, http.MethodOptions)
	protected.HandleFunc("/shows/{showID}", showsHandler.Delete).Methods(http.MethodDelete, http.MethodOptions)
	protected.HandleFunc("/shows/{showID}/load", showsHandler.Load).Methods(http.MethodPost, http.MethodOptions)

	protected.HandleFunc("/provider/status", providerHandler.Status).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/provider/connect", providerHandler.Connect).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/provider/disconnect", providerHandler.Disconnect).Methods(http.MethodPost, http.MethodOptions)

	protected.HandleFunc("/media/proxy", mediaHandler.Proxy).Methods(http.MethodGet, http.MethodOptions)

	// Account administration is reserved for the master account.
	admin := protected.PathPrefix("/accounts").Subrouter()
	admin.Use(api.MasterOnlyMiddleware())
	admin.HandleFunc("", accountsHandler.List).Methods(http.MethodGet, http.MethodOptions)
	admin.HandleFunc("", accountsHandler.Create).Methods(http.MethodPost, http.MethodOptions)
	admin.HandleFunc("/{accountID}", accountsHandler.Delete).Methods(http.MethodDelete, http.MethodOptions)

	return router
}
