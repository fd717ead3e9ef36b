package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"

	"sosguard/server/advisory"
	"sosguard/server/dispatch"
	"sosguard/server/evidence"
	"sosguard/server/geo"
	"sosguard/server/identity"
	"sosguard/server/logger"
	"sosguard/server/models"
	"sosguard/server/platform"
	"sosguard/server/settings"
	"sosguard/server/twilio"
	"sosguard/server/work"
	"sosguard/shared"
)

var (
	logg     = logger.NewLogger()
	validate = validator.New()

	serverConfig     *shared.ServerConfig
	settingsStore    *settings.Store
	orchestrator     *dispatch.Orchestrator
	tracker          *geo.Tracker
	identityProvider *identity.Provider

	// Device bridges are nil in dev mode; the sim adapters stand in for
	// the missing UI
	locationBridge *geo.PushProvider
	cameraBridge   *platform.BridgeCamera
)

// Start spins up the app service & blocks until SIGINT/SIGTERM
func Start(config *viper.Viper, devMode bool) {
	serverConfig = parseServerConfig(config)
	fatalOnError(RegisterValidators(validate))

	rootDir := configDirectory(devMode)
	fatalOnError(models.AutoMigrate(serverConfig.Sqlite.PassPhrase, rootDir))

	settingsStore = settings.NewStore(validate)
	identityProvider = identity.NewProvider(serverConfig.Guard.SessionSecret)
	tracker = geo.NewTracker()

	appCtx, cancelAppCtx := context.WithCancel(context.Background())

	camera, provider := deviceCapabilities(devMode)
	fatalOnError(tracker.Start(appCtx, provider, geo.DefaultWatchOptions()))

	workerAdapter := work.NewAdapter("UTC")

	var direct dispatch.DirectSender
	if boolConfigValue(serverConfig.Twilio.EnableDirectSms) {
		direct = twilio.NewClient(serverConfig.Twilio, devMode)
	}

	orchestrator = dispatch.NewOrchestrator(
		dispatch.Config{
			CountryCode:       serverConfig.Guard.CountryCode,
			IOSStyleSMS:       serverConfig.Guard.Platform == "ios",
			InterCapturePause: time.Duration(serverConfig.Guard.Capture.PauseMillis) * time.Millisecond,
		},
		dispatch.Deps{
			Store:    settingsStore,
			Tracker:  tracker,
			Capturer: evidence.NewCapturer(camera, captureOptions(serverConfig.Guard.Capture)),
			Advisor:  advisory.NewClient(serverConfig.Advisory),
			Opener:   &platform.LogOpener{},
			Vibrator: &platform.SimVibrator{},
			Direct:   direct,
			Runner:   workerAdapter,
		},
	)

	registerScheduledJobs(workerAdapter, rootDir)
	workerAdapter.Start()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%v", serverConfig.Guard.Listener.Port),
		Handler: newRouter(),
	}
	go serve(server)

	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, syscall.SIGINT, syscall.SIGTERM)
	<-sigChannel

	cancelAppCtx()
	cleanup(workerAdapter, server, boolConfigValue(serverConfig.Google.Storage.EnableSettingsBackup), rootDir)
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func newRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware, initialContextMiddleware)

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/session", logInHandler).Methods("POST")

	protectedRouter := router.NewRoute().Subrouter()
	protectedRouter.Use(protectedRouteMiddleware)

	protectedRouter.HandleFunc("/session", currentSessionHandler).Methods("GET")
	protectedRouter.HandleFunc("/session", logOutHandler).Methods("DELETE")

	protectedRouter.HandleFunc("/settings", findSettingsHandler).Methods("GET")
	protectedRouter.HandleFunc("/settings", updateSettingsHandler).Methods("PUT")

	protectedRouter.HandleFunc("/location", currentLocationHandler).Methods("GET")
	protectedRouter.HandleFunc("/device/location", pushLocationHandler).Methods("POST")
	protectedRouter.HandleFunc("/device/frames/{facing}", pushFrameHandler).Methods("POST")

	protectedRouter.HandleFunc("/activations", activateHandler).Methods("POST")
	protectedRouter.HandleFunc("/activations/current", currentActivationHandler).Methods("GET")
	protectedRouter.HandleFunc("/activations/current/group", sendToGroupHandler).Methods("POST")
	protectedRouter.HandleFunc("/activations/current/contacts/{id}/{channel}", sendToContactHandler).Methods("POST")
	protectedRouter.HandleFunc("/activations/current/conclude", concludeActivationHandler).Methods("POST")
	protectedRouter.HandleFunc("/activations/current/reset", resetActivationHandler).Methods("POST")

	return router
}

// deviceCapabilities picks the camera & location sources. In dev mode the
// sim adapters produce synthetic frames & a fixed position, so the whole
// panic flow runs with no UI attached.
func deviceCapabilities(devMode bool) (evidence.Camera, geo.Provider) {
	if devMode {
		locator := &platform.SimLocator{
			Latitude:  -23.55052,
			Longitude: -46.633308,
			Accuracy:  12,
			Interval:  5 * time.Second,
		}
		return platform.NewSimCamera(), locator
	}

	cameraBridge = platform.NewBridgeCamera()
	locationBridge = geo.NewPushProvider()

	return cameraBridge, locationBridge
}

func captureOptions(config shared.CaptureConfig) evidence.Options {
	return evidence.Options{
		Timeout:     time.Duration(config.TimeoutSeconds) * time.Second,
		SettleDelay: time.Duration(config.SettleMillis) * time.Millisecond,
		Quality:     config.Quality,
	}
}
