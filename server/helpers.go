package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator"
	"github.com/spf13/viper"

	"sosguard/server/gstorage"
	"sosguard/server/models"
	"sosguard/server/work"
	"sosguard/shared"
	"sosguard/utils"
)

type ResponsePayload struct {
	Errors  []string    `json:"errors,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ---------------------------------------------------------------------------------//
// Handler Helper functions
// --------------------------------------------------------------------------------//

func writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		logg.Error(payLoad.Errors)
	} else if statusCode >= http.StatusBadRequest {
		logg.Info(payLoad.Errors)
	}

	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

func writeErrorResponse(rw http.ResponseWriter, err error, statusCode int) {
	writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, statusCode)
}

func RegisterValidators(validate *validator.Validate) error {
	return validate.RegisterValidation("phone_number", func(fl validator.FieldLevel) bool {
		digits := utils.DigitsOnly(fl.Field().String())
		return len(digits) >= 8 && len(digits) <= 15
	})
}

// ---------------------------------------------------------------------------------//
// Server Helper functions
// --------------------------------------------------------------------------------//

func parseServerConfig(config *viper.Viper) *shared.ServerConfig {
	serverConfig := shared.ServerConfig{}

	fatalOnError(config.Unmarshal(&serverConfig))
	fatalOnError(validate.Struct(&serverConfig))

	return &serverConfig
}

func serve(server *http.Server) {
	logg.Infof("sosguard app service is listening on port%v", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

func cleanup(workerAdapter *work.Adapter, server *http.Server, backupDb bool, dbRootDir string) {
	workerAdapter.Stop()

	if backupDb {
		backupSettingsDb(dbRootDir)
	}

	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Fatalf("sosguard app service shutdown failed:%+s", err)
	}

	logg.Infof("sosguard app service stopped properly")
}

// backupSettingsDb uploads the sqlite file holding the settings & session
// records to the configured bucket. Backup, not sync - restore is manual.
func backupSettingsDb(dbRootDir string) {
	dbFilePath, err := models.DbFilePath(dbRootDir)
	if err != nil {
		logg.Errorf("settings backup: %v", err)
		return
	}

	gs, err := gstorage.NewGStorage(serverConfig.Google.ApplicationCredentials)
	if err != nil {
		logg.Errorf("settings backup: %v", err)
		return
	}

	storageConfig := serverConfig.Google.Storage
	if err := gs.UploadFile(storageConfig.Bucket, storageConfig.Prefix, dbFilePath); err != nil {
		logg.Errorf("settings backup: %v", err)
	}
}

func registerScheduledJobs(workerAdapter *work.Adapter, dbRootDir string) {
	if !boolConfigValue(serverConfig.Google.Storage.EnableSettingsBackup) {
		return
	}

	err := workerAdapter.PeriodicallyPerform(
		serverConfig.Google.Storage.SettingsBackupSchedule,
		"backup_settings_db",
		func() { backupSettingsDb(dbRootDir) },
	)
	if err != nil {
		logg.Errorf("unable to schedule settings backup: %v", err)
	}
}

// configDirectory retrieves the directory for sosguard app data
// Or logs an error message and then calls os.Exit if it's unable to.
func configDirectory(devMode bool) string {
	configFolderName := "sosguard"
	rootDir, err := os.UserHomeDir()
	fatalOnError(err)

	// Use 'dev' folder in current directory for dev mode
	if devMode {
		configFolderName = "dev"
		rootDir, err = os.Getwd()
		fatalOnError(err)
	}

	configDir := filepath.Join(rootDir, configFolderName)

	err = utils.CreateDirIfNotExist(configDir)
	fatalOnError(err)

	return configDir
}

func boolConfigValue(value interface{}) bool {
	enabled, ok := value.(bool)
	return ok && enabled
}

func fatalOnError(err error) {
	if err != nil {
		logg.Fatal(err)
	}
}
