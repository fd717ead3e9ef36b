package cmd

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	devconfig "sosguard/dev/config"
	"sosguard/server"
	"sosguard/utils"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the sosguard app service",
	Long: `The sosguard app service drives the panic flow: settings, location,
evidence capture & alert dispatch, behind a local json api for the UI layer`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start(serverConfig(), isDevEnv || isTestEnv)
	},
}

var serverCongFile string

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverCongFile, "sconfig", "", "Config for server")
}

func serverConfig() *viper.Viper {
	config = viper.New()

	if serverCongFile == "" {
		if !isDevEnv && !isTestEnv {
			cobra.CheckErr(formattedError("must pass --sconfig when not in dev mode"))
		}
		serverCongFile = devConfigFilePath()
	}

	config.SetConfigFile(serverCongFile)
	config.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := config.ReadInConfig(); err != nil {
		log.Panic(fmt.Sprintf("error reading server config file: %v", err))
	}

	return config
}

// devConfigFilePath writes the embedded dev config on first use & returns
// its path
func devConfigFilePath() string {
	configDir, err := os.Getwd()
	if err != nil {
		log.Panic(err)
	}

	configFilePath := filepath.Join(configDir, "dev", "server.yml")
	if !utils.FileExist(configFilePath) {
		cobra.CheckErr(utils.CreateDirIfNotExist(filepath.Join(configDir, "dev")))
		cobra.CheckErr(ioutil.WriteFile(configFilePath, []byte(devconfig.SERVER_YML), 0600))
	}

	return configFilePath
}
