package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ydoc-inspect",
	Short: "Decode ydoc state vectors and update payloads for debugging",
	Long: `ydoc-inspect is a diagnostic tool for the ydoc CRDT engine.
It reads the raw bytes a Doc would hand to a transport layer
(EncodeStateVector, EncodeStateAsUpdateV1/V2) and prints their decoded
shape without ever constructing a Doc or integrating anything.`,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.ydoc-inspect.yaml)")
	rootCmd.PersistentFlags().String("format", "text", "output format: text or json")
	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))

	rootCmd.AddCommand(stateVectorCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(coverageCmd)
	rootCmd.AddCommand(testReportCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ydoc-inspect")
	}

	viper.SetEnvPrefix("YDOC_INSPECT")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func outputFormat() string {
	f := viper.GetString("format")
	if f != "json" {
		return "text"
	}
	return "json"
}
