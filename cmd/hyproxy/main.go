package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hyproxy/hyproxy/pkg/config"
	"github.com/hyproxy/hyproxy/pkg/hyproxy"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hyproxy",
	Short: "A stats-enriching man-in-the-middle proxy for Hypixel (Minecraft 1.8.9)",
	RunE: func(*cobra.Command, []string) error {
		return hyproxy.Run()
	},
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default hyproxy.yml in the working dir)")
	flags.String("bind", "localhost:13876", "address to listen on for game clients")
	flags.String("upstream", "mc.hypixel.net:25565", "server to proxy to")
	flags.String("motd", "hyproxy", "server list description")
	flags.String("favicon", "", "path to a PNG shown in the server list")
	flags.String("cache-dir", "", "directory for credential and stats caches")
	flags.String("hypixel-api-key", "", "Hypixel API key for stat lookups")
	flags.Bool("debug", false, "enable debug logging")

	_ = viper.BindPFlag("bind", flags.Lookup("bind"))
	_ = viper.BindPFlag("upstream", flags.Lookup("upstream"))
	_ = viper.BindPFlag("motd", flags.Lookup("motd"))
	_ = viper.BindPFlag("favicon", flags.Lookup("favicon"))
	_ = viper.BindPFlag("cacheDir", flags.Lookup("cache-dir"))
	_ = viper.BindPFlag("hypixelApiKey", flags.Lookup("hypixel-api-key"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("hyproxy")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("HYPROXY")
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
