// Package hyproxy wires configuration, logging and the proxy core into a
// runnable program.
package hyproxy

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gookit/color"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hyproxy/hyproxy/pkg/auth"
	"github.com/hyproxy/hyproxy/pkg/config"
	"github.com/hyproxy/hyproxy/pkg/proxy"
)

// Run loads the config from viper, initializes logging and serves until
// a termination signal arrives.
func Run() error {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if err := initLogger(cfg.Debug); err != nil {
		return fmt.Errorf("error initializing global logger: %w", err)
	}

	if err := config.Validate(&cfg); err != nil {
		return fmt.Errorf("error validating config: %w", err)
	}

	cacheDir, err := cfg.ResolveCacheDir()
	if err != nil {
		return fmt.Errorf("error preparing cache dir: %w", err)
	}

	var creds auth.Provider
	if cfg.AccessToken != "" {
		creds = &auth.StaticProvider{
			AccessToken: cfg.AccessToken,
			UUID:        cfg.UUID,
			Username:    cfg.Username,
		}
	} else {
		creds = auth.NewCachedProvider(cacheDir)
	}

	if cfg.HypixelAPIKey == "" {
		color.Warn.Println("No Hypixel API key configured; stat features are disabled")
	}
	color.Info.Printf("hyproxy listening on %s\n", cfg.Bind)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer func() { signal.Stop(sig); close(sig) }()

	p := proxy.New(&cfg, creds, cacheDir)
	go func() {
		s, ok := <-sig
		if !ok {
			return
		}
		zap.S().Infof("Received %s signal", s)
		p.Shutdown()
	}()
	return p.Run()
}

func initLogger(debug bool) (err error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(l)
	return nil
}
