package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"secret_santa/internal/api"
	"secret_santa/internal/repository"
	"secret_santa/internal/service"
	"secret_santa/internal/storage"
	"secret_santa/internal/utils"
	"secret_santa/pkg/config"
)

// app 保存各個子指令共用的狀態
type app struct {
	v          *viper.Viper
	configFile string
	envFile    string
	cfg        *config.Config
	log        *logger.Logger
	logFile    *os.File
}

func newRootCmd() *cobra.Command {
	return newRootCmdFor(&app{v: config.New()})
}

func newRootCmdFor(a *app) *cobra.Command {
	// RunE 失敗時 cobra 不會呼叫 PersistentPostRun，OnFinalize 則一定會執行
	cobra.OnFinalize(a.teardown)

	cmd := &cobra.Command{
		Use:           "secret-santa",
		Short:         "A Secret Santa draw server backed by PostgreSQL.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	pfs := cmd.PersistentFlags()
	pfs.StringVarP(&a.configFile, "config", "c", "", "path to a config file (default: ./pkg/config/config.yaml or ./config.yaml)")
	pfs.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pfs.String("db-host", "", "database host (env: SECRETSANTA_DB_HOST)")
	pfs.Int("db-port", 5432, "database port (env: SECRETSANTA_DB_PORT)")
	pfs.BoolP("verbose", "v", true, "display info level logs (env: SECRETSANTA_LOG_VERBOSE)")
	bindFlags(a.v, pfs, map[string]string{
		"db-host": "db.host",
		"db-port": "db.port",
		"verbose": "log.verbose",
	})

	cmd.AddCommand(newServeCmd(a), newMigrateCmd(a), newAddParticipantCmd(a))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("secret-santa v{{.Version}}\n")

	return cmd
}

// bindFlags 把 flag 綁定到 viper 的設定鍵，只有明確指定的 flag 會覆蓋配置文件與環境變數
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	for name, key := range keys {
		if f := fs.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default command)",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	fs := cmd.Flags()
	fs.StringP("address", "a", ":8080", "address to listen on (env: SECRETSANTA_SERVER_ADDRESS)")
	fs.String("mode", "release", "gin mode: debug, release or test (env: SECRETSANTA_SERVER_MODE)")
	fs.String("public-url", "", "public URL encoded in the share QR code (env: SECRETSANTA_SERVER_PUBLIC_URL)")
	fs.Bool("auto-migrate", true, "apply gorm auto migration on startup (env: SECRETSANTA_DB_AUTO_MIGRATE)")
	bindFlags(a.v, fs, map[string]string{
		"address":      "server.address",
		"mode":         "server.mode",
		"public-url":   "server.public_url",
		"auto-migrate": "db.auto_migrate",
	})
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.Migrate(a.cfg.DB.URL()); err != nil {
				return err
			}
			logger.Info("migrations applied")
			return nil
		},
	}
}

func newAddParticipantCmd(a *app) *cobra.Command {
	var name, secret string

	cmd := &cobra.Command{
		Use:   "add-participant",
		Short: "Register a participant and the secret they log in with",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := storage.NewPostgresDB(a.cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close()

			services, err := service.NewServices(repository.NewRepositories(db), a.cfg)
			if err != nil {
				return err
			}
			p, err := services.Admin.AddParticipant(cmd.Context(), name, secret)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&name, "name", "", "display name")
	fs.StringVar(&secret, "secret", "", "login secret")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}

func (a *app) setup() error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return fmt.Errorf("load %s: %w", a.envFile, err)
	}

	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	var logOut io.Writer = io.Discard
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o660)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.logFile = f
		logOut = f
	}
	a.log = logger.Init("secret-santa", cfg.Log.Verbose, false, logOut)

	if cfg.Auth.TokenSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		cfg.Auth.TokenSecret = secret
		logger.Warning("auth.token_secret is empty, using a random secret; tokens will not survive a restart")
	}
	return nil
}

func (a *app) teardown() {
	if a.log != nil {
		a.log.Close()
		a.log = nil
	}
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg

	// 初始化資料庫連接
	db, err := storage.NewPostgresDB(cfg.DB)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	if cfg.DB.AutoMigrate {
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("auto migrate database: %w", err)
		}
	}

	repos := repository.NewRepositories(db)
	services, err := service.NewServices(repos, cfg)
	if err != nil {
		return err
	}
	tokens := utils.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	api.SetupRoutes(r, services, tokens, cfg)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.Server.Address)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// requestLogger 以 google/logger 記錄每個請求
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infof("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
