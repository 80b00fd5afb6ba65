package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"github.com/token_locker/config"
	"github.com/token_locker/controller"
	"github.com/token_locker/handler"
	"github.com/token_locker/model"
	"github.com/token_locker/router"
	"github.com/token_locker/service"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	configPath := pflag.String("config", os.Getenv("LOCKER_CONFIG"), "path to the YAML config file")
	newIdentity := pflag.Bool("new-identity", false, "print a fresh mnemonic and its first address, then exit")
	pflag.Parse()

	if *newIdentity {
		if err := printIdentity(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := config.LoadDotenv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := setupLogging(cfg.Log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		log.Crit("Failed to open database", "driver", cfg.Database.Driver, "err", err)
	}

	clock := service.RealClock()
	ledger := service.NewLedgerTransfer()
	fees := service.NewFeeService(db, ledger, clock)
	locks := service.NewLockService(db, ledger, fees, clock)
	accounts := service.NewAccountService(db, ledger)
	signer := service.NewSignerService(cfg.Auth.SignatureMaxAge, clock)

	if cfg.Environment != config.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := router.SetupRouter(
		handler.NewLockHandler(locks, accounts),
		&controller.AdminController{FeeService: fees, LockService: locks},
		signer,
		cfg.Environment == config.Development,
	)

	log.Info("Token locker running", "listen", cfg.HTTP.Listen, "environment", cfg.Environment, "config", service.DeriveConfigAddress())
	if err := r.Run(cfg.HTTP.Listen); err != nil {
		log.Crit("HTTP server stopped", "err", err)
	}
}

// ----------------- 初始化数据库 -----------------
func initDB(c config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch c.Driver {
	case "sqlite":
		dialector = sqlite.Open(c.DSN)
	default:
		dialector = postgres.Open(c.DSN)
	}
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if c.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	}

	// 自动迁移
	if err := model.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

var logLevels = map[string]slog.Level{
	"trace": log.LevelTrace,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
	"crit":  log.LevelCrit,
}

func setupLogging(c config.LogConfig) error {
	lvl, ok := logLevels[c.Level]
	if !ok {
		return fmt.Errorf("unknown log level %q", c.Level)
	}
	var h slog.Handler
	if c.Format == "json" {
		h = log.JSONHandlerWithLevel(os.Stderr, lvl)
	} else {
		h = log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)
	}
	log.SetDefault(log.NewLogger(h))
	return nil
}

func printIdentity(w io.Writer) error {
	mnemonic, err := service.NewMnemonic()
	if err != nil {
		return err
	}
	addr, err := service.DeriveIdentity(mnemonic, "", 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "mnemonic: %s\naddress:  %s\n", mnemonic, addr.Hex())
	return nil
}
