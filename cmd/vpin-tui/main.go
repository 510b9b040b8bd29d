// vpin-tui browses and edits the version pins of a studio's software
// configuration database. It can run locally or as an SSH server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/johan-st/vpin-tui/internal/access"
	"github.com/johan-st/vpin-tui/internal/bridge"
	"github.com/johan-st/vpin-tui/internal/cli"
	"github.com/johan-st/vpin-tui/internal/config"
	"github.com/johan-st/vpin-tui/internal/server"
	"github.com/johan-st/vpin-tui/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	sshMode := flag.Bool("ssh", false, "run SSH server mode (requires -config)")
	configPath := flag.String("config", "", "path to config file (required for SSH mode)")
	logPath := flag.String("log", "", "write logs to this file in TUI mode")
	userName := flag.String("user", "", "author recorded on local saves (default $USER)")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vpin-tui %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built: %s\n", buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *sshMode {
		if *configPath == "" {
			log.Fatal("SSH mode requires -config flag")
		}
		if err := runSSHServer(ctx, *configPath); err != nil {
			log.Fatalf("SSH server error: %v", err)
		}
		return
	}

	cfg, err := loadLocalConfig(*configPath, flag.Args())
	if err != nil {
		printUsage()
		log.Fatalf("Error: %v", err)
	}
	if *userName != "" {
		cfg.Author = *userName
	}

	cmdArgs := flag.Args()
	if *configPath == "" && len(cmdArgs) > 0 {
		cmdArgs = cmdArgs[1:]
	}

	if len(cmdArgs) > 0 {
		if err := runLocalCLI(ctx, cfg, cmdArgs); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := runLocalTUI(ctx, cfg, *logPath); err != nil {
		log.Fatalf("TUI error: %v", err)
	}
}

func printUsage() {
	fmt.Println("vpin-tui - version pin browser")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vpin-tui <database>                     Interactive TUI mode")
	fmt.Println("  vpin-tui <database> <command> [args]    CLI mode (run and exit)")
	fmt.Println("  vpin-tui -config <file> [command]       Local mode using a config file")
	fmt.Println("  vpin-tui -ssh -config <file>            SSH server mode")
	fmt.Println()
	fmt.Println("Local mode examples:")
	fmt.Println("  vpin-tui pins.db                        Browse pins in the TUI")
	fmt.Println("  vpin-tui pins.db pins --package=maya    List the pins of maya")
	fmt.Println("  vpin-tui pins.db set 12 2022.1 --comment=\"maya 2022\"")
	fmt.Println()
	fmt.Println("SSH server example:")
	fmt.Println("  vpin-tui -ssh -config config.yaml")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

// loadLocalConfig reads the config file when one is given. Otherwise the
// first argument names the database.
func loadLocalConfig(configPath string, args []string) (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("no database given")
	}
	cfg := config.DefaultConfig()
	cfg.Database.Path = args[0]
	return cfg, nil
}

// localUser is the caller in local mode. Local callers are always admin.
func localUser(cfg *config.Config) *access.UserInfo {
	return &access.UserInfo{
		Name:    cfg.LocalAuthor(),
		IsAdmin: true,
	}
}

func connector(cfg *config.Config) bridge.Connector {
	return bridge.SQLiteConnector(cfg.DatabasePath(), cfg.OpenOptions())
}

// runLocalCLI runs a CLI command in local mode
func runLocalCLI(ctx context.Context, cfg *config.Config, cmdArgs []string) error {
	resolver := cfg.BuildResolver()
	handler := cli.NewHandler(connector(cfg), func() *access.Resolver { return resolver }, version)

	lctx := cli.NewLocalContext(localUser(cfg), cmdArgs, os.Stdout, os.Stderr)
	return handler.HandleLocal(ctx, lctx)
}

// runLocalTUI runs the interactive TUI in local mode
func runLocalTUI(ctx context.Context, cfg *config.Config, logPath string) error {
	if logPath != "" {
		f, err := tea.LogToFile(logPath, "vpin-tui")
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	user := localUser(cfg)
	resolver := cfg.BuildResolver()

	return tui.Run(ctx, tui.RunOptions{
		Connect:    connector(cfg),
		User:       user,
		Author:     user.Author(),
		Permission: resolver.Highest(user),
		Writer:     resolver.Writer(user),
		Show:       cfg.Show,
		QueueSize:  cfg.QueueSize,
	})
}

// runSSHServer runs the SSH server mode
func runSSHServer(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sshServer := server.NewServer(cfg)
	connect := connector(cfg)

	// Start config watcher for hot-reloading
	configWatcher, err := config.NewWatcher(cfg)
	if err != nil {
		log.Printf("Warning: Failed to create config watcher: %v", err)
	} else {
		configWatcher.OnReload(func(newCfg *config.Config) {
			log.Println("Config reloaded, updating resolver...")
			sshServer.UpdateResolver(newCfg.BuildResolver())
		})
		if err := configWatcher.Start(); err != nil {
			log.Printf("Warning: Failed to start config watcher: %v", err)
		} else {
			defer configWatcher.Stop()
		}
	}

	cliHandler := cli.NewHandler(connect, sshServer.Resolver, version)
	sshServer.SetCLIHandler(cliHandler.Handle)
	sshServer.SetTUIHandler(tui.Handler(tui.SessionOptions{
		Connect:   connect,
		Resolver:  sshServer.Resolver,
		QueueSize: cfg.QueueSize,
		Show:      cfg.Show,
	}))

	log.Printf("Starting SSH server on %s", cfg.ListenAddr())
	return sshServer.Run(ctx)
}
