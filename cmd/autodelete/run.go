package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/voidwell/autodelete/internal/config"
	"github.com/voidwell/autodelete/internal/db"
	"github.com/voidwell/autodelete/internal/executor"
	"github.com/voidwell/autodelete/internal/gateway"
	"github.com/voidwell/autodelete/internal/gateway/discord"
	"github.com/voidwell/autodelete/internal/gateway/slack"
	"github.com/voidwell/autodelete/internal/ingest"
	"github.com/voidwell/autodelete/internal/logging"
	"github.com/voidwell/autodelete/internal/metrics"
	"github.com/voidwell/autodelete/internal/scheduler"
	"github.com/voidwell/autodelete/internal/status"
	"github.com/voidwell/autodelete/internal/store"
	"golang.org/x/term"
)

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the autodelete service",
		Long:  "Connects to the configured platform, recovers missed deletions, and runs the scheduling loop until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "autodelete.yaml", "path to config file")
	return cmd
}

// wakeRelay forwards wake signals to the scheduler once it exists. Ingest is
// wired before the scheduler can be constructed, so the target is set late.
type wakeRelay struct {
	mu     sync.Mutex
	target interface{ Wake() }
}

func (r *wakeRelay) Wake() {
	r.mu.Lock()
	t := r.target
	r.mu.Unlock()
	if t != nil {
		t.Wake()
	}
}

func (r *wakeRelay) set(t interface{ Wake() }) {
	r.mu.Lock()
	r.target = t
	r.mu.Unlock()
}

func runRun(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logging.Setup(cfg.Logging); err != nil {
		return err
	}
	metrics.Register(prometheus.DefaultRegisterer)

	gormDB, err := db.Connect(db.Options{
		Driver:   cfg.Database.Driver,
		Path:     cfg.Database.Path,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
	})
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	channels := store.NewChannels(gormDB)
	messages := store.NewMessages(gormDB)

	relay := &wakeRelay{}
	ingestor, err := ingest.New(ingest.Opts{
		Channels: channels,
		Messages: messages,
		Waker:    relay,
	})
	if err != nil {
		return err
	}

	adapter, err := newAdapter(cmd, cfg, ingestor)
	if err != nil {
		return err
	}

	exec, err := executor.New(executor.Opts{
		Messages:    messages,
		Deleter:     adapter,
		MaxAttempts: cfg.Executor.MaxAttempts,
		BaseBackoff: time.Duration(cfg.Executor.BaseBackoffSec) * time.Second,
		MaxBackoff:  time.Duration(cfg.Executor.MaxBackoffSec) * time.Second,
		Workers:     cfg.Executor.Workers,
	})
	if err != nil {
		return err
	}

	sched, err := scheduler.New(scheduler.Opts{
		Messages:        messages,
		Executor:        exec,
		BatchSize:       cfg.Scheduler.BatchSize,
		RefreshInterval: time.Duration(cfg.Scheduler.RefreshIntervalSec) * time.Second,
		RetryInterval:   time.Duration(cfg.Scheduler.RetryIntervalSec) * time.Second,
	})
	if err != nil {
		return err
	}
	relay.set(sched)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect before recovery: recovery executes overdue deletions.
	if err := adapter.Connect(ctx); err != nil {
		return err
	}
	defer adapter.Close()

	stats, err := scheduler.Recover(ctx, scheduler.RecoverOpts{
		Channels:  channels,
		Messages:  messages,
		Executor:  exec,
		BatchSize: cfg.Scheduler.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("recovery: %w", err)
	}
	log.Printf("recovery: purged %d stale records, applied %d overdue deletions", stats.Purged, stats.Applied)

	if cfg.Maintenance.SweepCron != "" {
		sweeper, err := scheduler.NewSweeper(scheduler.SweeperOpts{
			Channels: channels,
			Messages: messages,
			Cron:     cfg.Maintenance.SweepCron,
			Waker:    sched,
		})
		if err != nil {
			return err
		}
		go sweeper.Run(ctx)
	}

	if cfg.Status.Enabled {
		go func() {
			err := status.Start(ctx, status.StartOpts{
				DB:   gormDB,
				Port: cfg.Status.Port,
				Out:  cmd.OutOrStdout(),
			})
			if err != nil {
				log.Printf("status server: %v", err)
			}
		}()
	}

	log.Printf("autodelete running (platform: %s, driver: %s)", cfg.Platform, cfg.Database.Driver)
	return sched.Run(ctx)
}

// newAdapter builds the platform adapter named in the config. Missing tokens
// are prompted for when attached to a terminal.
func newAdapter(cmd *cobra.Command, cfg *config.Config, svc gateway.Service) (gateway.Adapter, error) {
	switch cfg.Platform {
	case "discord":
		token := cfg.Discord.Token
		if token == "" {
			var err error
			token, err = promptToken(cmd, "Discord bot token")
			if err != nil {
				return nil, err
			}
		}
		return discord.New(discord.AdapterOpts{BotToken: token, Service: svc})
	case "slack":
		botToken := cfg.Slack.BotToken
		if botToken == "" {
			var err error
			botToken, err = promptToken(cmd, "Slack bot token (xoxb-...)")
			if err != nil {
				return nil, err
			}
		}
		appToken := cfg.Slack.AppToken
		if appToken == "" {
			var err error
			appToken, err = promptToken(cmd, "Slack app token (xapp-...)")
			if err != nil {
				return nil, err
			}
		}
		return slack.New(slack.AdapterOpts{AppToken: appToken, BotToken: botToken, Service: svc})
	default:
		return nil, fmt.Errorf("platform %q is not supported", cfg.Platform)
	}
}

// promptToken reads a token from the terminal without echoing it.
func promptToken(cmd *cobra.Command, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s is not configured and stdin is not a terminal", label)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: ", label)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("%s is required", label)
	}
	return token, nil
}
