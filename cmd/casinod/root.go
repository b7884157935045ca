package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"holdem-chips/holdem"
	"holdem-chips/internal/gateway"
	"holdem-chips/internal/ledger"
	"holdem-chips/internal/lobby"
	"holdem-chips/internal/logger"
	"holdem-chips/internal/table"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "CASINO"

// Config is the daemon configuration: flags, CASINO_* env and an optional file.
type Config struct {
	Addr          string
	LogLevel      string
	LogEncoding   string
	LedgerMode    string
	LedgerDSN     string
	SQLitePath    string
	StartingChips int64

	SmallBlind int64
	BigBlind   int64
	MinBuyIn   int64
	MaxBuyIn   int64
	SeatCap    int
	RakeBps    int64
	RakeCap    int64

	ActionTimeout time.Duration
	HostIdle      time.Duration
	EmptyClose    time.Duration
	IdleLobby     time.Duration
	NextHand      time.Duration
}

// NewRootCmd creates the casinod command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(viper.New())
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "casinod",
		Short:         "Chip casino Texas Hold'em table server",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is optional
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			v.SetEnvPrefix(envPrefix)
			v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
			v.AutomaticEnv()
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if file, _ := cmd.Flags().GetString("config"); file != "" {
				v.SetConfigFile(file)
				if err := v.ReadInConfig(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	root.PersistentFlags().String("config", "", "optional config file (yaml, toml or json)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the table server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), loadConfig(v))
		},
	}
	f := serve.Flags()
	f.String("addr", ":8080", "listen address")
	f.String("log-level", "info", "debug, info, warn or error")
	f.String("log-encoding", "json", "json or console")
	f.String("ledger-mode", "", "memory, sqlite or postgres (default postgres)")
	f.String("ledger-dsn", "", "postgres DSN")
	f.String("sqlite-path", "", "sqlite database path")
	f.Int64("starting-chips", 1000, "wallet seed for first-time players")
	f.Int64("small-blind", 1, "default small blind")
	f.Int64("big-blind", 2, "default big blind")
	f.Int64("min-buy-in", 40, "default minimum buy-in")
	f.Int64("max-buy-in", 200, "default maximum buy-in")
	f.Int("seat-cap", holdem.DefaultSeatCap, "default seats per table")
	f.Int64("rake-bps", 0, "default rake in basis points")
	f.Int64("rake-cap", 0, "default rake cap per hand (0: max buy-in)")
	f.Duration("action-timeout", 30*time.Second, "time to act before auto-fold")
	f.Duration("host-idle", 10*time.Minute, "host inactivity before hand-off")
	f.Duration("empty-close", 2*time.Minute, "close a table this long after it empties")
	f.Duration("idle-lobby", 10*time.Minute, "close a table idling in the lobby")
	f.Duration("next-hand", 10*time.Second, "pause between hands")
	root.AddCommand(serve)
	return root
}

func loadConfig(v *viper.Viper) Config {
	return Config{
		Addr:          v.GetString("addr"),
		LogLevel:      v.GetString("log-level"),
		LogEncoding:   v.GetString("log-encoding"),
		LedgerMode:    v.GetString("ledger-mode"),
		LedgerDSN:     v.GetString("ledger-dsn"),
		SQLitePath:    v.GetString("sqlite-path"),
		StartingChips: v.GetInt64("starting-chips"),
		SmallBlind:    v.GetInt64("small-blind"),
		BigBlind:      v.GetInt64("big-blind"),
		MinBuyIn:      v.GetInt64("min-buy-in"),
		MaxBuyIn:      v.GetInt64("max-buy-in"),
		SeatCap:       v.GetInt("seat-cap"),
		RakeBps:       v.GetInt64("rake-bps"),
		RakeCap:       v.GetInt64("rake-cap"),
		ActionTimeout: v.GetDuration("action-timeout"),
		HostIdle:      v.GetDuration("host-idle"),
		EmptyClose:    v.GetDuration("empty-close"),
		IdleLobby:     v.GetDuration("idle-lobby"),
		NextHand:      v.GetDuration("next-hand"),
	}
}

func (c Config) tableDefaults() table.Config {
	timers := table.DefaultTimers()
	timers.Action = c.ActionTimeout
	timers.HostIdle = c.HostIdle
	timers.EmptyClose = c.EmptyClose
	timers.IdleLobby = c.IdleLobby
	timers.NextHand = c.NextHand
	return table.Config{
		Game: holdem.Config{
			SeatCap:    c.SeatCap,
			SmallBlind: c.SmallBlind,
			BigBlind:   c.BigBlind,
			MinBuyIn:   c.MinBuyIn,
			MaxBuyIn:   c.MaxBuyIn,
			RakeBps:    c.RakeBps,
			RakeCap:    c.RakeCap,
		},
		Timers: timers,
	}
}

func runServe(ctx context.Context, cfg Config) error {
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		return err
	}
	defer log.Sync()

	defaults := cfg.tableDefaults()
	if err := defaults.Game.WithDefaults().Validate(); err != nil {
		return err
	}

	store, mode, err := ledger.NewStore(ledger.Config{
		Mode:       cfg.LedgerMode,
		DSN:        cfg.LedgerDSN,
		SQLitePath: cfg.SQLitePath,
	}, log)
	if err != nil {
		return err
	}
	defer store.Close()

	gw := gateway.New(gateway.Options{Store: store, StartingChips: cfg.StartingChips, Logger: log})
	lby := lobby.New(lobby.Options{Escrow: store, Notify: gw.Notify, Logger: log, Defaults: defaults})
	gw.Bind(lby)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	ledger.NewHTTPHandler(store).RegisterRoutes(mux)

	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("[Server] Ledger mode: %s", mode)
		log.Infof("[Server] Starting WebSocket server on %s", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Infof("[Server] Shutting down")
	}

	// tables return every escrow before the store closes
	lby.Shutdown()
	gw.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
