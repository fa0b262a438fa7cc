package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"storefront/internal/config"
	"storefront/internal/http/handlers"
	"storefront/internal/http/limitstore"
	applog "storefront/internal/log"
	"storefront/internal/messaging"
	"storefront/internal/messaging/kafka"
	"storefront/internal/repos"
	"storefront/internal/repos/mongostore"
	"storefront/internal/services"
)

func main() {
	app := &cli.App{
		Name:   "storefront",
		Usage:  "e-commerce API: catalog, orders and support desk",
		Action: serve,
		Commands: []*cli.Command{
			{Name: "serve", Usage: "run the HTTP API (default)", Action: serve},
			{Name: "migrate", Usage: "apply schema migrations / indexes and exit", Action: migrate},
			{Name: "seed", Usage: "load the demo catalog into an empty store", Action: seed},
			{
				Name:   "create-admin",
				Usage:  "create or promote the admin account",
				Action: createAdmin,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"STOREFRONT_ADMIN_PASSWORD"}},
				},
			},
			{
				Name:  "events",
				Usage: "inspect published domain events",
				Subcommands: []*cli.Command{{
					Name:   "tail",
					Usage:  "print events of one aggregate topic as they arrive",
					Action: tailEvents,
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "aggregate", Value: "order", Usage: "order, ticket or account"},
						&cli.StringFlag{Name: "group", Value: "storefront-tail"},
					},
				}},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		applog.L().WithError(err).Fatal("storefront.exit")
	}
}

// setup reads config and points the logger at stdout plus the optional log file.
func setup() (config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	var (
		out     io.Writer = os.Stdout
		cleanup           = func() {}
	)
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			applog.L().WithError(err).WithField("file", cfg.LogFile).Warn("log.file.open")
		} else {
			out = io.MultiWriter(os.Stdout, f)
			cleanup = func() { _ = f.Close() }
		}
	}
	if err := applog.Setup(cfg.LogLevel, out); err != nil {
		cleanup()
		return cfg, nil, errors.Wrap(err, "log level")
	}
	return cfg, cleanup, nil
}

// openStores connects the configured backend. The returned func closes it.
func openStores(ctx context.Context, cfg config.Config) (services.Stores, func(), error) {
	switch cfg.Store {
	case "mongo":
		d, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return services.Stores{}, nil, err
		}
		return mongostore.Stores(d), func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = d.Close(ctx)
		}, nil
	default:
		db, err := repos.OpenDB(cfg.DBDSN)
		if err != nil {
			return services.Stores{}, nil, err
		}
		return repos.Stores(db), func() { _ = db.Close() }, nil
	}
}

func publisher(cfg config.Config) messaging.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return messaging.LogPublisher{}
	}
	return kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
}

func serve(c *cli.Context) error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	events := publisher(cfg)
	defer events.Close()

	deps := handlers.NewDeps(st, cfg, events)
	if cfg.SeedDemo {
		n, err := services.SeedCatalog(ctx, st.Products)
		if err != nil {
			return errors.Wrap(err, "seed catalog")
		}
		applog.L().WithField("products", n).Info("seed.done")
	}
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if _, err := deps.Accounts.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return errors.Wrap(err, "bootstrap admin")
		}
	}

	opts := handlers.Options{BodyLimit: cfg.BodyLimit, Limits: handlers.DefaultLimits()}
	if cfg.RedisAddr != "" {
		store, err := limitstore.Dial(ctx, cfg.RedisAddr, "storefront:limit:")
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Storage = store
	}
	app := handlers.NewApp(deps, opts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		applog.L().WithField("port", cfg.Port).WithField("store", cfg.Store).Info("server.listen")
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		applog.L().Info("server.shutdown")
		return app.ShutdownWithTimeout(10 * time.Second)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func migrate(c *cli.Context) error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()
	// Opening a store applies migrations (sqlite) or indexes (mongo).
	_, closeStore, err := openStores(c.Context, cfg)
	if err != nil {
		return err
	}
	closeStore()
	applog.L().WithField("store", cfg.Store).Info("migrate.done")
	return nil
}

func seed(c *cli.Context) error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()
	st, closeStore, err := openStores(c.Context, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	n, err := services.SeedCatalog(c.Context, st.Products)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "seeded %d products\n", n)
	return nil
}

func createAdmin(c *cli.Context) error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()
	st, closeStore, err := openStores(c.Context, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	events := publisher(cfg)
	defer events.Close()

	deps := handlers.NewDeps(st, cfg, events)
	a, err := deps.Accounts.EnsureAdmin(c.Context, c.String("email"), c.String("password"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "admin %s (%s) ready\n", a.Email, a.ID)
	return nil
}

func tailEvents(c *cli.Context) error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()
	if len(cfg.KafkaBrokers) == 0 {
		return errors.New("STOREFRONT_KAFKA_BROKERS is not set")
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	topic := kafka.Topic(cfg.KafkaTopicPrefix, c.String("aggregate"))
	return kafka.Tail(ctx, cfg.KafkaBrokers, topic, c.String("group"), func(_ context.Context, msg kafkaGo.Message) error {
		_, err := fmt.Fprintf(c.App.Writer, "%s\n", msg.Value)
		return err
	})
}
