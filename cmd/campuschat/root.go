package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"campuschat/internal/app/authsignal"
	"campuschat/internal/app/events"
	"campuschat/internal/app/identity"
	"campuschat/internal/infra/api"
	"campuschat/internal/infra/broker/kafka"
	"campuschat/internal/infra/config"
	mongodb "campuschat/internal/infra/db/mongo"
	"campuschat/internal/infra/obs"
	"campuschat/internal/infra/storage/file"
	"campuschat/internal/infra/storage/memory"
)

// errSessionLost is reported when the backend rejected the credential.
var errSessionLost = errors.New("session expired: sign in again and set CHAT_ACCESS_TOKEN")

type rootOptions struct {
	apiURL string
	token  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "campuschat",
		Short:         "Campus marketplace messaging client",
		Long:          `Read your marketplace inbox, chat with buyers and sellers, and contact the seller of a listing.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "backend origin (overrides CHAT_API_URL)")
	cmd.PersistentFlags().StringVar(&opts.token, "token", "", "access token (overrides CHAT_ACCESS_TOKEN)")

	cmd.AddCommand(
		newInboxCommand(opts),
		newChatCommand(opts),
		newContactCommand(opts),
		newWhoamiCommand(opts),
	)
	return cmd
}

// application holds the collaborators every command shares.
type application struct {
	cfg       config.Config
	logger    *slog.Logger
	client    *api.Client
	identity  *identity.Resolver
	signal    *authsignal.Signal
	publisher events.Publisher
	closers   []func(context.Context) error
}

func (o *rootOptions) build(ctx context.Context) (*application, error) {
	cfg, err := config.LoadWithAPIURL(o.apiURL)
	if err != nil {
		return nil, err
	}
	if o.token != "" {
		cfg.AccessToken = o.token
	}
	logger := obs.NewLogger(cfg.Env)
	app := &application{cfg: cfg, logger: logger}

	var credential api.Credential = api.CookieCredential{Name: cfg.AuthCookie, Token: cfg.AccessToken}
	if cfg.AuthBearer {
		credential = api.BearerCredential{Token: cfg.AccessToken}
	}
	app.client, err = api.NewClient(api.Config{
		BaseURL:    cfg.APIURL,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Credential: credential,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	store, err := app.identityStore(ctx)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	app.identity = identity.NewResolver(store, logger)

	publishers := events.Multi{obs.EventLogger{Logger: logger}}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			// Events are best-effort; the client still works without a broker.
			logger.Warn("kafka unavailable, events go to the log only", "error", err)
		} else {
			app.closers = append(app.closers, func(context.Context) error { return producer.Close() })
			publishers = append(publishers, kafka.EventPublisher{Producer: producer, TopicPrefix: cfg.KafkaTopicPrefix})
		}
	}
	app.publisher = publishers
	app.signal = authsignal.New(app.publisher, logger)
	return app, nil
}

func (a *application) identityStore(ctx context.Context) (identity.Store, error) {
	switch a.cfg.IdentityStore {
	case config.IdentityStoreMemory:
		return memory.NewIdentityStore(), nil
	case config.IdentityStoreMongo:
		client, err := mongodb.New(ctx, a.cfg.MongoURI, a.cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return mongodb.NewIdentityStore(client.DB), nil
	default:
		path := a.cfg.IdentityPath
		if path == "" {
			var err error
			if path, err = file.DefaultPath(); err != nil {
				return nil, err
			}
		}
		return file.NewIdentityStore(path)
	}
}

// Close releases connections in reverse order of acquisition.
func (a *application) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
	if a.client != nil {
		a.client.CloseIdleConnections()
	}
}

// describe turns a lost session into an actionable message; every other
// error is surfaced verbatim.
func describe(err error) error {
	if api.IsUnauthorized(err) {
		return errSessionLost
	}
	return err
}
