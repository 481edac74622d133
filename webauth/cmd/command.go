// Package cmd defines the webauth command line.
package cmd

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ccontavalli/webauth/lib/khttp/kcookie"
	"github.com/ccontavalli/webauth/lib/khttp/krequestlog"
	"github.com/ccontavalli/webauth/lib/kflags"
	"github.com/ccontavalli/webauth/lib/kflags/kcobra"
	"github.com/ccontavalli/webauth/lib/logger"
	"github.com/ccontavalli/webauth/lib/logger/klog"
	"github.com/ccontavalli/webauth/lib/oauth"
	"github.com/ccontavalli/webauth/lib/oauth/oform"
	"github.com/ccontavalli/webauth/lib/security"
	"github.com/ccontavalli/webauth/lib/session"
	"github.com/ccontavalli/webauth/lib/session/factory"
	"github.com/ccontavalli/webauth/lib/token"
	"github.com/ccontavalli/webauth/webauth/server"
	"github.com/kataras/muxie"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type Flags struct {
	Address         string
	MetricsAddress  string
	TokenKeyFile    string
	LogFile         string
	CookiePrefix    string
	SecureCookies   bool
	ShutdownTimeout time.Duration

	Log        *logger.ZapFlags
	Session    *factory.Flags
	Users      *oform.Flags
	Providers  *oauth.Flags
	RequestLog *krequestlog.Flags
}

func DefaultFlags() *Flags {
	return &Flags{
		Address:         ":8080",
		CookiePrefix:    "webauth",
		ShutdownTimeout: 10 * time.Second,

		Log:        logger.DefaultZapFlags(),
		Session:    factory.DefaultFlags(),
		Users:      oform.DefaultFlags(),
		Providers:  oauth.DefaultFlags(),
		RequestLog: krequestlog.DefaultFlags(),
	}
}

func (f *Flags) Register(set kflags.FlagSet, prefix string) *Flags {
	set.StringVar(&f.Address, prefix+"address", f.Address, "Address to listen on for http requests")
	set.StringVar(&f.MetricsAddress, prefix+"metrics-address", f.MetricsAddress, "Address to serve prometheus metrics on - disabled if empty")
	set.StringVar(&f.TokenKeyFile, prefix+"token-key-file", f.TokenKeyFile, "File with the key signing session cookies, at least 32 bytes - if not set, a random key is generated and sessions do not survive restarts")
	set.StringVar(&f.LogFile, prefix+"log-file", f.LogFile, "File to append json logs to, in addition to stderr")
	set.StringVar(&f.CookiePrefix, prefix+"cookie-prefix", f.CookiePrefix, "Prefix of the name of the cookies set by the server")
	set.BoolVar(&f.SecureCookies, prefix+"secure-cookies", f.SecureCookies, "Only send cookies over https - enable when serving behind TLS")
	set.DurationVar(&f.ShutdownTimeout, prefix+"shutdown-timeout", f.ShutdownTimeout, "How long to wait for requests in flight when stopping")

	f.Log.Register(set, prefix)
	f.Session.Register(set, prefix)
	f.Users.Register(set, prefix)
	f.Providers.Register(set, prefix)
	f.RequestLog.Register(set, prefix+"request-")
	return f
}

type Command struct {
	*cobra.Command
	flags *Flags
}

func New() *Command {
	c := &Command{
		Command: &cobra.Command{
			Use:           "webauth",
			Short:         "Serves a web application with password and federated login",
			Long:          `webauth - serves a login page accepting a username and password or a Google, GitHub, Microsoft or OpenID Connect account, and a profile page showing what is known about the logged in user.`,
			Example:       `  $ webauth --github-client-id=... --github-client-secret=... --users-file=users.toml`,
			SilenceUsage:  true,
			SilenceErrors: true,
			Args:          cobra.NoArgs,
		},
		flags: DefaultFlags(),
	}
	c.flags.Register(kcobra.FlagSet(c.Command), "")

	c.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		env, err := kflags.NewEnvAugmenter("WEBAUTH", ".env")
		if err != nil {
			return fmt.Errorf("could not load .env - %w", err)
		}
		return kcobra.Populate(cmd.Root().PersistentFlags(), env)
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return c.Run(cmd.Context())
	}
	return c
}

// NewLogger returns the logger configured by flags, and a function flushing it.
func NewLogger(flags *Flags) (logger.Logger, func(), error) {
	primary, err := logger.NewZap(flags.Log, os.Stderr)
	if err != nil {
		return nil, nil, kflags.NewUsageError(err)
	}
	if flags.LogFile == "" {
		return primary, func() { primary.Sync() }, nil
	}

	file, err := os.OpenFile(flags.LogFile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open log file - %w", err)
	}
	secondary, err := logger.NewZap(&logger.ZapFlags{Format: "json", Level: flags.Log.Level}, file)
	if err != nil {
		file.Close()
		return nil, nil, kflags.NewUsageError(err)
	}

	tee := klog.NewTee(primary, secondary)
	return tee, func() {
		tee.(*klog.Tee).Sync()
		file.Close()
	}, nil
}

// TokenKey returns the key signing cookies.
func TokenKey(flags *Flags, log logger.Logger) ([]byte, error) {
	if flags.TokenKeyFile == "" {
		log.Warnf("no --token-key-file configured, generating a random key - sessions will be lost on restart")
		return token.GenerateSymmetricKey(rand.Reader, 256)
	}

	key, err := os.ReadFile(flags.TokenKeyFile)
	if err != nil {
		return nil, kflags.NewUsageErrorf("could not read --token-key-file - %w", err)
	}
	if len(key) < 32 {
		return nil, kflags.NewUsageErrorf("--token-key-file %s has %d bytes, at least 32 are required", flags.TokenKeyFile, len(key))
	}
	return key, nil
}

func (c *Command) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	flags := c.flags

	log, flush, err := NewLogger(flags)
	if err != nil {
		return err
	}
	defer flush()

	key, err := TokenKey(flags, log)
	if err != nil {
		return err
	}

	store, err := factory.New(factory.FromFlags(flags.Session))
	if err != nil {
		return err
	}
	defer store.Close()

	handler, metrics, err := NewHandler(ctx, flags, store, key, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go session.PurgeEvery(ctx, store, flags.Session.PurgeInterval, log)

	servers := []*http.Server{{Addr: flags.Address, Handler: handler, ReadHeaderTimeout: 10 * time.Second}}
	if flags.MetricsAddress != "" {
		mux := muxie.NewMux()
		mux.Handle("/metrics", metrics.Handler())
		servers = append(servers, &http.Server{Addr: flags.MetricsAddress, Handler: mux, ReadHeaderTimeout: 10 * time.Second})
	}
	return serve(ctx, log, flags.ShutdownTimeout, servers...)
}

// NewHandler assembles the application handler.
func NewHandler(ctx context.Context, flags *Flags, store session.Store, key []byte, log logger.Logger) (http.Handler, *server.Metrics, error) {
	policy := security.DefaultPolicy()

	extractor, err := oauth.NewExtractor(store, key,
		oauth.WithCookiePrefix(flags.CookiePrefix),
		oauth.WithSessionLifetime(flags.Session.Lifetime),
		oauth.WithSessionCookieOptions(kcookie.WithSecure(flags.SecureCookies)),
		oauth.WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}

	directory, err := oform.NewDirectory(flags.Users, log)
	if err != nil {
		return nil, nil, err
	}

	providers, err := flags.Providers.Providers(ctx)
	if err != nil {
		return nil, nil, err
	}
	federation, err := oauth.NewFederation(extractor, providers,
		oauth.WithCallbackPrefix(policy.OAuth2Login.CallbackPrefix),
		oauth.WithAuthLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}
	for _, provider := range federation.Providers() {
		log.Infof("login with %s enabled, callback %s%s", provider.DisplayName, policy.OAuth2Login.CallbackPrefix, provider.ID)
	}

	metrics := server.NewMetrics()
	srv, err := server.New(extractor, directory,
		server.WithPolicy(policy),
		server.WithFederation(federation),
		server.WithMetrics(metrics),
		server.WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}

	return krequestlog.NewHandler(srv.Handler(), krequestlog.WithLogger(log), krequestlog.FromFlags(flags.RequestLog)), metrics, nil
}

// serve runs the servers until ctx is canceled or one of them fails.
func serve(ctx context.Context, log logger.Logger, timeout time.Duration, servers ...*http.Server) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		group.Go(func() error {
			log.Infof("listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server on %s - %w", srv.Addr, err)
			}
			return nil
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		log.Infof("shutting down")

		shutdown, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdown); err != nil {
				log.Warnf("shutdown of %s - %s", srv.Addr, err)
			}
		}
		return nil
	})
	return group.Wait()
}
