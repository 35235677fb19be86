package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-study-backend/internal/sysutil"
	"github.com/tbourn/go-study-backend/pkg/client"
	"github.com/tbourn/go-study-backend/pkg/feedbackcache"
)

const defaultAPI = "http://localhost:8080/api/v1"

type globalOpts struct {
	api       string
	token     string
	redisAddr string
	timeout   time.Duration
	verbose   bool
}

// app is what every subcommand runs against.
type app struct {
	api    *client.Client
	log    zerolog.Logger
	out    io.Writer
	closer func()
}

func newRootCmd() *cobra.Command {
	var g globalOpts
	root := &cobra.Command{
		Use:           "studyctl",
		Short:         "Ask questions and manage conversations on the study assistant API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&g.api, "api", "a", "", "API base URL (env STUDY_API_URL, default "+defaultAPI+")")
	pf.StringVarP(&g.token, "token", "t", "", "bearer token (env STUDY_TOKEN)")
	pf.StringVar(&g.redisAddr, "redis", "", "Redis address for the shared feedback cache (env STUDY_REDIS_ADDR)")
	pf.DurationVar(&g.timeout, "timeout", client.DefaultTimeout, "request timeout")
	pf.BoolVarP(&g.verbose, "verbose", "v", sysutil.IsTruthy(os.Getenv("STUDY_VERBOSE")), "debug logging to stderr")

	connect := func(cmd *cobra.Command) (*app, error) { return g.connect(cmd) }
	root.AddCommand(
		newAskCmd(connect),
		newHistoryCmd(connect),
		newShowCmd(connect),
		newArchiveCmd(connect, false),
		newArchiveCmd(connect, true),
		newRateCmd(connect),
		newFeedbackCmd(connect),
		newProfileCmd(connect),
		newTokenCmd(),
	)
	return root
}

func (g *globalOpts) connect(cmd *cobra.Command) (*app, error) {
	lg := sysutil.NewLogger(true, cmd.ErrOrStderr()).Level(zerolog.WarnLevel)
	if g.verbose {
		lg = lg.Level(zerolog.DebugLevel)
	}

	base := sysutil.FirstNonEmpty(g.api, os.Getenv("STUDY_API_URL"), defaultAPI)
	token := sysutil.FirstNonEmpty(g.token, os.Getenv("STUDY_TOKEN"))
	opts := []client.Option{client.WithTimeout(g.timeout)}
	if token != "" {
		opts = append(opts, client.WithToken(token))
	}

	closer := func() {}
	if addr := sysutil.FirstNonEmpty(g.redisAddr, os.Getenv("STUDY_REDIS_ADDR")); addr != "" {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		rdb, err := feedbackcache.Dial(ctx, addr, os.Getenv("STUDY_REDIS_PASSWORD"), 0)
		if err != nil {
			return nil, err
		}
		opts = append(opts, client.WithFeedbackCache(feedbackcache.NewRedis(rdb, subjectOf(token), 0)))
		closer = func() { _ = rdb.Close() }
		lg.Debug().Str("redis", addr).Msg("using shared feedback cache")
	}

	lg.Debug().Str("api", base).Bool("auth", token != "").Msg("client ready")
	return &app{api: client.New(base, opts...), log: lg, out: cmd.OutOrStdout(), closer: closer}, nil
}

// subjectOf returns the unverified subject of a token; the server verifies
// it. It namespaces the shared cache per user.
func subjectOf(token string) string {
	if token == "" {
		return "anonymous"
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.Subject == "" {
		return "anonymous"
	}
	return claims.Subject
}

type connectFunc func(cmd *cobra.Command) (*app, error)

// withApp wraps a command body with connection setup and teardown.
func withApp(connect connectFunc, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := connect(cmd)
		if err != nil {
			return err
		}
		defer a.closer()
		return fn(cmd, a, args)
	}
}
