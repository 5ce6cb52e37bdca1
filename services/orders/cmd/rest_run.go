package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdutils "github.com/openmall/mall-go/cmd"
	appctx "github.com/openmall/mall-go/libs/context"
	"github.com/openmall/mall-go/libs/middleware"
	"github.com/openmall/mall-go/services/cmd"
	"github.com/openmall/mall-go/services/orders"
)

// RestRun - Main entrypoint of the REST subcommand
// This function takes a cobra command and starts up the
// orders rest microservice.
func RestRun(command *cobra.Command, args []string) {
	ctx := command.Context()
	lg, err := appctx.GetLogger(ctx)
	cmdutils.Must(err)

	// add profiling flag to enable profiling routes
	if viper.GetString("pprof-enabled") != "" {
		// pprof attaches routes to default serve mux
		// host:6061/debug/pprof/
		go func() {
			lg.Error().Err(http.ListenAndServe(":6061", http.DefaultServeMux))
		}()
	}

	sentryDsn := os.Getenv("SENTRY_DSN")
	if sentryDsn != "" {
		buildTime := ctx.Value(appctx.BuildTimeCTXKey).(string)
		commit := ctx.Value(appctx.CommitCTXKey).(string)
		err := sentry.Init(sentry.ClientOptions{
			Dsn:     sentryDsn,
			Release: fmt.Sprintf("mall-go@%s-%s", commit, buildTime),
		})
		if err != nil {
			lg.Panic().Err(err).Msg("unable to setup reporting!")
		}
	}
	defer sentry.Flush(time.Second * 2)

	// add our command line params to context
	ctx = context.WithValue(ctx, appctx.DatabaseURLCTXKey, viper.Get("datastore"))
	ctx = context.WithValue(ctx, appctx.PaymentWindowCTXKey, viper.GetDuration("payment-window"))
	ctx = context.WithValue(ctx, appctx.RefundWindowCTXKey, viper.GetDuration("refund-window"))
	ctx = context.WithValue(ctx, appctx.WechatPayServerCTXKey, viper.Get("wechatpay-server"))
	ctx = context.WithValue(ctx, appctx.WechatPayAppIDCTXKey, viper.Get("wechatpay-app-id"))
	ctx = context.WithValue(ctx, appctx.WechatPayMerchantIDCTXKey, viper.Get("wechatpay-merchant-id"))
	ctx = context.WithValue(ctx, appctx.WechatPayAPIKeyCTXKey, viper.Get("wechatpay-api-key"))
	ctx = context.WithValue(ctx, appctx.WechatPayNotifyURLCTXKey, viper.Get("wechatpay-notify-url"))
	ctx = context.WithValue(ctx, appctx.RewardsServerCTXKey, viper.Get("rewards-service"))
	ctx = context.WithValue(ctx, appctx.RewardsAccessTokenCTXKey, viper.Get("rewards-token"))

	db, err := orders.NewPostgres(viper.GetString("datastore"), true, "orders_db")
	if err != nil {
		sentry.CaptureException(err)
		lg.Panic().Err(err).Msg("Must be able to init postgres connection to start")
	}

	s, err := orders.InitService(ctx, db)
	if err != nil {
		sentry.CaptureException(err)
		lg.Fatal().Err(err).Msg("failed to initialize orders service")
	}

	r := cmd.SetupRouter(ctx)

	r.Mount("/v1/orders", orders.Router(s))
	// for pay gateway webhook integrations
	r.Mount("/v1/webhooks", orders.WebhookRouter(s))

	if err := cmd.SetupJobWorkers(ctx, s.Jobs()); err != nil {
		lg.Error().Err(err).Msg("failed to setup job workers")
	}

	go func() {
		err := http.ListenAndServe(":9090", middleware.Metrics())
		if err != nil {
			sentry.CaptureException(err)
			lg.Panic().Err(err).Msg("metrics HTTP server start failed!")
		}
	}()

	srv := http.Server{
		Addr:         viper.GetString("address"),
		Handler:      chi.ServerBaseContext(ctx, r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	if err = srv.ListenAndServe(); err != nil {
		sentry.CaptureException(err)
		lg.Fatal().Err(err).Msg("HTTP server start failed!")
	}
}
