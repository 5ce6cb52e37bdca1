package cmd

import (
	"time"

	// pprof imports
	_ "net/http/pprof"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdutils "github.com/openmall/mall-go/cmd"
	"github.com/openmall/mall-go/services/cmd"
)

func init() {
	ordersCmd.AddCommand(restCmd)

	// add this command as a serve subcommand
	cmd.ServeCmd.AddCommand(ordersCmd)

	// setup the flags

	// datastore - the orders database url
	ordersCmd.PersistentFlags().String("datastore", "",
		"the datastore url (database url) for the orders system")
	cmdutils.Must(viper.BindPFlag("datastore", ordersCmd.PersistentFlags().Lookup("datastore")))
	cmdutils.Must(viper.BindEnv("datastore", "DATABASE_URL"))

	// payment-window - how long an order stays payable
	ordersCmd.PersistentFlags().Duration("payment-window", 15*time.Minute,
		"the duration an order remains payable before it expires")
	cmdutils.Must(viper.BindPFlag("payment-window", ordersCmd.PersistentFlags().Lookup("payment-window")))
	cmdutils.Must(viper.BindEnv("payment-window", "PAYMENT_WINDOW"))

	// refund-window - how long after payment a refund can be requested
	ordersCmd.PersistentFlags().Duration("refund-window", 7*24*time.Hour,
		"the duration after payment during which refunds are accepted")
	cmdutils.Must(viper.BindPFlag("refund-window", ordersCmd.PersistentFlags().Lookup("refund-window")))
	cmdutils.Must(viper.BindEnv("refund-window", "REFUND_WINDOW"))

	// wechatpay-server - the pay gateway base url
	ordersCmd.PersistentFlags().String("wechatpay-server", "https://api.mch.weixin.qq.com",
		"the wechat pay gateway server")
	cmdutils.Must(viper.BindPFlag("wechatpay-server", ordersCmd.PersistentFlags().Lookup("wechatpay-server")))
	cmdutils.Must(viper.BindEnv("wechatpay-server", "WECHATPAY_SERVER"))

	// wechatpay-app-id
	ordersCmd.PersistentFlags().String("wechatpay-app-id", "",
		"the wechat pay application id")
	cmdutils.Must(viper.BindPFlag("wechatpay-app-id", ordersCmd.PersistentFlags().Lookup("wechatpay-app-id")))
	cmdutils.Must(viper.BindEnv("wechatpay-app-id", "WECHATPAY_APP_ID"))

	// wechatpay-merchant-id
	ordersCmd.PersistentFlags().String("wechatpay-merchant-id", "",
		"the wechat pay merchant id")
	cmdutils.Must(viper.BindPFlag("wechatpay-merchant-id", ordersCmd.PersistentFlags().Lookup("wechatpay-merchant-id")))
	cmdutils.Must(viper.BindEnv("wechatpay-merchant-id", "WECHATPAY_MERCHANT_ID"))

	// wechatpay-api-key - the v2 signing key
	ordersCmd.PersistentFlags().String("wechatpay-api-key", "",
		"the wechat pay api signing key")
	cmdutils.Must(viper.BindPFlag("wechatpay-api-key", ordersCmd.PersistentFlags().Lookup("wechatpay-api-key")))
	cmdutils.Must(viper.BindEnv("wechatpay-api-key", "WECHATPAY_API_KEY"))

	// wechatpay-notify-url - where the gateway delivers callbacks
	ordersCmd.PersistentFlags().String("wechatpay-notify-url", "",
		"the url the wechat pay gateway delivers payment callbacks to")
	cmdutils.Must(viper.BindPFlag("wechatpay-notify-url", ordersCmd.PersistentFlags().Lookup("wechatpay-notify-url")))
	cmdutils.Must(viper.BindEnv("wechatpay-notify-url", "WECHATPAY_NOTIFY_URL"))
}

var (
	ordersCmd = &cobra.Command{
		Use:   "orders",
		Short: "provides orders micro-service entrypoint",
	}

	restCmd = &cobra.Command{
		Use:   "rest",
		Short: "provides REST api services",
		Run:   RestRun,
	}
)
