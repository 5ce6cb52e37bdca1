package context

import "errors"

// CTXKey - a type for context keys
type CTXKey string

const (
	// DatastoreCTXKey - the context key for getting the datastore
	DatastoreCTXKey CTXKey = "datastore"
	// DatabaseTransactionCTXKey - context key for database transactions
	DatabaseTransactionCTXKey CTXKey = "db_tx"
	// RODatastoreCTXKey - the context key for getting the read only datastore
	RODatastoreCTXKey CTXKey = "ro_datastore"
	// PaginationOrderOptionsCTXKey - this is the pagination options context key
	PaginationOrderOptionsCTXKey CTXKey = "pagination_order_options"
	// ServiceKey - the key used for service context
	ServiceKey CTXKey = "service"
	// EnvironmentCTXKey - the key used for the running environment
	EnvironmentCTXKey CTXKey = "environment"
	// DatabaseURLCTXKey - the context key for getting the database url
	DatabaseURLCTXKey CTXKey = "database_url"
	// RODatabaseURLCTXKey - the context key for getting the read only database url
	RODatabaseURLCTXKey CTXKey = "ro_database_url"
	// DebugLoggingCTXKey - the context key for debug logging
	DebugLoggingCTXKey CTXKey = "debug_logging"
	// LogLevelCTXKey - the context key for application logging level
	LogLevelCTXKey CTXKey = "log_level"
	// LogWriterCTXKey - the context key for application log writer
	LogWriterCTXKey CTXKey = "log_writer"
	// LoggerCTXKey - the context key for getting the logger
	LoggerCTXKey CTXKey = "logger"
	// AddressCTXKey - the context key for the service address
	AddressCTXKey CTXKey = "address"
	// VersionCTXKey - the context key for the service version
	VersionCTXKey CTXKey = "version"
	// CommitCTXKey - the context key for the service commit
	CommitCTXKey CTXKey = "commit"
	// BuildTimeCTXKey - the context key for the service build time
	BuildTimeCTXKey CTXKey = "buildtime"

	// PaymentWindowCTXKey - the context key for the payment window duration
	PaymentWindowCTXKey CTXKey = "payment_window"
	// RefundWindowCTXKey - the context key for the refund window duration
	RefundWindowCTXKey CTXKey = "refund_window"

	// WechatPayServerCTXKey - the context key for the wechat pay gateway server
	WechatPayServerCTXKey CTXKey = "wechatpay_server"
	// WechatPayAppIDCTXKey - the context key for the wechat pay app id
	WechatPayAppIDCTXKey CTXKey = "wechatpay_app_id"
	// WechatPayMerchantIDCTXKey - the context key for the wechat pay merchant id
	WechatPayMerchantIDCTXKey CTXKey = "wechatpay_merchant_id"
	// WechatPayAPIKeyCTXKey - the context key for the wechat pay api signing key
	WechatPayAPIKeyCTXKey CTXKey = "wechatpay_api_key"
	// WechatPayNotifyURLCTXKey - the context key for the wechat pay callback url
	WechatPayNotifyURLCTXKey CTXKey = "wechatpay_notify_url"

	// RewardsServerCTXKey - the context key for the rewards service server
	RewardsServerCTXKey CTXKey = "rewards_server"
	// RewardsAccessTokenCTXKey - the context key for the rewards service access token
	RewardsAccessTokenCTXKey CTXKey = "rewards_access_token"
)

var (
	// ErrNotInContext - error you get when you ask for something not in the context.
	ErrNotInContext = errors.New("failed to get value from context")
	// ErrValueWrongType - error you get when you ask for something, and it is not the type you expected
	ErrValueWrongType = errors.New("context value of wrong type")
)
