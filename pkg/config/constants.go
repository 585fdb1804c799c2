package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	AdyenEnvTest = "test"
	AdyenEnvLive = "live"
)

const (
	EnvAppEnv  = "STOREFRONT_APP_ENV"
	EnvAppPort = "STOREFRONT_APP_PORT"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvAdyenAPIKey          = "STOREFRONT_ADYEN_API_KEY"
	EnvAdyenMerchantAccount = "STOREFRONT_ADYEN_MERCHANT_ACCOUNT"
	EnvAdyenEnv             = "STOREFRONT_ADYEN_ENV"
	EnvAdyenLivePrefix      = "STOREFRONT_ADYEN_LIVE_PREFIX"
	EnvAdyenBaseURL         = "STOREFRONT_ADYEN_BASE_URL"

	EnvCheckoutCurrency  = "STOREFRONT_CHECKOUT_CURRENCY"
	EnvCheckoutTaxRate   = "STOREFRONT_CHECKOUT_TAX_RATE"
	EnvCheckoutReturnURL = "STOREFRONT_CHECKOUT_RETURN_URL"

	EnvCatalogPath = "STOREFRONT_CATALOG_PATH"
	EnvCORSOrigins = "STOREFRONT_CORS_ALLOWED_ORIGINS"
)
