package http

type Config struct {
	Port uint `mapstructure:"port"`
	// BridgeAPIKey, when set, must be sent as X-API-Key on /blinkup routes.
	BridgeAPIKey string `mapstructure:"bridge_api_key" json:"-"`
}
