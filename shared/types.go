package shared

type ServerConfig struct {
	Sqlite   SqliteConfig   `mapstructure:"sqlite" validate:"required"`
	Guard    GuardConfig    `mapstructure:"guard" validate:"required"`
	Twilio   TwilioConfig   `mapstructure:"twilio"`
	Google   GoogleConfig   `mapstructure:"google"`
	Advisory AdvisoryConfig `mapstructure:"advisory"`
}

type SqliteConfig struct {
	PassPhrase string `mapstructure:"passPhrase" validate:"required"`
}

type GuardConfig struct {
	Listener      ListenerConfig `mapstructure:"listener" validate:"required"`
	CountryCode   string         `mapstructure:"countryCode" validate:"required,numeric"`
	SessionSecret string         `mapstructure:"sessionSecret" validate:"required"`
	Platform      string         `mapstructure:"platform" validate:"omitempty,oneof=ios android web"`
	Capture       CaptureConfig  `mapstructure:"capture"`
}

type ListenerConfig struct {
	Port int `mapstructure:"port" validate:"required"`
}

type CaptureConfig struct {
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
	SettleMillis   int `mapstructure:"settleMillis"`
	PauseMillis    int `mapstructure:"pauseMillis"`
	Quality        int `mapstructure:"quality"`
}

type TwilioConfig struct {
	AccountSid          string      `mapstructure:"accountSid"`
	AuthToken           string      `mapstructure:"authToken"`
	MessagingServiceSid string      `mapstructure:"messagingServiceSid"`
	EnableDirectSms     interface{} `mapstructure:"enableDirectSms" validate:"omitempty,bool"`
}

type GoogleConfig struct {
	ApplicationCredentials string        `mapstructure:"applicationCredentials"`
	Storage                StorageConfig `mapstructure:"storage"`
}

type StorageConfig struct {
	Bucket                 string      `mapstructure:"bucket" validate:"required_with=EnableSettingsBackup"`
	Prefix                 string      `mapstructure:"prefix" validate:"required_with=EnableSettingsBackup"`
	SettingsBackupSchedule string      `mapstructure:"settingsBackupSchedule" validate:"required_with=EnableSettingsBackup"`
	EnableSettingsBackup   interface{} `mapstructure:"enableSettingsBackup" validate:"omitempty,bool"`
}

type AdvisoryConfig struct {
	ApiKey          string `mapstructure:"apiKey"`
	Model           string `mapstructure:"model"`
	BaseURL         string `mapstructure:"baseUrl"`
	MaxOutputTokens int    `mapstructure:"maxOutputTokens"`
	TimeoutSeconds  int    `mapstructure:"timeoutSeconds"`
}
