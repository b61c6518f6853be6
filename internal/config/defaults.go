package config

const (
	defaultConfigPath           = "~/.config/photoferry/config.toml"
	defaultQueueDir             = "~/photoferry/queue"
	defaultImagesDir            = "~/photoferry/images"
	defaultStateDir             = "~/.local/share/photoferry"
	defaultDoneDirName          = "Done"
	defaultFetchConcurrency     = 8
	defaultFetchTimeoutSeconds  = 60
	defaultRedirectParam        = "d=t"
	defaultUserAgent            = "photoferry/0.1.0"
	defaultUploadConcurrency    = 4
	defaultUploadTimeoutSeconds = 120
	defaultTimeZone             = "America/Los_Angeles"
	defaultFallbackExtension    = "png"
	defaultPhotosBaseURL        = "https://photoslibrary.googleapis.com"
	defaultCredentialsFile      = "~/.config/photoferry/client.json"
	defaultTokenFile            = "~/.config/photoferry/token.json"
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults. Queue, images,
// and credential paths stay empty so normalization can consult the environment
// before falling back to the repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:    defaultStateDir,
			DoneDirName: defaultDoneDirName,
		},
		Fetch: Fetch{
			Concurrency:    defaultFetchConcurrency,
			TimeoutSeconds: defaultFetchTimeoutSeconds,
			RedirectParam:  defaultRedirectParam,
			UserAgent:      defaultUserAgent,
		},
		Upload: Upload{
			Concurrency:    defaultUploadConcurrency,
			TimeoutSeconds: defaultUploadTimeoutSeconds,
		},
		Persist: Persist{
			TimeZone:          defaultTimeZone,
			FallbackExtension: defaultFallbackExtension,
		},
		Photos: Photos{
			BaseURL: defaultPhotosBaseURL,
		},
		Ledger: Ledger{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
