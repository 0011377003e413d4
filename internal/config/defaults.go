package config

const (
	defaultDataDir            = "~/.local/share/abstractor"
	defaultLogDir             = "~/.local/share/abstractor/logs"
	defaultIngestDir          = "~/.local/share/abstractor/ingest"
	defaultAPIBind            = "127.0.0.1:7519"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultWorkerCount        = 2
	defaultRetryCeiling       = 3
	defaultRetryBackoffBase   = 30
	defaultRetryBackoffMax    = 600
	defaultScrapeSessionLimit = 4
	defaultTimeGapYears       = 5
	defaultChainBreakBoost    = 10
	defaultAdditionalBoost    = 5
	defaultPartialMinPercent  = 60
	defaultNtfyTimeout        = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			IngestDir: defaultIngestDir,
			APIBind:   defaultAPIBind,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			WorkerCount:        defaultWorkerCount,
			RetryCeiling:       defaultRetryCeiling,
			RetryBackoffBase:   defaultRetryBackoffBase,
			RetryBackoffMax:    defaultRetryBackoffMax,
			ScrapeSessionLimit: defaultScrapeSessionLimit,
		},
		Analysis: Analysis{
			TimeGapYears:         defaultTimeGapYears,
			ChainBreakBoost:      defaultChainBreakBoost,
			AdditionalItemBoost:  defaultAdditionalBoost,
			PartialMinCheckpoint: defaultPartialMinPercent,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			Completed:      true,
			Failed:         true,
			Partial:        true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
