package config

const (
	defaultInboxDir      = "~/inbox"
	defaultStagingDir    = "~/.local/share/unspool/staging"
	defaultLibraryDir    = "~/library"
	defaultDuplicatesDir = "~/duplicates"
	defaultReviewDir     = "~/review"
	defaultLogDir        = "~/.local/share/unspool/logs"
	defaultWorkspaceDir  = "~/.local/share/unspool"

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60

	defaultWorkflowQueuePollInterval  = 5
	defaultWorkflowErrorRetryInterval = 10
	defaultWorkflowHeartbeatInterval  = 15
	defaultWorkflowHeartbeatTimeout   = 120
	defaultInboxPollInterval          = 5
	defaultInboxStablePolls           = 2

	defaultNotifyRequestTimeout     = 10
	defaultNotifyQueueMinItems      = 2
	defaultNotifyDedupWindowSeconds = 600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InboxDir:      defaultInboxDir,
			StagingDir:    defaultStagingDir,
			LibraryDir:    defaultLibraryDir,
			DuplicatesDir: defaultDuplicatesDir,
			ReviewDir:     defaultReviewDir,
			LogDir:        defaultLogDir,
			WorkspaceDir:  defaultWorkspaceDir,
		},
		Workers: Workers{
			Count: 0,
		},
		Dedup: Dedup{
			RebuildOnStart: false,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			BatchSummaries:     true,
			Duplicates:         true,
			Review:             true,
			Errors:             true,
			QueueMinItems:      defaultNotifyQueueMinItems,
			DedupWindowSeconds: defaultNotifyDedupWindowSeconds,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultWorkflowQueuePollInterval,
			ErrorRetryInterval: defaultWorkflowErrorRetryInterval,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
			InboxPollInterval:  defaultInboxPollInterval,
			InboxStablePolls:   defaultInboxStablePolls,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
