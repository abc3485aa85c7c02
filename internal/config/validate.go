package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	required := []struct {
		key   string
		value string
	}{
		{"paths.inbox_dir", c.Paths.InboxDir},
		{"paths.staging_dir", c.Paths.StagingDir},
		{"paths.library_dir", c.Paths.LibraryDir},
		{"paths.duplicates_dir", c.Paths.DuplicatesDir},
		{"paths.review_dir", c.Paths.ReviewDir},
		{"paths.log_dir", c.Paths.LogDir},
		{"paths.workspace_dir", c.Paths.WorkspaceDir},
	}
	for _, entry := range required {
		if entry.value == "" {
			return fmt.Errorf("%s must be set", entry.key)
		}
	}
	if c.Paths.InboxDir == c.Paths.LibraryDir {
		return errors.New("paths.inbox_dir and paths.library_dir must differ")
	}
	if c.Paths.InboxDir == c.Paths.StagingDir {
		return errors.New("paths.inbox_dir and paths.staging_dir must differ")
	}
	// Routing a duplicate back into the watched inbox would re-enqueue it
	// forever, so the holding areas must live elsewhere.
	if c.Paths.DuplicatesDir == c.Paths.InboxDir || c.Paths.ReviewDir == c.Paths.InboxDir {
		return errors.New("paths.duplicates_dir and paths.review_dir must not be the inbox")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Count < 0 {
		return errors.New("workers.count must be >= 0 (0 selects the CPU count)")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.inbox_poll_interval":  c.Workflow.InboxPollInterval,
		"workflow.inbox_stable_polls":   c.Workflow.InboxStablePolls,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.QueueMinItems < 1 {
		return errors.New("notifications.queue_min_items must be >= 1")
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
