package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	USB      USBConfig     `mapstructure:"usb"`
	MQTT     MQTTConfig    `mapstructure:"mqtt"`
	Station  StationConfig `mapstructure:"station"`
	Port     uint          `mapstructure:"port"`
	HttpLog  bool          `mapstructure:"http_log"`
}

type USBConfig struct {
	VendorId              uint16 `mapstructure:"vendor_id"`
	ProductId             uint16 `mapstructure:"product_id"`
	Interface             int
	TimeoutMillis         uint32 `mapstructure:"timeout_millis"`
	WaitBeforeRetryMillis uint32 `mapstructure:"wait_before_retry_millis"`
	Model                 string
	Simulate              bool
}

type StationConfig struct {
	PollIntervalSeconds     uint32 `mapstructure:"poll_interval_seconds"`
	DebounceThreshold       int    `mapstructure:"debounce_threshold"`
	BootstrapTimeoutSeconds uint32 `mapstructure:"bootstrap_timeout_seconds"`
	ConfigRefreshSeconds    uint32 `mapstructure:"config_refresh_seconds"`
	MaxTransportFailures    int    `mapstructure:"max_transport_failures"`
	SyncTimeEnable          bool   `mapstructure:"sync_time_enable"`
	SyncTimeIntervalHours   uint32 `mapstructure:"sync_time_interval_hours"`
}

type MQTTConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	BaseTopic          string `mapstructure:"base_topic"`
	HADiscoveryEnable  bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic   string `mapstructure:"ha_discovery_topic"`
	DeviceLabel        string `mapstructure:"device_label"`
	StationId          string `mapstructure:"station_id"`
	ExpireAfterSeconds uint   `mapstructure:"expire_after_seconds"`
}

func (c USBConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

func (c USBConfig) WaitBeforeRetry() time.Duration {
	return time.Duration(c.WaitBeforeRetryMillis) * time.Millisecond
}

func (c StationConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c StationConfig) BootstrapTimeout() time.Duration {
	return time.Duration(c.BootstrapTimeoutSeconds) * time.Second
}

func (c StationConfig) ConfigRefresh() time.Duration {
	return time.Duration(c.ConfigRefreshSeconds) * time.Second
}

func (c StationConfig) SyncTimeInterval() time.Duration {
	return time.Duration(c.SyncTimeIntervalHours) * time.Hour
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
