package util

import (
	"github.com/berfenger/ws3000mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		USB: config.USBConfig{
			VendorId:              0x0483,
			ProductId:             0x5750,
			TimeoutMillis:         1000,
			WaitBeforeRetryMillis: 10,
			Model:                 "WS3000",
			Simulate:              true,
		},
		MQTT: config.MQTTConfig{
			Host:               "localhost",
			Port:               1883,
			BaseTopic:          "ws3000",
			HADiscoveryEnable:  true,
			HADiscoveryTopic:   "homeassistant",
			DeviceLabel:        "WS-3000",
			StationId:          "ws3000",
			ExpireAfterSeconds: 3600,
		},
		Station: config.StationConfig{
			PollIntervalSeconds:     60,
			DebounceThreshold:       3,
			BootstrapTimeoutSeconds: 300,
			ConfigRefreshSeconds:    3600,
			MaxTransportFailures:    3,
		},
		Port: 8080,
	}
}
