package util

import (
	"github.com/berfenger/sensorist2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Sensorist: config.SensoristConfig{
			Username:                   "test@sensorist.com",
			Password:                   "secret",
			BaseURL:                    "http://127.0.0.1:1",
			ScanIntervalMinutes:        15,
			RediscoveryIntervalMinutes: 60,
			RequestTimeoutSeconds:      2,
		},
		MQTT: config.MQTTConfig{
			Host:              "localhost",
			Port:              1883,
			BaseTopic:         "sensorist",
			HADiscoveryEnable: true,
			HADiscoveryTopic:  "homeassistant",
		},
		Port: 8080,
	}
}
