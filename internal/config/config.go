package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel  zapcore.Level
	Sensorist SensoristConfig `mapstructure:"sensorist"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Port      uint            `mapstructure:"port"`
	HttpLog   bool            `mapstructure:"http_log"`
	StateFile string          `mapstructure:"state_file"`
}

type SensoristConfig struct {
	Username                   string
	Password                   string
	BaseURL                    string `mapstructure:"base_url"`
	ScanIntervalMinutes        uint   `mapstructure:"scan_interval_minutes"`
	RediscoveryIntervalMinutes uint   `mapstructure:"rediscovery_interval_minutes"`
	RegisterDevices            bool   `mapstructure:"register_devices"`
	RequestTimeoutSeconds      uint   `mapstructure:"request_timeout_seconds"`
	MinRequestIntervalMillis   uint   `mapstructure:"min_request_interval_millis"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func (c SensoristConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMinutes) * time.Minute
}

func (c SensoristConfig) RediscoveryInterval() time.Duration {
	return time.Duration(c.RediscoveryIntervalMinutes) * time.Minute
}

func (c SensoristConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c SensoristConfig) MinRequestInterval() time.Duration {
	return time.Duration(c.MinRequestIntervalMillis) * time.Millisecond
}

var topicRegexp = regexp.MustCompile("^[a-z0-9_]+$")

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	if !topicRegexp.MatchString(lowerBaseTopic) {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
