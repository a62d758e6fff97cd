// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tve/thermo/internal/setup"
)

// Config is the top-level structure of the YAML config file.
type Config struct {
	Mqtt     MqttConfig    `yaml:"mqtt"`
	Sensor   setup.Config  `yaml:"sensor"`
	Interval time.Duration `yaml:"interval"` // time between readings
}

// MqttConfig describes the broker connection.
type MqttConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"` // topic readings get published to
	Retain   bool   `yaml:"retain"`
}

// minInterval is the MAX6675 conversion time; reading faster just returns the previous value.
const minInterval = 250 * time.Millisecond

func defaultConfig() Config {
	return Config{
		Mqtt:     MqttConfig{Port: 1883, Topic: "sensors/max6675"},
		Sensor:   setup.Config{Backend: setup.Periph},
		Interval: 10 * time.Second,
	}
}

// parseConfig decodes a YAML config on top of the defaults and validates it.
func parseConfig(data []byte) (Config, error) {
	conf := defaultConfig()
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return conf, errors.Wrap(err, "cannot parse config")
	}
	if conf.Mqtt.Host == "" {
		return conf, errors.New("mqtt.host is required")
	}
	if conf.Mqtt.Port <= 0 || conf.Mqtt.Port > 65535 {
		return conf, errors.Errorf("invalid mqtt.port %d", conf.Mqtt.Port)
	}
	if conf.Mqtt.Topic == "" {
		return conf, errors.New("mqtt.topic is required")
	}
	if conf.Interval < minInterval {
		return conf, errors.Errorf("interval %s is shorter than the conversion time %s",
			conf.Interval, minInterval)
	}
	if err := conf.Sensor.Validate(); err != nil {
		return conf, errors.Wrap(err, "sensor")
	}
	return conf, nil
}

func readConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "cannot read config")
	}
	return parseConfig(data)
}
