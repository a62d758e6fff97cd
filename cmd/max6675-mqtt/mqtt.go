// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// mq is a handle onto a MQTT broker connection.
type mq struct {
	conn   mqtt.Client // broker connection
	retain bool        // publish with the retain flag
}

// newMQ connects to a broker and returns a new mq object. The connection is persistent, i.e.,
// re-establishes itself if there is a disconnect.
func newMQ(conf MqttConfig, logger *zap.Logger) (*mq, error) {
	hostname, _ := os.Hostname()
	id := "max6675-" + hostname
	logger.Debug("configuring MQTT", zap.String("client-id", id),
		zap.String("host", conf.Host), zap.Int("port", conf.Port), zap.String("user", conf.User))
	mqtt.ERROR = log.New(os.Stderr, "", 0)
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", conf.Host, conf.Port)).
		SetClientID(id).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", zap.Error(err))
		})
	opts.Username = conf.User
	opts.Password = conf.Password

	mqConn := mqtt.NewClient(opts)
	token := mqConn.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, errors.New("timeout connecting to MQTT broker")
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, "cannot connect to MQTT broker")
	}

	logger.Info("MQTT connected")
	return &mq{conn: mqConn, retain: conf.Retain}, nil
}

// Publish JSON-encodes the payload and publishes it with QoS 1.
func (mq *mq) Publish(topic string, payload interface{}) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "cannot encode payload")
	}
	token := mq.conn.Publish(topic, 1, mq.retain, jsonPayload)
	if !token.WaitTimeout(5 * time.Second) {
		return errors.Errorf("timeout publishing to %s", topic)
	}
	return token.Error()
}

// Close disconnects from the broker, giving in-flight messages a moment to go out.
func (mq *mq) Close() {
	mq.conn.Disconnect(250)
}
