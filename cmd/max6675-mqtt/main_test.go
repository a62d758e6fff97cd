// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"

	"github.com/tve/thermo/internal/setup"
	"github.com/tve/thermo/max6675"
)

const goodConfig = `
mqtt:
  host: broker.local
  user: me
  topic: kiln/temp
  retain: true
sensor:
  backend: periph
  port: SPI0.0
  cs: GPIO25
interval: 2s
`

func TestParseConfig(t *testing.T) {
	conf, err := parseConfig([]byte(goodConfig))
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		Mqtt:     MqttConfig{Host: "broker.local", Port: 1883, User: "me", Topic: "kiln/temp", Retain: true},
		Sensor:   setup.Config{Backend: setup.Periph, Port: "SPI0.0", CS: "GPIO25"},
		Interval: 2 * time.Second,
	}
	if conf != want {
		t.Fatalf("got %+v expected %+v", conf, want)
	}
}

func TestParseConfigErrors(t *testing.T) {
	for n, cfg := range map[string]string{
		"no-host":  "mqtt: {topic: x}",
		"port":     "mqtt: {host: h, port: 70000}",
		"topic":    "mqtt: {host: h, topic: ''}",
		"interval": "mqtt: {host: h}\ninterval: 10ms",
		"backend":  "mqtt: {host: h}\nsensor: {backend: sysfs}",
		"yaml":     "mqtt: [",
	} {
		if _, err := parseConfig([]byte(cfg)); err == nil {
			t.Errorf("%s: expected an error", n)
		}
	}
}

// script replays canned results, one per call.
type script struct {
	temps []max6675.Temperature
	errs  []error
	n     int
}

func (s *script) Temperature() (max6675.Temperature, error) {
	i := s.n
	s.n++
	return s.temps[i], s.errs[i]
}

type recorder struct {
	topics   []string
	payloads []string
	err      error
}

func (r *recorder) Publish(topic string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	r.topics = append(r.topics, topic)
	r.payloads = append(r.payloads, string(b))
	return r.err
}

func TestSample(t *testing.T) {
	logger := zaptest.NewLogger(t)
	now := time.Unix(1000, 0)
	d := &script{
		temps: []max6675.Temperature{95, 0, 0},
		errs:  []error{nil, max6675.ErrOpenCircuit, &max6675.TxError{Err: errors.New("bus")}},
	}

	for i, want := range []string{
		`{"temp":23.75,"at":1000000}`,
		`{"fault":"open","at":1000000}`,
		"",
	} {
		r, ok := sample(d, now, logger)
		if ok != (want != "") {
			t.Fatalf("sample %d: ok=%v", i, ok)
		}
		if !ok {
			continue
		}
		b, _ := json.Marshal(r)
		if string(b) != want {
			t.Errorf("sample %d: got %s expected %s", i, b, want)
		}
	}
}

func TestRun(t *testing.T) {
	logger := zaptest.NewLogger(t)
	conf := defaultConfig()
	conf.Interval = time.Millisecond

	d := &script{
		temps: []max6675.Temperature{4, 0, 8},
		errs:  []error{nil, &max6675.TxError{Err: errors.New("bus")}, nil},
	}
	pub := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The third reading is the second one published, after which run must stop.
	nErr := run(ctx, d, stopAfter{pub, 2, cancel}, conf, logger)

	if nErr != 1 {
		t.Errorf("got %d bus errors expected 1", nErr)
	}
	if len(pub.payloads) != 2 || pub.topics[0] != "sensors/max6675" {
		t.Fatalf("published %v to %v", pub.payloads, pub.topics)
	}
}

// stopAfter cancels the context once n messages have been published.
type stopAfter struct {
	*recorder
	n      int
	cancel context.CancelFunc
}

func (s stopAfter) Publish(topic string, payload interface{}) error {
	err := s.recorder.Publish(topic, payload)
	if len(s.payloads) >= s.n {
		s.cancel()
	}
	return err
}

func TestMainImplErrors(t *testing.T) {
	for n, args := range map[string][]string{
		"missing-config": {"-config", "/nonexistent/max6675-mqtt.yaml"},
		"extra-args":     {"-debug", "now"},
		"bad-flag":       {"-retries", "3"},
	} {
		if err := mainImpl(args); err == nil {
			t.Errorf("%s: expected an error", n)
		}
	}
}
