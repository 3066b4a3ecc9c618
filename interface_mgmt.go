package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	url2 "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	gorillamux "github.com/gorilla/mux"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/nest"
	"github.com/shimmeringbee/qsusb/config"
	v1 "github.com/shimmeringbee/qsusb/interface/http/v1"
	"github.com/shimmeringbee/qsusb/interface/mqtt"
	"github.com/shimmeringbee/qsusb/state"
)

type StartedInterface struct {
	Name     string
	Shutdown func() error
}

const DefaultMQTTEventDuration = 1 * time.Second

func loadInterfaceConfigurations(dir string) ([]config.InterfaceConfig, error) {
	if err := os.MkdirAll(dir, DefaultDirectoryPermissions); err != nil {
		return nil, fmt.Errorf("failed to ensure interface configuration directory exists: %w", err)
	}

	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory listing for interface configurations: %w", err)
	}

	var retCfgs []config.InterfaceConfig

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		fullPath := filepath.Join(dir, file.Name())
		data, err := ioutil.ReadFile(fullPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read interface configuration file '%s': %w", fullPath, err)
		}

		cfg := config.InterfaceConfig{
			Name: strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())),
		}

		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse interface configuration file '%s': %w", fullPath, err)
		}

		retCfgs = append(retCfgs, cfg)
	}

	return retCfgs, nil
}

func startInterfaces(cfgs []config.InterfaceConfig, mux *HubMux, bus *state.EventBus, l logwrap.Logger) ([]StartedInterface, error) {
	var retIfs []StartedInterface

	for _, cfg := range cfgs {
		if shutdown, err := startInterface(cfg, mux, bus, l); err != nil {
			return nil, fmt.Errorf("failed to start interface '%s': %w", cfg.Name, err)
		} else {
			retIfs = append(retIfs, StartedInterface{
				Name:     cfg.Name,
				Shutdown: shutdown,
			})
		}
	}

	return retIfs, nil
}

func startInterface(cfg config.InterfaceConfig, mux *HubMux, bus *state.EventBus, l logwrap.Logger) (func() error, error) {
	wl := logwrap.New(nest.Wrap(l))
	wl.AddOptionsToLogger(logwrap.Datum("interface", cfg.Name))

	switch ifCfg := cfg.Config.(type) {
	case *config.HTTPInterfaceConfig:
		wl.AddOptionsToLogger(logwrap.Source("http"))
		return startHTTPInterface(*ifCfg, mux, bus, wl)
	case *config.MQTTInterfaceConfig:
		wl.AddOptionsToLogger(logwrap.Source("mqtt"))
		return startMQTTInterface(*ifCfg, mux, bus, wl)
	default:
		return nil, fmt.Errorf("unknown interface type loaded: %s", cfg.Type)
	}
}

func startHTTPInterface(cfg config.HTTPInterfaceConfig, mux *HubMux, bus *state.EventBus, l logwrap.Logger) (func() error, error) {
	r := gorillamux.NewRouter()

	l.LogInfo(context.Background(), "Mounting v1 API endpoint on /api/v1.")

	v1Router := v1.ConstructRouter(mux, mux, bus, l)
	// Use http.StripPrefix to obscure the real path from the v1 api code, though this will cause issues if we
	// ever issue redirects from the API.
	r.PathPrefix("/api/v1").Handler(http.StripPrefix("/api/v1", v1Router))

	bindAddress := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: bindAddress, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			l.LogError(context.Background(), "Failed to start http server.", logwrap.Err(err))
		}
	}()

	return func() error {
		return srv.Shutdown(context.Background())
	}, nil
}

func awaitToken(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return context.DeadlineExceeded
	}
}

func startMQTTInterface(cfg config.MQTTInterfaceConfig, mux *HubMux, bus *state.EventBus, l logwrap.Logger) (func() error, error) {
	clientId := uuid.New().String()

	l.LogInfo(context.Background(), "Constructing new MQTT client.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server))

	clientOptions := pahomqtt.NewClientOptions()
	clientOptions.ClientID = clientId

	if url, err := url2.Parse(cfg.Server); err != nil {
		l.LogError(context.Background(), "Failed to parse MQTT server URL.", logwrap.Err(err))
		return nil, err
	} else {
		clientOptions.Servers = []*url2.URL{url}
	}

	i := mqtt.Interface{DeviceStore: mux, EventSubscriber: bus, Logger: l, Publisher: mqtt.EmptyPublisher, PublishStateOnConnect: cfg.PublishStateOnConnect}

	lastWillTopic := prefixTopic(cfg.TopicPrefix, "bridge/online")

	clientOptions.OnConnect = func(client pahomqtt.Client) {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultMQTTEventDuration)
		defer cancel()

		l.LogInfo(context.Background(), "MQTT client successfully connected.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server))

		subTopic := prefixTopic(cfg.TopicPrefix, "devices/+/value/set")
		subscribeToken := client.Subscribe(subTopic, 0, func(client pahomqtt.Client, message pahomqtt.Message) {
			ctx, cancel := context.WithTimeout(context.Background(), DefaultMQTTEventDuration)
			defer cancel()

			if err := i.IncomingMessage(ctx, stripPrefixTopic(cfg.TopicPrefix, message.Topic()), message.Payload()); err != nil {
				l.LogError(ctx, "Failed to handle incoming message.", logwrap.Datum("topic", message.Topic()), logwrap.Err(err))
			}
		})

		if err := awaitToken(ctx, subscribeToken); err != nil {
			l.LogError(ctx, "Failed to subscribe to topic in MQTT.", logwrap.Datum("topic", subTopic), logwrap.Err(err))
		}

		client.Publish(lastWillTopic, cfg.QOS, cfg.Retained, `true`)

		if err := i.Connected(context.Background(), func(ctx context.Context, topic string, payload []byte) error {
			prefixedTopic := prefixTopic(cfg.TopicPrefix, topic)

			token := client.Publish(prefixedTopic, cfg.QOS, cfg.Retained, payload)
			if err := awaitToken(ctx, token); err != nil {
				l.LogError(ctx, "Failed to publish message to MQTT.", logwrap.Datum("topic", prefixedTopic), logwrap.Err(err))
				return err
			}

			return nil
		}); err != nil {
			l.LogError(context.Background(), "Failed to execute connection handler in MQTT interface.", logwrap.Err(err))
		}
	}

	clientOptions.SetConnectionLostHandler(func(client pahomqtt.Client, err error) {
		l.LogInfo(context.Background(), "MQTT client disconnected.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server), logwrap.Err(err))
		i.Disconnected()
	})

	clientOptions.SetWill(lastWillTopic, `false`, cfg.QOS, cfg.Retained)

	if cfg.Credentials != nil {
		clientOptions.SetUsername(cfg.Credentials.Username)
		clientOptions.SetPassword(cfg.Credentials.Password)
	}

	if cfg.SkipCertificateVerification {
		l.LogWarn(context.Background(), "Set to ignore remote TLS certificate, this is considered insecure.")
		clientOptions.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}

	i.Start()

	client := pahomqtt.NewClient(clientOptions)

	go func() {
		ctx := context.Background()

		retry := time.NewTicker(1 * time.Second)
		for range retry.C {
			if token := client.Connect(); token.Wait() && token.Error() != nil {
				l.LogError(ctx, "Failed initial connection to MQTT server.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server), logwrap.Err(token.Error()))
			} else {
				l.LogInfo(ctx, "Initial MQTT connection call completed.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server))
				retry.Stop()
				return
			}
		}
	}()

	return func() error {
		client.Disconnect(1500)
		i.Stop()
		return nil
	}, nil
}

func prefixTopic(topicPrefix string, topic string) string {
	if len(topicPrefix) > 0 {
		return fmt.Sprintf("%s/%s", topicPrefix, topic)
	}

	return topic
}

func stripPrefixTopic(topicPrefix string, topic string) string {
	if len(topicPrefix) > 0 {
		if strings.HasPrefix(topic, topicPrefix) {
			return strings.TrimPrefix(topic[len(topicPrefix):], "/")
		}
	}

	return topic
}
