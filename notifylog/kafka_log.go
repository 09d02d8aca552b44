package notifylog

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
)

const (
	kafkaMinBytes    = 10
	kafkaMaxBytes    = 10e6
	kafkaMaxAttempts = 16
)

var _ Log = (*KafkaLog)(nil)

// KafkaLog publishes notification records to a Kafka topic so that push,
// email and SMS workers can consume them independently of the real-time
// websocket path.
type KafkaLog struct {
	reader *kafka.Reader
	writer *kafka.Writer

	tlsConfig      *tls.Config
	producerCreds  *plain.Mechanism
	brokerEndpoint string
	topic          string
	timeout        time.Duration
}

// GetTLSConfig builds a TLS config from a CA certificate file, or returns
// nil when no path is given (plaintext broker).
func GetTLSConfig(trustStorePath string) (*tls.Config, error) {
	if trustStorePath == "" {
		return nil, nil
	}

	caCert, err := ioutil.ReadFile(trustStorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read truststore %s: %w", trustStorePath, err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate from %s", trustStorePath)
	}

	return &tls.Config{RootCAs: caCertPool}, nil
}

func NewKafkaLog(
	brokerEndpoint,
	topic string,
	tlsConfig *tls.Config,
	producerCreds *plain.Mechanism,
	timeout time.Duration,
) (*KafkaLog, error) {
	kl := &KafkaLog{
		brokerEndpoint: brokerEndpoint,
		topic:          topic,
		tlsConfig:      tlsConfig,
		producerCreds:  producerCreds,
		timeout:        timeout,
	}

	// A typed nil *plain.Mechanism in the SASL interface fields would make
	// kafka-go attempt an authentication handshake; keep the interface nil
	// when no credentials were configured.
	var mechanism sasl.Mechanism
	if producerCreds != nil {
		mechanism = producerCreds
	}

	kl.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{brokerEndpoint},
		Topic:       topic,
		MinBytes:    kafkaMinBytes,
		MaxBytes:    kafkaMaxBytes,
		MaxAttempts: kafkaMaxAttempts,
		Dialer: &kafka.Dialer{
			Timeout:       timeout,
			DualStack:     true,
			TLS:           tlsConfig,
			SASLMechanism: mechanism,
		},
	})

	kl.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokerEndpoint),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  kafkaMaxAttempts,
		BatchTimeout: timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		Transport: &kafka.Transport{
			Dial: (&net.Dialer{
				Timeout: timeout,
			}).DialContext,
			TLS:  tlsConfig,
			SASL: mechanism,
		},
	}

	return kl, nil
}

func (kl *KafkaLog) Append(records ...Record) error {
	kafkaMessages := make([]kafka.Message, len(records))
	for i, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal a record %v: %v", r, err)
		}
		kafkaMessages[i] = kafka.Message{Key: []byte(r.Recipient), Value: data}
	}

	ctx, cancel := context.WithTimeout(context.Background(), kl.timeout)
	defer cancel()

	if err := kl.writer.WriteMessages(ctx, kafkaMessages...); err != nil {
		return fmt.Errorf("failed to WriteMessages: %w", err)
	}

	return nil
}

func (kl *KafkaLog) GetRecords(_ uint64) ([]Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), kl.timeout)
	defer cancel()

	var (
		record  Record
		records []Record
	)
	for {
		kafkaMessage, err := kl.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return nil, fmt.Errorf("failed to ReadMessage: %w", err)
		}

		if err = json.Unmarshal(kafkaMessage.Value, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal a record %s: %v",
				string(kafkaMessage.Value), err)
		}

		record.Offset = uint64(kafkaMessage.Offset)
		records = append(records, record)
	}

	return records, nil
}

func (kl *KafkaLog) Close() error {
	if kl.reader != nil {
		if err := kl.reader.Close(); err != nil {
			return fmt.Errorf("failed to Close reader: %w", err)
		}
	}

	if kl.writer != nil {
		if err := kl.writer.Close(); err != nil {
			return fmt.Errorf("failed to Close writer: %w", err)
		}
	}

	return nil
}
