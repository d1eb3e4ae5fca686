package main

import (
	"errors"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/getsentry/opstractor/internal/opwriter"
)

const kafkaEvents = "kafka"

type (
	ServiceConfig struct {
		Environment string `yaml:"environment" env:"SENTRY_ENVIRONMENT" env-default:"development"`
		SentryDSN   string `yaml:"sentry_dsn" env:"SENTRY_DSN"`

		Threshold float64  `yaml:"threshold" env:"OPSTRACTOR_THRESHOLD" env-default:"0.005" env-description:"distinct root ratio under which the session converges, negative to only report on interrupt"`
		Ignore    []string `yaml:"ignore" env:"OPSTRACTOR_IGNORE" env-default:"aten::stack,StackBackward" env-separator:"," env-description:"names of root calls left out of the aggregation"`

		Format    string `yaml:"format" env:"OPSTRACTOR_FORMAT" env-default:"flamegraph" env-description:"flamegraph, text or binary"`
		Output    string `yaml:"output" env:"OPSTRACTOR_OUTPUT" env-default:"stdout" env-description:"stdout, stderr, a file path or a bucket url"`
		OutputKey string `yaml:"output_key" env:"OPSTRACTOR_OUTPUT_KEY" env-description:"object name in the output bucket, generated if empty"`
		Compress  bool   `yaml:"compress" env:"OPSTRACTOR_COMPRESS" env-description:"compress the output with lz4"`

		Events       string   `yaml:"events" env:"OPSTRACTOR_EVENTS" env-default:"-" env-description:"- for stdin, a file path, or kafka"`
		KafkaBrokers []string `yaml:"kafka_brokers" env:"OPSTRACTOR_KAFKA_BROKERS" env-separator:","`
		KafkaTopic   string   `yaml:"kafka_topic" env:"OPSTRACTOR_KAFKA_TOPIC" env-default:"opstractor-events"`
		KafkaGroupID string   `yaml:"kafka_group_id" env:"OPSTRACTOR_KAFKA_GROUP_ID" env-default:"opstractor"`

		StatusAddr string `yaml:"status_addr" env:"OPSTRACTOR_STATUS_ADDR" env-description:"address of the status server, disabled if empty"`
	}
)

// loadConfig reads the configuration from the environment, on top of the
// YAML file in args if there is one.
func loadConfig(args []string) (ServiceConfig, error) {
	var cfg ServiceConfig
	var err error
	if len(args) > 0 {
		err = cleanenv.ReadConfig(args[0], &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c ServiceConfig) validate() error {
	if _, err := opwriter.ParseFormat(c.Format); err != nil {
		return err
	}
	if c.Events == kafkaEvents && len(c.KafkaBrokers) == 0 {
		return errors.New("OPSTRACTOR_KAFKA_BROKERS is required to consume events from kafka")
	}
	return nil
}

// objectKey names the report in a bucket.
func (c ServiceConfig) objectKey() string {
	if c.OutputKey != "" {
		return c.OutputKey
	}
	key := uuid.New().String() + extensions[opwriter.Format(c.Format)]
	if c.Compress {
		key += ".lz4"
	}
	return key
}

var extensions = map[opwriter.Format]string{
	opwriter.FormatFlamegraph: ".json",
	opwriter.FormatText:       ".txt",
	opwriter.FormatBinary:     ".bin",
}

// logOutput returns the stream logs go to, never the one the report is
// written to.
func logOutput(output string) io.Writer {
	if output == "stderr" {
		return os.Stdout
	}
	return os.Stderr
}
