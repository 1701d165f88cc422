//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"qrcall/internal/platform/config"
	"qrcall/internal/platform/kafka"
	"qrcall/pkg/testutil/containers"
)

type ProducerSuite struct {
	suite.Suite
	broker string
}

func TestProducerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerSuite))
}

func (s *ProducerSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T()).Broker
}

func (s *ProducerSuite) TestSendIsConsumable() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	producer, err := kafka.NewProducer(ctx, config.KafkaConfig{Brokers: []string{s.broker}, Topic: "call-events-test"})
	s.Require().NoError(err)
	s.Require().NotNil(producer)
	defer producer.Close()
	s.Require().NoError(producer.Health(ctx))

	s.Require().NoError(producer.Send(ctx, []byte("c1"), []byte(`{"type":"call.initiated"}`)))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics("call-events-test"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollRecords(ctx, 1)
	s.Require().NoError(fetches.Err())
	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal("c1", string(records[0].Key))
	s.JSONEq(`{"type":"call.initiated"}`, string(records[0].Value))
}

func (s *ProducerSuite) TestExistingTopicIsReused() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cfg := config.KafkaConfig{Brokers: []string{s.broker}, Topic: "call-events-twice"}

	first, err := kafka.NewProducer(ctx, cfg)
	s.Require().NoError(err)
	first.Close()

	second, err := kafka.NewProducer(ctx, cfg)
	s.Require().NoError(err)
	second.Close()
}

func (s *ProducerSuite) TestNoBrokersDisablesProducer() {
	producer, err := kafka.NewProducer(context.Background(), config.KafkaConfig{})
	s.NoError(err)
	s.Nil(producer)
}
