//go:build integration
// +build integration

package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/air-quality-service/internal/testhelpers"
)

func TestKafkaPublisher_Integration(t *testing.T) {
	brokers := testhelpers.KafkaBrokers()
	testhelpers.RequireTCP(t, brokers[0])

	p := NewKafkaPublisher(KafkaConfig{Brokers: brokers, Topic: "aq-events-test"}, nil)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, p.Publish(ctx, FromAlert(alertEvent())))
}
