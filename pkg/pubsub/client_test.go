package pubsub

import (
	"context"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavelength-fm/station-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	assert.Equal(t, "projects/station/topics/donations", TopicResourceName("station", "donations"))
	assert.Equal(t, "projects/other/topics/x", TopicResourceName("station", "projects/other/topics/x"))
	assert.Empty(t, TopicResourceName("", "donations"))
	assert.Empty(t, TopicResourceName("station", "  "))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, []string{"donations"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("donations"))
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}

func TestNormalizeNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, normalizeNames([]string{" a ", "", "b"}))
}

func TestPingWithoutTopics(t *testing.T) {
	c := &Client{client: &pubsub.Client{}, projectID: "station"}
	require.ErrorIs(t, c.Ping(context.Background()), errNoTopics)
}
