package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/trendora/trendora-backend/pkg/config"
	"github.com/trendora/trendora-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub orders topic is required")
)

// Client wraps the Pub/Sub v2 client for the order events topic.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// NewClient connects to Pub/Sub and verifies the configured topic (and
// subscription, when one is set) already exists. Topology is managed
// by infrastructure; a missing resource is a deploy error, not
// something to create on the fly.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.OrdersTopic) == "" {
		return nil, errTopicRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: psClient, projectID: gcp.ProjectID, cfg: cfg}
	if err := c.verifyTopology(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(ctx, "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) verifyTopology(ctx context.Context) error {
	if err := c.checkTopic(ctx, c.cfg.OrdersTopic); err != nil {
		return err
	}
	if sub := strings.TrimSpace(c.cfg.OrdersSubscription); sub != "" {
		if err := c.checkSubscription(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) checkTopic(ctx context.Context, name string) error {
	fullName := c.topicResourceName(name)
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("topic %q does not exist", name)
	}
	if err != nil {
		return fmt.Errorf("checking topic %q: %w", name, err)
	}
	return nil
}

func (c *Client) checkSubscription(ctx context.Context, name string) error {
	fullName := c.subscriptionResourceName(name)
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: fullName})
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("subscription %q does not exist", name)
	}
	if err != nil {
		return fmt.Errorf("checking subscription %q: %w", name, err)
	}
	return nil
}

// OrdersPublisher returns the publisher handle for the order events topic.
func (c *Client) OrdersPublisher() *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.topicResourceName(c.cfg.OrdersTopic)
	if fullName == "" {
		return nil
	}
	return c.client.Publisher(fullName)
}

// Ping re-verifies the configured topology is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.verifyTopology(ctx)
}

// Close releases the underlying gRPC connections.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) topicResourceName(name string) string {
	return resourceName(c.projectID, "topics", name)
}

func (c *Client) subscriptionResourceName(name string) string {
	return resourceName(c.projectID, "subscriptions", name)
}

func resourceName(projectID, kind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", p, kind, n)
}
