package docker

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/docker/docker/client"
)

// Config sisältää Docker client konfiguraation
type Config struct {
	Host      string
	TLSVerify bool
	CertPath  string
	// Timeout bounds the initial ping.
	Timeout time.Duration
	// CallTimeout bounds every engine call made through the client.
	CallTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Host:        "unix:///var/run/docker.sock",
		Timeout:     30 * time.Second,
		CallTimeout: 10 * time.Second,
	}
}

// Client wrappaa Docker API clientin
type Client struct {
	cli         *client.Client
	callTimeout time.Duration
}

// NewClient luo uuden Docker clientin ja varmistaa yhteyden pingillä
func NewClient(cfg Config) (*Client, error) {
	opts := []client.Opt{
		client.WithHost(cfg.Host),
		client.WithAPIVersionNegotiation(),
	}

	if cfg.TLSVerify {
		opts = append(opts, client.WithTLSClientConfig(
			cfg.CertPath+"/ca.pem",
			cfg.CertPath+"/cert.pem",
			cfg.CertPath+"/key.pem",
		))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to create docker client")
	}

	c := &Client{
		cli:         cli,
		callTimeout: cfg.CallTimeout,
	}
	if c.callTimeout <= 0 {
		c.callTimeout = DefaultConfig().CallTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		cli.Close()
		return nil, err
	}

	return c, nil
}

// Ping checks that the engine answers.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if _, err := c.cli.Ping(ctx); err != nil {
		return errors.WrapIf(err, "docker engine not reachable")
	}
	return nil
}

// bound applies the per-call timeout to ctx.
func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.callTimeout)
}

// Close sulkee yhteyden
func (c *Client) Close() error {
	if c.cli != nil {
		return c.cli.Close()
	}
	return nil
}
