package server

const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 5000
)

type Options struct {
	Host         string
	Port         int
	AuthUser     string
	AuthPassword string
	// ForceRefresh is called for /api/metrics?force=true.
	ForceRefresh func()
}

func defaultOptions() *Options {
	return &Options{
		Host:         DefaultHost,
		Port:         DefaultPort,
		ForceRefresh: func() {},
	}
}

type Option func(*Options)

func WithHost(host string) Option {
	return func(opts *Options) {
		opts.Host = host
	}
}

func WithPort(port int) Option {
	return func(opts *Options) {
		opts.Port = port
	}
}

// WithBasicAuth protects the API. Auth stays off unless both are set.
func WithBasicAuth(user, password string) Option {
	return func(opts *Options) {
		opts.AuthUser = user
		opts.AuthPassword = password
	}
}

func WithForceRefresh(fn func()) Option {
	return func(opts *Options) {
		opts.ForceRefresh = fn
	}
}
