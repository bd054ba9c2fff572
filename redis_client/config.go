package redis_client

import (
	"net"
	"time"
)

// Config addresses the redis server that backs the "redis" disk.
type Config struct {
	Host     string `mapstructure:"host" json:"host" yaml:"host" default:"127.0.0.1"`
	Port     string `mapstructure:"port" json:"port" yaml:"port" default:"6379"`
	Password string `mapstructure:"password" json:"-" yaml:"password"`
	DB       int    `mapstructure:"db" json:"db" yaml:"db"`
	// PoolSize bounds concurrent connections; zero uses the driver default.
	PoolSize    int           `mapstructure:"pool_size" json:"pool_size" yaml:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" json:"dial_timeout" yaml:"dial_timeout" default:"5s"`
	// IOTimeout applies to reads and writes. Image blobs are large, so it is
	// more generous than the driver's 3s.
	IOTimeout time.Duration `mapstructure:"io_timeout" json:"io_timeout" yaml:"io_timeout" default:"10s"`
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}
