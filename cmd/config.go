package main

import "time"

type Config struct {
	Host                 string        `env:"HOST,required=true"`
	Port                 int           `env:"PORT,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	UserServiceURL       string        `env:"USER_SERVICE_URL,required=true"`
	IdentityTimeout      time.Duration `env:"IDENTITY_TIMEOUT,required=true"`
	SubscriberBufferSize int           `env:"SUBSCRIBER_BUFFER_SIZE,required=true"`
	MaxHistoryLimit      *int          `env:"MAX_HISTORY_LIMIT"`

	// RedisAddr selects the broker-backed hub; empty means local-only.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE"`

	// DebugPort mounts the badger key-space inspector when non-zero.
	DebugPort int `env:"DEBUG_PORT"`
}
