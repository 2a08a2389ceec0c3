package main

import "time"

type Config struct {
	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	ModerationChar       string        `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
}
