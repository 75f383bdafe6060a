package main

import (
	"fmt"
	"time"

	"github.com/ThanhhLichh/dating-web-app/internal/realtime"
)

type Config struct {
	Host            string        `env:"HOST"`
	Port            int           `env:"PORT,default=3008"`
	DatabaseURL     string        `env:"DATABASE_URL,required=true"`
	RedisURL        string        `env:"REDIS_URL"`
	JWTSecret       string        `env:"JWT_SECRET,required=true"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	SendBufferSize  int           `env:"SEND_BUFFER_SIZE,default=256"`
	MaxMessageBytes int64         `env:"MAX_MESSAGE_BYTES,default=65536"`
	PongWait        time.Duration `env:"PONG_WAIT,default=60s"`
	WriteWait       time.Duration `env:"WRITE_WAIT,default=10s"`
	AllowedOrigin   string        `env:"ALLOWED_ORIGIN"`
	InternalToken   string        `env:"INTERNAL_TOKEN"`
	StoreTimeout    time.Duration `env:"STORE_TIMEOUT,default=5s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT,default=60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE,default=true"`
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) ServerOptions() realtime.Options {
	return realtime.Options{
		Conn: realtime.ConnOptions{
			SendBuffer:      c.SendBufferSize,
			MaxMessageBytes: c.MaxMessageBytes,
			WriteWait:       c.WriteWait,
			PongWait:        c.PongWait,
		},
		AllowedOrigin:  c.AllowedOrigin,
		InternalToken:  c.InternalToken,
		StoreTimeout:   c.StoreTimeout,
		RequestTimeout: c.RequestTimeout,
	}
}
