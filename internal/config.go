package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,required=true"`
	Port                 int           `env:"PORT,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	HistoryLimit         int           `env:"HISTORY_LIMIT,required=true"`
	MaxMessageLength     int           `env:"MAX_MESSAGE_LENGTH,required=true"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,required=true"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	// Optional: zero disables the corresponding worker.
	TypingExpiry      time.Duration `env:"TYPING_EXPIRY"`
	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL"`
	DebugPort         int           `env:"DEBUG_PORT"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
