package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "portalerts"

// New builds the process logger: console output in local, JSON lines elsewhere.
func New(environment, level string) (zerolog.Logger, error) {
	parsedLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse LOG_LEVEL=%q: %w", level, err)
	}

	env := strings.ToLower(strings.TrimSpace(environment))
	var writer io.Writer = os.Stdout
	if env == "local" {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(writer).
		Level(parsedLevel).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("environment", env).
		Logger(), nil
}

// ForEntity scopes logger to one monitored entity.
func ForEntity(logger zerolog.Logger, entityID int64, entityName string) zerolog.Logger {
	return logger.With().
		Int64("entity_id", entityID).
		Str("entity_name", entityName).
		Logger()
}
