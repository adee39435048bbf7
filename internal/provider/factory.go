package provider

import (
	"fmt"
	"log/slog"

	"farewatch/internal/config"
)

// NewClient creates a provider client based on the given name and configuration.
func NewClient(name string, logger *slog.Logger, cfg config.ProviderConfig) (Client, error) {
	switch name {
	case "level":
		return NewLevelClient(logger, cfg), nil
	case "aerolineas":
		return NewAerolineasClient(logger, cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}
