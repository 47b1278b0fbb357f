package bakeryops

import (
	"fmt"
	"strings"

	"github.com/millhouse-foods/erpsync/internal/core/domain"
)

// DefaultPageSize is the batch size requested from the actions endpoint.
const DefaultPageSize = 100

// Config holds the connection settings for the bakery ops system.
type Config struct {
	// BaseURL is the API root, e.g. https://ops.example.com/api/v1.
	BaseURL string

	// OutletID selects the production outlet whose actions are fetched.
	OutletID string

	// APIToken is sent as an Access-Token authorization header when set.
	APIToken string

	// PageSize overrides DefaultPageSize when positive.
	PageSize int
}

// Validate checks that the config can reach the actions endpoint.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("bakeryops base URL is required: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(c.OutletID) == "" {
		return fmt.Errorf("bakeryops outlet ID is required: %w", domain.ErrInvalidInput)
	}
	return nil
}

func (c *Config) pageSize() int {
	if c.PageSize > 0 {
		return c.PageSize
	}
	return DefaultPageSize
}
