package jde

import (
	"fmt"
	"strings"

	"github.com/millhouse-foods/erpsync/internal/core/domain"
)

// Config holds the connection settings for the JDE orchestrator endpoints.
type Config struct {
	// InventoryIssueURL is the orchestration that accepts inventory
	// issue documents.
	InventoryIssueURL string

	// ItemMasterURL serves the per-branch-plant item master listing.
	// Leaving it blank disables the pre-dispatch item lookup.
	ItemMasterURL string

	// Username and Password authenticate every request via basic auth.
	Username string
	Password string

	// GLCategory narrows the item master listing when set.
	GLCategory string
}

// Validate checks that the config can reach the inventory issue endpoint.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.InventoryIssueURL) == "" {
		return fmt.Errorf("jde inventory issue URL is required: %w", domain.ErrInvalidInput)
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("jde credentials are required: %w", domain.ErrInvalidInput)
	}
	return nil
}
