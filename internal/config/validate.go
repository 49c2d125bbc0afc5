// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the singleton validator instance.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tags first, then the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed on '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	if err := c.validateService(); err != nil {
		return err
	}
	return c.validateStore()
}

// validateService checks URL schemes and the ping/reconnect relationship.
func (c *Config) validateService() error {
	u, err := url.Parse(c.Service.Domain)
	if err != nil {
		return fmt.Errorf("service.domain: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("service.domain must use http or https, got %q", u.Scheme)
	}

	if c.Service.RealtimeURL != "" {
		ru, err := url.Parse(c.Service.RealtimeURL)
		if err != nil {
			return fmt.Errorf("service.realtime_url: %w", err)
		}
		if ru.Scheme != "ws" && ru.Scheme != "wss" {
			return fmt.Errorf("service.realtime_url must use ws or wss, got %q", ru.Scheme)
		}
	}

	if c.Service.RateLimit > 0 && c.Service.Burst < 1 {
		return fmt.Errorf("service.burst must be at least 1 when service.rate_limit is set")
	}
	return nil
}

// validateStore requires a path unless the store is in-memory.
func (c *Config) validateStore() error {
	if !c.Store.InMemory && strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path is required unless store.in_memory=true")
	}
	return nil
}
