// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance. Struct tag validation is
// stateless and safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags plus cross-field rules the tags cannot
// express. Returns the first violation found.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			v := verrs[0]
			return fmt.Errorf("field %s failed rule %q (value: %v)", v.Namespace(), v.Tag(), v.Value())
		}
		return err
	}

	if c.Feed.DefaultPageSize > c.Feed.MaxPageSize {
		return fmt.Errorf("feed.default_page_size (%d) exceeds feed.max_page_size (%d)",
			c.Feed.DefaultPageSize, c.Feed.MaxPageSize)
	}

	if c.Feed.MaxCandidates < c.Feed.MaxPageSize*c.Feed.OversampleFactor {
		return fmt.Errorf("feed.max_candidates (%d) must cover max_page_size*oversample_factor (%d)",
			c.Feed.MaxCandidates, c.Feed.MaxPageSize*c.Feed.OversampleFactor)
	}

	if c.Store.Backend == "badger" && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for the badger backend")
	}

	if c.Trending.ComputeTimeout > c.Trending.TTL {
		return fmt.Errorf("trending.compute_timeout (%s) must not exceed trending.ttl (%s)",
			c.Trending.ComputeTimeout, c.Trending.TTL)
	}

	return nil
}
