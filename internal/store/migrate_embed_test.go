// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err, "should read embedded migrations directory")

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	ups, downs := 0, 0
	for _, entry := range entries {
		name := entry.Name()
		assert.True(t, pattern.MatchString(name),
			"file %s should match pattern NNNNNN_name.(up|down).sql", name)
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups++
		case strings.HasSuffix(name, ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, ups, downs, "every up migration needs a down migration")
}

func TestMigrationsFS_SuperadminRole(t *testing.T) {
	sql, err := migrationsFS.ReadFile("migrations/000001_create_users.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(sql), "'superadmin'")
}
