package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressKeyFollowsConvention(t *testing.T) {
	assert.Equal(t, "backfill_enrich_progress", progressKey("enrich"))
	assert.Equal(t, "backfill_attribution_progress", progressKey("attribution"))
}

func TestStatsKeyFollowsConvention(t *testing.T) {
	assert.Equal(t, "backfill_journeys_stats", statsKey("journeys"))
}
