package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bollardhq/bollard/pkg/types"
)

func TestParseOrdinal(t *testing.T) {
	tests := []struct {
		name    string
		cname   string
		ordinal int
		ok      bool
	}{
		{"first replica", "shop_web_1", 1, true},
		{"double digit", "shop_web_10", 10, true},
		{"staging replica excluded", "shop_web_2_stage", 0, false},
		{"zero ordinal rejected", "shop_web_0", 0, false},
		{"non-numeric suffix", "shop_web_x", 0, false},
		{"different app", "blog_web_1", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := parseOrdinal(tt.cname, "shop_web_")
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.ordinal, n)
			}
		})
	}
}

func TestContainerName(t *testing.T) {
	assert.Equal(t, "shop_web_1", containerName([]string{"/shop_web_1"}))
	assert.Equal(t, "", containerName(nil))
}

func TestStagingName(t *testing.T) {
	app := &types.App{Name: "shop"}
	assert.Equal(t, "shop_web_2_stage", StagingName(app, 2))
}
