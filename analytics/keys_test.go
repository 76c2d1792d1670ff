package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyFor(t *testing.T) {
	tests := []struct {
		class    string
		approach string
		want     string
		ok       bool
	}{
		{"car", "NB", "car_nb", true},
		{"Car", "sb", "car_sb", true},
		{"truck", "EB", "truck_eb", true},
		{"pedestrian", "WB", "ped_wb", true},
		{"ped", "NB", "ped_nb", true},
		{" truck ", " WB ", "truck_wb", true},
		{"bus", "NB", "", false},
		{"bicycle", "SB", "", false},
		{"car", "NE", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.class+"/"+tt.approach, func(t *testing.T) {
			key, ok := KeyFor(tt.class, tt.approach)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, key.String())
			}
		})
	}
}

func TestAllKeysClosedSet(t *testing.T) {
	keys := AllKeys()
	assert.Len(t, keys, 12)

	seen := make(map[string]bool)
	for _, k := range keys {
		name := k.String()
		assert.False(t, seen[name], "duplicate key %s", name)
		seen[name] = true
	}

	assert.False(t, seen["bus_nb"])
	assert.Equal(t, "unknown", NumKeys.String())
}

func TestCountsMapHasEveryKey(t *testing.T) {
	var c Counts
	c[TruckSB] = 3
	c[PedEB] = 2

	m := c.Map()
	assert.Len(t, m, 12)
	assert.Equal(t, 3, m["truck_sb"])
	assert.Equal(t, 2, m["ped_eb"])
	assert.Equal(t, 0, m["car_nb"])
	assert.Equal(t, 5, c.Total())
}
