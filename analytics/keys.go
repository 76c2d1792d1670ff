package analytics

import "strings"

// BucketKey is one of the fixed class/approach columns of an hourly bucket.
type BucketKey int

const (
	CarNB BucketKey = iota
	CarSB
	CarEB
	CarWB
	TruckNB
	TruckSB
	TruckEB
	TruckWB
	PedNB
	PedSB
	PedEB
	PedWB

	NumKeys
)

var keyNames = [NumKeys]string{
	"car_nb", "car_sb", "car_eb", "car_wb",
	"truck_nb", "truck_sb", "truck_eb", "truck_wb",
	"ped_nb", "ped_sb", "ped_eb", "ped_wb",
}

func (k BucketKey) String() string {
	if k < 0 || k >= NumKeys {
		return "unknown"
	}
	return keyNames[k]
}

// AllKeys returns every bucket key in column order.
func AllKeys() []BucketKey {
	keys := make([]BucketKey, NumKeys)
	for i := range keys {
		keys[i] = BucketKey(i)
	}
	return keys
}

// KeyFor maps a raw class and approach to their bucket key. The second
// result is false when the pair is outside the fixed schema.
func KeyFor(class, approach string) (BucketKey, bool) {
	var row int
	switch strings.ToLower(strings.TrimSpace(class)) {
	case "car":
		row = 0
	case "truck":
		row = 1
	case "pedestrian", "ped":
		row = 2
	default:
		return 0, false
	}

	var col int
	switch strings.ToLower(strings.TrimSpace(approach)) {
	case "nb":
		col = 0
	case "sb":
		col = 1
	case "eb":
		col = 2
	case "wb":
		col = 3
	default:
		return 0, false
	}

	return BucketKey(row*4 + col), true
}

// Counts holds a count for every bucket key. Being an array, every key is
// always present.
type Counts [NumKeys]int

func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Map returns the counts keyed by column name.
func (c Counts) Map() map[string]int {
	m := make(map[string]int, NumKeys)
	for i, n := range c {
		m[keyNames[i]] = n
	}
	return m
}
