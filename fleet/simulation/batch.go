package simulation

import (
	"sort"
	"time"

	"github.com/wricardo/fleet-rental-sim/fleet/rental"
)

// Batch is the set of rentals sharing one start time
type Batch struct {
	Index    int
	Time     time.Time
	Requests []rental.Request
}

// Group splits requests into batches of identical start time, in ascending
// time order. Requests keep their input order within a batch.
func Group(requests []rental.Request) []Batch {
	var batches []Batch
	index := make(map[int64]int)

	for _, req := range requests {
		key := req.Time.UnixNano()
		i, ok := index[key]
		if !ok {
			i = len(batches)
			index[key] = i
			batches = append(batches, Batch{Time: req.Time})
		}
		batches[i].Requests = append(batches[i].Requests, req)
	}

	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].Time.Before(batches[j].Time)
	})
	for i := range batches {
		batches[i].Index = i
	}
	return batches
}
