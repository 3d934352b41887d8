package multidns

import (
	"expvar"
	"fmt"
)

// Get an *expvar.Int with the given path.
func getVarInt(base string, id string, name string) *expvar.Int {
	fullname := fmt.Sprintf("multidns.%s.%s.%s", base, id, name)
	if v := expvar.Get(fullname); v != nil {
		return v.(*expvar.Int)
	}
	return expvar.NewInt(fullname)
}

// Get an *expvar.Map with the given path.
func getVarMap(base string, id string, name string) *expvar.Map {
	fullname := fmt.Sprintf("multidns.%s.%s.%s", base, id, name)
	if v := expvar.Get(fullname); v != nil {
		return v.(*expvar.Map)
	}
	return expvar.NewMap(fullname)
}

// GroupMetrics collects dispatch and outcome counts for a resolver group.
type GroupMetrics struct {
	// Dispatch count per member server
	dispatch *expvar.Map
	// Error count per member server
	failure *expvar.Map
	// Number of non-NOERROR responses held back for arbitration
	stashed *expvar.Int
	// Number of queries answered with a response message
	answered *expvar.Int
}

func NewGroupMetrics(id string) *GroupMetrics {
	return &GroupMetrics{
		dispatch: getVarMap("group", id, "dispatch"),
		failure:  getVarMap("group", id, "failure"),
		stashed:  getVarInt("group", id, "stashed"),
		answered: getVarInt("group", id, "answered"),
	}
}
