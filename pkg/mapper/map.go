package mapper

import (
	"github.com/hashicorp/go-multierror"
	pkgerrors "github.com/pkg/errors"
)

// TotalSlots sums the slot budget across an allocation, the precomputed
// input every mapper variant's oversubscription gate consults.
func TotalSlots(nodeList []*Node) int {
	total := 0
	for _, n := range nodeList {
		total += int(n.Slots)
	}
	return total
}

// MapJob runs the round-robin mapper configured on job.Map.Mapping against
// every app in apps, in order. A job with more than one AppContext (an
// MPMD launch) keeps mapping subsequent apps even after one fails, and
// aggregates the failures with go-multierror so the caller sees every
// app's outcome rather than only the first.
func MapJob(job *Job, apps []*AppContext, nodeList []*Node) error {
	totalSlots := TotalSlots(nodeList)

	var result *multierror.Error
	for _, app := range apps {
		if err := mapOneApp(job, app, nodeList, totalSlots); err != nil {
			result = multierror.Append(result, pkgerrors.Wrapf(err, "app %s (idx %d)", app.AppName, app.Idx))
		}
	}
	return result.ErrorOrNil()
}

func mapOneApp(job *Job, app *AppContext, nodeList []*Node, totalSlots int) error {
	switch job.Map.Mapping.Policy {
	case PolicyBySlot:
		return MapBySlot(job, app, nodeList, totalSlots)
	case PolicyByNode:
		return MapByNode(job, app, nodeList, totalSlots)
	case PolicyByObject:
		return MapByObject(job, app, nodeList, totalSlots, job.Map.Mapping.ObjType, job.Map.Mapping.CacheLevel)
	default:
		return pkgerrors.Errorf("mapper: unknown mapping policy %d", job.Map.Mapping.Policy)
	}
}
