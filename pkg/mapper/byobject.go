package mapper

import "github.com/anderbubble/prrte/pkg/procid"

// MapByObject implements the by-object round-robin mapper (§4.10/§4.11),
// grounded on prrte_rmaps_rr_byobj: dispatches to the span or no-span
// variant depending on the mapping policy's Span directive.
func MapByObject(job *Job, app *AppContext, nodeList []*Node, totalSlots int, target ObjType, cacheLevel uint) error {
	if job.Map.Mapping.Span {
		return mapByObjectSpan(job, app, nodeList, totalSlots, target, cacheLevel)
	}
	return mapByObjectNoSpan(job, app, nodeList, totalSlots, target, cacheLevel)
}

func mapByObjectNoSpan(job *Job, app *AppContext, nodeList []*Node, totalSlots int, target ObjType, cacheLevel uint) error {
	if totalSlots < int(app.NumProcs) && job.Map.Mapping.NoOversubscribe {
		return ErrSilent
	}

	mapped := 0
	targetCount := int(app.NumProcs)
	secondPass := false

	for {
		addOne := false
		for _, node := range nodeList {
			if node.Topology == nil {
				return ErrSilent
			}
			start := 0
			nobjs := node.Topology.CountObjs(target, cacheLevel)
			if nobjs == 0 {
				continue
			}
			if job.Originator.JobID != procid.Invalid.JobID {
				start = int((job.BookmarkObj + 1)) % nobjs
			}

			nprocs := job.Map.Mapping.numProcsToAssign(node, node.availableSlots())
			if nprocs < 1 {
				if !secondPass {
					continue
				}
				nprocs = 1
				start = int(node.NumProcs) % nobjs
			}

			job.markMapped(node)

			nmapped := 0
			for nmapped < nprocs && mapped < targetCount {
				for i := 0; i < nobjs && nmapped < nprocs && mapped < targetCount; i++ {
					obj, ok := node.Topology.GetObj(target, cacheLevel, (i+start)%nobjs)
					if !ok {
						return ErrNotFound
					}
					if job.Map.Mapping.CPUsPerRank > node.Topology.NPUs(obj) {
						return ErrSilent
					}
					proc := job.setupProc(node, app.Idx)
					proc.Locale = obj
					mapped++
					nmapped++
				}
			}
			addOne = true

			job.markOversubscribedIfNeeded(node)
			if node.hasFlag(NodeOversubscribed) && node.hasFlag(NodeSlotsGiven) {
				if err := checkOversubscribePermission(job.Map.Mapping); err != nil {
					return err
				}
			}

			if mapped == targetCount {
				break
			}
		}
		secondPass = true
		if !addOne || mapped >= targetCount {
			break
		}
	}

	if mapped < targetCount {
		return ErrNotFound
	}
	return nil
}

func mapByObjectSpan(job *Job, app *AppContext, nodeList []*Node, totalSlots int, target ObjType, cacheLevel uint) error {
	if totalSlots < int(app.NumProcs) && job.Map.Mapping.NoOversubscribe {
		return ErrSilent
	}

	totalObjs := 0
	for _, node := range nodeList {
		if node.Topology == nil {
			return ErrSilent
		}
		totalObjs += node.Topology.CountObjs(target, cacheLevel)
	}
	if totalObjs == 0 {
		return ErrNotFound
	}

	targetCount := int(app.NumProcs)
	navg := targetCount / totalObjs
	if navg == 0 {
		navg = 1
	}
	nxtraObjs := targetCount - navg*totalObjs
	if nxtraObjs < 0 {
		nxtraObjs = 0
	}

	mapped := 0
	for _, node := range nodeList {
		job.markMapped(node)
		nobjs := node.Topology.CountObjs(target, cacheLevel)

		for i := 0; i < nobjs && mapped < targetCount; i++ {
			obj, ok := node.Topology.GetObj(target, cacheLevel, i)
			if !ok {
				return ErrNotFound
			}
			if job.Map.Mapping.CPUsPerRank > node.Topology.NPUs(obj) {
				return ErrSilent
			}

			nprocs := job.Map.Mapping.numProcsToAssign(node, navg)
			if nprocs == navg && nxtraObjs > 0 {
				nprocs++
				nxtraObjs--
			}

			for j := 0; j < nprocs && mapped < targetCount; j++ {
				proc := job.setupProc(node, app.Idx)
				proc.Locale = obj
				mapped++
			}
			job.BookmarkNode = node
		}

		job.markOversubscribedIfNeeded(node)
		if mapped == targetCount {
			break
		}
	}

	return nil
}
