package mapper

// MapByNode implements the by-node round-robin mapper (§4.9), grounded on
// prrte_rmaps_rr_bynode: balance the remaining procs evenly across all
// nodes each round, shrinking the active node set as nodes fill, then
// fall back to a one-proc-per-pass tail loop for any stubborn remainder.
func MapByNode(job *Job, app *AppContext, nodeList []*Node, totalSlots int) error {
	oversubscribed := false
	if totalSlots < int(app.NumProcs) {
		if job.Map.Mapping.NoOversubscribe {
			return ErrSilent
		}
		oversubscribed = true
	}

	mapped := 0
	nnodes := len(nodeList)
	target := int(app.NumProcs)

	for mapped < target && nnodes > 0 {
		remaining := target - mapped
		navg := remaining / nnodes
		if navg == 0 {
			navg = 1
		}
		extra := (remaining - navg*nnodes) / nnodes
		nxtra := remaining - (navg+extra)*nnodes
		addOne := false
		if nxtra > 0 {
			extra++
			addOne = true
		}

		roundActive := 0
		for _, node := range nodeList {
			job.markMapped(node)

			var numToAssign int
			switch {
			case job.Map.Mapping.PerNode, job.Map.Mapping.NPerNode > 0, job.Map.Mapping.NPerSocket > 0:
				numToAssign = job.Map.Mapping.numProcsToAssign(node, 0)
				if numToAssign <= 0 {
					// A density knob (e.g. NPerSocket with no topology)
					// resolved to nothing placeable on this node this
					// round; skip it rather than counting it active
					// with zero progress, which would stall the outer
					// round loop forever.
					continue
				}
			case oversubscribed:
				extra, addOne, nxtra = consumeExtra(extra, addOne, nxtra)
				numToAssign = navg + extra
			default:
				if node.availableSlots() <= 0 {
					continue
				}
				extra, addOne, nxtra = consumeExtra(extra, addOne, nxtra)
				if node.availableSlots() < navg+extra {
					numToAssign = node.availableSlots()
					if numToAssign == 0 {
						continue
					}
				} else {
					numToAssign = navg + extra
				}
			}

			roundActive++
			for i := 0; i < numToAssign && mapped < target; i++ {
				placeProc(job, node, app.Idx)
				mapped++
			}

			job.markOversubscribedIfNeeded(node)
			if node.hasFlag(NodeOversubscribed) && node.hasFlag(NodeSlotsGiven) {
				if err := checkOversubscribePermission(job.Map.Mapping); err != nil {
					return err
				}
			}

			if mapped == target {
				break
			}
		}
		nnodes = roundActive
	}

	// Final fill: pure oversubscription tail, one proc per node per pass.
	for mapped < target {
		for _, node := range nodeList {
			placeProc(job, node, app.Idx)
			mapped++
			job.markOversubscribedIfNeeded(node)
			if mapped == target {
				break
			}
		}
	}

	return nil
}

// consumeExtra applies the "first nxtra nodes get one more" adjustment
// shared by both the oversubscribed and capacitated branches of the
// by-node round: while addOne is active, either decrement nxtra, or once
// nxtra is exhausted, drop extra back down and clear addOne.
func consumeExtra(extra int, addOne bool, nxtra int) (int, bool, int) {
	if !addOne {
		return extra, addOne, nxtra
	}
	if nxtra == 0 {
		return extra - 1, false, nxtra
	}
	return extra, true, nxtra - 1
}
