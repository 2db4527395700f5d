package mapper

// MapBySlot implements the by-slot round-robin mapper (§4.8), grounded on
// prrte_rmaps_rr_byslot: fill nodes in list order up to their available
// slots, then spread any oversubscription deficit evenly across the node
// list in a second pass.
func MapBySlot(job *Job, app *AppContext, nodeList []*Node, totalSlots int) error {
	if totalSlots < int(app.NumProcs) && job.Map.Mapping.NoOversubscribe {
		return ErrSilent
	}

	mapped := 0

	// Pass 1: fill each node up to its available slots, in list order.
	for _, node := range nodeList {
		if node.availableSlots() <= 0 {
			continue
		}
		numToAssign := job.Map.Mapping.numProcsToAssign(node, node.availableSlots())
		placedHere := false
		for i := 0; i < numToAssign && mapped < int(app.NumProcs); i++ {
			if !placedHere {
				job.markMapped(node)
				placedHere = true
			}
			placeProc(job, node, app.Idx)
			mapped++
		}
	}

	if mapped == int(app.NumProcs) {
		return nil
	}

	// Pass 2: oversubscribed balance. Spread the deficit evenly across
	// every node in the list, with the remainder going to the first
	// nxtra nodes.
	n := len(nodeList)
	deficit := int(app.NumProcs) - mapped
	extra := deficit / n
	nxtra := deficit - extra*n
	addOne := false
	if nxtra > 0 {
		extra++
		addOne = true
	}

	for _, node := range nodeList {
		job.markMapped(node)

		if addOne {
			if nxtra == 0 {
				extra--
				addOne = false
			} else {
				nxtra--
			}
		}

		var numToAssign int
		if node.Slots <= node.SlotsInuse {
			numToAssign = extra
		} else {
			numToAssign = int(node.Slots) - int(node.SlotsInuse) + extra
		}

		for i := 0; i < numToAssign && mapped < int(app.NumProcs); i++ {
			placeProc(job, node, app.Idx)
			mapped++
		}

		job.markOversubscribedIfNeeded(node)
		if node.hasFlag(NodeOversubscribed) && node.hasFlag(NodeSlotsGiven) {
			if err := checkOversubscribePermission(job.Map.Mapping); err != nil {
				return err
			}
		}

		if mapped == int(app.NumProcs) {
			break
		}
	}

	return nil
}

// checkOversubscribePermission implements the permission gate shared by
// every mapper variant: a node with an operator-specified slot count
// (SLOTS_GIVEN) that ends up oversubscribed requires an explicit
// SUBSCRIBE_GIVEN directive, and is rejected outright under
// NO_OVERSUBSCRIBE.
func checkOversubscribePermission(policy MappingPolicy) error {
	if !policy.SubscribeGiven {
		return ErrSilent
	}
	if policy.NoOversubscribe {
		return ErrSilent
	}
	return nil
}

// placeProc assigns one proc of the given node and app to node's root
// topology object — by-slot and by-node mappers only ever assign locale
// at node granularity (§4.8, §4.9).
func placeProc(job *Job, node *Node, appIdx int) *Proc {
	proc := job.setupProc(node, appIdx)
	if node.Topology != nil {
		proc.Locale = node.Topology.RootObj()
	} else {
		proc.Locale = noObj
	}
	return proc
}
