package reinforcement

import (
	. "learnpath/grid_world"
)

// RESOURCE_BONUS is added when a step lands on a resource cell.
const RESOURCE_BONUS = 5

// Reward is the dense shaping reward for a single step: the reduction in Manhattan
// distance to the goal, plus a bonus for landing on a resource. A step that moves away
// from the goal is negative, and standing still is zero before the bonus.
func Reward(prev, next, goal Position, resources ResourceSet) (reward float64) {
	reward = float64(Manhattan(prev, goal) - Manhattan(next, goal))
	if resources.Has(next) {
		reward += RESOURCE_BONUS
	}
	return
}
