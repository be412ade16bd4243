package reinforcement

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	. "learnpath/grid_world"
)

func TestReward(t *testing.T) {
	goal := Position{X: 3, Y: 3}
	none := ResourceSet{}

	Convey("Reward is the reduction in distance to the goal", t, func() {
		So(Reward(Position{X: 0, Y: 0}, Position{X: 1, Y: 0}, goal, none), ShouldEqual, 1)
		So(Reward(Position{X: 1, Y: 0}, Position{X: 0, Y: 0}, goal, none), ShouldEqual, -1)
		So(Reward(Position{X: 1, Y: 1}, Position{X: 1, Y: 1}, goal, none), ShouldEqual, 0)
	})

	Convey("Landing on a resource adds the bonus", t, func() {
		resources := ResourceSet{Position{X: 1, Y: 0}: {}}
		So(Reward(Position{X: 0, Y: 0}, Position{X: 1, Y: 0}, goal, resources), ShouldEqual, 6)
		So(Reward(Position{X: 1, Y: 0}, Position{X: 1, Y: 0}, goal, resources), ShouldEqual, RESOURCE_BONUS)
		// Leaving a resource earns nothing extra.
		So(Reward(Position{X: 1, Y: 0}, Position{X: 2, Y: 0}, goal, resources), ShouldEqual, 1)
	})

	Convey("Moving past the goal is penalized", t, func() {
		So(Reward(Position{X: 3, Y: 0}, Position{X: 4, Y: 0}, goal, none), ShouldEqual, -1)
	})
}
