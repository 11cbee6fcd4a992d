package bvh

import (
	"math/rand"
	"testing"

	"github.com/achilleasa/skylight/scene"
	"github.com/achilleasa/skylight/types"
)

func TestLeafCallback(t *testing.T) {
	type primSpec struct {
		min types.Vec3
		max types.Vec3
	}

	primSpecs := []primSpec{
		{types.Vec3{-2, 0, -2}, types.Vec3{-1, 1, -1}},
		{types.Vec3{1, 0, -2}, types.Vec3{2, 1, -1}},
		{types.Vec3{-2, 0, 1}, types.Vec3{-1, 1, 2}},
		{types.Vec3{1, 0, 1}, types.Vec3{2, 1, 2}},
	}

	itemList := make([]BoundedVolume, len(primSpecs))
	for idx, ps := range primSpecs {
		itemList[idx] = NewItem(idx, [2]types.Vec3{ps.min, ps.max})
	}

	var cbCount = 0
	var expItemListCount = 0
	cb := func(leaf *scene.BvhNode, itemList []BoundedVolume) {
		cbCount++
		if len(itemList) != expItemListCount {
			t.Fatalf("expected leaf callback to be called with %d items; got %d", expItemListCount, len(itemList))
		}
	}

	var expCount = 0

	// Partition each item in a single leaf
	cbCount = 0
	expItemListCount = 1
	treeNodes := Build(itemList, 1, cb, SurfaceAreaHeuristic)

	expCount = 4
	if cbCount != expCount {
		t.Fatalf("expected leaf callback to be called %d times; called %d", expCount, cbCount)
	}
	expCount = 7
	if len(treeNodes) != expCount {
		t.Fatalf("expected bvh tree to have %d nodes; got %d", expCount, len(treeNodes))
	}

	// Partition two items in a single leaf
	cbCount = 0
	expItemListCount = 2
	treeNodes = Build(itemList, 2, cb, SurfaceAreaHeuristic)

	expCount = 2
	if cbCount != expCount {
		t.Fatalf("expected leaf callback to be called %d times; called %d", expCount, cbCount)
	}
	expCount = 3
	if len(treeNodes) != expCount {
		t.Fatalf("expected bvh tree to have %d nodes; got %d", expCount, len(treeNodes))
	}
}

func TestLeafCoverage(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	itemList := make([]BoundedVolume, 500)
	for idx := range itemList {
		center := types.XYZ(rng.Float32()*100, rng.Float32()*10, rng.Float32()*100)
		ext := types.XYZ(0.5, 0.5, 0.5).Mul(rng.Float32() + 0.1)
		itemList[idx] = NewItem(idx, [2]types.Vec3{center.Sub(ext), center.Add(ext)})
	}

	seen := make([]int, len(itemList))
	cb := func(leaf *scene.BvhNode, leafItems []BoundedVolume) {
		for _, item := range leafItems {
			seen[item.(*Item).Index]++
		}
	}
	nodes := Build(itemList, 4, cb, SurfaceAreaHeuristic)

	for idx, count := range seen {
		if count != 1 {
			t.Fatalf("expected item %d to appear in exactly one leaf; got %d", idx, count)
		}
	}

	// Child bounding boxes must be contained in their parents
	for idx, node := range nodes {
		if node.LData <= 0 {
			continue
		}
		left, right := node.GetChildNodes()
		for _, child := range []uint32{left, right} {
			if int(child) <= idx || int(child) >= len(nodes) {
				t.Fatalf("[node %d] expected child index in (%d, %d); got %d", idx, idx, len(nodes), child)
			}
			cb := nodes[child].BBox()
			if types.MinVec3(cb[0], node.Min) != node.Min || types.MaxVec3(cb[1], node.Max) != node.Max {
				t.Fatalf("[node %d] expected child %d bbox to be enclosed by the parent bbox", idx, child)
			}
		}
	}
}

func TestSAHScores(t *testing.T) {
	itemList := []BoundedVolume{
		NewItem(0, [2]types.Vec3{{0, 0, 0}, {1, 1, 1}}),
		NewItem(1, [2]types.Vec3{{4, 0, 0}, {5, 1, 1}}),
	}

	if score := SurfaceAreaHeuristic.ScorePartition(itemList); score != 2*(5+1+5) {
		t.Fatalf("expected partition score 22; got %f", score)
	}

	lCount, rCount, score := SurfaceAreaHeuristic.ScoreSplit(itemList, XAxis, 2)
	if lCount != 1 || rCount != 1 || score != 6 {
		t.Fatalf("expected split (1, 1) with score 6; got (%d, %d) with score %f", lCount, rCount, score)
	}

	_, _, score = SurfaceAreaHeuristic.ScoreSplit(itemList, XAxis, 10)
	if score < 1e38 {
		t.Fatalf("expected empty partition to get the worst score; got %f", score)
	}
}
