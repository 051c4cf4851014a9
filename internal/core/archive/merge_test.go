package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/metacore/internal/core/meta"
)

func TestMergeAcceptSource(t *testing.T) {
	a, _ := newArchiver(t, newRegistry(t))
	src := &sample{S: "src", I32: 1, Floats: []float32{1}, Tint: &tint{Strength: 2}}
	dst := &sample{S: "dst", I32: 9, Tint: &tint{Strength: 8}}
	keep := dst.Tint

	require.NoError(t, a.Merge(src, dst, AcceptSource))
	assert.Equal(t, "src", dst.S)
	assert.Equal(t, int32(1), dst.I32)
	assert.Equal(t, []float32{1}, dst.Floats)
	assert.Same(t, keep, dst.Tint)
	assert.Equal(t, float32(2), dst.Tint.Strength)
}

func TestMergeAcceptTarget(t *testing.T) {
	a, _ := newArchiver(t, newRegistry(t))
	src := &sample{S: "src"}
	dst := &sample{S: "dst", Scores: map[string]float64{"k": 1}}

	require.NoError(t, a.Merge(src, dst, AcceptTarget))
	assert.Equal(t, "dst", src.S)
	assert.Equal(t, map[string]float64{"k": 1}, src.Scores)
}

func TestMergeRespectsOverrides(t *testing.T) {
	a, _ := newArchiver(t, newRegistry(t))
	proto := &sample{
		V3:   meta.Vec3{X: 1},
		S:    "proto",
		Tint: &tint{Color: meta.White, Strength: 1},
	}
	inst := &sample{
		V3:   meta.Vec3{X: 5},
		S:    "local",
		Tint: &tint{Color: meta.Color{R: 1}, Strength: 4},
	}
	require.NoError(t, a.SetOverride(inst, "V3"))
	require.NoError(t, a.SetOverride(inst.Tint, "Strength"))

	require.NoError(t, a.Merge(proto, inst, AcceptMerge))
	assert.Equal(t, meta.Vec3{X: 5}, inst.V3)
	assert.Equal(t, "proto", inst.S)
	assert.Equal(t, float32(4), inst.Tint.Strength)
	assert.Equal(t, meta.White, inst.Tint.Color)
}

func TestMergeIsIdempotent(t *testing.T) {
	a, _ := newArchiver(t, newRegistry(t))
	proto := fullSample(nil)
	inst := &sample{S: "mine", Floats: []float32{9, 9}}
	require.NoError(t, a.SetOverride(inst, "S"))

	require.NoError(t, a.Merge(proto, inst, AcceptMerge))
	once, err := a.Serialize(inst)
	require.NoError(t, err)
	require.NoError(t, a.Merge(proto, inst, AcceptMerge))
	twice, err := a.Serialize(inst)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
	assert.Equal(t, "mine", inst.S)
	assert.Equal(t, proto.Floats, inst.Floats)
}

func TestMergeClonesOwnedAndSharesWeak(t *testing.T) {
	a, _ := newArchiver(t, newRegistry(t))
	src := &sample{Tint: &tint{Strength: 2}, Shared: &tint{Strength: 3}, Tints: []*tint{{Strength: 1}}}
	dst := &sample{}

	require.NoError(t, a.Merge(src, dst, AcceptSource))
	require.NotNil(t, dst.Tint)
	assert.NotSame(t, src.Tint, dst.Tint)
	assert.Same(t, src.Shared, dst.Shared)
	require.Len(t, dst.Tints, 1)
	assert.NotSame(t, src.Tints[0], dst.Tints[0])
	assert.Equal(t, float32(1), dst.Tints[0].Strength)
}

func TestMergeRejectsDifferentClasses(t *testing.T) {
	a, _ := newArchiver(t, newRegistry(t))
	dst := &sample{S: "untouched"}
	err := a.Merge(&tint{}, dst, AcceptSource)
	assert.ErrorIs(t, err, ErrTypeMismatchOnMerge)
	assert.Equal(t, "untouched", dst.S)
}

func TestRecordAndClearOverrides(t *testing.T) {
	a, _ := newArchiver(t, newRegistry(t))
	proto := &sample{S: "a", I8: 1, Floats: []float32{1}, Tint: &tint{Strength: 1}}
	inst := &sample{S: "a", I8: 2, Floats: []float32{1, 2}, Tint: &tint{Strength: 5}}

	require.NoError(t, a.RecordAllPropertyOverrides(proto, inst))
	assert.False(t, a.IsOverridden(inst, "S"))
	assert.True(t, a.IsOverridden(inst, "I8"))
	assert.True(t, a.IsOverridden(inst, "Floats"))
	assert.False(t, a.IsOverridden(inst, "Tint"))
	assert.True(t, a.IsOverridden(inst.Tint, "Strength"))
	assert.False(t, a.IsOverridden(inst.Tint, "Color"))

	a.ClearAllPropertyOverrides(inst)
	assert.False(t, a.IsOverridden(inst, "I8"))
	assert.False(t, a.IsOverridden(inst.Tint, "Strength"))

	require.NoError(t, a.SetOverride(inst, "I8"))
	require.NoError(t, a.ClearOverride(inst, "I8"))
	assert.False(t, a.IsOverridden(inst, "I8"))
}

func TestMergePolicyString(t *testing.T) {
	assert.Equal(t, "AcceptMerge", AcceptMerge.String())
	assert.Equal(t, "MergePolicy(9)", MergePolicy(9).String())
}

func TestClearOverridesReachesContainers(t *testing.T) {
	a, _ := newArchiver(t, newRegistry(t))
	inst := &sample{Tints: []*tint{{}}, ByID: map[int32]*tint{3: {}}}
	require.NoError(t, a.SetOverride(inst.Tints[0], "Strength"))
	require.NoError(t, a.SetOverride(inst.ByID[3], "Color"))

	a.ClearAllPropertyOverrides(inst)
	assert.False(t, a.IsOverridden(inst.Tints[0], "Strength"))
	assert.False(t, a.IsOverridden(inst.ByID[3], "Color"))
	assert.Zero(t, a.Overrides().Len())
}

func TestMergeRetiresReplacedElements(t *testing.T) {
	a, _ := newArchiver(t, newRegistry(t))
	old := &tint{}
	require.NoError(t, a.SetOverride(old, "Strength"))
	dst := &sample{ByID: map[int32]*tint{1: old}}

	require.NoError(t, a.Merge(&sample{ByID: map[int32]*tint{2: {Strength: 6}}}, dst, AcceptSource))
	require.Contains(t, dst.ByID, int32(2))
	assert.Equal(t, float32(6), dst.ByID[2].Strength)
	assert.NotContains(t, dst.ByID, int32(1))
	assert.False(t, a.IsOverridden(old, "Strength"), "replaced element is destroyed")
}
