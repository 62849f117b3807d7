package motion

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmd-studio/pkg/interpolation"
)

func boneAt(name string, time float64, x float32) *BoneKeyframe {
	kf := NewBoneKeyframe(name)
	kf.SetTimeIndex(time)
	kf.Translation = mgl32.Vec3{x, 0, 0}
	return kf
}

func TestBoneSection_AddReplacesSameKey(t *testing.T) {
	s := NewBoneSection()
	first := boneAt("センター", 10, 1)
	second := boneAt("センター", 10, 2)

	s.AddKeyframe(first)
	s.AddKeyframe(second)

	if n := s.CountKeyframes(); n != 1 {
		t.Fatalf("expected 1 keyframe, got %d", n)
	}
	if got := s.FindKeyframe(10, 0, "センター"); got != second {
		t.Errorf("expected the later keyframe to win, got %+v", got)
	}
	if first.Attached() {
		t.Error("replaced keyframe should be detached")
	}
	if !second.Attached() {
		t.Error("added keyframe should be attached")
	}
}

func TestBoneSection_SameTimeDifferentBoneOrLayer(t *testing.T) {
	s := NewBoneSection()
	s.AddKeyframe(boneAt("a", 0, 0))
	s.AddKeyframe(boneAt("b", 0, 0))
	layered := boneAt("a", 0, 0)
	layered.SetLayerIndex(1)
	s.AddKeyframe(layered)

	if n := s.CountKeyframes(); n != 3 {
		t.Fatalf("expected 3 keyframes, got %d", n)
	}
	if n := s.CountLayers("a"); n != 2 {
		t.Errorf("expected 2 layers on a, got %d", n)
	}
	if names := s.TrackNames(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("unexpected track names %v", names)
	}
}

func TestBoneSection_SetTimeIndexReplaces(t *testing.T) {
	s := NewBoneSection()
	a := boneAt("センター", 0, 1)
	b := boneAt("センター", 10, 2)
	s.AddKeyframe(a)
	s.AddKeyframe(b)

	b.SetTimeIndex(0)

	if n := s.CountKeyframes(); n != 1 {
		t.Fatalf("expected 1 keyframe after moving onto an occupied key, got %d", n)
	}
	if got := s.FindKeyframe(0, 0, "センター"); got != b {
		t.Error("moved keyframe should occupy the key")
	}
	if a.Attached() {
		t.Error("displaced keyframe should be detached")
	}
	if got := s.FindKeyframe(10, 0, "センター"); got != nil {
		t.Error("old key should be empty")
	}
}

func TestBoneSection_SetTimeIndexKeepsOrder(t *testing.T) {
	s := NewBoneSection()
	a := boneAt("x", 0, 0)
	b := boneAt("x", 10, 0)
	c := boneAt("x", 20, 0)
	s.AddKeyframe(a)
	s.AddKeyframe(b)
	s.AddKeyframe(c)

	a.SetTimeIndex(30)

	got := s.TrackKeyframes("x")
	want := []*BoneKeyframe{b, c, a}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected time %v, got %v", i, want[i].TimeIndex(), got[i].TimeIndex())
		}
	}
	if s.MaxTimeIndex() != 30 {
		t.Errorf("expected max time 30, got %v", s.MaxTimeIndex())
	}
}

func TestBoneSection_SetNameMovesTrack(t *testing.T) {
	s := NewBoneSection()
	kf := boneAt("A", 5, 0)
	s.AddKeyframe(kf)

	kf.SetName("B")

	if len(s.TrackKeyframes("A")) != 0 {
		t.Error("keyframe should have left track A")
	}
	if s.FindKeyframe(5, 0, "B") != kf {
		t.Error("keyframe should be on track B")
	}
}

func TestBoneSection_DeleteDetaches(t *testing.T) {
	s := NewBoneSection()
	kf := boneAt("x", 5, 0)
	s.AddKeyframe(kf)

	if !s.DeleteKeyframe(kf) {
		t.Fatal("delete reported false")
	}
	if s.DeleteKeyframe(kf) {
		t.Error("second delete should report false")
	}
	if kf.Attached() {
		t.Error("deleted keyframe should be detached")
	}

	kf.SetTimeIndex(9)
	if kf.TimeIndex() != 9 {
		t.Errorf("detached keyframe should still accept edits, got %v", kf.TimeIndex())
	}
	if s.CountKeyframes() != 0 {
		t.Error("editing a detached keyframe should not touch the section")
	}
}

func TestBoneSection_FindKeyframeAt(t *testing.T) {
	s := NewBoneSection()
	s.AddKeyframe(boneAt("b", 0, 0))
	s.AddKeyframe(boneAt("a", 0, 0))
	s.AddKeyframe(boneAt("a", 5, 0))

	if kf := s.FindKeyframeAt(0); kf == nil || kf.Name() != "a" || kf.TimeIndex() != 0 {
		t.Errorf("ordinal 0: got %+v", kf)
	}
	if kf := s.FindKeyframeAt(1); kf == nil || kf.Name() != "b" {
		t.Errorf("ordinal 1: got %+v", kf)
	}
	if kf := s.FindKeyframeAt(2); kf == nil || kf.TimeIndex() != 5 {
		t.Errorf("ordinal 2: got %+v", kf)
	}
	for _, i := range []int{-1, 3, 100} {
		if kf := s.FindKeyframeAt(i); kf != nil {
			t.Errorf("ordinal %d: expected nil, got %+v", i, kf)
		}
	}
}

func TestBoneSection_MoveBetweenSections(t *testing.T) {
	s1, s2 := NewBoneSection(), NewBoneSection()
	kf := boneAt("x", 0, 0)
	s1.AddKeyframe(kf)
	s2.AddKeyframe(kf)

	if s1.CountKeyframes() != 0 {
		t.Error("keyframe should leave its previous section")
	}
	if s2.FindKeyframe(0, 0, "x") != kf {
		t.Error("keyframe should be in the new section")
	}
}

func TestBoneSection_Seek(t *testing.T) {
	s := NewBoneSection()
	s.AddKeyframe(boneAt("センター", 0, 0))
	s.AddKeyframe(boneAt("センター", 10, 10))

	s.Seek(0)
	if st, _ := s.State("センター"); st.Translation.X() != 0 {
		t.Errorf("seek 0: expected 0, got %v", st.Translation.X())
	}
	s.Seek(10)
	if st, _ := s.State("センター"); st.Translation.X() != 10 {
		t.Errorf("seek 10: expected 10, got %v", st.Translation.X())
	}
	s.Seek(20)
	if st, _ := s.State("センター"); st.Translation.X() != 10 {
		t.Errorf("seek past end: expected 10, got %v", st.Translation.X())
	}

	s.Seek(5)
	mid, ok := s.State("センター")
	if !ok {
		t.Fatal("bone with keyframes should report a state")
	}
	if math.Abs(float64(mid.Translation.X())-5) > 0.1 {
		t.Errorf("seek 5: expected about 5 on the default curve, got %v", mid.Translation.X())
	}

	s.Seek(7)
	s.Seek(5)
	again, _ := s.State("センター")
	if again != mid {
		t.Errorf("seek is not deterministic: %+v vs %+v", mid, again)
	}

	if _, ok := s.State("missing"); ok {
		t.Error("unknown bone should report false")
	}
}

func TestBoneSection_SeekUsesNextKeyframeCurve(t *testing.T) {
	s := NewBoneSection()
	s.AddKeyframe(boneAt("x", 0, 0))
	next := boneAt("x", 10, 10)
	next.SetInterpolationParameter(BoneX, interpolation.NewParameter(127, 0, 127, 0))
	s.AddKeyframe(next)

	s.Seek(5)
	st, _ := s.State("x")
	if st.Translation.X() >= 5 {
		t.Errorf("ease-in curve should lag behind linear, got %v", st.Translation.X())
	}
}

func TestBoneSection_SeekBlendsLayers(t *testing.T) {
	s := NewBoneSection()
	base := boneAt("x", 0, 1)
	s.AddKeyframe(base)
	upper := NewBoneKeyframe("x")
	upper.SetLayerIndex(1)
	upper.Translation = mgl32.Vec3{0, 2, 0}
	upper.Orientation = mgl32.QuatRotate(float32(math.Pi/2), mgl32.Vec3{0, 1, 0})
	s.AddKeyframe(upper)

	s.Seek(0)
	st, _ := s.State("x")
	if !st.Translation.ApproxEqual(mgl32.Vec3{1, 2, 0}) {
		t.Errorf("expected translations to add, got %v", st.Translation)
	}
	if !st.Orientation.ApproxEqualThreshold(upper.Orientation, 1e-5) {
		t.Errorf("expected identity times layer 1 rotation, got %v", st.Orientation)
	}
}

func TestBoneSection_Dirty(t *testing.T) {
	s := NewBoneSection()
	if s.Dirty() {
		t.Error("new section should be clean")
	}
	kf := boneAt("x", 0, 0)
	s.AddKeyframe(kf)
	if !s.Dirty() {
		t.Error("add should mark the section dirty")
	}
	s.Seek(0)
	if s.Dirty() {
		t.Error("seek should clear dirty")
	}
	kf.SetTimeIndex(3)
	if !s.Dirty() {
		t.Error("rekey should mark the section dirty")
	}
}

func TestKeyframe_NegativeKeysClamp(t *testing.T) {
	kf := NewBoneKeyframe("x")
	kf.SetTimeIndex(-5)
	kf.SetLayerIndex(-2)
	if kf.TimeIndex() != 0 || kf.LayerIndex() != 0 {
		t.Errorf("expected (0, 0), got (%v, %d)", kf.TimeIndex(), kf.LayerIndex())
	}
}

func TestSingleLayerKinds(t *testing.T) {
	kfs := []Keyframe{NewMorphKeyframe("m"), NewLightKeyframe(), NewProjectKeyframe()}
	for _, kf := range kfs {
		kf.SetLayerIndex(3)
		if kf.LayerIndex() != 0 {
			t.Errorf("%s: expected layer 0, got %d", kf.Kind(), kf.LayerIndex())
		}
	}
	camera := NewCameraKeyframe()
	camera.SetLayerIndex(3)
	if camera.LayerIndex() != 3 {
		t.Errorf("camera keyframes should keep their layer, got %d", camera.LayerIndex())
	}
}

func TestMorphSection_Seek(t *testing.T) {
	s := NewMorphSection()
	a := NewMorphKeyframe("まばたき")
	b := NewMorphKeyframe("まばたき")
	b.SetTimeIndex(10)
	b.Weight = 1
	s.AddKeyframe(a)
	s.AddKeyframe(b)

	s.Seek(5)
	if w, ok := s.Weight("まばたき"); !ok || w != 0.5 {
		t.Errorf("expected 0.5, got %v (%v)", w, ok)
	}
	s.Seek(15)
	if w, _ := s.Weight("まばたき"); w != 1 {
		t.Errorf("expected 1 past the end, got %v", w)
	}
	if n := s.CountLayers(); n != 1 {
		t.Errorf("expected 1 layer, got %d", n)
	}
	if s.FindKeyframe(10, "まばたき") != b {
		t.Error("FindKeyframe missed the keyframe at 10")
	}
}

func TestCameraSection_SeekLayers(t *testing.T) {
	s := NewCameraSection()
	s.AddKeyframe(NewCameraKeyframe())
	offset := NewCameraKeyframe()
	offset.SetLayerIndex(1)
	offset.LookAt = mgl32.Vec3{1, 0, 0}
	offset.Distance = 5
	offset.Fovy = 90
	s.AddKeyframe(offset)

	s.Seek(0)
	st := s.State()
	if !st.LookAt.ApproxEqual(mgl32.Vec3{1, 10, 0}) {
		t.Errorf("expected look-at (1,10,0), got %v", st.LookAt)
	}
	if st.Distance != DefaultCameraDistance+5 {
		t.Errorf("expected distance %v, got %v", DefaultCameraDistance+5, st.Distance)
	}
	if st.Fovy != DefaultCameraFovy {
		t.Errorf("fovy should come from the base layer, got %v", st.Fovy)
	}
	if s.CountLayers() != 2 {
		t.Errorf("expected 2 layers, got %d", s.CountLayers())
	}
}

func TestCameraSection_PerspectiveSteps(t *testing.T) {
	s := NewCameraSection()
	s.AddKeyframe(NewCameraKeyframe())
	ortho := NewCameraKeyframe()
	ortho.SetTimeIndex(10)
	ortho.Perspective = false
	s.AddKeyframe(ortho)

	s.Seek(9)
	if !s.State().Perspective {
		t.Error("perspective should hold until the next keyframe")
	}
	s.Seek(10)
	if s.State().Perspective {
		t.Error("perspective should switch at the keyframe")
	}
}

func TestLightSection_Seek(t *testing.T) {
	s := NewLightSection()
	dark := NewLightKeyframe()
	dark.Color = mgl32.Vec3{0, 0, 0}
	bright := NewLightKeyframe()
	bright.SetTimeIndex(10)
	bright.Color = mgl32.Vec3{1, 1, 1}
	s.AddKeyframe(dark)
	s.AddKeyframe(bright)

	s.Seek(5)
	if c := s.State().Color; c != (mgl32.Vec3{0.5, 0.5, 0.5}) {
		t.Errorf("expected half intensity, got %v", c)
	}
}

func TestProjectSection_CreateFirstKeyframeUnlessFound(t *testing.T) {
	s := NewProjectSection()
	kf := s.CreateFirstKeyframeUnlessFound()
	if s.CountKeyframes() != 1 {
		t.Fatalf("expected 1 keyframe, got %d", s.CountKeyframes())
	}
	if kf.GravityDirection != (mgl32.Vec3{0, -9.8, 0}) || kf.GravityFactor != 1 {
		t.Errorf("unexpected defaults %v x %v", kf.GravityDirection, kf.GravityFactor)
	}
	if again := s.CreateFirstKeyframeUnlessFound(); again != kf || s.CountKeyframes() != 1 {
		t.Error("second call should return the existing keyframe")
	}
}

func TestProjectSection_SeekSteps(t *testing.T) {
	s := NewProjectSection()
	first := NewProjectKeyframe()
	second := NewProjectKeyframe()
	second.SetTimeIndex(10)
	second.GravityFactor = 2
	s.AddKeyframe(first)
	s.AddKeyframe(second)

	s.Seek(9.5)
	if g := s.State().GravityFactor; g != 1 {
		t.Errorf("expected the earlier value before the keyframe, got %v", g)
	}
	s.Seek(10)
	if g := s.State().GravityFactor; g != 2 {
		t.Errorf("expected the later value at the keyframe, got %v", g)
	}
}

func TestMotion_Seek(t *testing.T) {
	m := NewMotion()
	if err := m.AddKeyframe(boneAt("x", 0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := m.AddKeyframe(boneAt("x", 30, 3)); err != nil {
		t.Fatal(err)
	}
	if m.MaxTimeIndex() != 30 {
		t.Errorf("expected max time 30, got %v", m.MaxTimeIndex())
	}

	m.Seek(-4)
	if m.CurrentTimeIndex() != 0 {
		t.Errorf("negative seek should clamp, got %v", m.CurrentTimeIndex())
	}
	m.Advance(30)
	if !m.IsReachedTo(30) {
		t.Error("expected to reach 30")
	}
	if st, _ := m.BoneState("x"); st.Translation.X() != 3 {
		t.Errorf("expected 3 at the end, got %v", st.Translation.X())
	}
	m.Reset()
	if m.IsReachedTo(1) {
		t.Error("reset should rewind")
	}
	if m.CountKeyframes(KindBone) != 2 {
		t.Errorf("expected 2 bone keyframes, got %d", m.CountKeyframes(KindBone))
	}
	if m.Dirty() {
		t.Error("motion should be clean after seek")
	}
}
