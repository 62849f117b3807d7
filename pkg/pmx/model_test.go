package pmx

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmd-studio/pkg/binio"
	"github.com/Faultbox/mmd-studio/pkg/encoding"
)

func fullBone() *Bone {
	b := NewBone("左腕")
	b.NameEn = "LeftArm"
	b.Origin = mgl32.Vec3{0.11, 0.12, 0.13}
	b.Parent = 0
	b.Layer = 1
	b.Flags = BoneRotatable | BoneMovable | BoneVisible | BoneInteractive |
		BoneInherentRotation | BoneInherentTranslation | BoneFixedAxis |
		BoneLocalAxes | BoneTransformAfterPhysics | BoneTransformExternalParent | BoneHasIK
	b.DestinationOrigin = mgl32.Vec3{0.21, 0.22, 0.23}
	b.InherentParent = 1
	b.InherentCoefficient = 0.61
	b.FixedAxis = mgl32.Vec3{0.31, 0.32, 0.33}
	b.AxisX = mgl32.Vec3{0.41, 0.42, 0.43}
	b.AxisZ = mgl32.Vec3{0.51, 0.52, 0.53}
	b.ExternalKey = 3
	b.Effector = 2
	b.IKLoops = 40
	b.IKAngle = 0.5
	b.IKLinks = []IKLink{
		{Bone: 0},
		{Bone: 1, HasLimit: true, LowerLimit: mgl32.Vec3{-1, 0, 0}, UpperLimit: mgl32.Vec3{1, 0, 0}},
	}
	return b
}

func TestBone_ReadWrite(t *testing.T) {
	for _, width := range []int{1, 2, 4} {
		for _, codec := range []encoding.Codec{encoding.UTF16LE, encoding.UTF8} {
			info := &DataInfo{Header: DefaultHeader()}
			info.BoneIndexSize = width
			info.Encoding = codec

			expected := fullBone()
			var buf bytes.Buffer
			w := binio.NewWriter(&buf)
			expected.Write(w, info)
			if _, err := w.End(); err != nil {
				t.Fatalf("width %d: write failed: %v", width, err)
			}
			if buf.Len() != expected.EstimateSize(info) {
				t.Errorf("width %d: estimated %d, wrote %d", width, expected.EstimateSize(info), buf.Len())
			}

			if !preparseBone(binio.NewCursor(buf.Bytes()), info) {
				t.Fatalf("width %d: preparse rejected a valid bone", width)
			}

			actual := NewBone("")
			n, err := actual.Read(buf.Bytes(), info)
			if err != nil {
				t.Fatalf("width %d: read failed: %v", width, err)
			}
			if n != buf.Len() {
				t.Errorf("width %d: consumed %d of %d", width, n, buf.Len())
			}
			if !reflect.DeepEqual(actual, expected) {
				t.Errorf("width %d %s: bone mismatch:\n got %+v\nwant %+v", width, codec, actual, expected)
			}
		}
	}
}

func TestBone_DefaultFlags(t *testing.T) {
	b := NewBone("")
	for _, f := range []BoneFlags{
		BoneMovable, BoneRotatable, BoneVisible, BoneInteractive, BoneHasIK,
		BoneInherentTranslation, BoneInherentRotation, BoneFixedAxis, BoneLocalAxes,
		BoneTransformAfterPhysics, BoneTransformExternalParent,
	} {
		if b.Flags.Has(f) {
			t.Errorf("new bone has %s set", f)
		}
	}
	if b.Index() != -1 {
		t.Errorf("detached bone index = %d", b.Index())
	}
}

func TestModel_AddAndRemoveBone(t *testing.T) {
	m := NewModel()
	b := NewBone("センター")

	m.AddBone(nil)
	m.AddBone(b)
	m.AddBone(b)
	if len(m.Bones()) != 1 {
		t.Fatalf("expected 1 bone, got %d", len(m.Bones()))
	}
	if m.BoneAt(0) != b || b.Index() != 0 {
		t.Error("bone not at index 0")
	}

	if m.RemoveBone(nil) {
		t.Error("removing nil reported success")
	}
	if !m.RemoveBone(b) {
		t.Fatal("remove failed")
	}
	if len(m.Bones()) != 0 || b.Index() != -1 {
		t.Errorf("bone still attached: count=%d index=%d", len(m.Bones()), b.Index())
	}
	if m.RemoveBone(b) {
		t.Error("second remove reported success")
	}
}

func TestModel_RenameBone(t *testing.T) {
	m := NewModel()
	b := NewBone("OldBoneName")
	m.AddBone(b)

	if m.FindBone("OldBoneName") != b {
		t.Fatal("bone not found by name")
	}
	if m.FindBone("NewBoneName") != nil {
		t.Fatal("unexpected match for new name")
	}
	b.SetName("NewBoneName")
	if m.FindBone("OldBoneName") != nil {
		t.Error("old name still resolves")
	}
	if m.FindBone("NewBoneName") != b {
		t.Error("new name does not resolve")
	}
}

func TestModel_RemoveBoneRemapsReferences(t *testing.T) {
	m := NewModel()
	root, arm, hand := NewBone("root"), NewBone("arm"), NewBone("hand")
	m.AddBone(root)
	m.AddBone(arm)
	m.AddBone(hand)
	arm.Parent = 0
	hand.Parent = 1

	v := NewVertex()
	v.SetBDEF2(1, 2, 0.5)
	m.AddVertex(v)

	m.RemoveBone(arm)
	if hand.Index() != 1 || hand.Parent != -1 {
		t.Errorf("hand index=%d parent=%d", hand.Index(), hand.Parent)
	}
	if v.Bones[0] != -1 || v.Bones[1] != 1 {
		t.Errorf("vertex bones = %v", v.Bones)
	}
	if m.ParentBone(hand) != nil {
		t.Error("hand still has a parent")
	}
}

func TestModel_RemoveVertex(t *testing.T) {
	m := NewModel()
	for i := 0; i < 4; i++ {
		m.AddVertex(NewVertex())
	}
	m.Indices = []int32{0, 1, 2, 1, 2, 3}
	mat := NewMaterial()
	mat.IndexCount = 6
	m.Materials = []*Material{mat}

	h, _ := m.VertexAt(0)
	if !m.RemoveVertex(h) {
		t.Fatal("remove failed")
	}
	if m.RemoveVertex(h) {
		t.Error("stale handle removed twice")
	}
	if m.VertexIndex(h) != -1 {
		t.Error("stale handle still resolves")
	}
	if !reflect.DeepEqual(m.Indices, []int32{0, 1, 2}) {
		t.Errorf("indices = %v", m.Indices)
	}
	if faces := m.Faces(); len(faces) != 1 || faces[0] != [3]int32{0, 1, 2} {
		t.Errorf("faces = %v", faces)
	}
	if mat.IndexCount != 3 {
		t.Errorf("material index count = %d", mat.IndexCount)
	}
	if m.VertexCount() != 3 {
		t.Errorf("vertex count = %d", m.VertexCount())
	}
	if h1, _ := m.VertexAt(0); m.VertexIndex(h1) != 0 {
		t.Error("positions did not shift")
	}
}

func buildModel(t *testing.T, boneWidth int) *Model {
	t.Helper()
	m := NewModel()
	m.Header.BoneIndexSize = boneWidth
	m.Header.AdditionalUVSize = 1
	m.Name = "テスト"
	m.NameEn = "test"
	m.Comment = "comment"

	for _, typ := range []SkinningType{BDEF1, BDEF2, BDEF4, SDEF} {
		m.AddVertex(sampleVertex(typ, 1))
	}
	m.Indices = []int32{0, 1, 2, 1, 2, 3}
	m.Textures = []string{"tex/body.png", "toon01.bmp"}

	body := NewMaterial()
	body.Name = "body"
	body.TextureIndex = 0
	body.SharedToon = true
	body.ToonIndex = 3
	body.IndexCount = 3
	face := NewMaterial()
	face.Name = "face"
	face.TextureIndex = 0
	face.ToonIndex = 1
	face.Memo = "memo"
	face.IndexCount = 3
	m.Materials = []*Material{body, face}

	root := NewBone("root")
	root.Flags = BoneRotatable | BoneMovable | BoneHasDestinationBone
	root.DestinationBone = 1
	m.AddBone(root)
	b1 := NewBone("b1")
	b1.Parent = 0
	m.AddBone(b1)
	b2 := NewBone("b2")
	b2.Parent = 0
	m.AddBone(b2)
	m.AddBone(fullBone())

	m.Trailer = []byte{0, 0, 0, 0, 1, 2, 3}
	return m
}

func TestModel_RoundTrip(t *testing.T) {
	for _, width := range []int{1, 2, 4} {
		m := buildModel(t, width)
		data, err := m.Bytes()
		if err != nil {
			t.Fatalf("width %d: encode failed: %v", width, err)
		}
		if len(data) != m.EstimateSize() {
			t.Errorf("width %d: estimated %d, wrote %d", width, m.EstimateSize(), len(data))
		}

		parsed, err := Parse(data)
		if err != nil {
			t.Fatalf("width %d: parse failed: %v", width, err)
		}
		if parsed.Name != m.Name || parsed.Comment != m.Comment {
			t.Errorf("texts = %q %q", parsed.Name, parsed.Comment)
		}
		if parsed.VertexCount() != 4 || len(parsed.Bones()) != 4 || len(parsed.Materials) != 2 {
			t.Fatalf("counts: vertices=%d bones=%d materials=%d", parsed.VertexCount(), len(parsed.Bones()), len(parsed.Materials))
		}
		if parsed.FindBone("左腕") == nil {
			t.Error("bone lookup by name failed")
		}
		if !bytes.Equal(parsed.Trailer, m.Trailer) {
			t.Errorf("trailer = %v", parsed.Trailer)
		}

		again, err := parsed.Bytes()
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(again, data) {
			t.Errorf("width %d: re-encoded model differs", width)
		}
	}
}

func TestParse_Truncated(t *testing.T) {
	data, err := buildModel(t, 2).Bytes()
	if err != nil {
		t.Fatal(err)
	}
	info, err := Preparse(data)
	if err != nil {
		t.Fatal(err)
	}

	// Every prefix that cuts into a structured block must fail.
	for n := 0; n < info.TrailerOffset; n++ {
		if m, err := Parse(data[:n]); err == nil || m != nil {
			t.Fatalf("prefix %d accepted", n)
		}
	}
}

func TestParse_BadMagic(t *testing.T) {
	if _, err := Parse([]byte("PMD \x00\x00\x00\x40")); !errors.Is(err, ErrInvalidPMXMagic) {
		t.Errorf("expected ErrInvalidPMXMagic, got %v", err)
	}
}

func TestParse_FaceIndexOutOfRange(t *testing.T) {
	m := buildModel(t, 2)
	m.Indices = []int32{0, 1, 9}
	data, err := m.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(data); !errors.Is(err, binio.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestModel_WriteRejectsIndexOverflow(t *testing.T) {
	t.Run("face index", func(t *testing.T) {
		m := NewModel()
		m.Header.VertexIndexSize = 1
		for i := 0; i < 300; i++ {
			m.AddVertex(NewVertex())
		}
		m.Indices = []int32{0, 1, 299}
		if _, err := m.Bytes(); !errors.Is(err, binio.ErrIndexOutOfRange) {
			t.Errorf("expected ErrIndexOutOfRange, got %v", err)
		}

		m.Header.VertexIndexSize = 2
		if _, err := m.Bytes(); err != nil {
			t.Errorf("wider index should fit: %v", err)
		}
	})

	t.Run("vertex bone", func(t *testing.T) {
		m := NewModel()
		m.Header.BoneIndexSize = 1
		v := NewVertex()
		v.SetBDEF1(200)
		m.AddVertex(v)
		if _, err := m.Bytes(); !errors.Is(err, binio.ErrIndexOutOfRange) {
			t.Errorf("expected ErrIndexOutOfRange, got %v", err)
		}
	})

	t.Run("bone parent", func(t *testing.T) {
		m := NewModel()
		m.Header.BoneIndexSize = 1
		b := NewBone("root")
		b.Parent = 128
		m.AddBone(b)
		if _, err := m.Bytes(); !errors.Is(err, binio.ErrIndexOutOfRange) {
			t.Errorf("expected ErrIndexOutOfRange, got %v", err)
		}
	})
}

func TestModel_RemoveRefusedWithTrailerRecords(t *testing.T) {
	m := buildModel(t, 2)
	before, err := m.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	if m.RemoveBone(m.BoneAt(1)) {
		t.Error("bone removed while the trailer may reference it")
	}
	h, _ := m.VertexAt(0)
	if m.RemoveVertex(h) {
		t.Error("vertex removed while the trailer may reference it")
	}
	after, err := m.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("refused removals changed the model")
	}

	// Zero counts carry no references.
	m.Trailer = make([]byte, 16)
	if m.HasTrailerRecords() {
		t.Error("zero counts reported as records")
	}
	if !m.RemoveBone(m.BoneAt(1)) {
		t.Error("bone removal refused with an empty trailer")
	}
	if h, _ := m.VertexAt(0); !m.RemoveVertex(h) {
		t.Error("vertex removal refused with an empty trailer")
	}
}
