package motion

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Faultbox/mmd-studio/pkg/binio"
	"github.com/Faultbox/mmd-studio/pkg/encoding"
	"github.com/Faultbox/mmd-studio/pkg/interpolation"
)

// ErrInvalidVMDSignature is returned when data does not start with a VMD
// signature.
var ErrInvalidVMDSignature = errors.New("invalid VMD signature")

const (
	vmdSignature       = "Vocaloid Motion Data 0002"
	vmdLegacySignature = "Vocaloid Motion Data file"
	vmdSignatureSize   = 30
	vmdNameSize        = 20
	vmdLegacyNameSize  = 10
	vmdTrackNameSize   = 15

	vmdBoneRecordSize   = vmdTrackNameSize + 4 + 12 + 16 + 64
	vmdMorphRecordSize  = vmdTrackNameSize + 4 + 4
	vmdCameraRecordSize = 4 + 4 + 12 + 12 + 24 + 4 + 1
	vmdLightRecordSize  = 4 + 12 + 12
	vmdShadowRecordSize = 4 + 1 + 4
)

func vmdSignatureOf(data []byte) string {
	if len(data) < vmdSignatureSize {
		return ""
	}
	return string(bytes.TrimRight(data[:vmdSignatureSize], "\x00"))
}

// IsVMD reports whether data starts with a VMD signature.
func IsVMD(data []byte) bool {
	sig := vmdSignatureOf(data)
	return sig == vmdSignature || sig == vmdLegacySignature
}

// vmdCount reads a record count and checks that the records fit.
func vmdCount(c *binio.Cursor, recordSize int, what string) (int, error) {
	n, ok := c.Uint32()
	if !ok {
		return 0, truncated("%s count", what)
	}
	if uint64(n)*uint64(recordSize) > uint64(c.Remaining()) {
		return 0, truncated("%d %s records", n, what)
	}
	return int(n), nil
}

func vmdName(c *binio.Cursor, size int) string {
	b, _ := c.Bytes(size)
	return encoding.ShiftJIS.DecodeFixed(b)
}

// ReadVMD decodes a VMD motion. Blocks after the bone block are optional.
// VMD has no layers, so every keyframe lands on layer 0.
func ReadVMD(data []byte) (*Motion, error) {
	c := binio.NewCursor(data)
	if _, ok := c.Bytes(vmdSignatureSize); !ok {
		return nil, truncated("signature")
	}
	nameSize := vmdNameSize
	switch vmdSignatureOf(data) {
	case vmdSignature:
	case vmdLegacySignature:
		nameSize = vmdLegacyNameSize
	default:
		return nil, ErrInvalidVMDSignature
	}
	if c.Remaining() < nameSize {
		return nil, truncated("motion name")
	}

	m := NewMotion()
	m.Name = vmdName(c, nameSize)

	count, err := vmdCount(c, vmdBoneRecordSize, "bone")
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		kf := NewBoneKeyframe(vmdName(c, vmdTrackNameSize))
		r := record{c}
		kf.timeIndex = float64(uint32(r.i32()))
		kf.Translation = r.vec3()
		kf.Orientation = r.quat()
		b, _ := c.Bytes(64)
		decodeBoneParams(b, kf.params[:])
		m.bones.AddKeyframe(kf)
	}

	blocks := []struct {
		what string
		size int
		read func()
	}{
		{"morph", vmdMorphRecordSize, func() {
			kf := NewMorphKeyframe(vmdName(c, vmdTrackNameSize))
			r := record{c}
			kf.timeIndex = float64(uint32(r.i32()))
			kf.Weight = r.f32()
			m.morphs.AddKeyframe(kf)
		}},
		{"camera", vmdCameraRecordSize, func() {
			kf := NewCameraKeyframe()
			r := record{c}
			kf.timeIndex = float64(uint32(r.i32()))
			kf.Distance = -r.f32()
			kf.LookAt = r.vec3()
			kf.Angle = r.vec3()
			b, _ := c.Bytes(24)
			decodeCameraParams(b, kf.params[:])
			kf.Fovy = float32(uint32(r.i32()))
			kf.Perspective = r.u8() == 0
			m.camera.AddKeyframe(kf)
		}},
		{"light", vmdLightRecordSize, func() {
			kf := NewLightKeyframe()
			r := record{c}
			kf.timeIndex = float64(uint32(r.i32()))
			kf.Color = r.vec3()
			kf.Direction = r.vec3()
			m.light.AddKeyframe(kf)
		}},
		{"self shadow", vmdShadowRecordSize, func() {
			kf := NewProjectKeyframe()
			r := record{c}
			kf.timeIndex = float64(uint32(r.i32()))
			kf.ShadowMode = int32(r.u8())
			kf.ShadowDistance = r.f32()
			m.project.AddKeyframe(kf)
		}},
	}
	for _, block := range blocks {
		if c.Remaining() == 0 {
			break
		}
		count, err := vmdCount(c, block.size, block.what)
		if err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			block.read()
		}
	}
	return m, nil
}

// decodeBoneParams reads the first row of the 64-byte bone interpolation
// table: x1, y1, x2, y2 groups of four, one byte per channel.
func decodeBoneParams(b []byte, dst []interpolation.Parameter) {
	for i := range dst {
		dst[i] = interpolation.ParameterFromBytes([4]uint8{b[i], b[4+i], b[8+i], b[12+i]})
	}
}

func encodeBoneParams(params []interpolation.Parameter) []byte {
	out := make([]byte, 64)
	for i, p := range params {
		out[i], out[4+i], out[8+i], out[12+i] = p.X1, p.Y1, p.X2, p.Y2
	}
	// Rows 1 to 3 repeat row 0 shifted left by the row number.
	for row := 1; row < 4; row++ {
		copy(out[row*16:row*16+16-row], out[row:16])
	}
	return out
}

// decodeCameraParams reads x1, x2, y1, y2 per channel.
func decodeCameraParams(b []byte, dst []interpolation.Parameter) {
	for i := range dst {
		o := i * 4
		dst[i] = interpolation.ParameterFromBytes([4]uint8{b[o], b[o+2], b[o+1], b[o+3]})
	}
}

func encodeCameraParams(params []interpolation.Parameter) []byte {
	out := make([]byte, 0, 24)
	for _, p := range params {
		out = append(out, p.X1, p.X2, p.Y1, p.Y2)
	}
	return out
}

func vmdFrame(t float64) uint32 {
	return uint32(math.Round(t))
}

func writeVMDName(w *binio.Writer, name string, size int) {
	b, err := encoding.ShiftJIS.EncodeFixed(name, size)
	if err != nil {
		w.Fail(fmt.Errorf("encoding %q: %w", name, err))
		return
	}
	w.Bytes(b)
}

// WriteVMD encodes the motion as VMD. Only layer 0 is written; light
// enablement and project gravity have no VMD form and are dropped.
func (m *Motion) WriteVMD(out io.Writer) error {
	w := binio.NewWriter(out)

	sig := make([]byte, vmdSignatureSize)
	copy(sig, vmdSignature)
	w.Bytes(sig)
	writeVMDName(w, m.Name, vmdNameSize)

	var bones []*BoneKeyframe
	for _, kf := range m.bones.Keyframes() {
		if kf.layerIndex == 0 {
			bones = append(bones, kf)
		}
	}
	w.Uint32(uint32(len(bones)))
	for _, kf := range bones {
		writeVMDName(w, kf.name, vmdTrackNameSize)
		w.Uint32(vmdFrame(kf.timeIndex))
		w.Vec3(kf.Translation)
		writeQuat(w, kf.Orientation)
		w.Bytes(encodeBoneParams(kf.params[:]))
	}

	morphs := m.morphs.Keyframes()
	w.Uint32(uint32(len(morphs)))
	for _, kf := range morphs {
		writeVMDName(w, kf.name, vmdTrackNameSize)
		w.Uint32(vmdFrame(kf.timeIndex))
		w.Float32(kf.Weight)
	}

	var cameras []*CameraKeyframe
	for _, kf := range m.camera.Keyframes() {
		if kf.layerIndex == 0 {
			cameras = append(cameras, kf)
		}
	}
	w.Uint32(uint32(len(cameras)))
	for _, kf := range cameras {
		w.Uint32(vmdFrame(kf.timeIndex))
		w.Float32(-kf.Distance)
		w.Vec3(kf.LookAt)
		w.Vec3(kf.Angle)
		w.Bytes(encodeCameraParams(kf.params[:]))
		w.Uint32(uint32(math.Round(float64(kf.Fovy))))
		w.Uint8(1 - boolByte(kf.Perspective))
	}

	lights := m.light.Keyframes()
	w.Uint32(uint32(len(lights)))
	for _, kf := range lights {
		w.Uint32(vmdFrame(kf.timeIndex))
		w.Vec3(kf.Color)
		w.Vec3(kf.Direction)
	}

	shadows := m.project.Keyframes()
	w.Uint32(uint32(len(shadows)))
	for _, kf := range shadows {
		w.Uint32(vmdFrame(kf.timeIndex))
		w.Uint8(uint8(kf.ShadowMode))
		w.Float32(kf.ShadowDistance)
	}

	_, err := w.End()
	return err
}

// VMDBytes encodes the motion as VMD into a new buffer.
func (m *Motion) VMDBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.WriteVMD(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

