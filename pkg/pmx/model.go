package pmx

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/mmd-studio/pkg/arena"
	"github.com/Faultbox/mmd-studio/pkg/binio"
	"github.com/Faultbox/mmd-studio/pkg/encoding"
)

// Model is a decoded PMX model.
//
// Vertices live in an arena and are addressed by handle; a handle is
// invalidated when its vertex is removed. Face indices, materials and bones
// refer to each other by plain position.
type Model struct {
	Header    Header
	Name      string
	NameEn    string
	Comment   string
	CommentEn string

	vertices *arena.Arena[*Vertex]

	// Indices lists triangle corners as vertex positions, three per face.
	Indices   []int32
	Textures  []string
	Materials []*Material

	bones     []*Bone
	boneNames map[string]int

	// Trailer holds morphs, display frames, rigid bodies, joints and soft
	// bodies verbatim.
	Trailer []byte
}

// NewModel returns an empty model using the default header.
func NewModel() *Model {
	return &Model{
		Header:    DefaultHeader(),
		vertices:  arena.New[*Vertex](0),
		boneNames: make(map[string]int),
	}
}

// Preparse validates the structure of data without allocating entities and
// returns the block layout.
func Preparse(data []byte) (*DataInfo, error) {
	c := binio.NewCursor(data)

	h, err := readHeader(c)
	if err != nil {
		return nil, err
	}
	info := &DataInfo{Header: h}

	for _, field := range []string{"name", "english name", "comment", "english comment"} {
		if !skipText(c) {
			return nil, truncated("model %s", field)
		}
	}

	if err := PreparseVertices(c, info); err != nil {
		return nil, err
	}

	count, ok := c.Size32()
	if !ok {
		return nil, truncated("index count")
	}
	if count%3 != 0 {
		return nil, fmt.Errorf("%w: index count %d is not a multiple of 3", binio.ErrMalformedRecord, count)
	}
	info.IndicesOffset = c.Offset()
	info.IndicesCount = count
	if !c.ValidateSize(count * info.VertexIndexSize) {
		return nil, truncated("%d face indices", count)
	}

	if info.TexturesCount, ok = c.Size32(); !ok {
		return nil, truncated("texture count")
	}
	info.TexturesOffset = c.Offset()
	for i := 0; i < info.TexturesCount; i++ {
		if !skipText(c) {
			return nil, truncated("texture %d", i)
		}
	}

	if info.MaterialsCount, ok = c.Size32(); !ok {
		return nil, truncated("material count")
	}
	info.MaterialsOffset = c.Offset()
	for i := 0; i < info.MaterialsCount; i++ {
		if !preparseMaterial(c, info) {
			return nil, truncated("material %d", i)
		}
	}

	if info.BonesCount, ok = c.Size32(); !ok {
		return nil, truncated("bone count")
	}
	info.BonesOffset = c.Offset()
	for i := 0; i < info.BonesCount; i++ {
		if !preparseBone(c, info) {
			return nil, truncated("bone %d", i)
		}
	}

	info.TrailerOffset = c.Offset()
	return info, nil
}

// Parse decodes a PMX model. On error no model is returned.
func Parse(data []byte) (*Model, error) {
	info, err := Preparse(data)
	if err != nil {
		return nil, err
	}

	m := NewModel()
	m.Header = info.Header

	c := binio.NewCursor(data)
	c.Seek(headerSize(&info.Header))
	texts := []*string{&m.Name, &m.NameEn, &m.Comment, &m.CommentEn}
	for _, s := range texts {
		if *s, err = readText(c, info.Encoding); err != nil {
			return nil, fmt.Errorf("model text: %w", err)
		}
	}

	m.vertices = arena.New[*Vertex](info.VerticesCount)
	off := info.VerticesOffset
	for i := 0; i < info.VerticesCount; i++ {
		v := &Vertex{}
		n, err := v.Read(data[off:], info)
		if err != nil {
			return nil, fmt.Errorf("vertex %d: %w", i, err)
		}
		off += n
		m.vertices.Insert(v)
	}
	if consumed := off - info.VerticesOffset; consumed != info.VerticesLength {
		return nil, fmt.Errorf("%w: vertices consumed %d bytes, preparsed %d", binio.ErrMalformedRecord, consumed, info.VerticesLength)
	}

	c.Seek(info.IndicesOffset)
	m.Indices = make([]int32, info.IndicesCount)
	for i := range m.Indices {
		v, _ := c.UnsignedIndex(info.VertexIndexSize)
		if v < 0 || int(v) >= info.VerticesCount {
			return nil, fmt.Errorf("%w: face index %d refers to vertex %d of %d", binio.ErrIndexOutOfRange, i, v, info.VerticesCount)
		}
		m.Indices[i] = v
	}

	c.Seek(info.TexturesOffset)
	m.Textures = make([]string, info.TexturesCount)
	for i := range m.Textures {
		if m.Textures[i], err = readText(c, info.Encoding); err != nil {
			return nil, fmt.Errorf("texture %d: %w", i, err)
		}
	}

	off = info.MaterialsOffset
	m.Materials = make([]*Material, info.MaterialsCount)
	for i := range m.Materials {
		mat := &Material{}
		n, err := mat.Read(data[off:], info)
		if err != nil {
			return nil, fmt.Errorf("material %d: %w", i, err)
		}
		off += n
		m.Materials[i] = mat
	}

	off = info.BonesOffset
	m.bones = make([]*Bone, info.BonesCount)
	for i := range m.bones {
		b := &Bone{}
		n, err := b.Read(data[off:], info)
		if err != nil {
			return nil, fmt.Errorf("bone %d: %w", i, err)
		}
		off += n
		b.index = i
		m.bones[i] = b
	}
	m.rebuildBoneNames()

	m.Trailer = append([]byte(nil), data[info.TrailerOffset:]...)
	return m, nil
}

// ParseFile reads and decodes a PMX model from disk.
func ParseFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return Parse(data)
}

func (m *Model) dataInfo() *DataInfo {
	return &DataInfo{Header: m.Header}
}

// Write encodes the model to out.
func (m *Model) Write(out io.Writer) error {
	if err := m.Header.Validate(); err != nil {
		return err
	}
	info := m.dataInfo()
	w := binio.NewWriter(out)

	writeHeader(w, &m.Header)
	for _, s := range []string{m.Name, m.NameEn, m.Comment, m.CommentEn} {
		writeText(w, m.Header.Encoding, s)
	}

	w.Int32(int32(m.vertices.Len()))
	for _, v := range m.vertices.Values() {
		v.Write(w, info)
	}
	w.Int32(int32(len(m.Indices)))
	for _, idx := range m.Indices {
		w.UnsignedIndex(idx, m.Header.VertexIndexSize)
	}
	w.Int32(int32(len(m.Textures)))
	for _, t := range m.Textures {
		writeText(w, m.Header.Encoding, t)
	}
	w.Int32(int32(len(m.Materials)))
	for _, mat := range m.Materials {
		mat.Write(w, info)
	}
	w.Int32(int32(len(m.bones)))
	for _, b := range m.bones {
		b.Write(w, info)
	}
	w.Bytes(m.Trailer)

	_, err := w.End()
	return err
}

// Bytes encodes the model into a new buffer.
func (m *Model) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(m.EstimateSize())
	if err := m.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EstimateSize returns the encoded size of the model.
func (m *Model) EstimateSize() int {
	info := m.dataInfo()
	codec := m.Header.Encoding

	size := headerSize(&m.Header)
	for _, s := range []string{m.Name, m.NameEn, m.Comment, m.CommentEn} {
		size += textSize(codec, s)
	}
	size += 4
	for _, v := range m.vertices.Values() {
		size += v.EstimateSize(info)
	}
	size += 4 + len(m.Indices)*m.Header.VertexIndexSize
	size += 4
	for _, t := range m.Textures {
		size += textSize(codec, t)
	}
	size += 4
	for _, mat := range m.Materials {
		size += mat.EstimateSize(info)
	}
	size += 4
	for _, b := range m.bones {
		size += b.EstimateSize(info)
	}
	return size + len(m.Trailer)
}

// SetEncoding changes the text codec used when the model is written.
func (m *Model) SetEncoding(codec encoding.Codec) error {
	if codec != encoding.UTF16LE && codec != encoding.UTF8 {
		return fmt.Errorf("%w: %s is not a PMX text encoding", binio.ErrMalformedRecord, codec)
	}
	m.Header.Encoding = codec
	return nil
}

// Vertices returns the vertices in face-index order.
func (m *Model) Vertices() []*Vertex {
	return m.vertices.Values()
}

// VertexCount returns the number of vertices.
func (m *Model) VertexCount() int {
	return m.vertices.Len()
}

// Vertex returns the vertex for h.
func (m *Model) Vertex(h arena.Handle) (*Vertex, bool) {
	return m.vertices.Get(h)
}

// VertexAt returns the handle of the vertex at position i.
func (m *Model) VertexAt(i int) (arena.Handle, bool) {
	return m.vertices.At(i)
}

// VertexIndex returns the face-index position of h, or -1 if h is stale.
func (m *Model) VertexIndex(h arena.Handle) int {
	return m.vertices.Position(h)
}

// Faces returns the triangles described by Indices.
func (m *Model) Faces() [][3]int32 {
	faces := make([][3]int32, 0, len(m.Indices)/3)
	for i := 0; i+2 < len(m.Indices); i += 3 {
		faces = append(faces, [3]int32{m.Indices[i], m.Indices[i+1], m.Indices[i+2]})
	}
	return faces
}

// AddVertex appends v and returns its handle.
func (m *Model) AddVertex(v *Vertex) arena.Handle {
	return m.vertices.Insert(v)
}

// RemoveVertex deletes the vertex behind h. Faces that use it are dropped,
// material index counts shrink accordingly and higher face indices shift
// down by one. It reports false if h is stale or if the trailer holds
// records, since morphs there address vertices by index.
func (m *Model) RemoveVertex(h arena.Handle) bool {
	pos := m.vertices.Position(h)
	if pos < 0 || m.HasTrailerRecords() {
		return false
	}
	m.vertices.Remove(h)

	removed := int32(pos)
	kept := m.Indices[:0]
	material, materialEnd := 0, int32(0)
	if len(m.Materials) > 0 {
		materialEnd = m.Materials[0].IndexCount
	}
	for face := 0; face+2 < len(m.Indices); face += 3 {
		for material < len(m.Materials)-1 && int32(face) >= materialEnd {
			material++
			materialEnd += m.Materials[material].IndexCount
		}
		tri := [3]int32{m.Indices[face], m.Indices[face+1], m.Indices[face+2]}
		if tri[0] == removed || tri[1] == removed || tri[2] == removed {
			if material < len(m.Materials) && int32(face) < materialEnd {
				m.Materials[material].IndexCount -= 3
			}
			continue
		}
		for _, idx := range tri {
			if idx > removed {
				idx--
			}
			kept = append(kept, idx)
		}
	}
	m.Indices = kept
	return true
}

// HasTrailerRecords reports whether the opaque trailer holds anything but
// zero counts. Such a trailer may refer to vertices and bones by index.
func (m *Model) HasTrailerRecords() bool {
	for _, b := range m.Trailer {
		if b != 0 {
			return true
		}
	}
	return false
}

// Bones returns the bones in index order. The slice must not be modified.
func (m *Model) Bones() []*Bone {
	return m.bones
}

// BoneAt returns the bone at index i, or nil.
func (m *Model) BoneAt(i int) *Bone {
	if i < 0 || i >= len(m.bones) {
		return nil
	}
	return m.bones[i]
}

// ParentBone returns the parent of b, or nil for a root bone.
func (m *Model) ParentBone(b *Bone) *Bone {
	if b == nil {
		return nil
	}
	return m.BoneAt(int(b.Parent))
}

// FindBone looks a bone up by its japanese name.
func (m *Model) FindBone(name string) *Bone {
	if i, ok := m.boneNames[name]; ok && i < len(m.bones) && m.bones[i].name == name {
		return m.bones[i]
	}
	// A miss may mean a bone was renamed since the map was built.
	m.rebuildBoneNames()
	if i, ok := m.boneNames[name]; ok {
		return m.bones[i]
	}
	return nil
}

func (m *Model) rebuildBoneNames() {
	m.boneNames = make(map[string]int, len(m.bones))
	for i, b := range m.bones {
		if _, dup := m.boneNames[b.name]; !dup {
			m.boneNames[b.name] = i
		}
	}
}

// AddBone appends b. Adding nil or a bone that is already part of the model
// has no effect.
func (m *Model) AddBone(b *Bone) {
	if b == nil || m.BoneAt(b.index) == b {
		return
	}
	b.index = len(m.bones)
	m.bones = append(m.bones, b)
	if _, dup := m.boneNames[b.name]; !dup {
		m.boneNames[b.name] = b.index
	}
}

// RemoveBone detaches b. References to it in vertices and other bones
// become -1 and references to later bones shift down by one. It reports
// false if b is not part of the model or if the trailer holds records,
// since morphs, display frames and rigid bodies there address bones by
// index.
func (m *Model) RemoveBone(b *Bone) bool {
	if b == nil || m.BoneAt(b.index) != b || m.HasTrailerRecords() {
		return false
	}
	removed := int32(b.index)
	m.bones = append(m.bones[:removed], m.bones[removed+1:]...)
	b.index = -1

	remap := func(i int32) int32 {
		switch {
		case i == removed:
			return -1
		case i > removed:
			return i - 1
		}
		return i
	}
	for i, other := range m.bones {
		other.index = i
		other.remapBones(remap)
	}
	for _, v := range m.vertices.Values() {
		v.remapBones(remap)
	}
	m.rebuildBoneNames()
	return true
}
