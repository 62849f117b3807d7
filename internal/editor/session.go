// Package editor implements the editing session a UI drives: one model, one
// motion, undo history and playback.
//
// Every motion edit snapshots the motion as MVD bytes before it runs, so undo
// and redo replace the whole motion. Keyframes obtained from Motion() are only
// valid until the next Undo, Redo or LoadMotion.
package editor

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/mmd-studio/internal/config"
	"github.com/Faultbox/mmd-studio/internal/history"
	"github.com/Faultbox/mmd-studio/internal/logger"
	"github.com/Faultbox/mmd-studio/pkg/encoding"
	"github.com/Faultbox/mmd-studio/pkg/interpolation"
	"github.com/Faultbox/mmd-studio/pkg/motion"
	"github.com/Faultbox/mmd-studio/pkg/pmx"
)

// ErrKeyframeNotFound is returned when an edit names a keyframe that does not
// exist.
var ErrKeyframeNotFound = errors.New("keyframe not found")

// Session is one open model and motion. It is not safe for concurrent use.
type Session struct {
	cfg     *config.Config
	codec   encoding.Codec
	log     *zap.Logger
	history *history.Stack

	model      *pmx.Model
	modelPath  string
	motion     *motion.Motion
	motionPath string
	modified   bool
}

// New creates a session holding an empty model and motion.
func New(cfg *config.Config) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	codec, err := cfg.TextCodec()
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:     cfg,
		codec:   codec,
		log:     logger.Named("editor"),
		history: history.New(cfg.Editor.HistoryDepth),
	}
	s.model = s.newModel()
	s.motion = s.newMotion()

	s.log.Debug("session created",
		zap.Stringer("encoding", codec),
		zap.Int("historyDepth", cfg.Editor.HistoryDepth),
		zap.Int("fps", cfg.Playback.FPS),
	)
	return s, nil
}

func (s *Session) newModel() *pmx.Model {
	m := pmx.NewModel()
	m.Header.Version = s.cfg.Codec.PMXVersion
	m.Header.Encoding = s.codec
	return m
}

func (s *Session) newMotion() *motion.Motion {
	m := motion.NewMotion()
	m.Encoding = s.codec
	m.ProjectSection().CreateFirstKeyframeUnlessFound()
	m.Seek(0)
	return m
}

// Model returns the open model.
func (s *Session) Model() *pmx.Model { return s.model }

// Motion returns the open motion.
func (s *Session) Motion() *motion.Motion { return s.motion }

// ModelPath returns the file the model was loaded from or saved to.
func (s *Session) ModelPath() string { return s.modelPath }

// MotionPath returns the file the motion was loaded from or saved to.
func (s *Session) MotionPath() string { return s.motionPath }

// Modified reports whether the motion changed since it was loaded or saved.
func (s *Session) Modified() bool { return s.modified }

// LoadModel replaces the model with the PMX file at path. The session is
// unchanged on error.
func (s *Session) LoadModel(path string) error {
	m, err := pmx.ParseFile(path)
	if err != nil {
		return fmt.Errorf("loading model %s: %w", path, err)
	}
	s.model = m
	s.modelPath = path

	s.log.Info("model loaded",
		zap.String("path", path),
		zap.String("name", m.Name),
		zap.Int("vertices", m.VertexCount()),
		zap.Int("faces", len(m.Indices)/3),
		zap.Int("materials", len(m.Materials)),
		zap.Int("bones", len(m.Bones())),
	)
	if err := s.Check(); err != nil {
		s.log.Warn("motion does not match model", zap.Error(err))
	}
	return nil
}

// SaveModel writes the model as PMX to path.
func (s *Session) SaveModel(path string) error {
	data, err := s.model.Bytes()
	if err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	if err := writeFile(path, data); err != nil {
		return err
	}
	s.modelPath = path
	s.log.Info("model saved", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

// LoadMotion replaces the motion with the MVD or VMD file at path and clears
// the history. The session is unchanged on error.
func (s *Session) LoadMotion(path string) error {
	m, err := motion.ParseFile(path)
	if err != nil {
		return fmt.Errorf("loading motion %s: %w", path, err)
	}
	if !validMotionCodec(m.Encoding) {
		m.Encoding = s.codec
	}
	m.ProjectSection().CreateFirstKeyframeUnlessFound()
	m.Seek(0)

	s.motion = m
	s.motionPath = path
	s.modified = false
	s.history.Clear()

	s.log.Info("motion loaded",
		zap.String("path", path),
		zap.String("name", m.Name),
		zap.Int("bones", m.CountKeyframes(motion.KindBone)),
		zap.Int("morphs", m.CountKeyframes(motion.KindMorph)),
		zap.Int("cameras", m.CountKeyframes(motion.KindCamera)),
		zap.Float64("maxFrame", m.MaxTimeIndex()),
	)
	if err := s.Check(); err != nil {
		s.log.Warn("motion does not match model", zap.Error(err))
	}
	return nil
}

// SaveMotion writes the motion to path: VMD for a .vmd extension and MVD
// otherwise.
func (s *Session) SaveMotion(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".vmd") {
		data, err = s.motion.VMDBytes()
	} else {
		data, err = s.motion.Bytes()
	}
	if err != nil {
		return fmt.Errorf("encoding motion: %w", err)
	}
	if err := writeFile(path, data); err != nil {
		return err
	}
	s.motionPath = path
	s.modified = false
	s.log.Info("motion saved", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

func validMotionCodec(c encoding.Codec) bool {
	return c == encoding.UTF16LE || c == encoding.UTF8
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// edit snapshots the motion, runs fn and records the snapshot for undo. If
// fn fails the motion is restored from the snapshot.
func (s *Session) edit(label string, fn func(m *motion.Motion) error) error {
	before, err := s.motion.Bytes()
	if err != nil {
		return fmt.Errorf("%s: snapshot: %w", label, err)
	}
	if err := fn(s.motion); err != nil {
		if rerr := s.restore(before); rerr != nil {
			return multierr.Append(fmt.Errorf("%s: %w", label, err), rerr)
		}
		return fmt.Errorf("%s: %w", label, err)
	}
	if _, err := s.history.Push(label, before); err != nil {
		s.log.Warn("history snapshot dropped", zap.String("edit", label), zap.Error(err))
	}
	s.modified = true
	s.motion.Seek(s.motion.CurrentTimeIndex())
	s.log.Debug("edit applied", zap.String("edit", label))
	return nil
}

// restore loads a snapshot into a fresh motion and keeps the time cursor.
func (s *Session) restore(data []byte) error {
	m := motion.NewMotion()
	if err := m.Load(data); err != nil {
		return fmt.Errorf("restoring snapshot: %w", err)
	}
	m.Seek(s.motion.CurrentTimeIndex())
	s.motion = m
	return nil
}

// RegisterKeyframe adds kf to the motion, replacing any keyframe on the same
// key.
func (s *Session) RegisterKeyframe(kf motion.Keyframe) error {
	if kf == nil {
		return errors.New("register keyframe: nil keyframe")
	}
	return s.edit("register "+kf.Kind().String()+" keyframe", func(m *motion.Motion) error {
		return m.AddKeyframe(kf)
	})
}

// RegisterBoneKeyframe keys the named bone at (frame, layer).
func (s *Session) RegisterBoneKeyframe(name string, frame float64, layer int32, pose motion.BoneState) error {
	kf := motion.NewBoneKeyframe(name)
	kf.SetTimeIndex(frame)
	kf.SetLayerIndex(layer)
	kf.Translation = pose.Translation
	kf.Orientation = pose.Orientation
	return s.RegisterKeyframe(kf)
}

// RegisterMorphKeyframe keys the named morph at frame.
func (s *Session) RegisterMorphKeyframe(name string, frame float64, weight float32) error {
	kf := motion.NewMorphKeyframe(name)
	kf.SetTimeIndex(frame)
	kf.Weight = weight
	return s.RegisterKeyframe(kf)
}

// KeyframeRef names one keyframe of the motion. Name is ignored for camera,
// light and project keyframes; Layer is ignored for kinds without layers.
type KeyframeRef struct {
	Kind  motion.Kind
	Name  string
	Frame float64
	Layer int32
}

func (r KeyframeRef) String() string {
	if r.Name != "" {
		return fmt.Sprintf("%s %q at %g/%d", r.Kind, r.Name, r.Frame, r.Layer)
	}
	return fmt.Sprintf("%s at %g/%d", r.Kind, r.Frame, r.Layer)
}

func find(m *motion.Motion, ref KeyframeRef) motion.Keyframe {
	switch ref.Kind {
	case motion.KindBone:
		if kf := m.BoneSection().FindKeyframe(ref.Frame, ref.Layer, ref.Name); kf != nil {
			return kf
		}
	case motion.KindMorph:
		if kf := m.MorphSection().FindKeyframe(ref.Frame, ref.Name); kf != nil {
			return kf
		}
	case motion.KindCamera:
		if kf := m.CameraSection().FindKeyframe(ref.Frame, ref.Layer); kf != nil {
			return kf
		}
	case motion.KindLight:
		if kf := m.LightSection().FindKeyframe(ref.Frame); kf != nil {
			return kf
		}
	case motion.KindProject:
		if kf := m.ProjectSection().FindKeyframe(ref.Frame); kf != nil {
			return kf
		}
	}
	return nil
}

// DeleteKeyframe removes the keyframe ref names.
func (s *Session) DeleteKeyframe(ref KeyframeRef) error {
	if find(s.motion, ref) == nil {
		return fmt.Errorf("%w: %s", ErrKeyframeNotFound, ref)
	}
	return s.edit("delete "+ref.String(), func(m *motion.Motion) error {
		m.DeleteKeyframe(find(m, ref))
		return nil
	})
}

// MoveKeyframe moves the keyframe ref names to another frame, replacing any
// keyframe already there.
func (s *Session) MoveKeyframe(ref KeyframeRef, frame float64) error {
	if find(s.motion, ref) == nil {
		return fmt.Errorf("%w: %s", ErrKeyframeNotFound, ref)
	}
	return s.edit(fmt.Sprintf("move %s to %g", ref, frame), func(m *motion.Motion) error {
		find(m, ref).SetTimeIndex(frame)
		return nil
	})
}

// SetBoneInterpolation changes one curve of a bone keyframe.
func (s *Session) SetBoneInterpolation(ref KeyframeRef, c motion.BoneComponent, p interpolation.Parameter) error {
	ref.Kind = motion.KindBone
	if find(s.motion, ref) == nil {
		return fmt.Errorf("%w: %s", ErrKeyframeNotFound, ref)
	}
	return s.edit("interpolate "+ref.String(), func(m *motion.Motion) error {
		find(m, ref).(*motion.BoneKeyframe).SetInterpolationParameter(c, p)
		return nil
	})
}

// SetCameraInterpolation changes one curve of a camera keyframe.
func (s *Session) SetCameraInterpolation(ref KeyframeRef, c motion.CameraComponent, p interpolation.Parameter) error {
	ref.Kind = motion.KindCamera
	if find(s.motion, ref) == nil {
		return fmt.Errorf("%w: %s", ErrKeyframeNotFound, ref)
	}
	return s.edit("interpolate "+ref.String(), func(m *motion.Motion) error {
		find(m, ref).(*motion.CameraKeyframe).SetInterpolationParameter(c, p)
		return nil
	})
}

// CanUndo reports whether Undo has an edit to revert.
func (s *Session) CanUndo() bool { return s.history.CanUndo() }

// CanRedo reports whether Redo has an edit to reapply.
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// Undo reverts the latest edit.
func (s *Session) Undo() error {
	return s.travel("undo", s.history.Undo)
}

// Redo reapplies the latest undone edit.
func (s *Session) Redo() error {
	return s.travel("redo", s.history.Redo)
}

func (s *Session) travel(op string, step func([]byte) ([]byte, string, error)) error {
	current, err := s.motion.Bytes()
	if err != nil {
		return fmt.Errorf("%s: snapshot: %w", op, err)
	}
	state, label, err := step(current)
	if err != nil {
		return err
	}
	if err := s.restore(state); err != nil {
		return fmt.Errorf("%s %q: %w", op, label, err)
	}
	s.modified = true
	s.log.Debug(op, zap.String("edit", label))
	return nil
}

// Seek moves playback to frame.
func (s *Session) Seek(frame float64) {
	s.motion.Seek(frame)
}

// Tick advances playback by elapsed wall time at the configured frame rate.
// It reports false once the last keyframe is reached and looping is off.
func (s *Session) Tick(elapsed time.Duration) bool {
	end := s.motion.MaxTimeIndex()
	next := s.motion.CurrentTimeIndex() + elapsed.Seconds()*float64(s.cfg.Playback.FPS)
	if next < end {
		s.motion.Seek(next)
		return true
	}
	if s.cfg.Playback.Loop && end > 0 {
		s.motion.Seek(math.Mod(next, end))
		return true
	}
	s.motion.Seek(end)
	return false
}

// Check reports every bone track of the motion that the model has no bone
// for. It returns nil when no model bones are loaded.
func (s *Session) Check() error {
	if len(s.model.Bones()) == 0 {
		return nil
	}
	var err error
	for _, name := range s.motion.BoneSection().TrackNames() {
		if s.model.FindBone(name) == nil {
			err = multierr.Append(err, fmt.Errorf("bone %q is not in model %q", name, s.model.Name))
		}
	}
	return err
}
