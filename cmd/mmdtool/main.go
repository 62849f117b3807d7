// mmdtool is a CLI utility for inspecting and converting PMX models and
// MVD/VMD motions.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/mmd-studio/internal/config"
	"github.com/Faultbox/mmd-studio/internal/editor"
	"github.com/Faultbox/mmd-studio/internal/logger"
	"github.com/Faultbox/mmd-studio/pkg/motion"
	"github.com/Faultbox/mmd-studio/pkg/pmx"
)

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	command := args[0]
	args = args[1:]

	switch command {
	case "info":
		err = cmdInfo(args)
	case "dump", "ls":
		err = cmdDump(args)
	case "seek":
		err = cmdSeek(args)
	case "convert":
		err = cmdConvert(cfg, args)
	case "check":
		err = cmdCheck(cfg, args)
	case "key":
		err = cmdKey(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`mmdtool - PMX model and MVD/VMD motion utility

Usage:
  mmdtool [global options] <command> [options]

Commands:
  info <file>                          Show model or motion information
  dump [-kind k] <motion>              List keyframes (bone, morph, camera, light, project)
  seek <motion> <frame>                Print the resolved pose at a frame
  convert <in> <out>                   Convert between .mvd and .vmd
  check <model.pmx> <motion>...        Report motion bones missing from the model
  key [-o out] <motion> bone <name> <frame> [x y z]
  key [-o out] <motion> morph <name> <frame> <weight>
                                       Register a keyframe and save

Global options:
  -config <path>  -debug  -log <file>  -fps <n>  -loop  -history <n>  -encoding <name>

Examples:
  mmdtool info miku.pmx
  mmdtool dump -kind morph dance.mvd
  mmdtool seek dance.vmd 120
  mmdtool convert dance.vmd dance.mvd
  mmdtool key -o out.mvd dance.mvd bone センター 30 0 1.5 0`)
}

func usageError(usage string) error {
	return fmt.Errorf("usage: mmdtool %s", usage)
}

func isModel(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pmx")
}

func cmdInfo(args []string) error {
	if len(args) < 1 {
		return usageError("info <file>")
	}
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if isModel(path) {
		info, err := pmx.Preparse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("Model:      %s\n", path)
		fmt.Printf("Version:    %.1f\n", info.Version)
		fmt.Printf("Encoding:   %s\n", info.Encoding)
		fmt.Printf("Extra UVs:  %d\n", info.AdditionalUVSize)
		fmt.Printf("Vertices:   %d\n", info.VerticesCount)
		fmt.Printf("Faces:      %d\n", info.IndicesCount/3)
		fmt.Printf("Textures:   %d\n", info.TexturesCount)
		fmt.Printf("Materials:  %d\n", info.MaterialsCount)
		fmt.Printf("Bones:      %d\n", info.BonesCount)
		fmt.Printf("Trailer:    %d bytes\n", len(data)-info.TrailerOffset)
		return nil
	}

	format := "MVD"
	if motion.IsVMD(data) {
		format = "VMD"
	}
	m, err := motion.Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Printf("Motion:     %s (%s)\n", path, format)
	fmt.Printf("Name:       %s\n", m.Name)
	if format == "MVD" {
		fmt.Printf("Version:    %.1f\n", m.Version)
		fmt.Printf("Encoding:   %s\n", m.Encoding)
	}
	fmt.Printf("Frames:     %g\n", m.MaxTimeIndex())
	fmt.Println()
	fmt.Println("Keyframes by kind:")
	for _, kind := range kinds {
		fmt.Printf("  %-8s %d\n", kind, m.CountKeyframes(kind))
	}
	fmt.Printf("  bone tracks:  %d\n", len(m.BoneSection().TrackNames()))
	fmt.Printf("  morph tracks: %d\n", len(m.MorphSection().TrackNames()))
	return nil
}

var kinds = []motion.Kind{
	motion.KindBone, motion.KindMorph, motion.KindCamera, motion.KindLight, motion.KindProject,
}

func parseKind(s string) (motion.Kind, bool) {
	for _, k := range kinds {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

func cmdDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	kindName := fs.String("kind", "", "Only list keyframes of this kind")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return usageError("dump [-kind k] <motion>")
	}
	selected := kinds
	if *kindName != "" {
		k, ok := parseKind(*kindName)
		if !ok {
			return fmt.Errorf("unknown keyframe kind %q", *kindName)
		}
		selected = []motion.Kind{k}
	}

	m, err := motion.ParseFile(fs.Arg(0))
	if err != nil {
		return err
	}

	for _, kind := range selected {
		switch kind {
		case motion.KindBone:
			for _, kf := range m.BoneSection().Keyframes() {
				fmt.Printf("bone    %6g/%d  %-16s t=%v q=%v\n",
					kf.TimeIndex(), kf.LayerIndex(), kf.Name(), kf.Translation, kf.Orientation)
			}
		case motion.KindMorph:
			for _, kf := range m.MorphSection().Keyframes() {
				fmt.Printf("morph   %6g    %-16s w=%.3f\n", kf.TimeIndex(), kf.Name(), kf.Weight)
			}
		case motion.KindCamera:
			for _, kf := range m.CameraSection().Keyframes() {
				fmt.Printf("camera  %6g/%d  look=%v angle=%v dist=%.2f fov=%.1f persp=%v\n",
					kf.TimeIndex(), kf.LayerIndex(), kf.LookAt, kf.Angle, kf.Distance, kf.Fovy, kf.Perspective)
			}
		case motion.KindLight:
			for _, kf := range m.LightSection().Keyframes() {
				fmt.Printf("light   %6g    color=%v dir=%v on=%v\n",
					kf.TimeIndex(), kf.Color, kf.Direction, kf.Enabled)
			}
		case motion.KindProject:
			for _, kf := range m.ProjectSection().Keyframes() {
				fmt.Printf("project %6g    gravity=%.2f%v shadow=%d/%.1f\n",
					kf.TimeIndex(), kf.GravityFactor, kf.GravityDirection, kf.ShadowMode, kf.ShadowDistance)
			}
		}
	}
	return nil
}

func cmdSeek(args []string) error {
	if len(args) < 2 {
		return usageError("seek <motion> <frame>")
	}
	frame, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid frame %q: %w", args[1], err)
	}
	m, err := motion.ParseFile(args[0])
	if err != nil {
		return err
	}
	m.Seek(frame)

	fmt.Printf("Frame %g of %g\n", m.CurrentTimeIndex(), m.MaxTimeIndex())

	bones := m.BoneSection().TrackNames()
	sort.Strings(bones)
	for _, name := range bones {
		st, _ := m.BoneState(name)
		fmt.Printf("  bone  %-16s t=%v q=%v\n", name, st.Translation, st.Orientation)
	}
	morphs := m.MorphSection().TrackNames()
	sort.Strings(morphs)
	for _, name := range morphs {
		w, _ := m.MorphWeight(name)
		fmt.Printf("  morph %-16s w=%.3f\n", name, w)
	}

	cam := m.Camera()
	fmt.Printf("  camera look=%v angle=%v dist=%.2f fov=%.1f persp=%v\n",
		cam.LookAt, cam.Angle, cam.Distance, cam.Fovy, cam.Perspective)
	light := m.Light()
	fmt.Printf("  light  color=%v dir=%v on=%v\n", light.Color, light.Direction, light.Enabled)
	project := m.Project()
	fmt.Printf("  project gravity=%.2f%v shadow=%d/%.1f\n",
		project.GravityFactor, project.GravityDirection, project.ShadowMode, project.ShadowDistance)
	return nil
}

func cmdConvert(cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return usageError("convert <in> <out>")
	}
	s, err := editor.New(cfg)
	if err != nil {
		return err
	}
	if err := s.LoadMotion(args[0]); err != nil {
		return err
	}
	return s.SaveMotion(args[1])
}

func cmdCheck(cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return usageError("check <model.pmx> <motion>...")
	}
	s, err := editor.New(cfg)
	if err != nil {
		return err
	}
	if err := s.LoadModel(args[0]); err != nil {
		return err
	}

	var errs error
	for _, path := range args[1:] {
		if err := s.LoadMotion(path); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := s.Check(); err != nil {
			for _, e := range multierr.Errors(err) {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, e))
			}
			continue
		}
		fmt.Printf("%s: ok\n", path)
	}
	for _, e := range multierr.Errors(errs) {
		fmt.Println(e)
	}
	if n := len(multierr.Errors(errs)); n > 0 {
		return fmt.Errorf("%d problems found", n)
	}
	return nil
}

func parseFloats(args []string) ([]float32, error) {
	out := make([]float32, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", a, err)
		}
		out[i] = float32(v)
	}
	return out, nil
}

func cmdKey(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("key", flag.ExitOnError)
	out := fs.String("o", "", "Output file (default: overwrite the input)")
	layer := fs.Int("layer", 0, "Bone keyframe layer")
	fs.Parse(args)

	const usage = "key [-o out] [-layer n] <motion> bone|morph <name> <frame> [values...]"
	if fs.NArg() < 4 {
		return usageError(usage)
	}
	path, kind, name := fs.Arg(0), fs.Arg(1), fs.Arg(2)
	frame, err := strconv.ParseFloat(fs.Arg(3), 64)
	if err != nil {
		return fmt.Errorf("invalid frame %q: %w", fs.Arg(3), err)
	}
	values, err := parseFloats(fs.Args()[4:])
	if err != nil {
		return err
	}

	s, err := editor.New(cfg)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		if err := s.LoadMotion(path); err != nil {
			return err
		}
	}

	switch kind {
	case "bone":
		pose := motion.BoneState{Orientation: mgl32.QuatIdent()}
		switch len(values) {
		case 0:
		case 3:
			pose.Translation = mgl32.Vec3{values[0], values[1], values[2]}
		default:
			return usageError(usage)
		}
		err = s.RegisterBoneKeyframe(name, frame, int32(*layer), pose)
	case "morph":
		if len(values) != 1 {
			return usageError(usage)
		}
		err = s.RegisterMorphKeyframe(name, frame, values[0])
	default:
		return fmt.Errorf("unknown keyframe kind %q", kind)
	}
	if err != nil {
		return err
	}

	target := *out
	if target == "" {
		target = path
	}
	return s.SaveMotion(target)
}
