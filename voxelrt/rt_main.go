package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gekko3d/voxelise"
	"github.com/gekko3d/voxelise/voxelrt/rt/app"
	"github.com/gekko3d/voxelise/voxelrt/rt/core"
	"github.com/gekko3d/voxelise/voxelrt/rt/gpu"
	"github.com/gekko3d/voxelise/voxelrt/rt/meshio"
	"github.com/gekko3d/voxelise/voxelrt/rt/raster"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

const usage = `usage: voxelrt <command> [flags] <mesh.gltf|mesh.glb>

commands:
  bake   voxelise a mesh and write <mesh>_baked.<png|tiff> next to it
  view   open a preview window that ray-marches the voxelised mesh
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "bake":
		err = runBake(os.Args[2:])
	case "view":
		err = runView(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxelrt: %v\n", err)
		os.Exit(1)
	}
}

type commonFlags struct {
	config     string
	resolution int
	backend    string
	workers    int
	debug      bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "YAML config file")
	fs.IntVar(&c.resolution, "resolution", 0, "voxels per axis (overrides config)")
	fs.StringVar(&c.backend, "backend", "", "software or webgpu (overrides config)")
	fs.IntVar(&c.workers, "workers", -1, "software rasterizer workers, 0 for GOMAXPROCS (overrides config)")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging")
}

// load resolves the config file and flag overrides, then the mesh.
func (c *commonFlags) load(fs *flag.FlagSet) (voxelise.Config, *core.Mesh, string, error) {
	cfg := voxelise.DefaultConfig()
	if c.config != "" {
		var err error
		if cfg, err = voxelise.LoadConfig(c.config); err != nil {
			return cfg, nil, "", err
		}
	}
	if c.resolution != 0 {
		cfg.Resolution = c.resolution
	}
	if c.backend != "" {
		cfg.Backend = c.backend
	}
	if c.workers >= 0 {
		cfg.Workers = c.workers
	}
	if c.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, "", err
	}
	if fs.NArg() != 1 {
		return cfg, nil, "", fmt.Errorf("expected one mesh path, got %d", fs.NArg())
	}
	path := fs.Arg(0)
	mesh, err := meshio.LoadGLTF(path)
	if err != nil {
		return cfg, nil, "", err
	}
	return cfg, mesh, path, nil
}

func newDefinition(cfg voxelise.Config, mesh *core.Mesh, path string, prog core.Program) *voxelise.VoxelDefinition {
	def := voxelise.NewVoxelDefinition(mesh.Name, mesh, prog)
	def.Path = path
	def.Resolution = cfg.Resolution
	return def
}

func runBake(args []string) error {
	fs := flag.NewFlagSet("bake", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	format := fs.String("format", "", "png or tiff (overrides config)")
	writeRaw := fs.Bool("raw", false, "also write the full-precision .vxr volume")
	fs.Parse(args)

	cfg, mesh, path, err := common.load(fs)
	if err != nil {
		return err
	}
	if *format != "" {
		cfg.Format = strings.ToLower(*format)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if *writeRaw {
		cfg.WriteRaw = true
	}
	logger := voxelise.NewDefaultLogger("bake", cfg.Debug)

	var prog core.Program
	switch cfg.Backend {
	case voxelise.BackendWebGPU:
		dev, err := gpu.NewHeadlessDevice()
		if err != nil {
			return err
		}
		defer dev.Release()
		gp, err := gpu.NewProgram(dev)
		if err != nil {
			return err
		}
		defer gp.Release()
		prog = gp
	default:
		prog = raster.New(cfg.Workers)
	}

	def := newDefinition(cfg, mesh, path, prog)
	for _, line := range voxelise.Diagnostics(def) {
		logger.Warnf("%s", line)
	}

	start := time.Now()
	out, err := voxelise.NewVoxeliser(logger).BakeTexture(def, voxelise.BakeOptions{
		Format:   cfg.ImageFormat(),
		WriteRaw: cfg.WriteRaw,
	})
	if err != nil {
		return err
	}
	if out == "" {
		return fmt.Errorf("%s was not baked", def.Name)
	}
	logger.Infof("%s: %d voxels occupied at %d³ in %s",
		def.Name, def.VoxelTexture.OccupiedCount(), def.Resolution, time.Since(start).Round(time.Millisecond))
	return nil
}

func runView(args []string) error {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	watch := fs.Bool("watch", false, "re-voxelise when the mesh file changes")
	baked := fs.Bool("baked", false, "only show an existing bake, never voxelise")
	fs.Parse(args)

	cfg, mesh, path, err := common.load(fs)
	if err != nil {
		return err
	}
	logger := voxelise.NewDefaultLogger("view", cfg.Debug)

	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, "voxelrt - "+filepath.Base(path), nil, nil)
	if err != nil {
		return err
	}
	defer window.Destroy()

	viewer := app.NewApp(window, logger)
	viewer.DebugMode = cfg.Debug
	if err := viewer.Init(); err != nil {
		return err
	}
	defer viewer.Release()

	var prog core.Program = raster.New(cfg.Workers)
	if cfg.Backend == voxelise.BackendWebGPU {
		gp, err := gpu.NewProgram(viewer.GPU())
		if err != nil {
			return err
		}
		defer gp.Release()
		prog = gp
	}

	def := newDefinition(cfg, mesh, path, prog)
	if bakedPath, err := voxelise.BakedTexturePath(def, cfg.ImageFormat()); err == nil {
		if vol, err := voxelise.LoadBakedTexture(bakedPath); err == nil {
			def.VoxelTexture = vol
			logger.Infof("loaded bake %s", bakedPath)
		}
	}

	v := voxelise.NewVoxeliser(logger)
	renderer := voxelise.NewVoxelRenderer(def, v)
	defer renderer.Disable()

	enable := func() error {
		start := time.Now()
		if *baked {
			rep, err := v.PrepareFromBaked(def)
			if err != nil || rep == nil {
				return err
			}
			rep.Release()
		}
		if err := renderer.Enable(); err != nil {
			return err
		}
		viewer.Profiler.Record("voxelise", time.Since(start))
		if !renderer.Enabled() {
			return nil
		}
		viewer.Camera.Frame(renderer.Representation().Bounds)
		return viewer.Attach(renderer)
	}
	if err := enable(); err != nil {
		return err
	}

	var changes <-chan struct{}
	if *watch {
		fw, err := app.WatchFile(path, 200*time.Millisecond, func(err error) {
			logger.Warnf("watch %s: %v", path, err)
		})
		if err != nil {
			return err
		}
		defer fw.Close()
		changes = fw.Changes
	}

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	for !window.ShouldClose() {
		glfw.PollEvents()

		select {
		case <-changes:
			reloaded, err := meshio.LoadGLTF(path)
			if err != nil {
				logger.Warnf("reload %s: %v", path, err)
				break
			}
			renderer.Disable()
			def.SourceMesh = reloaded
			if err := enable(); err != nil {
				logger.Errorf("re-voxelise %s: %v", path, err)
			}
			logger.Infof("re-voxelised %s", path)
		default:
		}

		planes := viewer.BeginFrame()
		if renderer.Visible(planes) {
			if err := renderer.Update(viewer); err != nil {
				logger.Errorf("update: %v", err)
			}
		}
		viewer.Render()
	}
	return nil
}
