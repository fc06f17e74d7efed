package app

import (
	"fmt"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/voxelise"
	"github.com/gekko3d/voxelise/voxelrt/rt/core"
	"github.com/gekko3d/voxelise/voxelrt/rt/gpu"
	"github.com/gekko3d/voxelise/voxelrt/rt/volume"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

type drawItem struct {
	binding  *gpu.VolumeBinding
	model    mgl32.Mat4
	material *voxelise.Material
}

// App is a preview window that ray-marches voxel representations. It
// implements voxelise.Drawer.
type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	Raymarch *gpu.RaymarchPass
	Camera   *core.CameraState
	Profiler *Profiler
	Logger   voxelise.Logger

	ClearColor wgpu.Color
	DebugMode  bool

	bindings  map[*core.Mesh]*gpu.VolumeBinding
	renderers map[*core.Mesh]*voxelise.VoxelRenderer
	items     []drawItem
	viewProj  mgl32.Mat4

	dragging     bool
	lastX, lastY float64
}

func NewApp(window *glfw.Window, logger voxelise.Logger) *App {
	if logger == nil {
		logger = voxelise.NewNopLogger()
	}
	return &App{
		Window:     window,
		Camera:     core.NewCameraState(),
		Profiler:   NewProfiler(),
		Logger:     logger,
		ClearColor: wgpu.Color{R: 0.08, G: 0.08, B: 0.1, A: 1},
		bindings:   make(map[*core.Mesh]*gpu.VolumeBinding),
		renderers:  make(map[*core.Mesh]*voxelise.VoxelRenderer),
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)

	surface := a.Instance.CreateSurface(GetSurfaceDescriptor(a.Window))
	a.Surface = surface

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return err
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return err
	}
	a.Queue = a.Device.GetQueue()

	width, height := a.Window.GetFramebufferSize()
	caps := surface.GetCapabilities(adapter)
	format := caps.Formats[0]

	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, a.Device, a.Config)

	a.Raymarch, err = gpu.NewRaymarchPass(a.Device, format)
	if err != nil {
		return fmt.Errorf("create raymarch pass: %w", err)
	}
	a.installInput()
	return nil
}

// GPU exposes the window's device to a voxelising program.
func (a *App) GPU() *gpu.Device {
	return gpu.WrapDevice(a.Device)
}

func (a *App) installInput() {
	a.Window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		a.Resize(width, height)
	})
	a.Window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button == glfw.MouseButtonRight && action == glfw.Press {
			x, y := w.GetCursorPos()
			a.HandlePick(x, y)
			return
		}
		if button != glfw.MouseButtonLeft {
			return
		}
		a.dragging = action == glfw.Press
		a.lastX, a.lastY = w.GetCursorPos()
	})
	a.Window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		if a.dragging {
			a.Camera.Rotate(float32(xpos-a.lastX), float32(ypos-a.lastY))
		}
		a.lastX, a.lastY = xpos, ypos
	})
	a.Window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		a.Camera.Zoom(float32(yoff))
	})
}

// Attach uploads the representation behind r and frees the upload when the
// representation is released.
func (a *App) Attach(r *voxelise.VoxelRenderer) error {
	rep := r.Representation()
	if rep == nil {
		return voxelise.ErrRendererDisabled
	}
	mesh := rep.BoundsMesh
	if _, ok := a.bindings[mesh]; ok {
		return nil
	}
	b, err := a.Raymarch.Bind(mesh, rep.Volume)
	if err != nil {
		return err
	}
	if err := rep.OnRelease(func() {
		b.Release()
		delete(a.bindings, mesh)
		delete(a.renderers, mesh)
	}); err != nil {
		b.Release()
		return err
	}
	a.bindings[mesh] = b
	a.renderers[mesh] = r
	a.Profiler.SetCount("occupied", rep.Volume.OccupiedCount())
	a.Logger.Debugf("attached %dx%d volume texture", rep.Volume.Width(), rep.Volume.Width())
	return nil
}

// Pick returns the nearest voxel under window pixel (x, y) across all
// attached renderers.
func (a *App) Pick(x, y float64) (volume.Hit, bool) {
	w, h := a.Window.GetSize()
	origin, dir := a.Camera.ScreenRay(x, y, w, h)
	return pickNearest(a.renderers, origin, dir)
}

func pickNearest(renderers map[*core.Mesh]*voxelise.VoxelRenderer, origin, dir mgl32.Vec3) (volume.Hit, bool) {
	var best volume.Hit
	found := false
	for _, r := range renderers {
		if hit, ok := r.Pick(origin, dir); ok && (!found || hit.T < best.T) {
			best, found = hit, true
		}
	}
	return best, found
}

// HandlePick logs the voxel under the cursor.
func (a *App) HandlePick(x, y float64) {
	hit, ok := a.Pick(x, y)
	if !ok {
		a.Logger.Infof("pick: no voxel under cursor")
		return
	}
	a.Logger.Infof("pick: cell %v color %.3f normal %v", hit.Cell, hit.Color, hit.Normal)
}

func (a *App) Resize(w, h int) {
	if w > 0 && h > 0 {
		a.Config.Width = uint32(w)
		a.Config.Height = uint32(h)
		a.Surface.Configure(a.Adapter, a.Device, a.Config)
	}
}

// BeginFrame computes camera matrices and returns the frustum planes for
// culling.
func (a *App) BeginFrame() [6]mgl32.Vec4 {
	a.items = a.items[:0]
	var aspect float32
	if a.Config.Height > 0 {
		aspect = float32(a.Config.Width) / float32(a.Config.Height)
	}
	a.viewProj = a.Camera.GetProjectionMatrix(aspect).Mul4(a.Camera.GetViewMatrix())
	return a.Camera.ExtractFrustum(a.viewProj)
}

// DrawMesh queues a proxy mesh that was attached earlier.
func (a *App) DrawMesh(mesh *core.Mesh, model mgl32.Mat4, material *voxelise.Material, layer int) {
	b, ok := a.bindings[mesh]
	if !ok {
		a.Logger.Warnf("draw: mesh %q was never attached", mesh.Name)
		return
	}
	a.items = append(a.items, drawItem{binding: b, model: model, material: material})
}

func (a *App) globals(item drawItem) gpu.RaymarchGlobals {
	g := item.material.Globals
	tex := item.material.MainTexture
	return gpu.RaymarchGlobals{
		ViewProj:           a.viewProj,
		Model:              item.model,
		CameraPos:          a.Camera.Position(),
		BoundsMin:          g.BoundsMin,
		BoundsMax:          g.BoundsMax,
		BoundsSize:         g.BoundsSize,
		BoundsProportions:  g.BoundsProportions,
		BoundsMaxDimension: g.BoundsMaxDimension,
		RaymarchStepCount:  uint32(g.RaymarchStepCount),
		NoiseFrameOffset:   g.NoiseFrameOffset,
		Resolution:         uint32(tex.Resolution),
		MetaRes:            uint32(tex.MetaRes),
	}
}

// Render draws every queued item and presents.
func (a *App) Render() {
	a.Profiler.BeginScope("render")
	defer a.Profiler.EndScope("render")

	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		a.Logger.Errorf("GetCurrentTexture failed: %v", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		a.Logger.Errorf("CreateView failed: %v", err)
		return
	}
	defer view.Release()

	for _, item := range a.items {
		if err := item.binding.Update(a.Queue, a.globals(item)); err != nil {
			a.Logger.Errorf("update voxel globals: %v", err)
		}
	}

	encoder, err := a.Device.CreateCommandEncoder(nil)
	if err != nil {
		a.Logger.Errorf("CreateCommandEncoder failed: %v", err)
		return
	}

	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: a.ClearColor,
		}},
	})
	for _, item := range a.items {
		a.Raymarch.Draw(rPass, item.binding)
	}
	if err := rPass.End(); err != nil {
		a.Logger.Errorf("render pass End failed: %v", err)
	}
	rPass.Release()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		a.Logger.Errorf("encoder Finish failed: %v", err)
		return
	}
	a.Queue.Submit(cmd)
	a.Surface.Present()

	a.Profiler.SetCount("draws", len(a.items))
	if a.Profiler.Frame(time.Now()) && a.DebugMode {
		a.Logger.Debugf("%s", a.Profiler.GetStatsString())
	}
}

func (a *App) Release() {
	for _, b := range a.bindings {
		b.Release()
	}
	clear(a.bindings)
	clear(a.renderers)
	if a.Raymarch != nil {
		a.Raymarch.Release()
	}
	if a.Surface != nil {
		a.Surface.Release()
	}
	if a.Device != nil {
		a.Queue.Release()
		a.Device.Release()
	}
	if a.Adapter != nil {
		a.Adapter.Release()
	}
	if a.Instance != nil {
		a.Instance.Release()
	}
}

func GetSurfaceDescriptor(w *glfw.Window) *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(w)
}
