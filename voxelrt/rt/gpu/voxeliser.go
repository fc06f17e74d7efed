package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/voxelise/voxelrt/rt/core"
	"github.com/gekko3d/voxelise/voxelrt/rt/shaders"
)

var ErrTargetReleased = errors.New("gpu voxel target released")

// scratchFormat is the format of the throwaway color target every pass
// renders into. Nothing is ever written to it.
const scratchFormat = wgpu.TextureFormatRGBA8Unorm

// Program voxelises on the GPU: a render pipeline whose fragment stage
// scatter-writes into a storage buffer instead of its color target.
type Program struct {
	Device   *wgpu.Device
	Pipeline *wgpu.RenderPipeline
}

func NewProgram(d *Device) (*Program, error) {
	module, err := d.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Voxelise Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.VoxeliseWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer module.Release()

	// Layout auto
	pipeline, err := d.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Voxelise Pipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: vertexStride,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x4, Offset: 12, ShaderLocation: 1},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    scratchFormat,
				WriteMask: wgpu.ColorWriteMaskNone,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: nil,
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}
	return &Program{Device: d.Device, Pipeline: pipeline}, nil
}

func (p *Program) Release() {
	if p.Pipeline != nil {
		p.Pipeline.Release()
		p.Pipeline = nil
	}
}

// NewTarget allocates a zeroed cell buffer, its readback twin and an R×R
// scratch color target.
func (p *Program) NewTarget(resolution int) (core.Target, error) {
	if resolution < 1 {
		return nil, fmt.Errorf("gpu voxel target resolution %d: must be at least 1", resolution)
	}
	t := &target{
		prog:       p,
		queue:      p.Device.GetQueue(),
		resolution: resolution,
		indexBufs:  make(map[int]*wgpu.Buffer),
		indexCount: make(map[int]uint32),
	}
	size := uint64(resolution) * uint64(resolution) * uint64(resolution) * cellSize

	var err error
	t.cells, err = p.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Voxel Cells",
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create cell buffer: %w", err)
	}
	t.readback, err = p.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Voxel Cells Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("create readback buffer: %w", err)
	}
	t.params, err = p.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Voxel Params",
		Size:  voxelParamsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("create params buffer: %w", err)
	}
	t.scratch, err = p.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Voxel Scratch Target",
		Size:          wgpu.Extent3D{Width: uint32(resolution), Height: uint32(resolution), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        scratchFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("create scratch target: %w", err)
	}
	t.scratchView, err = t.scratch.CreateView(nil)
	if err != nil {
		t.Release()
		return nil, err
	}
	t.bindGroup, err = p.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Voxelise BG",
		Layout: p.Pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: t.params, Size: voxelParamsSize},
			{Binding: 1, Buffer: t.cells, Size: size},
		},
	})
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("create voxelise bind group: %w", err)
	}

	// Buffers are not guaranteed zeroed on every backend.
	if err := t.queue.WriteBuffer(t.cells, 0, make([]byte, size)); err != nil {
		t.Release()
		return nil, err
	}
	return t, nil
}

type target struct {
	prog       *Program
	queue      *wgpu.Queue
	resolution int

	mu          sync.Mutex
	released    bool
	cells       *wgpu.Buffer
	readback    *wgpu.Buffer
	params      *wgpu.Buffer
	scratch     *wgpu.Texture
	scratchView *wgpu.TextureView
	bindGroup   *wgpu.BindGroup

	mesh       *core.Mesh
	vertexBuf  *wgpu.Buffer
	indexBufs  map[int]*wgpu.Buffer
	indexCount map[int]uint32
}

// uploadMesh caches vertex and index buffers for the last mesh drawn.
func (t *target) uploadMesh(mesh *core.Mesh, submesh int) error {
	device := t.prog.Device
	if t.mesh != mesh {
		t.releaseMesh()
		t.mesh = mesh
		data := packVertices(mesh)
		if len(data) == 0 {
			return nil
		}
		buf, err := device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    "Voxelise VB",
			Contents: data,
			Usage:    wgpu.BufferUsageVertex,
		})
		if err != nil {
			return fmt.Errorf("create vertex buffer: %w", err)
		}
		t.vertexBuf = buf
	}
	if _, ok := t.indexBufs[submesh]; ok {
		return nil
	}
	data := packIndices(mesh, submesh)
	t.indexCount[submesh] = uint32(len(data) / 4)
	if len(data) == 0 {
		t.indexBufs[submesh] = nil
		return nil
	}
	buf, err := device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "Voxelise IB",
		Contents: data,
		Usage:    wgpu.BufferUsageIndex,
	})
	if err != nil {
		return fmt.Errorf("create index buffer: %w", err)
	}
	t.indexBufs[submesh] = buf
	return nil
}

func (t *target) releaseMesh() {
	if t.vertexBuf != nil {
		t.vertexBuf.Release()
		t.vertexBuf = nil
	}
	for k, b := range t.indexBufs {
		if b != nil {
			b.Release()
		}
		delete(t.indexBufs, k)
		delete(t.indexCount, k)
	}
	t.mesh = nil
}

// Rasterize encodes and submits one pass. Passes are ordered on the queue,
// so the params buffer is rewritten between them.
func (t *target) Rasterize(mesh *core.Mesh, submesh int, params core.Params) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return ErrTargetReleased
	}
	if params.Resolution != t.resolution {
		return fmt.Errorf("rasterize: params resolution %d, target resolution %d", params.Resolution, t.resolution)
	}
	if mesh == nil {
		return errors.New("rasterize: nil mesh")
	}
	if err := t.uploadMesh(mesh, submesh); err != nil {
		return err
	}
	if t.vertexBuf == nil || t.indexBufs[submesh] == nil {
		return nil
	}
	if err := t.queue.WriteBuffer(t.params, 0, encodeParams(params)); err != nil {
		return err
	}

	encoder, err := t.prog.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Voxelise " + params.Swizzle.String(),
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       t.scratchView,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpDiscard,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	pass.SetPipeline(t.prog.Pipeline)
	pass.SetBindGroup(0, t.bindGroup, nil)
	pass.SetVertexBuffer(0, t.vertexBuf, 0, wgpu.WholeSize)
	pass.SetIndexBuffer(t.indexBufs[submesh], wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	pass.DrawIndexed(t.indexCount[submesh], 1, 0, 0, 0)
	err = pass.End()
	pass.Release()
	if err != nil {
		return fmt.Errorf("voxelise pass: %w", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer cmd.Release()
	t.queue.Submit(cmd)
	return nil
}

// Readback copies the cell buffer out and blocks until the map completes.
func (t *target) Readback() ([][4]float32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return nil, ErrTargetReleased
	}
	device := t.prog.Device
	size := t.cells.GetSize()

	encoder, err := device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Release()
	encoder.CopyBufferToBuffer(t.cells, 0, t.readback, 0, size)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	defer cmd.Release()
	t.queue.Submit(cmd)

	var (
		done   bool
		status wgpu.BufferMapAsyncStatus
	)
	err = t.readback.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		done = true
	})
	if err != nil {
		return nil, fmt.Errorf("map readback buffer: %w", err)
	}
	for !done {
		device.Poll(true, nil)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("map readback buffer: status %v", status)
	}

	data := t.readback.GetMappedRange(0, uint(size))
	cells := decodeCells(data, t.resolution*t.resolution*t.resolution)
	t.readback.Unmap()
	return cells, nil
}

func (t *target) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	t.releaseMesh()
	if t.bindGroup != nil {
		t.bindGroup.Release()
	}
	if t.scratchView != nil {
		t.scratchView.Release()
	}
	if t.scratch != nil {
		t.scratch.Release()
	}
	if t.params != nil {
		t.params.Release()
	}
	if t.readback != nil {
		t.readback.Release()
	}
	if t.cells != nil {
		t.cells.Release()
	}
}
