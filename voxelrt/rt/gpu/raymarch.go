package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/voxelise/voxelrt/rt/core"
	"github.com/gekko3d/voxelise/voxelrt/rt/shaders"
	"github.com/gekko3d/voxelise/voxelrt/rt/volume"
	"github.com/go-gl/mathgl/mgl32"
)

// RaymarchGlobals are the per-draw parameters of the ray-march shader.
type RaymarchGlobals struct {
	ViewProj  mgl32.Mat4
	Model     mgl32.Mat4
	CameraPos mgl32.Vec3

	BoundsMin          mgl32.Vec3
	BoundsMax          mgl32.Vec3
	BoundsSize         mgl32.Vec3
	BoundsProportions  mgl32.Vec3
	BoundsMaxDimension float32
	RaymarchStepCount  uint32
	NoiseFrameOffset   mgl32.Vec2

	Resolution uint32
	MetaRes    uint32
}

// struct VoxelGlobals {
//   view_proj, model, inv_model: mat4x4<f32>;   -- 192
//   camera_pos, bounds_min, bounds_max,
//   bounds_size, bounds_proportions: vec4<f32>; -- 272
//   bounds_max_dimension: f32;                  -- 276
//   raymarch_step_count: u32;                   -- 280
//   noise_frame_offset: vec2<f32>;              -- 288
//   resolution: u32;                            -- 292
//   meta_res: u32; _pad0..1: u32;               -- 304
// }
const raymarchGlobalsSize = 304

func encodeRaymarchGlobals(g RaymarchGlobals) []byte {
	buf := make([]byte, raymarchGlobalsSize)
	copy(buf[0:], mat4ToBytes(g.ViewProj))
	copy(buf[64:], mat4ToBytes(g.Model))
	copy(buf[128:], mat4ToBytes(g.Model.Inv()))
	copy(buf[192:], vec4ToBytes(g.CameraPos.Vec4(1)))
	copy(buf[208:], vec4ToBytes(g.BoundsMin.Vec4(0)))
	copy(buf[224:], vec4ToBytes(g.BoundsMax.Vec4(0)))
	copy(buf[240:], vec4ToBytes(g.BoundsSize.Vec4(0)))
	copy(buf[256:], vec4ToBytes(g.BoundsProportions.Vec4(0)))
	binary.LittleEndian.PutUint32(buf[272:], math.Float32bits(g.BoundsMaxDimension))
	binary.LittleEndian.PutUint32(buf[276:], g.RaymarchStepCount)
	binary.LittleEndian.PutUint32(buf[280:], math.Float32bits(g.NoiseFrameOffset.X()))
	binary.LittleEndian.PutUint32(buf[284:], math.Float32bits(g.NoiseFrameOffset.Y()))
	binary.LittleEndian.PutUint32(buf[288:], g.Resolution)
	binary.LittleEndian.PutUint32(buf[292:], g.MetaRes)
	return buf
}

// packPositions is the position-only vertex stream of a proxy mesh.
func packPositions(mesh *core.Mesh) []byte {
	buf := make([]byte, len(mesh.Vertices)*12)
	for i, v := range mesh.Vertices {
		for j := 0; j < 3; j++ {
			binary.LittleEndian.PutUint32(buf[i*12+j*4:], math.Float32bits(v[j]))
		}
	}
	return buf
}

// RaymarchPass draws a proxy mesh and ray-marches a volume texture behind it.
type RaymarchPass struct {
	Device   *wgpu.Device
	Pipeline *wgpu.RenderPipeline
}

func NewRaymarchPass(device *wgpu.Device, format wgpu.TextureFormat) (*RaymarchPass, error) {
	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Raymarch Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.RaymarchWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer module.Release()

	pipeline, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Raymarch Pipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: 12,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeFront,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}
	return &RaymarchPass{Device: device, Pipeline: pipeline}, nil
}

// VolumeBinding holds the GPU copies of one representation: proxy geometry,
// the tiled volume texture and its globals.
type VolumeBinding struct {
	Texture    *wgpu.Texture
	View       *wgpu.TextureView
	Globals    *wgpu.Buffer
	VertexBuf  *wgpu.Buffer
	IndexBuf   *wgpu.Buffer
	IndexCount uint32
	BindGroup  *wgpu.BindGroup
}

// Bind uploads the proxy mesh and the volume as an RGBA8 tiled texture.
func (p *RaymarchPass) Bind(mesh *core.Mesh, vol *volume.Volume) (*VolumeBinding, error) {
	if mesh == nil || vol.Empty() {
		return nil, fmt.Errorf("raymarch bind: missing proxy mesh or volume")
	}
	b := &VolumeBinding{}
	var err error

	side := uint32(vol.Width())
	extent := wgpu.Extent3D{Width: side, Height: side, DepthOrArrayLayers: 1}
	b.Texture, err = p.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Voxel Volume",
		Size:          extent,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("create volume texture: %w", err)
	}
	queue := p.Device.GetQueue()
	err = queue.WriteTexture(b.Texture.AsImageCopy(), vol.ToImage().Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  side * 4,
		RowsPerImage: side,
	}, &extent)
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("upload volume texture: %w", err)
	}
	if b.View, err = b.Texture.CreateView(nil); err != nil {
		b.Release()
		return nil, err
	}

	if b.VertexBuf, err = p.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "Proxy VB",
		Contents: packPositions(mesh),
		Usage:    wgpu.BufferUsageVertex,
	}); err != nil {
		b.Release()
		return nil, err
	}
	indices := packIndices(mesh, 0)
	b.IndexCount = uint32(len(indices) / 4)
	if b.IndexBuf, err = p.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "Proxy IB",
		Contents: indices,
		Usage:    wgpu.BufferUsageIndex,
	}); err != nil {
		b.Release()
		return nil, err
	}

	if b.Globals, err = p.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Voxel Globals",
		Size:  raymarchGlobalsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	}); err != nil {
		b.Release()
		return nil, err
	}
	b.BindGroup, err = p.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Raymarch BG",
		Layout: p.Pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: b.Globals, Size: raymarchGlobalsSize},
			{Binding: 1, TextureView: b.View},
		},
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("create raymarch bind group: %w", err)
	}
	return b, nil
}

func (b *VolumeBinding) Update(queue *wgpu.Queue, g RaymarchGlobals) error {
	return queue.WriteBuffer(b.Globals, 0, encodeRaymarchGlobals(g))
}

func (p *RaymarchPass) Draw(pass *wgpu.RenderPassEncoder, b *VolumeBinding) {
	if b == nil || b.BindGroup == nil || b.IndexCount == 0 {
		return
	}
	pass.SetPipeline(p.Pipeline)
	pass.SetBindGroup(0, b.BindGroup, nil)
	pass.SetVertexBuffer(0, b.VertexBuf, 0, wgpu.WholeSize)
	pass.SetIndexBuffer(b.IndexBuf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	pass.DrawIndexed(b.IndexCount, 1, 0, 0, 0)
}

func (b *VolumeBinding) Release() {
	if b.BindGroup != nil {
		b.BindGroup.Release()
		b.BindGroup = nil
	}
	if b.Globals != nil {
		b.Globals.Release()
		b.Globals = nil
	}
	if b.IndexBuf != nil {
		b.IndexBuf.Release()
		b.IndexBuf = nil
	}
	if b.VertexBuf != nil {
		b.VertexBuf.Release()
		b.VertexBuf = nil
	}
	if b.View != nil {
		b.View.Release()
		b.View = nil
	}
	if b.Texture != nil {
		b.Texture.Release()
		b.Texture = nil
	}
}

func (p *RaymarchPass) Release() {
	if p.Pipeline != nil {
		p.Pipeline.Release()
		p.Pipeline = nil
	}
}
