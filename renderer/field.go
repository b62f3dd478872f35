// Package renderer draws the solver's visualization buffer: a data
// texture updated from the backend's pixel readback each frame, colored
// by a cubehelix colormap shader at display time.
package renderer

import (
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flume/camera"
	"github.com/pthm-cable/flume/config"
)

// cubehelix colormap (Green 2011), applied to the normalized grayscale
// data texture. Keeping the colormap in the shader means the data texture
// stays a plain intensity image and field switches need no re-upload.
const colormapFS = `
#version 330

in vec2 fragTexCoord;
in vec4 fragColor;

uniform sampler2D texture0;
uniform float gain;

out vec4 finalColor;

void main()
{
    float t = texture(texture0, fragTexCoord).r;

    float angle = 2.0 * 3.14159265 * (0.5 / 3.0 + 1.0 - 1.5 * t);
    float amp = gain * t * (1.0 - t) / 2.0;
    float c = cos(angle);
    float s = sin(angle);

    vec3 rgb = vec3(
        t + amp * (-0.14861 * c + 1.78277 * s),
        t + amp * (-0.29227 * c - 0.90649 * s),
        t + amp * ( 1.97294 * c));

    finalColor = vec4(clamp(rgb, 0.0, 1.0), 1.0) * fragColor;
}
`

// FieldRenderer owns the data texture and colormap shader for one field
// view. Uniform and filter changes are dirty-tracked and committed at the
// start of Draw, so callers can set them at any point in the frame.
type FieldRenderer struct {
	texture rl.Texture2D
	shader  rl.Shader
	gainLoc int32

	w, h int

	gain      float32
	gainDirty bool

	smooth      bool
	smoothDirty bool
}

// NewFieldRenderer creates the data texture for a w x h grid. Must be
// called after the raylib window exists.
func NewFieldRenderer(w, h int) *FieldRenderer {
	cfg := config.Cfg()

	img := rl.GenImageColor(w, h, rl.Black)
	defer rl.UnloadImage(img)

	r := &FieldRenderer{
		texture:     rl.LoadTextureFromImage(img),
		shader:      rl.LoadShaderFromMemory("", colormapFS),
		w:           w,
		h:           h,
		gain:        float32(cfg.Display.ColormapGain),
		gainDirty:   true,
		smooth:      cfg.Display.Smooth,
		smoothDirty: true,
	}
	r.gainLoc = rl.GetShaderLocation(r.shader, "gain")
	return r
}

// Upload pushes the frame's pixel buffer into the data texture. The
// caller guarantees the backend is done writing pixels for this frame.
func (r *FieldRenderer) Upload(pixels []color.RGBA) {
	rl.UpdateTexture(r.texture, pixels)
}

// SetGain updates the colormap saturation, committed on next Draw.
func (r *FieldRenderer) SetGain(gain float32) {
	if gain == r.gain {
		return
	}
	r.gain = gain
	r.gainDirty = true
}

// Gain returns the current colormap saturation.
func (r *FieldRenderer) Gain() float32 { return r.gain }

// SetSmooth toggles bilinear sampling of the data texture. Nearest keeps
// the cells visible; bilinear shows the continuous field.
func (r *FieldRenderer) SetSmooth(smooth bool) {
	if smooth == r.smooth {
		return
	}
	r.smooth = smooth
	r.smoothDirty = true
}

// Smooth returns whether bilinear sampling is active.
func (r *FieldRenderer) Smooth() bool { return r.smooth }

func (r *FieldRenderer) commit() {
	if r.gainDirty {
		rl.SetShaderValue(r.shader, r.gainLoc, []float32{r.gain}, rl.ShaderUniformFloat)
		r.gainDirty = false
	}
	if r.smoothDirty {
		if r.smooth {
			rl.SetTextureFilter(r.texture, rl.FilterBilinear)
		} else {
			rl.SetTextureFilter(r.texture, rl.FilterPoint)
		}
		r.smoothDirty = false
	}
}

// Draw renders the field through the camera viewport. Grid row 0 is the
// bottom of the domain while screen y grows downward, so the source rect
// flips vertically.
func (r *FieldRenderer) Draw(cam *camera.Camera) {
	r.commit()

	x0, y0 := cam.WorldToScreen(0, 0)
	x1, y1 := cam.WorldToScreen(cam.WorldW, cam.WorldH)

	src := rl.Rectangle{
		X:      0,
		Y:      float32(r.h),
		Width:  float32(r.w),
		Height: -float32(r.h),
	}
	dst := rl.Rectangle{
		X:      x0,
		Y:      y0,
		Width:  x1 - x0,
		Height: y1 - y0,
	}

	rl.BeginShaderMode(r.shader)
	rl.DrawTexturePro(r.texture, src, dst, rl.Vector2{}, 0, rl.White)
	rl.EndShaderMode()
}

// Unload releases GPU resources.
func (r *FieldRenderer) Unload() {
	rl.UnloadShader(r.shader)
	rl.UnloadTexture(r.texture)
}
