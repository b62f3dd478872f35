package solver

// OpenCL C sources, one program per kernel group. The index arithmetic and
// guard conditions mirror the CPU sweeps in cpu_kernels.go; any change here
// needs the matching change there.

// maskHeader is prepended to every program source.
const maskHeader = `
#define SELF_MASK  0x0Fu
#define NB_LEFT    0x80u
#define NB_RIGHT   0x40u
#define NB_BOTTOM  0x20u
#define NB_TOP     0x10u
#define FLAG_VEL   0x01u
#define FLAG_PRES  0x02u
#define FLAG_H     0x04u
#define FLAG_V     0x08u
#define CELL_NOSLIP     0x0Cu
#define CELL_SLIP_H     0x06u
#define CELL_SLIP_V     0x0Au
#define CELL_OUTFLOW    0x0Eu

inline int is_fluid(uchar c) { return (c & SELF_MASK) == 0u; }
`

const zeroSource = `
__kernel void zero_init(__global float* buf, const int n)
{
	int i = get_global_id(0);
	if (i < n) {
		buf[i] = 0.0f;
	}
}
`

const boundarySource = `
inline float wall_u(uchar cell, float presc, float interior)
{
	uchar t = cell & SELF_MASK;
	if (!(t & FLAG_H)) return 0.0f;
	if (t & FLAG_VEL)  return presc;
	if (t & FLAG_PRES) return interior;
	return 0.0f;
}

inline float ghost_u(uchar cell, float presc, float interior)
{
	uchar t = cell & SELF_MASK;
	if (t & FLAG_H) {
		if (t & FLAG_PRES) return interior;
		if (t & FLAG_VEL)  return 2.0f * presc - interior;
	}
	return -interior;
}

__kernel void boundary_u(const int w, const int h, const float presc,
                         __global const uchar* mask, __global float* u)
{
	int x = get_global_id(0);
	int y = get_global_id(1);
	if (x >= w - 1 || y >= h) return;

	uchar self  = mask[y * w + x];
	uchar right = mask[y * w + x + 1];
	int sf = is_fluid(self);
	int rf = is_fluid(right);
	if (sf && rf) return;

	int uw = w + 1;
	int i = y * uw + x;
	if (sf) {
		u[i] = wall_u(right, presc, u[i - 1]);
	} else if (rf) {
		u[i] = wall_u(self, presc, u[i + 1]);
	} else if (self & NB_TOP) {
		u[i] = ghost_u(self, presc, u[i + uw]);
	} else if (self & NB_BOTTOM) {
		u[i] = ghost_u(self, presc, u[i - uw]);
	} else {
		u[i] = 0.0f;
	}
}

inline float wall_v(uchar cell, float presc, float interior)
{
	uchar t = cell & SELF_MASK;
	if (!(t & FLAG_V)) return 0.0f;
	if (t & FLAG_VEL)  return presc;
	if (t & FLAG_PRES) return interior;
	return 0.0f;
}

inline float ghost_v(uchar cell, float presc, float interior)
{
	uchar t = cell & SELF_MASK;
	if (t & FLAG_V) {
		if (t & FLAG_PRES) return interior;
		if (t & FLAG_VEL)  return 2.0f * presc - interior;
	}
	return -interior;
}

__kernel void boundary_v(const int w, const int h, const float presc,
                         __global const uchar* mask, __global float* v)
{
	int x = get_global_id(0);
	int y = get_global_id(1);
	if (x >= w || y >= h - 1) return;

	uchar self = mask[y * w + x];
	uchar top  = mask[(y + 1) * w + x];
	int sf = is_fluid(self);
	int tf = is_fluid(top);
	if (sf && tf) return;

	int i = y * w + x;
	if (sf) {
		v[i] = wall_v(top, presc, v[i - w]);
	} else if (tf) {
		v[i] = wall_v(self, presc, v[i + w]);
	} else if (self & NB_RIGHT) {
		v[i] = ghost_v(self, presc, v[i + 1]);
	} else if (self & NB_LEFT) {
		v[i] = ghost_v(self, presc, v[i - 1]);
	} else {
		v[i] = 0.0f;
	}
}

__kernel void boundary_p(const int w, const int h, const float presc,
                         __global const uchar* mask, __global float* p)
{
	int x = get_global_id(0);
	int y = get_global_id(1);
	if (x >= w || y >= h) return;

	uchar cell = mask[y * w + x];
	if (is_fluid(cell)) return;
	uchar t = cell & SELF_MASK;

	float sum = 0.0f;
	int n = 0;

	if (cell & NB_LEFT) {
		float pn = p[y * w + x - 1];
		sum += (t == CELL_OUTFLOW) ? -pn : (t == CELL_SLIP_V) ? 2.0f * presc - pn : pn;
		n++;
	}
	if (cell & NB_RIGHT) {
		float pn = p[y * w + x + 1];
		sum += (t == CELL_OUTFLOW) ? -pn : (t == CELL_SLIP_V) ? 2.0f * presc - pn : pn;
		n++;
	}
	if (cell & NB_BOTTOM) {
		float pn = p[(y - 1) * w + x];
		sum += (t == CELL_OUTFLOW) ? -pn : (t == CELL_SLIP_H) ? 2.0f * presc - pn : pn;
		n++;
	}
	if (cell & NB_TOP) {
		float pn = p[(y + 1) * w + x];
		sum += (t == CELL_OUTFLOW) ? -pn : (t == CELL_SLIP_H) ? 2.0f * presc - pn : pn;
		n++;
	}

	if (n > 0) {
		p[y * w + x] = sum / (float)n;
	}
}

__kernel void boundary_f(const int w, const int h,
                         __global const uchar* mask,
                         __global const float* u, __global float* f)
{
	int x = get_global_id(0);
	int y = get_global_id(1);
	if (x >= w - 1 || y >= h) return;

	uchar self = mask[y * w + x];
	if (is_fluid(self) && (self & NB_RIGHT)) return;
	int i = y * (w + 1) + x;
	f[i] = u[i];
}

__kernel void boundary_g(const int w, const int h,
                         __global const uchar* mask,
                         __global const float* v, __global float* g)
{
	int x = get_global_id(0);
	int y = get_global_id(1);
	if (x >= w || y >= h - 1) return;

	uchar self = mask[y * w + x];
	if (is_fluid(self) && (self & NB_TOP)) return;
	int i = y * w + x;
	g[i] = v[i];
}
`

const momentumSource = `
__kernel void momentum(const int w, const int h,
                       const float dx, const float dy,
                       const float dt, const float re, const float alpha,
                       __global const uchar* mask,
                       __global const float* u, __global const float* v,
                       __global float* f, __global float* g)
{
	int x = get_global_id(0) + 1;
	int y = get_global_id(1) + 1;
	if (x >= w - 1 || y >= h - 1) return;

	uchar cell = mask[y * w + x];
	if (!is_fluid(cell)) return;

	int uw = w + 1;
	float dx2 = dx * dx;
	float dy2 = dy * dy;

	if (cell & NB_RIGHT) {
		int i = y * uw + x;
		float uc = u[i];
		float ul = u[i - 1];
		float ur = u[i + 1];
		float ub = u[i - uw];
		float ut = u[i + uw];
		float vc  = v[y * w + x];
		float vr  = v[y * w + x + 1];
		float vb  = v[(y - 1) * w + x];
		float vbr = v[(y - 1) * w + x + 1];

		float duudx = ((uc + ur) * (uc + ur) - (ul + uc) * (ul + uc)) / (4.0f * dx)
		            + alpha * (fabs(uc + ur) * (uc - ur) - fabs(ul + uc) * (ul - uc)) / (4.0f * dx);
		float duvdy = ((vc + vr) * (uc + ut) - (vb + vbr) * (ub + uc)) / (4.0f * dy)
		            + alpha * (fabs(vc + vr) * (uc - ut) - fabs(vb + vbr) * (ub - uc)) / (4.0f * dy);
		float lap = (ur - 2.0f * uc + ul) / dx2 + (ut - 2.0f * uc + ub) / dy2;

		f[i] = uc + dt * (lap / re - duudx - duvdy);
	}

	if (cell & NB_TOP) {
		int i = y * w + x;
		float vc = v[i];
		float vl = v[i - 1];
		float vr = v[i + 1];
		float vb = v[i - w];
		float vt = v[i + w];
		float uc  = u[y * uw + x];
		float ut  = u[(y + 1) * uw + x];
		float ul  = u[y * uw + x - 1];
		float utl = u[(y + 1) * uw + x - 1];

		float dvvdy = ((vc + vt) * (vc + vt) - (vb + vc) * (vb + vc)) / (4.0f * dy)
		            + alpha * (fabs(vc + vt) * (vc - vt) - fabs(vb + vc) * (vb - vc)) / (4.0f * dy);
		float duvdx = ((uc + ut) * (vc + vr) - (ul + utl) * (vl + vc)) / (4.0f * dx)
		            + alpha * (fabs(uc + ut) * (vc - vr) - fabs(ul + utl) * (vl - vc)) / (4.0f * dx);
		float lap = (vr - 2.0f * vc + vl) / dx2 + (vt - 2.0f * vc + vb) / dy2;

		g[i] = vc + dt * (lap / re - dvvdy - duvdx);
	}
}

__kernel void poisson_rhs(const int w, const int h,
                          const float dx, const float dy, const float dt,
                          __global const uchar* mask,
                          __global const float* f, __global const float* g,
                          __global float* rhs)
{
	int x = get_global_id(0) + 1;
	int y = get_global_id(1) + 1;
	if (x >= w - 1 || y >= h - 1) return;

	int i = (y - 1) * (w - 2) + (x - 1);
	if (!is_fluid(mask[y * w + x])) {
		rhs[i] = 0.0f;
		return;
	}
	int uw = w + 1;
	float div = (f[y * uw + x] - f[y * uw + x - 1]) / dx
	          + (g[y * w + x] - g[(y - 1) * w + x]) / dy;
	rhs[i] = div / dt;
}
`

const pressureSource = `
__kernel void sor_sweep(const int w, const int h,
                        const float dx, const float dy,
                        const float omg, const int red,
                        __global const uchar* mask,
                        __global const float* rhs, __global float* p)
{
	int x = get_global_id(0) + 1;
	int y = get_global_id(1) + 1;
	if (x >= w - 1 || y >= h - 1) return;

	if ((((x ^ y) & 1) == 0) != (red != 0)) return;
	if (!is_fluid(mask[y * w + x])) return;

	float dx2 = dx * dx;
	float dy2 = dy * dy;
	float coeff = omg * dx2 * dy2 / (2.0f * (dx2 + dy2));

	float pc = p[y * w + x];
	float b  = rhs[(y - 1) * (w - 2) + (x - 1)];
	p[y * w + x] = (1.0f - omg) * pc + coeff * (
		(p[y * w + x - 1] + p[y * w + x + 1]) / dx2 +
		(p[(y - 1) * w + x] + p[(y + 1) * w + x]) / dy2 - b);
}

__kernel void residual(const int w, const int h,
                       const float dx, const float dy,
                       __global const uchar* mask,
                       __global const float* rhs,
                       __global const float* p, __global float* res)
{
	int x = get_global_id(0) + 1;
	int y = get_global_id(1) + 1;
	if (x >= w - 1 || y >= h - 1) return;

	int i = (y - 1) * (w - 2) + (x - 1);
	if (!is_fluid(mask[y * w + x])) {
		res[i] = 0.0f;
		return;
	}
	float pc = p[y * w + x];
	float r = (p[y * w + x + 1] - 2.0f * pc + p[y * w + x - 1]) / (dx * dx)
	        + (p[(y + 1) * w + x] - 2.0f * pc + p[(y - 1) * w + x]) / (dy * dy)
	        - rhs[i];
	res[i] = r * r;
}
`

const velocitySource = `
__kernel void velocity_update(const int w, const int h,
                              const float dx, const float dy, const float dt,
                              __global const uchar* mask,
                              __global const float* f, __global const float* g,
                              __global const float* p,
                              __global float* u, __global float* v)
{
	int x = get_global_id(0) + 1;
	int y = get_global_id(1) + 1;
	if (x >= w - 1 || y >= h - 1) return;

	uchar cell = mask[y * w + x];
	if (!is_fluid(cell)) return;

	if (cell & NB_RIGHT) {
		int i = y * (w + 1) + x;
		u[i] = f[i] - dt / dx * (p[y * w + x + 1] - p[y * w + x]);
	}
	if (cell & NB_TOP) {
		int i = y * w + x;
		v[i] = g[i] - dt / dy * (p[(y + 1) * w + x] - p[y * w + x]);
	}
}
`

const reduceSource = `
__kernel void reduce_max_abs(__global const float* data, const int n,
                             __local float* scratch, __global float* partials)
{
	int gid    = get_global_id(0);
	int lid    = get_local_id(0);
	int stride = get_global_size(0);

	float acc = 0.0f;
	for (int i = gid; i < n; i += stride) {
		acc = fmax(acc, fabs(data[i]));
	}
	scratch[lid] = acc;
	barrier(CLK_LOCAL_MEM_FENCE);

	for (int s = get_local_size(0) / 2; s > 0; s /= 2) {
		if (lid < s) {
			scratch[lid] = fmax(scratch[lid], scratch[lid + s]);
		}
		barrier(CLK_LOCAL_MEM_FENCE);
	}
	if (lid == 0) {
		partials[get_group_id(0)] = scratch[0];
	}
}

__kernel void reduce_sum(__global const float* data, const int n,
                         __local float* scratch, __global float* partials)
{
	int gid    = get_global_id(0);
	int lid    = get_local_id(0);
	int stride = get_global_size(0);

	float acc = 0.0f;
	for (int i = gid; i < n; i += stride) {
		acc += data[i];
	}
	scratch[lid] = acc;
	barrier(CLK_LOCAL_MEM_FENCE);

	for (int s = get_local_size(0) / 2; s > 0; s /= 2) {
		if (lid < s) {
			scratch[lid] += scratch[lid + s];
		}
		barrier(CLK_LOCAL_MEM_FENCE);
	}
	if (lid == 0) {
		partials[get_group_id(0)] = scratch[0];
	}
}

/* scratch holds 2 * local_size floats: minima first, maxima second.
   partials likewise: group minima in [0, groups), maxima in [groups, 2*groups). */
__kernel void reduce_min_max(__global const float* data, const int n,
                             __local float* scratch, __global float* partials)
{
	int gid    = get_global_id(0);
	int lid    = get_local_id(0);
	int lsz    = get_local_size(0);
	int stride = get_global_size(0);

	float lo = INFINITY;
	float hi = -INFINITY;
	for (int i = gid; i < n; i += stride) {
		lo = fmin(lo, data[i]);
		hi = fmax(hi, data[i]);
	}
	scratch[lid] = lo;
	scratch[lsz + lid] = hi;
	barrier(CLK_LOCAL_MEM_FENCE);

	for (int s = lsz / 2; s > 0; s /= 2) {
		if (lid < s) {
			scratch[lid] = fmin(scratch[lid], scratch[lid + s]);
			scratch[lsz + lid] = fmax(scratch[lsz + lid], scratch[lsz + lid + s]);
		}
		barrier(CLK_LOCAL_MEM_FENCE);
	}
	if (lid == 0) {
		int groups = get_num_groups(0);
		partials[get_group_id(0)] = scratch[0];
		partials[groups + get_group_id(0)] = scratch[lsz];
	}
}
`

const visualizeSource = `
__kernel void visualize(const int w, const int h,
                        const float dx, const float dy, const int field,
                        __global const uchar* mask,
                        __global const float* u, __global const float* v,
                        __global const float* p, __global float* viz)
{
	int x = get_global_id(0);
	int y = get_global_id(1);
	if (x >= w || y >= h) return;

	int uw = w + 1;
	int xl = max(x - 1, 0);
	int yb = max(y - 1, 0);
	int xr = min(x + 1, w - 1);
	int yt = min(y + 1, h - 1);

	float val = 0.0f;
	switch (field) {
	case 0:
		val = u[y * uw + x];
		break;
	case 1:
		val = v[y * w + x];
		break;
	case 2:
		val = p[y * w + x];
		break;
	case 3: {
		float uc = 0.5f * (u[y * uw + xl] + u[y * uw + x]);
		float vc = 0.5f * (v[yb * w + x] + v[y * w + x]);
		val = sqrt(uc * uc + vc * vc);
		break;
	}
	case 4:
		val = (u[yt * uw + x] - u[y * uw + x]) / dy
		    - (v[y * w + xr] - v[y * w + x]) / dx;
		break;
	case 5:
		val = (float)(mask[y * w + x] & SELF_MASK);
		break;
	}
	viz[y * w + x] = val;
}

/* lo/hi come from the min/max reduction over viz. */
__kernel void copy_to_image(const int n, const float lo, const float hi,
                            __global const float* viz, __global uchar4* pixels)
{
	int i = get_global_id(0);
	if (i >= n) return;

	uchar b = 127;
	float span = hi - lo;
	if (span > 0.0f) {
		float norm = (viz[i] - lo) / span;
		b = (uchar)(norm * 255.0f + 0.5f);
	}
	pixels[i] = (uchar4)(b, b, b, 255);
}
`
