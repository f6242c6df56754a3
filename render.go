package senie

// RenderPacket is a fixed-capacity batch of vertex/colour/uv data, the
// host-visible unit the renderer consumes. vbuf holds xy pairs, cbuf
// holds rgba quads, tbuf holds uv pairs — all indexed by vertex, up to
// MaxVertices per packet.
type RenderPacket struct {
	NumVertices int
	VBuf        []float32 // len == MaxVertices*2
	CBuf        []float32 // len == MaxVertices*4
	TBuf        []float32 // len == MaxVertices*2
}

func newRenderPacket(maxVertices int) *RenderPacket {
	return &RenderPacket{
		VBuf: make([]float32, maxVertices*2),
		CBuf: make([]float32, maxVertices*4),
		TBuf: make([]float32, maxVertices*2),
	}
}

// renderPacketPoolSize bounds how many packet buffers are kept warm
// across VM resets. Genotype construction calls vm.Reset() once per
// trait program — often thousands of times per generation — so reusing
// packet buffers instead of reallocating their vbuf/cbuf/tbuf slices
// every time matters; a run that genuinely needs more packets than this
// falls back to plain allocation, same as before pooling existed.
const renderPacketPoolSize = 64

// RenderData is the doubly-linked (here: slice-backed) list of render
// packets a program run produces. Overflow past MaxVertices in the
// current packet begins a new one, mirroring add_render_packet. Packet
// buffers are drawn from a fixed pool (see pool.go, the original's
// SENIE_POOL analogue) and returned to it on reset instead of discarded.
type RenderData struct {
	MaxVertices int
	Packets     []*RenderPacket

	pool    *pool[RenderPacket]
	poolIdx []int32 // parallel to Packets; noIndex if not pool-backed
}

func NewRenderData(maxVertices int) *RenderData {
	p := newPool[RenderPacket](renderPacketPoolSize, func(rp *RenderPacket) { rp.NumVertices = 0 })
	for i := 0; i < renderPacketPoolSize; i++ {
		item := p.at(int32(i))
		item.VBuf = make([]float32, maxVertices*2)
		item.CBuf = make([]float32, maxVertices*4)
		item.TBuf = make([]float32, maxVertices*2)
	}
	return &RenderData{MaxVertices: maxVertices, pool: p}
}

func (r *RenderData) current() *RenderPacket {
	if len(r.Packets) == 0 || r.Packets[len(r.Packets)-1].NumVertices >= r.MaxVertices {
		if idx, item, ok := r.pool.get(); ok {
			r.Packets = append(r.Packets, item)
			r.poolIdx = append(r.poolIdx, idx)
		} else {
			r.Packets = append(r.Packets, newRenderPacket(r.MaxVertices))
			r.poolIdx = append(r.poolIdx, noIndex)
		}
	}
	return r.Packets[len(r.Packets)-1]
}

// AddVertex appends one vertex/colour/uv triple, starting a new packet
// on overflow.
func (r *RenderData) AddVertex(x, y float32, col [4]float32, u, v float32) {
	p := r.current()
	i := p.NumVertices
	p.VBuf[i*2], p.VBuf[i*2+1] = x, y
	p.CBuf[i*4], p.CBuf[i*4+1], p.CBuf[i*4+2], p.CBuf[i*4+3] = col[0], col[1], col[2], col[3]
	p.TBuf[i*2], p.TBuf[i*2+1] = u, v
	p.NumVertices++
}

func (r *RenderData) NumPackets() int { return len(r.Packets) }

func (r *RenderData) Packet(i int) *RenderPacket {
	if i < 0 || i >= len(r.Packets) {
		return nil
	}
	return r.Packets[i]
}

func (r *RenderData) TotalVertices() int {
	total := 0
	for _, p := range r.Packets {
		total += p.NumVertices
	}
	return total
}

func (r *RenderData) reset() {
	for _, idx := range r.poolIdx {
		if idx != noIndex {
			r.pool.put(idx)
		}
	}
	r.Packets = r.Packets[:0]
	r.poolIdx = r.poolIdx[:0]
}
