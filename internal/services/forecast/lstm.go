package forecast

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// lstmLayer is a single LSTM layer with gates laid out as input, forget,
// cell, output in blocks of hidden rows.
type lstmLayer struct {
	in, hidden int
	wx         []float64 // 4*hidden x in, row-major
	wh         []float64 // 4*hidden x hidden, row-major
	b          []float64 // 4*hidden
}

type lstmGrads struct {
	wx, wh, b []float64
}

// lstmTrace keeps the per-step activations needed by backward.
type lstmTrace struct {
	xs    [][]float64
	hs    [][]float64 // len T+1, hs[0] is the zero state
	cs    [][]float64 // len T+1
	gates [][]float64 // activated i, f, g, o per step
}

func newLSTMLayer(in, hidden int, rng *rand.Rand) *lstmLayer {
	l := &lstmLayer{
		in:     in,
		hidden: hidden,
		wx:     glorot(4*hidden*in, in, 4*hidden, rng),
		wh:     glorot(4*hidden*hidden, hidden, 4*hidden, rng),
		b:      make([]float64, 4*hidden),
	}
	for j := hidden; j < 2*hidden; j++ {
		l.b[j] = 1
	}
	return l
}

func (l *lstmLayer) newGrads() *lstmGrads {
	return &lstmGrads{
		wx: make([]float64, len(l.wx)),
		wh: make([]float64, len(l.wh)),
		b:  make([]float64, len(l.b)),
	}
}

func (l *lstmLayer) forward(xs [][]float64) *lstmTrace {
	H := l.hidden
	T := len(xs)
	tr := &lstmTrace{
		xs:    xs,
		hs:    make([][]float64, T+1),
		cs:    make([][]float64, T+1),
		gates: make([][]float64, T),
	}
	tr.hs[0] = make([]float64, H)
	tr.cs[0] = make([]float64, H)

	for t := 0; t < T; t++ {
		z := make([]float64, 4*H)
		copy(z, l.b)
		hPrev := tr.hs[t]
		for r := 0; r < 4*H; r++ {
			z[r] += floats.Dot(l.wx[r*l.in:(r+1)*l.in], xs[t])
			z[r] += floats.Dot(l.wh[r*H:(r+1)*H], hPrev)
		}
		h := make([]float64, H)
		c := make([]float64, H)
		for j := 0; j < H; j++ {
			i := sigmoid(z[j])
			f := sigmoid(z[H+j])
			g := math.Tanh(z[2*H+j])
			o := sigmoid(z[3*H+j])
			z[j], z[H+j], z[2*H+j], z[3*H+j] = i, f, g, o
			c[j] = f*tr.cs[t][j] + i*g
			h[j] = o * math.Tanh(c[j])
		}
		tr.gates[t] = z
		tr.hs[t+1] = h
		tr.cs[t+1] = c
	}
	return tr
}

// backward runs BPTT given the loss gradient w.r.t. each output h_t (nil
// rows are zero), accumulates parameter gradients into g and returns the
// gradient w.r.t. each input x_t.
func (l *lstmLayer) backward(tr *lstmTrace, dOut [][]float64, g *lstmGrads) [][]float64 {
	H := l.hidden
	T := len(tr.xs)
	dxs := make([][]float64, T)
	dhNext := make([]float64, H)
	dcNext := make([]float64, H)
	dz := make([]float64, 4*H)

	for t := T - 1; t >= 0; t-- {
		gates := tr.gates[t]
		cPrev := tr.cs[t]
		c := tr.cs[t+1]
		for j := 0; j < H; j++ {
			dh := dhNext[j]
			if dOut[t] != nil {
				dh += dOut[t][j]
			}
			i, f, gg, o := gates[j], gates[H+j], gates[2*H+j], gates[3*H+j]
			tc := math.Tanh(c[j])
			dc := dcNext[j] + dh*o*(1-tc*tc)

			dz[j] = dc * gg * i * (1 - i)
			dz[H+j] = dc * cPrev[j] * f * (1 - f)
			dz[2*H+j] = dc * i * (1 - gg*gg)
			dz[3*H+j] = dh * tc * o * (1 - o)
			dcNext[j] = dc * f
		}

		x := tr.xs[t]
		hPrev := tr.hs[t]
		dx := make([]float64, l.in)
		for j := range dhNext {
			dhNext[j] = 0
		}
		for r := 0; r < 4*H; r++ {
			d := dz[r]
			if d == 0 {
				continue
			}
			floats.AddScaled(g.wx[r*l.in:(r+1)*l.in], d, x)
			floats.AddScaled(g.wh[r*H:(r+1)*H], d, hPrev)
			g.b[r] += d
			floats.AddScaled(dx, d, l.wx[r*l.in:(r+1)*l.in])
			floats.AddScaled(dhNext, d, l.wh[r*H:(r+1)*H])
		}
		dxs[t] = dx
	}
	return dxs
}

// network stacks two LSTM layers with dropout after each and a linear head
// reading the last hidden state.
type network struct {
	l1, l2  *lstmLayer
	dw      []float64
	db      []float64 // length 1
	dropout float64
}

type networkGrads struct {
	l1, l2 *lstmGrads
	dw, db []float64
}

func newNetwork(hidden int, dropout float64, rng *rand.Rand) *network {
	return &network{
		l1:      newLSTMLayer(1, hidden, rng),
		l2:      newLSTMLayer(hidden, hidden, rng),
		dw:      glorot(hidden, hidden, 1, rng),
		db:      make([]float64, 1),
		dropout: dropout,
	}
}

func (n *network) newGrads() *networkGrads {
	return &networkGrads{
		l1: n.l1.newGrads(),
		l2: n.l2.newGrads(),
		dw: make([]float64, len(n.dw)),
		db: make([]float64, 1),
	}
}

// params and networkGrads.params list slices in the same order so the
// optimizer can pair them.
func (n *network) params() [][]float64 {
	return [][]float64{n.l1.wx, n.l1.wh, n.l1.b, n.l2.wx, n.l2.wh, n.l2.b, n.dw, n.db}
}

func (g *networkGrads) params() [][]float64 {
	return [][]float64{g.l1.wx, g.l1.wh, g.l1.b, g.l2.wx, g.l2.wh, g.l2.b, g.dw, g.db}
}

func (g *networkGrads) zero() {
	for _, p := range g.params() {
		for i := range p {
			p[i] = 0
		}
	}
}

func toSequence(window []float64) [][]float64 {
	xs := make([][]float64, len(window))
	for t, v := range window {
		xs[t] = []float64{v}
	}
	return xs
}

// predict runs inference without dropout.
func (n *network) predict(window []float64) float64 {
	tr1 := n.l1.forward(toSequence(window))
	tr2 := n.l2.forward(tr1.hs[1:])
	return floats.Dot(n.dw, tr2.hs[len(tr2.hs)-1]) + n.db[0]
}

// trainStep accumulates scaled MSE gradients for one sample into g and
// returns the squared error.
func (n *network) trainStep(window []float64, target, scale float64, rng *rand.Rand, g *networkGrads) float64 {
	tr1 := n.l1.forward(toSequence(window))
	out1 := tr1.hs[1:]
	masks1 := make([][]float64, len(out1))
	in2 := make([][]float64, len(out1))
	for t, h := range out1 {
		masks1[t] = n.dropoutMask(len(h), rng)
		in2[t] = mulElem(h, masks1[t])
	}
	tr2 := n.l2.forward(in2)
	last := tr2.hs[len(tr2.hs)-1]
	mask2 := n.dropoutMask(len(last), rng)
	hd := mulElem(last, mask2)

	yhat := floats.Dot(n.dw, hd) + n.db[0]
	diff := yhat - target
	dy := 2 * diff * scale

	floats.AddScaled(g.dw, dy, hd)
	g.db[0] += dy

	dLast := make([]float64, len(last))
	floats.AddScaled(dLast, dy, n.dw)
	dOut2 := make([][]float64, len(in2))
	dOut2[len(dOut2)-1] = mulElem(dLast, mask2)
	dIn2 := n.l2.backward(tr2, dOut2, g.l2)

	dOut1 := make([][]float64, len(out1))
	for t := range dIn2 {
		dOut1[t] = mulElem(dIn2[t], masks1[t])
	}
	n.l1.backward(tr1, dOut1, g.l1)
	return diff * diff
}

// dropoutMask returns an inverted-dropout mask (kept units scaled by 1/keep).
func (n *network) dropoutMask(size int, rng *rand.Rand) []float64 {
	m := make([]float64, size)
	keep := 1 - n.dropout
	for i := range m {
		if n.dropout <= 0 || rng.Float64() < keep {
			m[i] = 1 / keep
		}
	}
	return m
}

// adam implements the Adam update with Keras default constants.
type adam struct {
	lr, beta1, beta2, eps float64
	m, v                  [][]float64
	t                     int
}

func newAdam(lr float64, params [][]float64) *adam {
	a := &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7}
	for _, p := range params {
		a.m = append(a.m, make([]float64, len(p)))
		a.v = append(a.v, make([]float64, len(p)))
	}
	return a
}

func (a *adam) step(params, grads [][]float64) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for k, p := range params {
		g := grads[k]
		m, v := a.m[k], a.v[k]
		for i := range p {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
			v[i] = a.beta2*v[i] + (1-a.beta2)*g[i]*g[i]
			p[i] -= a.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + a.eps)
		}
	}
}

func glorot(size, fanIn, fanOut int, rng *rand.Rand) []float64 {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	w := make([]float64, size)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
	return w
}

func mulElem(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
