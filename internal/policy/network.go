package policy

import (
	"fmt"
	"math"
	"math/rand"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Network is a small feed-forward network on a gorgonia expression graph:
// ReLU hidden layers, a linear output and a softmax head. It trains with Adam
// one sample at a time.
//
// Training takes the loss gradient with respect to the output, so callers
// express their loss as dLoss/dOutput. The graph minimises
// sum(output * upstream), whose gradient through the layers is exactly that.
type Network struct {
	in, out int

	g        *gorgonia.ExprGraph
	x        *gorgonia.Node // 1 x in
	upstream *gorgonia.Node // 1 x out
	logits   *gorgonia.Node
	probs    *gorgonia.Node
	learn    gorgonia.Nodes

	vm     gorgonia.VM
	solver gorgonia.Solver
}

// NewNetwork creates a network with the given layer sizes, e.g. (7, 16, 4).
// Initial weights are drawn uniformly in ±1/sqrt(fan-in) from rng.
func NewNetwork(rng *rand.Rand, lr float64, sizes ...int) *Network {
	if len(sizes) < 2 {
		panic("policy: a network needs at least an input and an output size")
	}
	n := &Network{
		in:  sizes[0],
		out: sizes[len(sizes)-1],
		g:   gorgonia.NewGraph(),
	}
	n.x = gorgonia.NewMatrix(n.g, tensor.Float64, gorgonia.WithShape(1, n.in), gorgonia.WithName("x"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(1, n.in), tensor.WithBacking(make([]float64, n.in)))))
	n.upstream = gorgonia.NewMatrix(n.g, tensor.Float64, gorgonia.WithShape(1, n.out), gorgonia.WithName("upstream"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(1, n.out), tensor.WithBacking(make([]float64, n.out)))))

	h := n.x
	for li := 0; li+1 < len(sizes); li++ {
		fanIn, fanOut := sizes[li], sizes[li+1]
		bound := 1 / math.Sqrt(float64(fanIn))
		w := gorgonia.NewMatrix(n.g, tensor.Float64, gorgonia.WithShape(fanIn, fanOut), gorgonia.WithName(fmt.Sprintf("w%d", li)),
			gorgonia.WithValue(tensor.New(tensor.WithShape(fanIn, fanOut), tensor.WithBacking(uniformSlice(rng, fanIn*fanOut, bound)))))
		b := gorgonia.NewMatrix(n.g, tensor.Float64, gorgonia.WithShape(1, fanOut), gorgonia.WithName(fmt.Sprintf("b%d", li)),
			gorgonia.WithValue(tensor.New(tensor.WithShape(1, fanOut), tensor.WithBacking(uniformSlice(rng, fanOut, bound)))))
		n.learn = append(n.learn, w, b)

		h = gorgonia.Must(gorgonia.Add(gorgonia.Must(gorgonia.Mul(h, w)), b))
		if li+2 < len(sizes) {
			h = gorgonia.Must(gorgonia.Rectify(h))
		}
	}
	n.logits = h
	n.probs = gorgonia.Must(gorgonia.SoftMax(h))

	cost := gorgonia.Must(gorgonia.Sum(gorgonia.Must(gorgonia.HadamardProd(n.logits, n.upstream))))
	if _, err := gorgonia.Grad(cost, n.learn...); err != nil {
		panic(fmt.Sprintf("policy: building gradient graph: %v", err))
	}
	n.vm = gorgonia.NewTapeMachine(n.g, gorgonia.BindDualValues(n.learn...))
	n.solver = gorgonia.NewAdamSolver(gorgonia.WithLearnRate(lr))
	return n
}

// Forward returns the output layer for input x.
func (n *Network) Forward(x []float64) []float64 {
	logits, _ := n.run(x, nil)
	return logits
}

// Probabilities returns the softmax of the output layer for input x.
func (n *Network) Probabilities(x []float64) []float64 {
	_, probs := n.run(x, nil)
	return probs
}

// Train applies one Adam step for input x given gradOut, the loss gradient
// with respect to the output layer.
func (n *Network) Train(x, gradOut []float64) {
	n.run(x, gradOut)
}

// run evaluates the graph once. With a non-nil gradOut it also applies the
// solver to the gradients of that pass.
func (n *Network) run(x, gradOut []float64) (logits, probs []float64) {
	defer n.vm.Reset()
	mustLet(n.x, fit(x, n.in))
	mustLet(n.upstream, fit(gradOut, n.out))
	if err := n.vm.RunAll(); err != nil {
		panic(fmt.Sprintf("policy: evaluating network: %v", err))
	}
	logits = append([]float64(nil), n.logits.Value().Data().([]float64)...)
	probs = append([]float64(nil), n.probs.Value().Data().([]float64)...)
	if gradOut != nil {
		if err := n.solver.Step(gorgonia.NodesToValueGrads(n.learn)); err != nil {
			panic(fmt.Sprintf("policy: adam step: %v", err))
		}
	}
	return logits, probs
}

func mustLet(node *gorgonia.Node, v []float64) {
	if err := gorgonia.Let(node, tensor.New(tensor.WithShape(1, len(v)), tensor.WithBacking(v))); err != nil {
		panic(fmt.Sprintf("policy: binding %s: %v", node.Name(), err))
	}
}

// fit copies v into a fresh slice of length size, truncating or zero-padding.
func fit(v []float64, size int) []float64 {
	out := make([]float64, size)
	copy(out, v)
	return out
}

func uniformSlice(rng *rand.Rand, size int, bound float64) []float64 {
	out := make([]float64, size)
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * bound
	}
	return out
}

// argmax returns the index of the largest value; ties go to the lowest index.
func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

// sample draws an index from a probability distribution.
func sample(dist []float64, rng *rand.Rand) int {
	x := rng.Float64()
	acc := 0.0
	for i, p := range dist {
		acc += p
		if x <= acc {
			return i
		}
	}
	return len(dist) - 1
}
