// Package solver ties the algorithm packages together: it turns a model into
// its canonical tableau, solves the LP relaxation with the chosen simplex
// method and, for integer models, runs the chosen integer method on the
// result.
package solver

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/golang/glog"

	"q.log/lpsolver/bnb"
	"q.log/lpsolver/cutplane"
	"q.log/lpsolver/model"
	"q.log/lpsolver/simplex"
	"q.log/lpsolver/tableau"
)

// LPMethod selects the simplex variant.
type LPMethod int

const (
	Primal LPMethod = iota
	Revised
)

func (m LPMethod) String() string {
	if m == Revised {
		return "revised"
	}
	return "primal"
}

// ParseLPMethod returns the method named s.
func ParseLPMethod(s string) (LPMethod, error) {
	switch strings.ToLower(s) {
	case "primal", "":
		return Primal, nil
	case "revised":
		return Revised, nil
	}
	return 0, fmt.Errorf("solver: unknown LP method %q", s)
}

// IPMethod selects how integrality is enforced. With None an integer model
// is solved as its LP relaxation.
type IPMethod int

const (
	None IPMethod = iota
	BranchAndBound
	Knapsack
	CuttingPlane
)

func (m IPMethod) String() string {
	switch m {
	case BranchAndBound:
		return "bnb"
	case Knapsack:
		return "knapsack"
	case CuttingPlane:
		return "cutplane"
	default:
		return "none"
	}
}

// ParseIPMethod returns the method named s.
func ParseIPMethod(s string) (IPMethod, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return None, nil
	case "bnb":
		return BranchAndBound, nil
	case "knapsack":
		return Knapsack, nil
	case "cutplane":
		return CuttingPlane, nil
	}
	return 0, fmt.Errorf("solver: unknown IP method %q", s)
}

// Options configures Solve.
type Options struct {
	LP      LPMethod
	IP      IPMethod
	Simplex []simplex.Option
	Branch  []bnb.Option
	Cuts    []cutplane.Option
}

// Option mutates Options.
type Option func(*Options)

// WithLP sets the simplex variant.
func WithLP(m LPMethod) Option { return func(o *Options) { o.LP = m } }

// WithIP sets the integer method.
func WithIP(m IPMethod) Option { return func(o *Options) { o.IP = m } }

// WithSimplexOptions configures the LP solve.
func WithSimplexOptions(opts ...simplex.Option) Option {
	return func(o *Options) { o.Simplex = append(o.Simplex, opts...) }
}

// WithBranchOptions configures both branch-and-bound searches.
func WithBranchOptions(opts ...bnb.Option) Option {
	return func(o *Options) { o.Branch = append(o.Branch, opts...) }
}

// WithCutOptions configures the cut loop.
func WithCutOptions(opts ...cutplane.Option) Option {
	return func(o *Options) { o.Cuts = append(o.Cuts, opts...) }
}

// Run is everything a solve produced. Result is always set; the other
// fields are filled by the methods that produce them.
type Run struct {
	Result *model.Result
	// Tableaux holds the LP history followed by the node or cut snapshots.
	Tableaux []*tableau.Tableau
	// PriceOuts are the revised simplex iterations of the LP solve, over
	// the columns in PriceLabels.
	PriceOuts   []simplex.PriceOut
	PriceLabels []string
	Tree        *bnb.Tree
	Cuts        []cutplane.Cut
}

func algorithm(o Options, integer bool) string {
	lp := o.LP.String() + " simplex"
	switch {
	case o.IP == Knapsack:
		return "knapsack branch and bound"
	case !integer || o.IP == None:
		return lp
	case o.IP == BranchAndBound:
		return lp + " + branch and bound"
	default:
		return lp + " + cutting plane"
	}
}

// Status converts a snapshot status into a result status.
func Status(s tableau.Status) model.Status {
	switch s {
	case tableau.Optimal:
		return model.StatusOptimal
	case tableau.Infeasible:
		return model.StatusInfeasible
	case tableau.Unbounded:
		return model.StatusUnbounded
	case tableau.Error:
		return model.StatusError
	default:
		return model.StatusNotSolved
	}
}

// Solve solves m. Infeasible and unbounded models are reported through the
// result status. Any error aborts the solve: the returned Run then carries
// StatusError with the message under Diagnostics["error"], and the error is
// returned as well.
//
// m itself is not modified; use m.Apply to copy the result back.
func Solve(ctx context.Context, m *model.Model, opts ...Option) (*Run, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()
	res := &model.Result{
		Algorithm:   algorithm(o, m.IsInteger()),
		Diagnostics: map[string]string{"lp": o.LP.String(), "ip": o.IP.String()},
	}
	run := &Run{Result: res}
	s := &solve{opts: o, run: run}

	err := s.do(ctx, m)
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Status = model.StatusError
		res.Diagnostics["error"] = err.Error()
		log.Errorf("solver: %s: %v", m.Name, err)
		return run, err
	}
	log.Infof("solver: %s: %s", m.Name, res.Summary())
	return run, nil
}

type solve struct {
	opts Options
	run  *Run
}

func (s *solve) do(ctx context.Context, m *model.Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if s.opts.IP == Knapsack {
		return s.knapsack(ctx, m)
	}

	raw, err := tableau.FromModel(m)
	if err != nil {
		return err
	}
	lp, err := s.lp(raw)
	if err != nil {
		return err
	}
	if !m.IsInteger() || lp.Status != tableau.Optimal || s.opts.IP == None {
		if m.IsInteger() {
			s.run.Result.Diagnostics["relaxation"] = "true"
		}
		return nil
	}

	switch s.opts.IP {
	case BranchAndBound:
		return s.branch(ctx, lp.Final)
	case CuttingPlane:
		return s.cut(ctx, lp.Final)
	}
	return fmt.Errorf("solver: unknown IP method %d", s.opts.IP)
}

func (s *solve) lp(raw *tableau.Tableau) (*simplex.Result, error) {
	var lp *simplex.Result
	var err error
	if s.opts.LP == Revised {
		lp, err = simplex.NewRevised(s.opts.Simplex...).Solve(raw)
	} else {
		lp, err = simplex.NewPrimal(s.opts.Simplex...).Solve(raw)
	}
	if err != nil {
		return nil, err
	}
	s.run.Tableaux = lp.History
	s.run.PriceOuts = lp.PriceOuts
	if len(lp.PriceOuts) > 0 {
		s.run.PriceLabels = lp.History[0].ColumnLabels()
	}
	r := s.run.Result
	r.Status = Status(lp.Status)
	r.Iterations = lp.Iterations
	r.Objective = lp.Objective()
	if lp.Status == tableau.Optimal {
		r.X = lp.Solution()
	}
	return lp, nil
}

func (s *solve) branch(ctx context.Context, lp *tableau.Tableau) error {
	search, err := bnb.New(s.opts.Branch...).Solve(ctx, lp)
	if search != nil {
		s.search(search)
	}
	return err
}

func (s *solve) knapsack(ctx context.Context, m *model.Model) error {
	search, err := bnb.NewKnapsack(s.opts.Branch...).Solve(ctx, m)
	if search != nil {
		s.search(search)
	}
	return err
}

func (s *solve) search(search *bnb.SearchResult) {
	s.run.Tree = search.Tree
	search.Tree.Walk(func(n *bnb.Node) {
		if n.Tableau != nil {
			s.run.Tableaux = append(s.run.Tableaux, n.Tableau)
		}
	})
	r := s.run.Result
	r.Status = Status(search.Status)
	r.Objective = search.Objective()
	r.X = search.Solution()
	r.Diagnostics["nodes"] = strconv.Itoa(search.Explored)
	if search.Best != nil {
		r.Diagnostics["incumbent"] = search.Best.Label
	}
}

func (s *solve) cut(ctx context.Context, lp *tableau.Tableau) error {
	cp, err := cutplane.New(s.opts.Cuts...).Solve(ctx, lp)
	if cp == nil {
		return err
	}
	// cp.History starts with lp, already the last LP snapshot.
	s.run.Tableaux = append(s.run.Tableaux, cp.History[1:]...)
	s.run.Cuts = cp.Cuts
	r := s.run.Result
	r.Status = Status(cp.Status)
	r.Objective = cp.Objective()
	r.X = nil
	if cp.Status == tableau.Optimal {
		r.X = cp.Solution()
	}
	r.Diagnostics["cuts"] = strconv.Itoa(len(cp.Cuts))
	return err
}
