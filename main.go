// Command lpsolver reads an MPS model and solves it with the tableau
// methods of this module.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	log "github.com/golang/glog"

	"q.log/lpsolver/export"
	"q.log/lpsolver/instance"
	"q.log/lpsolver/present"
	"q.log/lpsolver/simplex"
	"q.log/lpsolver/solver"
	"q.log/lpsolver/tableau"
)

var (
	lpFlag     = flag.String("lp", "primal", "LP method: primal or revised")
	ipFlag     = flag.String("ip", "none", "integer method: none, bnb, knapsack or cutplane")
	outFlag    = flag.String("out", "", "write the result to this file, as JSON for .json")
	tablesFlag = flag.Bool("tables", false, "print every tableau snapshot")
	prelimFlag = flag.Bool("prelim", false, "print the final basis decomposition of the LP")
	bland      = flag.Bool("bland", false, "use Bland's rule from the first pivot")
	maxIter    = flag.Int("max_iterations", 0, "simplex iteration limit, 0 for the default")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] model.mps\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	defer log.Flush()
	if flag.NArg() != 1 {
		flag.Usage()
		log.Flush()
		os.Exit(2)
	}
	if err := run(flag.Arg(0)); err != nil {
		log.Errorf("%v", err)
		log.Flush()
		os.Exit(1)
	}
}

func run(filename string) error {
	lp, err := solver.ParseLPMethod(*lpFlag)
	if err != nil {
		return err
	}
	ip, err := solver.ParseIPMethod(*ipFlag)
	if err != nil {
		return err
	}
	m, err := instance.NewReader(filename).ConstructModelFromFile()
	if err != nil {
		return err
	}

	simplexOpts := []simplex.Option{simplex.WithMaxIterations(*maxIter)}
	if *bland {
		simplexOpts = append(simplexOpts, simplex.WithRule(tableau.Bland))
	}
	r, err := solver.Solve(context.Background(), m,
		solver.WithLP(lp), solver.WithIP(ip), solver.WithSimplexOptions(simplexOpts...))
	if err != nil {
		return err
	}
	m.Apply(r.Result)

	out := os.Stdout
	if *tablesFlag {
		if err := present.History(out, r.Tableaux); err != nil {
			return err
		}
		for _, po := range r.PriceOuts {
			if err := present.PriceOut(out, po, r.PriceLabels); err != nil {
				return err
			}
		}
	}
	if *prelimFlag && len(r.Tableaux) > 0 {
		if err := writePrelim(r); err != nil {
			log.Warningf("prelim: %v", err)
		}
	}
	if r.Tree != nil {
		fmt.Fprintln(out, "\nSearch tree:")
		if err := present.Tree(out, r.Tree); err != nil {
			return err
		}
	}

	rep := export.NewReport(m, r.Result)
	fmt.Fprintln(out)
	if err := export.WriteText(out, rep); err != nil {
		return err
	}
	if *outFlag != "" {
		if err := export.WriteFile(*outFlag, rep); err != nil {
			return err
		}
		log.Infof("wrote %s", *outFlag)
	}
	return nil
}

// writePrelim decomposes the canonical system at the basis of the last LP
// snapshot that still has its columns.
func writePrelim(r *solver.Run) error {
	initial := r.Tableaux[0]
	var last *tableau.Tableau
	for _, t := range r.Tableaux {
		if t.ConstraintCount() == initial.ConstraintCount() && t.Stage() != tableau.Canonical {
			last = t
		}
	}
	if last == nil {
		last = initial
	}
	mp, err := present.NewMathPrelim(initial, last.BasicVariables())
	if err != nil {
		return err
	}
	return mp.Write(os.Stdout)
}
