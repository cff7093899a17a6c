/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"math"
	"math/cmplx"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/notargets/hps/InputParameters"
	"github.com/notargets/hps/hps"
	"github.com/notargets/hps/operators"
	"github.com/notargets/hps/tree"
	"github.com/notargets/hps/utils"
)

type Model2D struct {
	ICFile string
}

// initField pairs a reference field with its gradient, used to manufacture
// boundary data and, when the field solves the configured equation, to
// report the solver error.
type initField struct {
	u    func(x, y float64) float64
	grad func(x, y float64) (ux, uy float64)
}

var initFields = map[string]initField{
	"Harmonic": {
		u: func(x, y float64) float64 { return math.Sin(x) * math.Sinh(y) },
		grad: func(x, y float64) (ux, uy float64) {
			return math.Cos(x) * math.Sinh(y), math.Sin(x) * math.Cosh(y)
		},
	},
	"Cubic": {
		u: func(x, y float64) float64 { return x*x*x - 3*x*y*y },
		grad: func(x, y float64) (ux, uy float64) {
			return 3*x*x - 3*y*y, -6 * x * y
		},
	},
}

// TwoDCmd represents the 2D command
var TwoDCmd = &cobra.Command{
	Use:   "2D",
	Short: "Two dimensional fast direct elliptic solver on a quadtree of spectral leaves",
	Long:  `Two dimensional fast direct elliptic solver on a quadtree of spectral leaves`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		fmt.Println("2D called")
		m2d := &Model2D{}
		if m2d.ICFile, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
			panic(err)
		}
		sp := processInput(m2d.ICFile, 2)
		if fused, _ := cmd.Flags().GetBool("fused"); fused {
			sp.Fused = true
		}
		if lv, _ := cmd.Flags().GetInt("levels"); lv > 0 {
			sp.Levels = lv
		}
		Run2D(sp)
	},
}

func processInput(icFile string, dim int) (sp *InputParameters.SolverParameters) {
	var (
		err error
	)
	if len(icFile) == 0 {
		err = fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile)")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "Poisson Test Case"
PolynomialOrder: 8
GaussOrder: 6
Levels: 3
Mode: DtN
XMin: 0.
XMax: 1.
YMin: 0.
YMax: 1.
InitType: Harmonic
Coefficients:
  XX: 1.
  YY: 1.
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	var data []byte
	if data, err = ioutil.ReadFile(icFile); err != nil {
		panic(err)
	}
	sp = &InputParameters.SolverParameters{Dim: dim}
	if err = sp.Parse(data); err != nil {
		panic(err)
	}
	return
}

// coefficients2D expands the constant per-term YAML values into the
// per-leaf arrays the problem setup expects.
func coefficients2D(sp *InputParameters.SolverParameters, nLeaves, np2 int) map[hps.Term]utils.Matrix {
	var (
		tags = map[string]hps.Term{
			"XX": hps.TermXX, "XY": hps.TermXY, "YY": hps.TermYY,
			"X": hps.TermX, "Y": hps.TermY, "I": hps.TermI,
		}
		coeffs = make(map[hps.Term]utils.Matrix)
	)
	for tag, val := range sp.Coefficients {
		term, ok := tags[tag]
		if !ok {
			panic(fmt.Errorf("unknown 2D coefficient tag %s", tag))
		}
		c := utils.NewMatrix(nLeaves, np2)
		for i := 0; i < nLeaves; i++ {
			for j := 0; j < np2; j++ {
				c.Set(i, j, val)
			}
		}
		coeffs[term] = c
	}
	return coeffs
}

func init() {
	rootCmd.AddCommand(TwoDCmd)
	TwoDCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- PolynomialOrder\n\t- Levels\n\t- Coefficients")
	TwoDCmd.Flags().Bool("fused", false, "chunked build and solve, bounds peak memory")
	TwoDCmd.Flags().IntP("levels", "l", 0, "override the uniform refinement level count")
}

func Run2D(sp *InputParameters.SolverParameters) {
	sp.Print()
	var (
		ops  = operators.NewOperatorSet2D(sp.PolynomialOrder, sp.GaussOrder)
		root = tree.NewRoot2D(sp.XMin, sp.XMax, sp.YMin, sp.YMax)
		fld  = fieldFor(sp.InitType)
	)
	tree.NewUniformTree(root, sp.Levels)
	mode := hps.DtN
	if sp.Mode == "ItI" {
		mode = hps.ItI
	}
	var (
		nLeaves     = root.NumLeaves()
		np2         = sp.PolynomialOrder * sp.PolynomialOrder
		coeffs      = coefficients2D(sp, nLeaves, np2)
		prob, pErr  = hps.NewProblem2D(root, ops, mode, sp.Eta, coeffs, utils.Matrix{})
		start       = time.Now()
		top         hps.TopOperator
		sol         hps.Solution
		err         error
		cfg         = hps.Config{NLevelsFused: sp.NLevelsFused, MemoryBudget: sp.MemoryBudget}
		elapsed     time.Duration
	)
	if pErr != nil {
		panic(pErr)
	}
	fmt.Printf("leaves: %d, leaf nodes: %d\n", nLeaves, np2)
	if sp.Fused && mode == hps.DtN {
		g := boundaryData2D(prob, fld)
		cfg.Fused = true
		sol, err = hps.SolveFused(prob, g, cfg)
		if err != nil {
			panic(err)
		}
		elapsed = time.Since(start)
		fmt.Printf("fused build+solve: %v\n", elapsed)
	} else {
		if top, err = hps.BuildSolver(prob, hps.Config{}); err != nil {
			panic(err)
		}
		elapsed = time.Since(start)
		nr, _ := top.T.Dims()
		if mode == hps.ItI {
			nr, _ = top.R.Dims()
		}
		fmt.Printf("build: %v, top operator: %d x %d\n", elapsed, nr, nr)
		start = time.Now()
		var bd hps.BoundaryData
		if mode == hps.ItI {
			bd.F = impedanceData2D(prob, fld)
		} else {
			bd.G = boundaryData2D(prob, fld)
		}
		if sol, err = hps.Solve(prob, bd, utils.Matrix{}); err != nil {
			panic(err)
		}
		fmt.Printf("solve: %v\n", time.Since(start))
	}
	reportError2D(sp, ops, root, sol, fld, mode)
}

func fieldFor(initType string) initField {
	if initType == "" {
		initType = "Harmonic"
	}
	fld, ok := initFields[initType]
	if !ok {
		panic(fmt.Errorf("unknown InitType %s", initType))
	}
	return fld
}

func boundaryData2D(prob *hps.PDEProblem, fld initField) utils.Vector {
	XY, err := prob.RootBoundaryPoints()
	if err != nil {
		// not built yet (fused path): points follow the uniform panel layout
		XY = operators.BoundaryPoints2D(prob.Root.Box, prob.Ops2D.GaussPts,
			1<<uint(prob.Root.MaxDepth()))
	}
	nr, _ := XY.Dims()
	g := utils.NewVector(nr)
	for i := 0; i < nr; i++ {
		g.Set(i, fld.u(XY.At(i, 0), XY.At(i, 1)))
	}
	return g
}

func impedanceData2D(prob *hps.PDEProblem, fld initField) utils.CVector {
	var (
		XY, _ = prob.RootBoundaryPoints()
		nr, _ = XY.Dims()
		f     = utils.NewCVector(nr)
		side  = nr / 4
	)
	for i := 0; i < nr; i++ {
		var (
			x, y   = XY.At(i, 0), XY.At(i, 1)
			ux, uy = fld.grad(x, y)
			un     float64
		)
		switch i / side {
		case 0:
			un = -uy
		case 1:
			un = ux
		case 2:
			un = uy
		default:
			un = -ux
		}
		f.Set(i, complex(un, prob.Eta*fld.u(x, y)))
	}
	return f
}

func reportError2D(sp *InputParameters.SolverParameters, ops *operators.OperatorSet2D,
	root *tree.Node, sol hps.Solution, fld initField, mode hps.Mode) {
	var md float64
	for k, lf := range root.Leaves() {
		XY := ops.LeafPoints(lf.Box)
		nr, _ := XY.Dims()
		for j := 0; j < nr; j++ {
			exact := fld.u(XY.At(j, 0), XY.At(j, 1))
			var d float64
			if mode == hps.ItI {
				d = cmplx.Abs(sol.UC.At(k, j) - complex(exact, 0))
			} else {
				d = math.Abs(sol.U.At(k, j) - exact)
			}
			if d > md {
				md = d
			}
		}
	}
	fmt.Printf("max deviation from the %s reference field: %8.3e\n", sp.InitType, md)
}
