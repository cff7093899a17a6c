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
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/notargets/hps/InputParameters"
	"github.com/notargets/hps/hps"
	"github.com/notargets/hps/operators"
	"github.com/notargets/hps/tree"
	"github.com/notargets/hps/utils"
)

var initFields3D = map[string]func(x, y, z float64) float64{
	"Harmonic": func(x, y, z float64) float64 { return x*x - y*y + 2*z },
	"Cubic":    func(x, y, z float64) float64 { return x*x*x - 3*x*y*y + z },
}

// ThreeDCmd represents the 3D command
var ThreeDCmd = &cobra.Command{
	Use:   "3D",
	Short: "Three dimensional fast direct elliptic solver on an octree of spectral leaves",
	Long:  `Three dimensional fast direct elliptic solver on an octree of spectral leaves`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("3D called")
		icFile, err := cmd.Flags().GetString("inputConditionsFile")
		if err != nil {
			panic(err)
		}
		sp := processInput(icFile, 3)
		if lv, _ := cmd.Flags().GetInt("levels"); lv > 0 {
			sp.Levels = lv
		}
		Run3D(sp)
	},
}

func coefficients3D(sp *InputParameters.SolverParameters, nLeaves, np3 int) map[hps.Term]utils.Matrix {
	var (
		tags = map[string]hps.Term{
			"XX": hps.TermXX, "YY": hps.TermYY, "ZZ": hps.TermZZ,
			"XY": hps.TermXY, "XZ": hps.TermXZ, "YZ": hps.TermYZ,
			"X": hps.TermX, "Y": hps.TermY, "Z": hps.TermZ, "I": hps.TermI,
		}
		coeffs = make(map[hps.Term]utils.Matrix)
	)
	for tag, val := range sp.Coefficients {
		term, ok := tags[tag]
		if !ok {
			panic(fmt.Errorf("unknown 3D coefficient tag %s", tag))
		}
		c := utils.NewMatrix(nLeaves, np3)
		for i := 0; i < nLeaves; i++ {
			for j := 0; j < np3; j++ {
				c.Set(i, j, val)
			}
		}
		coeffs[term] = c
	}
	return coeffs
}

func init() {
	rootCmd.AddCommand(ThreeDCmd)
	ThreeDCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- PolynomialOrder\n\t- Levels\n\t- Coefficients")
	ThreeDCmd.Flags().IntP("levels", "l", 0, "override the uniform refinement level count")
}

func Run3D(sp *InputParameters.SolverParameters) {
	sp.Print()
	var (
		ops  = operators.NewOperatorSet3D(sp.PolynomialOrder, sp.GaussOrder)
		root = tree.NewRoot3D(sp.XMin, sp.XMax, sp.YMin, sp.YMax, sp.ZMin, sp.ZMax)
		u    = initFields3D["Harmonic"]
	)
	if sp.InitType != "" {
		fld, ok := initFields3D[sp.InitType]
		if !ok {
			panic(fmt.Errorf("unknown InitType %s", sp.InitType))
		}
		u = fld
	}
	tree.NewUniformTree(root, sp.Levels)
	var (
		nLeaves    = root.NumLeaves()
		np3        = sp.PolynomialOrder * sp.PolynomialOrder * sp.PolynomialOrder
		coeffs     = coefficients3D(sp, nLeaves, np3)
		prob, pErr = hps.NewProblem3D(root, ops, hps.DtN, coeffs, utils.Matrix{})
		start      = time.Now()
	)
	if pErr != nil {
		panic(pErr)
	}
	fmt.Printf("leaves: %d, leaf nodes: %d\n", nLeaves, np3)
	top, err := hps.BuildSolver(prob, hps.Config{})
	if err != nil {
		panic(err)
	}
	nr, _ := top.T.Dims()
	fmt.Printf("build: %v, top operator: %d x %d\n", time.Since(start), nr, nr)

	XYZ, err := prob.RootBoundaryPoints()
	if err != nil {
		panic(err)
	}
	nPts, _ := XYZ.Dims()
	g := utils.NewVector(nPts)
	for i := 0; i < nPts; i++ {
		g.Set(i, u(XYZ.At(i, 0), XYZ.At(i, 1), XYZ.At(i, 2)))
	}
	start = time.Now()
	sol, err := hps.Solve(prob, hps.BoundaryData{G: g}, utils.Matrix{})
	if err != nil {
		panic(err)
	}
	fmt.Printf("solve: %v\n", time.Since(start))

	var md float64
	for k, lf := range root.Leaves() {
		pts := ops.LeafPoints(lf.Box)
		npr, _ := pts.Dims()
		for j := 0; j < npr; j++ {
			d := math.Abs(sol.U.At(k, j) - u(pts.At(j, 0), pts.At(j, 1), pts.At(j, 2)))
			if d > md {
				md = d
			}
		}
	}
	fmt.Printf("max deviation from the reference field: %8.3e\n", md)
}
