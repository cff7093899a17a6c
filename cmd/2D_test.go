package cmd

import (
	"testing"

	"github.com/magiconair/properties/assert"

	"github.com/notargets/hps/InputParameters"
)

func TestParseInput2D(t *testing.T) {
	var (
		err error
	)
	fileInput := []byte(`
Title: Test Case
PolynomialOrder: 8
GaussOrder: 6
Levels: 3
Mode: DtN
XMin: 0.
XMax: 1.
YMin: 0.
YMax: 1.
InitType: Harmonic # Can be Cubic
Coefficients:
  XX: 1.
  YY: 1.
  I: 4.
`)
	sp := &InputParameters.SolverParameters{Dim: 2}
	if err = sp.Parse(fileInput); err != nil {
		panic(err)
	}
	// Laplacian coefficients plus a constant reaction term
	assert.Equal(t, sp.Coefficients["XX"], 1.)
	assert.Equal(t, sp.Coefficients["I"], 4.)
	sp.Print()
	assert.Equal(t, sp.PolynomialOrder, 8)
	assert.Equal(t, sp.Dim, 2)
	coeffs := coefficients2D(sp, 4, 64)
	assert.Equal(t, len(coeffs), 3)
}
