package InputParameters

import (
	"fmt"
	"sort"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file
type SolverParameters struct {
	Title           string             `yaml:"Title"`
	Dim             int                `yaml:"Dim"`
	PolynomialOrder int                `yaml:"PolynomialOrder"` // Chebyshev nodes per direction on each leaf
	GaussOrder      int                `yaml:"GaussOrder"`      // Gauss points per boundary panel
	Levels          int                `yaml:"Levels"`          // uniform refinement levels
	Mode            string             `yaml:"Mode"`            // DtN or ItI
	Eta             float64            `yaml:"Eta"`             // ItI impedance parameter
	XMin            float64            `yaml:"XMin"`
	XMax            float64            `yaml:"XMax"`
	YMin            float64            `yaml:"YMin"`
	YMax            float64            `yaml:"YMax"`
	ZMin            float64            `yaml:"ZMin"`
	ZMax            float64            `yaml:"ZMax"`
	Coefficients    map[string]float64 `yaml:"Coefficients"` // constant per-term values keyed XX, XY, YY, X, Y, I, ZZ, XZ, YZ, Z
	InitType        string             `yaml:"InitType"`     // manufactured solution used for boundary data
	Fused           bool               `yaml:"Fused"`
	NLevelsFused    int                `yaml:"NLevelsFused"`
	MemoryBudget    int64              `yaml:"MemoryBudget"`
}

func (sp *SolverParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, sp); err != nil {
		return err
	}
	return sp.Validate()
}

func (sp *SolverParameters) Validate() error {
	if sp.Dim == 0 {
		sp.Dim = 2
	}
	if sp.Dim != 2 && sp.Dim != 3 {
		return fmt.Errorf("Dim must be 2 or 3, got %d", sp.Dim)
	}
	if sp.PolynomialOrder < 2 {
		return fmt.Errorf("PolynomialOrder must be at least 2, got %d", sp.PolynomialOrder)
	}
	if sp.GaussOrder < 1 {
		return fmt.Errorf("GaussOrder must be at least 1, got %d", sp.GaussOrder)
	}
	if sp.Mode == "" {
		sp.Mode = "DtN"
	}
	if sp.Mode != "DtN" && sp.Mode != "ItI" {
		return fmt.Errorf("Mode must be DtN or ItI, got %s", sp.Mode)
	}
	if sp.XMax <= sp.XMin || sp.YMax <= sp.YMin {
		return fmt.Errorf("domain bounds are empty")
	}
	if sp.Dim == 3 && sp.ZMax <= sp.ZMin {
		return fmt.Errorf("domain bounds are empty in Z")
	}
	return nil
}

func (sp *SolverParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", sp.Title)
	fmt.Printf("[%d]\t\t\t\t= Dim\n", sp.Dim)
	fmt.Printf("[%d]\t\t\t\t= Polynomial Order\n", sp.PolynomialOrder)
	fmt.Printf("[%d]\t\t\t\t= Gauss Order\n", sp.GaussOrder)
	fmt.Printf("[%d]\t\t\t\t= Levels\n", sp.Levels)
	fmt.Printf("[%s]\t\t\t= Mode\n", sp.Mode)
	if sp.Mode == "ItI" {
		fmt.Printf("%8.5f\t\t= Eta\n", sp.Eta)
	}
	keys := make([]string, len(sp.Coefficients))
	i := 0
	for k := range sp.Coefficients {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("Coefficients[%s] = %v\n", key, sp.Coefficients[key])
	}
}
