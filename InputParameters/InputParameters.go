package InputParameters

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	StaticStrategy    = 0
	TransposeStrategy = 1
)

type View struct {
	X1 float64 `json:"X1"`
	X2 float64 `json:"X2"`
}

// Parameters obtained from the input file
type HeatParameters struct {
	Title                  string  `json:"Title"`
	X1                     float64 `json:"X1"` // Domain lengths, m
	X2                     float64 `json:"X2"`
	X1SplitCount           int     `json:"X1SplitCount"` // Grid points per axis
	X2SplitCount           int     `json:"X2SplitCount"`
	Speed                  float64 `json:"Speed"` // Casting speed, m/s
	TimeSplitCount         int     `json:"TimeSplitCount"`
	Epsilon                float64 `json:"Epsilon"`
	MaxIterations          int     `json:"MaxIterations"`
	TMax                   float64 `json:"TMax"` // Optional cap on simulated time, s
	InitT                  float64 `json:"InitT"`
	EnvT                   float64 `json:"EnvT"`
	EnableConsole          bool    `json:"EnableConsole"`
	EnablePlot             bool    `json:"EnablePlot"`
	EnableMatrix           bool    `json:"EnableMatrix"`
	EnableBuckets          bool    `json:"EnableBuckets"`
	EnableWeights          bool    `json:"EnableWeights"`
	EnableTimes            bool    `json:"EnableTimes"`
	PlotFilename           string  `json:"PlotFilename"`
	MatrixFilename         string  `json:"MatrixFilename"`
	BucketsFilename        string  `json:"BucketsFilename"`
	WeightsFilename        string  `json:"WeightsFilename"`
	TimesFilenamePrefix    string  `json:"TimesFilenamePrefix"`
	Views                  []View  `json:"Views"`
	DebugView              int     `json:"DebugView"`
	FramesCount            int     `json:"FramesCount"`
	MinimumBundle          int     `json:"MinimumBundle"`
	BalanceFactor          float64 `json:"BalanceFactor"`
	Balancing              bool    `json:"Balancing"`
	BalanceInterval        int     `json:"BalanceInterval"`
	BalanceDecay           float64 `json:"BalanceDecay"`
	BalanceTimeFactor      float64 `json:"BalanceTimeFactor"`
	StaticBalanceThreshold float64 `json:"StaticBalanceThreshold"`
	WeightsSmoothFactor    float64 `json:"WeightsSmoothFactor"`
	Strategy               int     `json:"Strategy"`
	Workers                int     `json:"Workers"`
	Profile                bool    `json:"Profile"`
}

func NewHeatParameters() *HeatParameters {
	return &HeatParameters{
		Title:                  "goheat",
		MaxIterations:          100,
		PlotFilename:           "plot.csv",
		MatrixFilename:         "matrix.csv",
		BucketsFilename:        "buckets.csv",
		WeightsFilename:        "weights.csv",
		TimesFilenamePrefix:    "times",
		MinimumBundle:          5,
		BalanceFactor:          0.5,
		BalanceInterval:        10,
		BalanceDecay:           0.5,
		StaticBalanceThreshold: 0.1,
	}
}

// Load reads a YAML parameter file (.yaml, .yml) or a KEY VALUE file
func Load(path string) (hp *HeatParameters, err error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var data []byte
		if data, err = os.ReadFile(path); err != nil {
			return
		}
		hp = NewHeatParameters()
		if err = hp.Parse(data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		var store *Store
		if store, err = NewStore(path); err != nil {
			return
		}
		if hp, err = FromStore(store); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	if err = hp.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return
}

func (hp *HeatParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, hp)
}

// Dump renders the parameters as YAML
func (hp *HeatParameters) Dump() ([]byte, error) {
	return yaml.Marshal(hp)
}

func (hp *HeatParameters) Validate() error {
	switch {
	case hp.X1 <= 0 || hp.X2 <= 0:
		return fmt.Errorf("domain lengths must be positive, have %g x %g", hp.X1, hp.X2)
	case hp.X1SplitCount < 2 || hp.X2SplitCount < 2:
		return fmt.Errorf("each axis needs at least 2 grid points, have %d x %d", hp.X1SplitCount, hp.X2SplitCount)
	case hp.Speed <= 0:
		return fmt.Errorf("speed must be positive, have %g", hp.Speed)
	case hp.TimeSplitCount < 1:
		return fmt.Errorf("time split count must be positive, have %d", hp.TimeSplitCount)
	case hp.Epsilon <= 0:
		return fmt.Errorf("epsilon must be positive, have %g", hp.Epsilon)
	case hp.MaxIterations < 1:
		return fmt.Errorf("iteration cap must be positive, have %d", hp.MaxIterations)
	case hp.Strategy != StaticStrategy && hp.Strategy != TransposeStrategy:
		return fmt.Errorf("unknown strategy %d", hp.Strategy)
	case hp.Workers < 0:
		return fmt.Errorf("negative worker count %d", hp.Workers)
	case hp.MinimumBundle < 1:
		return fmt.Errorf("minimum bundle must be positive, have %d", hp.MinimumBundle)
	case hp.BalanceInterval < 1:
		return fmt.Errorf("balance interval must be positive, have %d", hp.BalanceInterval)
	case len(hp.Views) > 0 && (hp.DebugView < 0 || hp.DebugView >= len(hp.Views)):
		return fmt.Errorf("debug view %d out of range [0,%d)", hp.DebugView, len(hp.Views))
	}
	return nil
}

func (hp *HeatParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", hp.Title)
	fmt.Printf("%8.5f x %8.5f\t= Domain, m\n", hp.X1, hp.X2)
	fmt.Printf("[%d x %d]\t\t= Grid\n", hp.X1SplitCount, hp.X2SplitCount)
	fmt.Printf("%8.5f\t\t= Speed, m/s\n", hp.Speed)
	fmt.Printf("[%d]\t\t\t= Time Steps\n", hp.TimeSplitCount)
	fmt.Printf("%8.2e\t\t= Epsilon\n", hp.Epsilon)
	fmt.Printf("%8.2f / %8.2f\t= Initial / Environment T\n", hp.InitT, hp.EnvT)
	fmt.Printf("[%s]\t\t= Strategy\n", StrategyName(hp.Strategy))
	for i, v := range hp.Views {
		fmt.Printf("View[%d] = (%g, %g)\n", i, v.X1, v.X2)
	}
}

func StrategyName(s int) string {
	switch s {
	case StaticStrategy:
		return "static"
	case TransposeStrategy:
		return "transpose"
	}
	return fmt.Sprintf("strategy(%d)", s)
}

// Store is a flat KEY VALUE lookup. Values can be overridden from the
// environment as GOHEAT_<KEY>.
type Store struct {
	v *viper.Viper
}

func NewStore(path string) (s *Store, err error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	v.SetEnvPrefix("GOHEAT")
	v.AutomaticEnv()
	if err = v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config %s: %w", path, err)
	}
	s = &Store{v: v}
	return
}

func (s *Store) Has(key string) bool { return s.v.IsSet(key) }

func (s *Store) Value(key string) (f float64, err error) {
	if !s.Has(key) {
		return 0, fmt.Errorf("missing configuration key %s", key)
	}
	if f, err = cast.ToFloat64E(strings.TrimSpace(cast.ToString(s.v.Get(key)))); err != nil {
		return 0, fmt.Errorf("malformed configuration key %s: %w", key, err)
	}
	return
}

func (s *Store) String(key string) (string, error) {
	if !s.Has(key) {
		return "", fmt.Errorf("missing configuration key %s", key)
	}
	return strings.TrimSpace(cast.ToString(s.v.Get(key))), nil
}

// FromStore fills parameters from a store. Keys without a default are required.
func FromStore(s *Store) (hp *HeatParameters, err error) {
	hp = NewHeatParameters()
	var (
		required = map[string]*float64{
			"X1": &hp.X1, "X2": &hp.X2, "Speed": &hp.Speed, "Epsilon": &hp.Epsilon,
			"InitT": &hp.InitT, "EnvT": &hp.EnvT,
		}
		requiredInts = map[string]*int{
			"X1SplitCount": &hp.X1SplitCount, "X2SplitCount": &hp.X2SplitCount,
			"TimeSplitCount": &hp.TimeSplitCount,
		}
		optional = map[string]*float64{
			"TMax": &hp.TMax, "BalanceFactor": &hp.BalanceFactor, "BalanceDecay": &hp.BalanceDecay,
			"BalanceTimeFactor": &hp.BalanceTimeFactor, "StaticBalanceThreshold": &hp.StaticBalanceThreshold,
			"WeightsSmoothFactor": &hp.WeightsSmoothFactor,
		}
		optionalInts = map[string]*int{
			"MaxIterations": &hp.MaxIterations, "DebugView": &hp.DebugView, "FramesCount": &hp.FramesCount,
			"MinimumBundle": &hp.MinimumBundle, "BalanceInterval": &hp.BalanceInterval,
			"Strategy": &hp.Strategy, "Workers": &hp.Workers,
		}
		flags = map[string]*bool{
			"EnableConsole": &hp.EnableConsole, "EnablePlot": &hp.EnablePlot,
			"EnableMatrix": &hp.EnableMatrix, "EnableBuckets": &hp.EnableBuckets,
			"EnableWeights": &hp.EnableWeights, "EnableTimes": &hp.EnableTimes,
			"Balancing": &hp.Balancing, "Profile": &hp.Profile,
		}
		names = map[string]*string{
			"Title": &hp.Title, "PlotFilename": &hp.PlotFilename, "MatrixFilename": &hp.MatrixFilename,
			"BucketsFilename": &hp.BucketsFilename, "WeightsFilename": &hp.WeightsFilename,
			"TimesFilenamePrefix": &hp.TimesFilenamePrefix,
		}
		f float64
	)
	for key, dst := range required {
		if *dst, err = s.Value(key); err != nil {
			return nil, err
		}
	}
	for key, dst := range requiredInts {
		if f, err = s.Value(key); err != nil {
			return nil, err
		}
		*dst = int(f)
	}
	for key, dst := range optional {
		if s.Has(key) {
			if *dst, err = s.Value(key); err != nil {
				return nil, err
			}
		}
	}
	for key, dst := range optionalInts {
		if s.Has(key) {
			if f, err = s.Value(key); err != nil {
				return nil, err
			}
			*dst = int(f)
		}
	}
	for key, dst := range flags {
		if s.Has(key) {
			if f, err = s.Value(key); err != nil {
				return nil, err
			}
			*dst = f > 0
		}
	}
	for key, dst := range names {
		if s.Has(key) {
			if *dst, err = s.String(key); err != nil {
				return nil, err
			}
		}
	}
	if s.Has("ViewCount") {
		if f, err = s.Value("ViewCount"); err != nil {
			return nil, err
		}
		hp.Views = make([]View, int(f))
		for i := range hp.Views {
			if hp.Views[i].X1, err = s.Value(fmt.Sprintf("View%dX1", i)); err != nil {
				return nil, err
			}
			if hp.Views[i].X2, err = s.Value(fmt.Sprintf("View%dX2", i)); err != nil {
				return nil, err
			}
		}
	}
	return
}
