package boost

import (
	"fmt"
	"strings"

	"github.com/tarstars/mltrees/golang/mltrees/dtrees"
	"github.com/tarstars/mltrees/golang/mltrees/ml"
)

//Type selects the boosting variant.
type Type int

const (
	Discrete Type = iota
	Real
	Logit
	Gentle
)

var typeNames = map[Type]string{
	Discrete: "discrete",
	Real:     "real",
	Logit:    "logit",
	Gentle:   "gentle",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

//ParseType converts a variant name, case insensitive, into a Type.
func ParseType(name string) (Type, error) {
	for t, n := range typeNames {
		if strings.EqualFold(n, name) {
			return t, nil
		}
	}
	return 0, ml.InvalidArgf("unknown boost type %q", name)
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

//UnmarshalYAML reads a Type written by name.
func (t *Type) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	return t.UnmarshalText([]byte(name))
}

//Params are the tree parameters shared with DTrees plus the boosting schedule.
type Params struct {
	dtrees.Params `yaml:",inline"`
	Type           Type    `json:"boost_type" yaml:"boost_type"`
	WeakCount      int     `json:"weak_count" yaml:"weak_count"`
	WeightTrimRate float64 `json:"weight_trim_rate" yaml:"weight_trim_rate"`
}

//DefaultParams returns stumps boosted by Real AdaBoost for 100 stages without pruning.
func DefaultParams() Params {
	treeParams := dtrees.DefaultParams()
	treeParams.MaxDepth = 1
	treeParams.CVFolds = 0
	return Params{
		Params:         treeParams,
		Type:           Real,
		WeakCount:      100,
		WeightTrimRate: 0.95,
	}
}

//Validate checks the staged values.
func (p Params) Validate() error {
	if err := p.Params.Validate(); err != nil {
		return err
	}
	if _, ok := rules[p.Type]; !ok {
		return ml.InvalidArgf("unknown boost type %d", int(p.Type))
	}
	if p.WeakCount <= 0 {
		return ml.InvalidArgf("weak count must be positive, got %d", p.WeakCount)
	}
	if p.WeightTrimRate < 0 || p.WeightTrimRate > 1 {
		return ml.InvalidArgf("weight trim rate outside [0, 1]: %g", p.WeightTrimRate)
	}
	return nil
}
