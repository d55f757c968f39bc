package models

import "fmt"

// Variant selects how the judge prompt is phrased.
type Variant string

const (
	VariantOneStep                  Variant = "one_step"
	VariantTwoStepWithStandardFirst Variant = "two_step_with_standard_first"
	VariantTwoStepWithStandardLast  Variant = "two_step_with_standard_last"
	VariantTwoStepNoStandardFirst   Variant = "two_step_no_standard_first"
	VariantTwoStepNoStandardLast    Variant = "two_step_no_standard_last"
)

var variantPrefixes = map[Variant]string{
	VariantOneStep:                  "one_step",
	VariantTwoStepWithStandardFirst: "with_standard_first_step",
	VariantTwoStepWithStandardLast:  "with_standard_last_step",
	VariantTwoStepNoStandardFirst:   "no_standard_first_step",
	VariantTwoStepNoStandardLast:    "no_standard_last_step",
}

// ParseVariant validates a variant name.
func ParseVariant(s string) (Variant, error) {
	v := Variant(s)
	if _, ok := variantPrefixes[v]; !ok {
		return "", fmt.Errorf("invalid prompt variant %q", s)
	}
	return v, nil
}

// OutputPrefix is the file name prefix used for verdicts of this variant.
func (v Variant) OutputPrefix() string {
	return variantPrefixes[v]
}

// IsTwoStep reports whether the variant is one half of a two-step evaluation.
func (v Variant) IsTwoStep() bool {
	return v != VariantOneStep
}
