package analyzer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bdougie/physeval/internal/models"
)

// ErrUnsupportedVariant is returned for prompt variants that have no judge prompt.
var ErrUnsupportedVariant = errors.New("prompt variant has no prompt text")

const judgePreamble = "Suppose you are an expert in judging and evaluating the quality of AI-generated videos. " +
	"These are frames evenly sampled from a generated video from the begining to the end. " +
	"This is a generated video from a video model rather than captured from real world, so the video could be low quality, " +
	"such as fuzzy, inconsistency, especially not following real world physics."

const oneStepTemplate = judgePreamble + ` Compare the objects and quantities visually present in the video with the specified object(s): "%s". ` +
	`Answer "Yes" if the object(s) could be found in the video, otherwise answer "No". ` +
	`Also, pleaes check if "%s" is visually depicted in the video, and answer "Yes" or "No". ` +
	`Lastly, please check if video satisfies the standards in list: "%s", and answer "Yes" or "No" for each standard in the list.
        Return your evaluation in the following JSON format:
        "Objects": "Yes/No",
        "Event": "Yes/No",
        "Standard_1": "Yes/No",
        "Standard_2": "Yes/No",
        "...": "Yes/No"
        `

const describeTemplate = judgePreamble + " Please tell me what is in this video, including what happened and any physics phenomena you observe." +
	"%s Please be sure to include objects in the video, the main event, and any physics phenomena you observe."

// BuildPrompt renders the judge prompt for a checklist record.
func BuildPrompt(variant models.Variant, rec *models.PromptRecord) (string, error) {
	switch variant {
	case models.VariantOneStep:
		return fmt.Sprintf(oneStepTemplate, rec.ObjectsString(), rec.Event, standardsList(rec.Standards)), nil
	case models.VariantTwoStepWithStandardFirst:
		hint := fmt.Sprintf(" Besides, I will also use your response to check if the video satisfies the following standards: %s, "+
			"so please include information related to the the standards.", standardsList(rec.Standards))
		return fmt.Sprintf(describeTemplate, hint), nil
	case models.VariantTwoStepNoStandardFirst:
		return fmt.Sprintf(describeTemplate, ""), nil
	case models.VariantTwoStepWithStandardLast, models.VariantTwoStepNoStandardLast:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedVariant, variant)
	default:
		return "", fmt.Errorf("invalid prompt variant %q", variant)
	}
}

// standardsList quotes the standards as a bracketed list, e.g. ['a', 'b'].
func standardsList(standards []string) string {
	quoted := make([]string, len(standards))
	for i, s := range standards {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
