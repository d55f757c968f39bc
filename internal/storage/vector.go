package storage

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/physeval/internal/parser"
)

// LabelVector encodes a parsed verdict as Objects, Event, Standard_1..n with
// Yes as 1 and anything else as 0. Standards are ordered by their number.
func LabelVector(labels map[string]string) []float32 {
	yes := func(k string) float32 {
		if labels[k] == "Yes" {
			return 1
		}
		return 0
	}

	type standard struct {
		n   int
		key string
	}
	var standards []standard
	for k := range labels {
		rest, ok := strings.CutPrefix(k, "Standard_")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		standards = append(standards, standard{n, k})
	}
	sort.Slice(standards, func(i, j int) bool { return standards[i].n < standards[j].n })

	vec := []float32{yes("Objects"), yes("Event")}
	for _, s := range standards {
		vec = append(vec, yes(s.key))
	}
	return vec
}

// responseVector parses a raw response into its pgvector representation.
func responseVector(response string) pgvector.Vector {
	return pgvector.NewVector(LabelVector(parser.Parse(response)))
}
